package domain

import "time"

// Normalized webhook topics shared by all providers. Each provider maps its
// native topic strings onto these.
const (
	WebhookTopicProductCreated = "product.created"
	WebhookTopicProductUpdated = "product.updated"
	WebhookTopicProductDeleted = "product.deleted"
	WebhookTopicAppRevoked     = "connection.revoked"
)

// WebhookConfig is the input to RegisterWebhook.
type WebhookConfig struct {
	CallbackURL string   `json:"callback_url"`
	Events      []string `json:"events"`
	Secret      string   `json:"secret"`
}

// WebhookRegistration is the result of RegisterWebhook. For providers that
// register one webhook per event, WebhookID is a comma-joined composite of the
// underlying ids, which must be deleted together.
type WebhookRegistration struct {
	WebhookID string   `json:"webhook_id"`
	Events    []string `json:"events"`
}

// WebhookEvent is an inbound change notification after signature verification
// and payload normalization.
type WebhookEvent struct {
	Provider   StoreType `json:"provider"`
	ClientID   string    `json:"client_id,omitempty"`
	Topic      string    `json:"topic"`
	ProductID  string    `json:"product_id,omitempty"`
	StoreURL   string    `json:"store_url,omitempty"`
	Payload    []byte    `json:"-"`
	Verified   bool      `json:"verified"`
	ReceivedAt time.Time `json:"received_at"`
}
