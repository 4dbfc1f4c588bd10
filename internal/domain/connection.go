package domain

import "time"

// ConnectionStatus is the lifecycle state of a store connection.
type ConnectionStatus string

const (
	ConnectionStatusActive       ConnectionStatus = "active"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// StoreConnection is the persisted link between a client and an external
// store. Uniquely identified by (ClientID, StoreType, StoreURL); writes are
// upserts on that key.
type StoreConnection struct {
	ID             string               `json:"id"`
	ClientID       string               `json:"client_id"`
	StoreType      StoreType            `json:"store_type"`
	StoreURL       string               `json:"store_url"`
	StoreName      string               `json:"store_name,omitempty"`
	Credentials    EncryptedCredentials `json:"-"`
	Status         ConnectionStatus     `json:"status"`
	WebhookID      string               `json:"webhook_id,omitempty"`
	TokenExpiresAt *time.Time           `json:"token_expires_at,omitempty"`
	LastSyncAt     *time.Time           `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}
