package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"scenergy-commerce-layer/internal/domain"
)

// MongoConnectionDoc represents a store connection in MongoDB. The encrypted
// credential record is embedded; plaintext credentials never touch this
// layer.
type MongoConnectionDoc struct {
	ID             primitive.ObjectID          `bson:"_id,omitempty"`
	ClientID       string                      `bson:"client_id"`
	StoreType      string                      `bson:"store_type"`
	StoreURL       string                      `bson:"store_url"`
	StoreName      string                      `bson:"store_name,omitempty"`
	Credentials    domain.EncryptedCredentials `bson:"credentials"`
	Status         string                      `bson:"status"`
	WebhookID      string                      `bson:"webhook_id,omitempty"`
	TokenExpiresAt *time.Time                  `bson:"token_expires_at,omitempty"`
	LastSyncAt     *time.Time                  `bson:"last_sync_at,omitempty"`
	CreatedAt      time.Time                   `bson:"created_at"`
	UpdatedAt      time.Time                   `bson:"updated_at"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *MongoConnectionDoc) ToDomain() *domain.StoreConnection {
	return &domain.StoreConnection{
		ID:             d.ID.Hex(),
		ClientID:       d.ClientID,
		StoreType:      domain.StoreType(d.StoreType),
		StoreURL:       d.StoreURL,
		StoreName:      d.StoreName,
		Credentials:    d.Credentials,
		Status:         domain.ConnectionStatus(d.Status),
		WebhookID:      d.WebhookID,
		TokenExpiresAt: d.TokenExpiresAt,
		LastSyncAt:     d.LastSyncAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// MongoConnectionDocFromDomain converts a domain entity to a MongoDB
// document.
func MongoConnectionDocFromDomain(conn *domain.StoreConnection) *MongoConnectionDoc {
	doc := &MongoConnectionDoc{
		ClientID:       conn.ClientID,
		StoreType:      string(conn.StoreType),
		StoreURL:       conn.StoreURL,
		StoreName:      conn.StoreName,
		Credentials:    conn.Credentials,
		Status:         string(conn.Status),
		WebhookID:      conn.WebhookID,
		TokenExpiresAt: conn.TokenExpiresAt,
		LastSyncAt:     conn.LastSyncAt,
		CreatedAt:      conn.CreatedAt,
		UpdatedAt:      conn.UpdatedAt,
	}

	if conn.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(conn.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
