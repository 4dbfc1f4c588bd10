// Package repository implements persistence with MongoDB.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/infrastructure/repository/entity"
	"scenergy-commerce-layer/internal/ports"
)

const connectionsCollection = "store_connections"

// MongoConnectionRepository implements ConnectionRepository using MongoDB.
type MongoConnectionRepository struct {
	collection *mongo.Collection
}

var _ ports.ConnectionRepository = (*MongoConnectionRepository)(nil)

// NewMongoConnectionRepository creates a MongoDB connection repository.
func NewMongoConnectionRepository(db *mongo.Database) *MongoConnectionRepository {
	return &MongoConnectionRepository{
		collection: db.Collection(connectionsCollection),
	}
}

// EnsureIndexes creates the unique compound index that backs upsert
// semantics. Safe to call on every startup.
func (r *MongoConnectionRepository) EnsureIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "client_id", Value: 1},
			{Key: "store_type", Value: 1},
			{Key: "store_url", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create connection index: %w", err)
	}
	return nil
}

// Upsert writes a connection on its (client_id, store_type, store_url) key.
// Re-authorizing an existing store replaces its credentials in place rather
// than creating a second row.
func (r *MongoConnectionRepository) Upsert(ctx context.Context, conn *domain.StoreConnection) error {
	now := time.Now().UTC()
	doc := entity.MongoConnectionDocFromDomain(conn)
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	filter := bson.M{
		"client_id":  doc.ClientID,
		"store_type": doc.StoreType,
		"store_url":  doc.StoreURL,
	}
	update := bson.M{
		"$set": bson.M{
			"store_name":       doc.StoreName,
			"credentials":      doc.Credentials,
			"status":           doc.Status,
			"webhook_id":       doc.WebhookID,
			"token_expires_at": doc.TokenExpiresAt,
			"last_sync_at":     doc.LastSyncAt,
			"updated_at":       doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"client_id":  doc.ClientID,
			"store_type": doc.StoreType,
			"store_url":  doc.StoreURL,
			"created_at": doc.CreatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}

	if result.UpsertedID != nil {
		if objID, ok := result.UpsertedID.(primitive.ObjectID); ok {
			conn.ID = objID.Hex()
		}
	} else if conn.ID == "" {
		existing, err := r.Get(ctx, conn.ClientID, conn.StoreType, conn.StoreURL)
		if err != nil {
			return err
		}
		if existing != nil {
			conn.ID = existing.ID
		}
	}
	conn.UpdatedAt = doc.UpdatedAt
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = doc.CreatedAt
	}
	return nil
}

// Get retrieves a connection by its natural key, or (nil, nil).
func (r *MongoConnectionRepository) Get(ctx context.Context, clientID string, storeType domain.StoreType, storeURL string) (*domain.StoreConnection, error) {
	filter := bson.M{
		"client_id":  clientID,
		"store_type": string(storeType),
		"store_url":  storeURL,
	}
	return r.findOne(ctx, filter, nil)
}

// GetByID retrieves a connection by its document id, or (nil, nil).
func (r *MongoConnectionRepository) GetByID(ctx context.Context, id string) (*domain.StoreConnection, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid connection id %q: %w", id, err)
	}
	return r.findOne(ctx, bson.M{"_id": objID}, nil)
}

// GetActiveByClient returns the client's most recently updated active
// connection, or (nil, nil).
func (r *MongoConnectionRepository) GetActiveByClient(ctx context.Context, clientID string) (*domain.StoreConnection, error) {
	filter := bson.M{
		"client_id": clientID,
		"status":    string(domain.ConnectionStatusActive),
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return r.findOne(ctx, filter, opts)
}

// ListByClient returns all of the client's connections, newest first.
func (r *MongoConnectionRepository) ListByClient(ctx context.Context, clientID string) ([]*domain.StoreConnection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"client_id": clientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer cursor.Close(ctx)

	var connections []*domain.StoreConnection
	for cursor.Next(ctx) {
		var doc entity.MongoConnectionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode connection: %w", err)
		}
		connections = append(connections, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}
	return connections, nil
}

// UpdateStatus flips the connection's lifecycle status.
func (r *MongoConnectionRepository) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	return r.updateFields(ctx, id, bson.M{"status": string(status)})
}

// UpdateLastSync records a successful catalog sync time.
func (r *MongoConnectionRepository) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	return r.updateFields(ctx, id, bson.M{"last_sync_at": at})
}

// Delete removes a connection by id.
func (r *MongoConnectionRepository) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid connection id %q: %w", id, err)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("connection not found")
	}
	return nil
}

func (r *MongoConnectionRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.StoreConnection, error) {
	var doc entity.MongoConnectionDoc

	var err error
	if opts != nil {
		err = r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	} else {
		err = r.collection.FindOne(ctx, filter).Decode(&doc)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return doc.ToDomain(), nil
}

func (r *MongoConnectionRepository) updateFields(ctx context.Context, id string, fields bson.M) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid connection id %q: %w", id, err)
	}

	fields["updated_at"] = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("connection not found")
	}
	return nil
}
