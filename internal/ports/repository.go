package ports

import (
	"context"
	"time"

	"scenergy-commerce-layer/internal/domain"
)

// ConnectionRepository persists store connections. Upsert writes on the
// (client_id, store_type, store_url) unique key; lookups return (nil, nil)
// when no document matches.
type ConnectionRepository interface {
	Upsert(ctx context.Context, conn *domain.StoreConnection) error
	Get(ctx context.Context, clientID string, storeType domain.StoreType, storeURL string) (*domain.StoreConnection, error)
	GetByID(ctx context.Context, id string) (*domain.StoreConnection, error)
	GetActiveByClient(ctx context.Context, clientID string) (*domain.StoreConnection, error)
	ListByClient(ctx context.Context, clientID string) ([]*domain.StoreConnection, error)
	UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus) error
	UpdateLastSync(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
