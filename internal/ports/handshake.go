package ports

import (
	"context"

	"scenergy-commerce-layer/internal/domain"
)

// HandshakeStore holds short-lived auth handshake states. Get returns
// (nil, nil) for a missing or expired state; an expired state is removed as a
// side effect of the lookup.
type HandshakeStore interface {
	Put(ctx context.Context, state *domain.AuthHandshakeState) error
	Get(ctx context.Context, id string) (*domain.AuthHandshakeState, error)
	Delete(ctx context.Context, id string) error
}
