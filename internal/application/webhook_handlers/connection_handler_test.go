package webhook_handlers

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

// stubRepo implements just enough of ConnectionRepository for the handler.
type stubRepo struct {
	ports.ConnectionRepository
	conns    []*domain.StoreConnection
	statuses map[string]domain.ConnectionStatus
}

func (r *stubRepo) ListByClient(ctx context.Context, clientID string) ([]*domain.StoreConnection, error) {
	var out []*domain.StoreConnection
	for _, c := range r.conns {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	if r.statuses == nil {
		r.statuses = make(map[string]domain.ConnectionStatus)
	}
	r.statuses[id] = status
	return nil
}

func TestConnectionRevokedHandlerTopics(t *testing.T) {
	h := NewConnectionRevokedHandler(&stubRepo{}, zerolog.Nop())

	assert.True(t, h.CanHandle(domain.WebhookTopicAppRevoked))
	assert.False(t, h.CanHandle(domain.WebhookTopicProductUpdated))
}

func TestConnectionRevokedHandlerDisconnectsMatch(t *testing.T) {
	repo := &stubRepo{conns: []*domain.StoreConnection{
		{ID: "1", ClientID: "client-1", StoreType: domain.StoreTypeShopify, StoreURL: "https://a.myshopify.com", Status: domain.ConnectionStatusActive},
		{ID: "2", ClientID: "client-1", StoreType: domain.StoreTypeShopify, StoreURL: "https://b.myshopify.com", Status: domain.ConnectionStatusActive},
		{ID: "3", ClientID: "client-1", StoreType: domain.StoreTypeWooCommerce, StoreURL: "https://a.myshopify.com", Status: domain.ConnectionStatusActive},
	}}
	h := NewConnectionRevokedHandler(repo, zerolog.Nop())

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Provider:   domain.StoreTypeShopify,
		Topic:      domain.WebhookTopicAppRevoked,
		ClientID:   "client-1",
		StoreURL:   "https://a.myshopify.com",
		ReceivedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStatusDisconnected, repo.statuses["1"])
	_, touched := repo.statuses["2"]
	assert.False(t, touched)
	_, touched = repo.statuses["3"]
	assert.False(t, touched)
}

func TestConnectionRevokedHandlerRequiresClient(t *testing.T) {
	h := NewConnectionRevokedHandler(&stubRepo{}, zerolog.Nop())

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Provider: domain.StoreTypeShopify,
		Topic:    domain.WebhookTopicAppRevoked,
	})
	assert.Error(t, err)
}
