package webhook_handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

// ConnectionRevokedHandler reacts to a merchant revoking access upstream
// (Shopify app/uninstalled) by flipping the stored connection to
// disconnected. The credential record stays for audit; it no longer works
// upstream anyway.
type ConnectionRevokedHandler struct {
	logger zerolog.Logger
	repo   ports.ConnectionRepository
}

// NewConnectionRevokedHandler creates a revocation handler.
func NewConnectionRevokedHandler(repo ports.ConnectionRepository, logger zerolog.Logger) *ConnectionRevokedHandler {
	return &ConnectionRevokedHandler{
		logger: logger,
		repo:   repo,
	}
}

// CanHandle returns true for revocation events.
func (h *ConnectionRevokedHandler) CanHandle(topic string) bool {
	return topic == domain.WebhookTopicAppRevoked
}

// Handle marks the client's matching connection disconnected.
func (h *ConnectionRevokedHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	if event.ClientID == "" {
		return fmt.Errorf("revocation event missing client id")
	}

	connections, err := h.repo.ListByClient(ctx, event.ClientID)
	if err != nil {
		return fmt.Errorf("failed to list connections for revocation: %w", err)
	}

	for _, conn := range connections {
		if conn.StoreType != event.Provider {
			continue
		}
		if event.StoreURL != "" && conn.StoreURL != event.StoreURL {
			continue
		}
		if conn.Status != domain.ConnectionStatusActive {
			continue
		}

		if err := h.repo.UpdateStatus(ctx, conn.ID, domain.ConnectionStatusDisconnected); err != nil {
			return fmt.Errorf("failed to disconnect revoked connection %s: %w", conn.ID, err)
		}
		h.logger.Info().
			Str("clientId", event.ClientID).
			Str("connectionId", conn.ID).
			Str("storeUrl", conn.StoreURL).
			Msg("Connection disconnected after upstream revocation")
	}

	return nil
}
