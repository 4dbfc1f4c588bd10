// Package webhook_handlers contains the built-in webhook topic handlers.
package webhook_handlers

import (
	"context"

	"github.com/rs/zerolog"

	"scenergy-commerce-layer/internal/domain"
)

// ProductHandler handles product change events. It logs the change; cache
// invalidation and search reindexing hang off the pub/sub fan-out instead.
type ProductHandler struct {
	logger zerolog.Logger
}

// NewProductHandler creates a product webhook handler.
func NewProductHandler(logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{logger: logger}
}

// CanHandle returns true for the product topic family.
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == domain.WebhookTopicProductCreated ||
		topic == domain.WebhookTopicProductUpdated ||
		topic == domain.WebhookTopicProductDeleted
}

// Handle processes a product webhook event.
func (h *ProductHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	h.logger.Info().
		Str("topic", event.Topic).
		Str("provider", string(event.Provider)).
		Str("clientId", event.ClientID).
		Str("productId", event.ProductID).
		Msg("Product changed upstream")
	return nil
}
