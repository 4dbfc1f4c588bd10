package application

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/infrastructure/pubsub"
)

// WebhookHandler processes one normalized webhook topic family.
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified webhook events to registered handlers
// and fans them out to in-process subscribers. A handler error is logged and
// does not stop the remaining handlers.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers []WebhookHandler
	hub      *pubsub.WebhookPubSub
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher. hub may be nil when no
// subscription fan-out is wanted.
func NewWebhookDispatcher(hub *pubsub.WebhookPubSub, logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		hub:    hub,
		logger: logger,
	}
}

// RegisterHandler adds a handler. Handlers run in registration order.
func (d *WebhookDispatcher) RegisterHandler(h WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Dispatch runs every handler claiming the event's topic, then publishes the
// event to subscribers.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) {
	d.mu.RLock()
	handlers := d.handlers
	d.mu.RUnlock()

	handled := 0
	for _, h := range handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		handled++
		if err := h.Handle(ctx, event); err != nil {
			d.logger.Error().Err(err).
				Str("topic", event.Topic).
				Str("provider", string(event.Provider)).
				Str("clientId", event.ClientID).
				Msg("Webhook handler failed")
		}
	}

	if handled == 0 {
		d.logger.Debug().
			Str("topic", event.Topic).
			Str("provider", string(event.Provider)).
			Msg("No handler registered for webhook topic")
	}

	if d.hub != nil {
		d.hub.Publish(event)
	}
}
