// Package pubsub provides in-process fan-out of verified webhook events.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"scenergy-commerce-layer/internal/domain"
)

// WebhookEventChannel represents a subscription channel.
type WebhookEventChannel struct {
	ID     string
	Filter *WebhookEventFilter
	Events chan *domain.WebhookEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// WebhookEventFilter narrows which events a subscriber receives. Zero-value
// fields match everything.
type WebhookEventFilter struct {
	Provider domain.StoreType
	Topics   []string
	ClientID string
}

// WebhookPubSub manages webhook event subscriptions.
type WebhookPubSub struct {
	mu       sync.RWMutex
	channels map[string]*WebhookEventChannel
	logger   zerolog.Logger
	nextID   int64
	idMu     sync.Mutex
}

// NewWebhookPubSub creates a webhook pub/sub hub.
func NewWebhookPubSub(logger zerolog.Logger) *WebhookPubSub {
	return &WebhookPubSub{
		channels: make(map[string]*WebhookEventChannel),
		logger:   logger,
	}
}

// Subscribe creates a subscription. The channel is torn down when ctx is
// cancelled.
func (ps *WebhookPubSub) Subscribe(ctx context.Context, filter *WebhookEventFilter) *WebhookEventChannel {
	ps.idMu.Lock()
	ps.nextID++
	id := fmt.Sprintf("channel-%d", ps.nextID)
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	channel := &WebhookEventChannel{
		ID:     id,
		Filter: filter,
		Events: make(chan *domain.WebhookEvent, 10),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.channels[id] = channel
	ps.mu.Unlock()

	ps.logger.Info().
		Str("channelId", id).
		Interface("filter", filter).
		Msg("Webhook subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return channel
}

// Unsubscribe removes a subscription channel.
func (ps *WebhookPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	close(channel.Events)
	close(channel.Done)
	channel.cancel()
	delete(ps.channels, channelID)

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Webhook subscription removed")
}

// Publish broadcasts an event to all matching subscribers. Delivery is
// non-blocking; a full subscriber buffer drops the event for that subscriber.
func (ps *WebhookPubSub) Publish(event *domain.WebhookEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	publishedCount := 0
	for _, channel := range ps.channels {
		if !matchesFilter(event, channel.Filter) {
			continue
		}
		select {
		case channel.Events <- event:
			publishedCount++
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping event")
		}
	}

	if publishedCount > 0 {
		ps.logger.Debug().
			Str("topic", event.Topic).
			Str("provider", string(event.Provider)).
			Str("clientId", event.ClientID).
			Int("subscribers", publishedCount).
			Msg("Published webhook event to subscribers")
	}
}

func matchesFilter(event *domain.WebhookEvent, filter *WebhookEventFilter) bool {
	if filter == nil {
		return true
	}

	if filter.Provider != "" && event.Provider != filter.Provider {
		return false
	}

	if len(filter.Topics) > 0 {
		topicMatch := false
		for _, topic := range filter.Topics {
			if event.Topic == topic {
				topicMatch = true
				break
			}
		}
		if !topicMatch {
			return false
		}
	}

	if filter.ClientID != "" && event.ClientID != filter.ClientID {
		return false
	}

	return true
}

// GetStats returns pub/sub statistics.
func (ps *WebhookPubSub) GetStats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return map[string]interface{}{
		"active_subscriptions": len(ps.channels),
	}
}
