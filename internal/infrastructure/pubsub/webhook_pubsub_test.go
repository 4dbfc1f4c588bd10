package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenergy-commerce-layer/internal/domain"
)

func event(provider domain.StoreType, topic, clientID string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		Provider:   provider,
		Topic:      topic,
		ClientID:   clientID,
		ReceivedAt: time.Now().UTC(),
	}
}

func receive(t *testing.T, ch *WebhookEventChannel) *domain.WebhookEvent {
	t.Helper()
	select {
	case e := <-ch.Events:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	ps := NewWebhookPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := ps.Subscribe(ctx, nil)
	ps.Publish(event(domain.StoreTypeWooCommerce, domain.WebhookTopicProductUpdated, "client-1"))

	got := receive(t, ch)
	assert.Equal(t, domain.WebhookTopicProductUpdated, got.Topic)
}

func TestFilterByProviderTopicAndClient(t *testing.T) {
	ps := NewWebhookPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := ps.Subscribe(ctx, &WebhookEventFilter{
		Provider: domain.StoreTypeShopify,
		Topics:   []string{domain.WebhookTopicProductDeleted},
		ClientID: "client-1",
	})

	ps.Publish(event(domain.StoreTypeWooCommerce, domain.WebhookTopicProductDeleted, "client-1"))
	ps.Publish(event(domain.StoreTypeShopify, domain.WebhookTopicProductUpdated, "client-1"))
	ps.Publish(event(domain.StoreTypeShopify, domain.WebhookTopicProductDeleted, "client-2"))
	ps.Publish(event(domain.StoreTypeShopify, domain.WebhookTopicProductDeleted, "client-1"))

	got := receive(t, ch)
	assert.Equal(t, "client-1", got.ClientID)
	assert.Equal(t, domain.StoreTypeShopify, got.Provider)

	select {
	case extra := <-ch.Events:
		t.Fatalf("unexpected extra event: %+v", extra)
	default:
	}
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
	ps := NewWebhookPubSub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	ch := ps.Subscribe(ctx, nil)
	cancel()

	select {
	case <-ch.Done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unsubscribe")
	}

	stats := ps.GetStats()
	require.Equal(t, 0, stats["active_subscriptions"])
}
