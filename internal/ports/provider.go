package ports

import (
	"context"

	"scenergy-commerce-layer/internal/domain"
)

// Provider is the contract every commerce provider implements. Instances are
// built by the registry; catalog and mutation calls receive the decrypted
// credentials for the store they operate on.
type Provider interface {
	// Type returns the store type tag this provider serves.
	Type() domain.StoreType

	// Authorization flow
	BuildAuthURL(params domain.AuthParams, handshakeID string) (string, error)
	ParseCallback(ctx context.Context, payload []byte, state *domain.AuthHandshakeState) (*domain.ProviderCredentials, error)

	// TestConnection never returns an error; any failure collapses to false.
	TestConnection(ctx context.Context, creds *domain.ProviderCredentials) bool

	// Catalog reads. GetProduct returns (nil, nil) for not-found; all other
	// read failures propagate as errors.
	GetProducts(ctx context.Context, creds *domain.ProviderCredentials, opts domain.ProductListOptions) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, creds *domain.ProviderCredentials, productID string) (*domain.ProviderProduct, error)
	GetCategories(ctx context.Context, creds *domain.ProviderCredentials) ([]domain.ProviderCategory, error)

	// Image mutations
	GetProductImages(ctx context.Context, creds *domain.ProviderCredentials, productID string) ([]domain.ProviderProductImage, error)
	UpdateProductImages(ctx context.Context, creds *domain.ProviderCredentials, productID string, images []domain.ProviderProductImage) error
	UpdateSingleProductImage(ctx context.Context, creds *domain.ProviderCredentials, productID, imageID, imageURL string) error
	DeleteProductImage(ctx context.Context, creds *domain.ProviderCredentials, productID, imageID string) error

	// Webhooks
	RegisterWebhook(ctx context.Context, creds *domain.ProviderCredentials, cfg domain.WebhookConfig) (*domain.WebhookRegistration, error)
	DeleteWebhook(ctx context.Context, creds *domain.ProviderCredentials, webhookID string) error
	VerifyWebhookSignature(body []byte, signature, secret string) bool
	// ParseWebhookPayload normalizes an inbound webhook body. The event topic
	// arrives in a transport header, not the body, so callers thread it
	// through explicitly.
	ParseWebhookPayload(body []byte, topic string) (*domain.WebhookEvent, error)
}

// ProviderRegistry resolves providers by store type. CreateProvider validates
// that the supplied credentials match the declared type before construction.
type ProviderRegistry interface {
	Resolve(storeType domain.StoreType) (Provider, error)
	CreateProvider(storeType domain.StoreType, creds *domain.ProviderCredentials) (Provider, error)
	Types() []domain.StoreType
}
