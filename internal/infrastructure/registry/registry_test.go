package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

// stubProvider is the minimal ports.Provider for registry tests.
type stubProvider struct {
	ports.Provider
	storeType domain.StoreType
}

func (s *stubProvider) Type() domain.StoreType { return s.storeType }

func wooCreds() *domain.ProviderCredentials {
	return &domain.ProviderCredentials{
		Provider: domain.StoreTypeWooCommerce,
		WooCommerce: &domain.WooCommerceCredentials{
			BaseURL:        "https://store.example.com",
			ConsumerKey:    "ck",
			ConsumerSecret: "cs",
		},
	}
}

func TestResolve(t *testing.T) {
	r := New()
	woo := &stubProvider{storeType: domain.StoreTypeWooCommerce}
	r.Register(woo)

	p, err := r.Resolve(domain.StoreTypeWooCommerce)
	require.NoError(t, err)
	assert.Same(t, woo, p.(*stubProvider))

	_, err = r.Resolve(domain.StoreTypeShopify)
	assert.True(t, errors.Is(err, domain.ErrProviderNotFound))
}

func TestCreateProviderValidatesCredentials(t *testing.T) {
	r := New()
	r.Register(&stubProvider{storeType: domain.StoreTypeWooCommerce})
	r.Register(&stubProvider{storeType: domain.StoreTypeShopify})

	// Nil credentials are fine pre-authorization.
	_, err := r.CreateProvider(domain.StoreTypeWooCommerce, nil)
	require.NoError(t, err)

	_, err = r.CreateProvider(domain.StoreTypeWooCommerce, wooCreds())
	require.NoError(t, err)

	// Shopify provider with WooCommerce credentials is a hard mismatch.
	_, err = r.CreateProvider(domain.StoreTypeShopify, wooCreds())
	assert.True(t, errors.Is(err, domain.ErrCredentialMismatch))

	// Tag matching but payload incomplete.
	incomplete := &domain.ProviderCredentials{
		Provider:    domain.StoreTypeWooCommerce,
		WooCommerce: &domain.WooCommerceCredentials{BaseURL: "https://x"},
	}
	_, err = r.CreateProvider(domain.StoreTypeWooCommerce, incomplete)
	assert.True(t, errors.Is(err, domain.ErrCredentialMismatch))
}

func TestTypesSorted(t *testing.T) {
	r := New()
	r.Register(&stubProvider{storeType: domain.StoreTypeWooCommerce})
	r.Register(&stubProvider{storeType: domain.StoreTypeShopify})

	assert.Equal(t, []domain.StoreType{domain.StoreTypeShopify, domain.StoreTypeWooCommerce}, r.Types())
}
