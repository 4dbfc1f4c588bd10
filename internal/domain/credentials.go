package domain

import "fmt"

// StoreType identifies a supported commerce provider.
type StoreType string

const (
	StoreTypeWooCommerce StoreType = "woocommerce"
	StoreTypeShopify     StoreType = "shopify"
)

// WooCommerceCredentials are the REST API keys issued by a WooCommerce store
// at the end of the /wc-auth flow.
type WooCommerceCredentials struct {
	BaseURL        string `json:"base_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	KeyID          int64  `json:"key_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Permissions    string `json:"permissions,omitempty"`
}

// ShopifyCredentials are the Admin API token obtained from the OAuth
// authorization-code exchange.
type ShopifyCredentials struct {
	BaseURL     string `json:"base_url"`
	AccessToken string `json:"access_token"`
	ShopName    string `json:"shop_name"`
}

// ProviderCredentials is a tagged union keyed by provider type. Exactly one
// variant matching Provider must be set.
type ProviderCredentials struct {
	Provider    StoreType               `json:"provider"`
	WooCommerce *WooCommerceCredentials `json:"woocommerce,omitempty"`
	Shopify     *ShopifyCredentials     `json:"shopify,omitempty"`
}

// BaseURL returns the normalized store origin regardless of variant.
func (c *ProviderCredentials) BaseURL() string {
	switch c.Provider {
	case StoreTypeWooCommerce:
		if c.WooCommerce != nil {
			return c.WooCommerce.BaseURL
		}
	case StoreTypeShopify:
		if c.Shopify != nil {
			return c.Shopify.BaseURL
		}
	}
	return ""
}

// Validate checks that the tag matches the populated variant. Mismatched
// credentials are a hard error, never silently coerced.
func (c *ProviderCredentials) Validate() error {
	switch c.Provider {
	case StoreTypeWooCommerce:
		if c.WooCommerce == nil || c.Shopify != nil {
			return fmt.Errorf("%w: expected woocommerce credentials", ErrCredentialMismatch)
		}
		if c.WooCommerce.BaseURL == "" || c.WooCommerce.ConsumerKey == "" || c.WooCommerce.ConsumerSecret == "" {
			return fmt.Errorf("%w: woocommerce credentials missing base_url, consumer_key or consumer_secret", ErrCredentialMismatch)
		}
	case StoreTypeShopify:
		if c.Shopify == nil || c.WooCommerce != nil {
			return fmt.Errorf("%w: expected shopify credentials", ErrCredentialMismatch)
		}
		if c.Shopify.BaseURL == "" || c.Shopify.AccessToken == "" {
			return fmt.Errorf("%w: shopify credentials missing base_url or access_token", ErrCredentialMismatch)
		}
	default:
		return fmt.Errorf("%w: unknown provider type %q", ErrCredentialMismatch, c.Provider)
	}
	return nil
}

// EncryptedCredentials is the at-rest form of a ProviderCredentials payload.
// KeyID names the symmetric key generation that produced the record;
// Fingerprint is a non-secret hash of the plaintext used to detect changes
// without decrypting.
type EncryptedCredentials struct {
	Ciphertext  []byte `json:"ciphertext" bson:"ciphertext"`
	IV          []byte `json:"iv" bson:"iv"`
	AuthTag     []byte `json:"auth_tag" bson:"tag"`
	KeyID       string `json:"key_id" bson:"key_id"`
	Fingerprint string `json:"fingerprint" bson:"fingerprint"`
}
