// Package shopify implements the provider contract on top of the Shopify
// Admin REST API.
package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/infrastructure/providers/shared"
	"scenergy-commerce-layer/internal/ports"
)

const webhookIDSep = ","

// Topics requested when no explicit scope list is supplied.
var defaultScopes = []string{"read_products", "write_products"}

// Provider implements ports.Provider for Shopify shops. The OAuth
// authorization-code exchange is done with a direct HTTP call because the
// go-shopify helper does not expose redirect_uri; everything after that goes
// through the go-shopify client.
type Provider struct {
	apiKey     string
	apiSecret  string
	app        goshopify.App
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ ports.Provider = (*Provider)(nil)

// New creates a Shopify provider from the app's API key pair.
func New(apiKey, apiSecret string, logger zerolog.Logger) *Provider {
	return &Provider{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		app: goshopify.App{
			ApiKey:    apiKey,
			ApiSecret: apiSecret,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Type returns the Shopify store type tag.
func (p *Provider) Type() domain.StoreType {
	return domain.StoreTypeShopify
}

// NormalizeShopDomain reduces raw shop input to a bare *.myshopify.com host.
// "my-store" becomes "my-store.myshopify.com"; scheme and path are dropped.
func NormalizeShopDomain(raw string) (string, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return "", fmt.Errorf("shop domain is empty")
	}

	if i := strings.Index(raw, "://"); i >= 0 {
		raw = raw[i+3:]
	}
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSuffix(raw, ".")

	if !strings.Contains(raw, ".") {
		raw += ".myshopify.com"
	}
	if !strings.HasSuffix(raw, ".myshopify.com") {
		return "", fmt.Errorf("invalid shop domain %q: expected a myshopify.com host", raw)
	}
	return raw, nil
}

// BuildAuthURL builds the shop's OAuth authorize URL. The handshake id
// travels as the OAuth state parameter.
func (p *Provider) BuildAuthURL(params domain.AuthParams, handshakeID string) (string, error) {
	shop, err := NormalizeShopDomain(params.StoreURL)
	if err != nil {
		return "", err
	}

	scopes := params.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	authURL := fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shop,
		p.apiKey,
		url.QueryEscape(strings.Join(scopes, ",")),
		url.QueryEscape(params.CallbackURL),
		url.QueryEscape(handshakeID),
	)
	return authURL, nil
}

// shopifyCallback is the JSON form of the OAuth redirect query parameters.
type shopifyCallback struct {
	Code string `json:"code"`
	Shop string `json:"shop"`
}

// ParseCallback exchanges the authorization code for an Admin API token.
func (p *Provider) ParseCallback(ctx context.Context, payload []byte, state *domain.AuthHandshakeState) (*domain.ProviderCredentials, error) {
	var cb shopifyCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("invalid shopify callback payload: %w", err)
	}
	if cb.Code == "" || cb.Shop == "" {
		return nil, fmt.Errorf("shopify callback missing code or shop")
	}

	shop, err := NormalizeShopDomain(cb.Shop)
	if err != nil {
		return nil, err
	}

	token, err := p.exchangeToken(ctx, shop, cb.Code)
	if err != nil {
		return nil, err
	}

	return &domain.ProviderCredentials{
		Provider: domain.StoreTypeShopify,
		Shopify: &domain.ShopifyCredentials{
			BaseURL:     "https://" + shop,
			AccessToken: token,
			ShopName:    strings.TrimSuffix(shop, ".myshopify.com"),
		},
	}, nil
}

func (p *Provider) exchangeToken(ctx context.Context, shop, code string) (string, error) {
	values := url.Values{}
	values.Set("client_id", p.apiKey)
	values.Set("client_secret", p.apiSecret)
	values.Set("code", code)

	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", &domain.UpstreamError{
			Provider:  domain.StoreTypeShopify,
			Operation: "exchangeToken",
			Status:    resp.StatusCode,
			Body:      string(body),
		}
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return "", fmt.Errorf("shopify token response missing access_token")
	}
	return tokenResponse.AccessToken, nil
}

func (p *Provider) apiClient(creds *domain.ProviderCredentials) (*goshopify.Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	shop := strings.TrimPrefix(creds.Shopify.BaseURL, "https://")
	client, err := goshopify.NewClient(p.app, shop, creds.Shopify.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create shopify client: %w", err)
	}
	return client, nil
}

// TestConnection collapses every failure to false.
func (p *Provider) TestConnection(ctx context.Context, creds *domain.ProviderCredentials) bool {
	client, err := p.apiClient(creds)
	if err != nil {
		return false
	}
	if _, err := client.Shop.Get(ctx, nil); err != nil {
		p.logger.Debug().Err(err).Msg("Shopify connection test failed")
		return false
	}
	return true
}

type productListOptions struct {
	Page   int    `url:"page,omitempty"`
	Limit  int    `url:"limit,omitempty"`
	Title  string `url:"title,omitempty"`
	Status string `url:"status,omitempty"`
}

// GetProducts lists products. Shopify has no total header, so the page total
// comes from a separate count call.
func (p *Provider) GetProducts(ctx context.Context, creds *domain.ProviderCredentials, opts domain.ProductListOptions) (*domain.ProductPage, error) {
	client, err := p.apiClient(creds)
	if err != nil {
		return nil, err
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 10
	}

	listOpts := productListOptions{
		Page:   page,
		Limit:  perPage,
		Title:  opts.Search,
		Status: opts.Status,
	}

	raw, err := client.Product.List(ctx, listOpts)
	if err != nil {
		return nil, p.wrapErr("getProducts", err)
	}

	total, err := client.Product.Count(ctx, nil)
	if err != nil {
		return nil, p.wrapErr("getProducts", err)
	}

	products := make([]domain.ProviderProduct, 0, len(raw))
	for i := range raw {
		products = append(products, mapProduct(&raw[i]))
	}

	totalPages := (total + perPage - 1) / perPage

	return &domain.ProductPage{
		Products:   products,
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
		PerPage:    perPage,
	}, nil
}

// GetProduct returns (nil, nil) when the shop reports the product missing.
func (p *Provider) GetProduct(ctx context.Context, creds *domain.ProviderCredentials, productID string) (*domain.ProviderProduct, error) {
	client, err := p.apiClient(creds)
	if err != nil {
		return nil, err
	}

	id, err := parseID(productID)
	if err != nil {
		return nil, err
	}

	raw, err := client.Product.Get(ctx, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, p.wrapErr("getProduct", err)
	}

	product := mapProduct(raw)
	return &product, nil
}

// GetCategories maps the shop's custom collections onto normalized
// categories.
func (p *Provider) GetCategories(ctx context.Context, creds *domain.ProviderCredentials) ([]domain.ProviderCategory, error) {
	client, err := p.apiClient(creds)
	if err != nil {
		return nil, err
	}

	collections, err := client.CustomCollection.List(ctx, nil)
	if err != nil {
		return nil, p.wrapErr("getCategories", err)
	}

	categories := make([]domain.ProviderCategory, 0, len(collections))
	for _, c := range collections {
		categories = append(categories, domain.ProviderCategory{
			ID:   strconv.FormatUint(c.Id, 10),
			Name: c.Title,
			Slug: c.Handle,
		})
	}
	return categories, nil
}

// GetProductImages returns the product's current image set.
func (p *Provider) GetProductImages(ctx context.Context, creds *domain.ProviderCredentials, productID string) ([]domain.ProviderProductImage, error) {
	client, err := p.apiClient(creds)
	if err != nil {
		return nil, err
	}

	id, err := parseID(productID)
	if err != nil {
		return nil, err
	}

	raw, err := client.Image.List(ctx, id, nil)
	if err != nil {
		return nil, p.wrapErr("getProductImages", err)
	}

	images := make([]domain.ProviderProductImage, 0, len(raw))
	for _, img := range raw {
		images = append(images, domain.ProviderProductImage{
			ID:       strconv.FormatUint(img.Id, 10),
			URL:      img.Src,
			Position: img.Position,
		})
	}
	return images, nil
}

// UpdateProductImages replaces the product's image set: existing images are
// deleted, then the new set is created in order.
func (p *Provider) UpdateProductImages(ctx context.Context, creds *domain.ProviderCredentials, productID string, images []domain.ProviderProductImage) error {
	client, err := p.apiClient(creds)
	if err != nil {
		return err
	}

	id, err := parseID(productID)
	if err != nil {
		return err
	}

	existing, err := client.Image.List(ctx, id, nil)
	if err != nil {
		return p.wrapErr("updateProductImages", err)
	}
	for _, img := range existing {
		if err := client.Image.Delete(ctx, id, img.Id); err != nil && !isNotFound(err) {
			return p.wrapErr("updateProductImages", err)
		}
	}

	for i, img := range images {
		_, err := client.Image.Create(ctx, id, goshopify.Image{
			Src:      img.URL,
			Position: i + 1,
		})
		if err != nil {
			return p.wrapErr("updateProductImages", err)
		}
	}
	return nil
}

// UpdateSingleProductImage swaps the source of one image in place.
func (p *Provider) UpdateSingleProductImage(ctx context.Context, creds *domain.ProviderCredentials, productID, imageID, imageURL string) error {
	client, err := p.apiClient(creds)
	if err != nil {
		return err
	}

	pid, err := parseID(productID)
	if err != nil {
		return err
	}
	imgID, err := parseID(imageID)
	if err != nil {
		return err
	}

	// Shopify ingests the image by URL on its side; probe the source first so
	// a dead URL fails here with a usable error.
	if _, _, err := shared.DownloadImage(ctx, p.httpClient, imageURL); err != nil {
		return err
	}

	_, err = client.Image.Update(ctx, pid, goshopify.Image{
		Id:  imgID,
		Src: imageURL,
	})
	if err != nil {
		return p.wrapErr("updateSingleProductImage", err)
	}
	return nil
}

// DeleteProductImage removes one image from the product.
func (p *Provider) DeleteProductImage(ctx context.Context, creds *domain.ProviderCredentials, productID, imageID string) error {
	client, err := p.apiClient(creds)
	if err != nil {
		return err
	}

	pid, err := parseID(productID)
	if err != nil {
		return err
	}
	imgID, err := parseID(imageID)
	if err != nil {
		return err
	}

	if err := client.Image.Delete(ctx, pid, imgID); err != nil {
		return p.wrapErr("deleteProductImage", err)
	}
	return nil
}

// shopifyTopic maps a normalized event name to Shopify's webhook topic.
func shopifyTopic(event string) (string, error) {
	switch event {
	case domain.WebhookTopicProductCreated:
		return "products/create", nil
	case domain.WebhookTopicProductUpdated:
		return "products/update", nil
	case domain.WebhookTopicProductDeleted:
		return "products/delete", nil
	case domain.WebhookTopicAppRevoked:
		return "app/uninstalled", nil
	default:
		return "", fmt.Errorf("unsupported webhook event %q", event)
	}
}

func normalizedTopic(shopifyTopic string) string {
	switch shopifyTopic {
	case "products/create":
		return domain.WebhookTopicProductCreated
	case "products/delete":
		return domain.WebhookTopicProductDeleted
	case "app/uninstalled":
		return domain.WebhookTopicAppRevoked
	case "products/update", "":
		return domain.WebhookTopicProductUpdated
	default:
		return shopifyTopic
	}
}

// RegisterWebhook creates one Shopify webhook per requested event. The
// returned id is the underlying ids joined with a comma.
func (p *Provider) RegisterWebhook(ctx context.Context, creds *domain.ProviderCredentials, cfg domain.WebhookConfig) (*domain.WebhookRegistration, error) {
	if len(cfg.Events) == 0 {
		return nil, fmt.Errorf("at least one webhook event is required")
	}

	client, err := p.apiClient(creds)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(cfg.Events))
	for _, event := range cfg.Events {
		topic, err := shopifyTopic(event)
		if err != nil {
			return nil, err
		}

		created, err := client.Webhook.Create(ctx, goshopify.Webhook{
			Topic:   topic,
			Address: cfg.CallbackURL,
			Format:  "json",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register webhook for %s: %w", event, p.wrapErr("registerWebhook", err))
		}
		ids = append(ids, strconv.FormatUint(created.Id, 10))
	}

	return &domain.WebhookRegistration{
		WebhookID: strings.Join(ids, webhookIDSep),
		Events:    cfg.Events,
	}, nil
}

// DeleteWebhook splits a composite id and deletes each registration
// independently. An already-deleted webhook does not abort the batch.
func (p *Provider) DeleteWebhook(ctx context.Context, creds *domain.ProviderCredentials, webhookID string) error {
	client, err := p.apiClient(creds)
	if err != nil {
		return err
	}

	var errs []error
	for _, raw := range strings.Split(webhookID, webhookIDSep) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := parseID(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := client.Webhook.Delete(ctx, id); err != nil {
			if isNotFound(err) {
				p.logger.Debug().Str("webhookId", raw).Msg("Shopify webhook already deleted")
				continue
			}
			p.logger.Warn().Err(err).Str("webhookId", raw).Msg("Failed to delete Shopify webhook")
			errs = append(errs, p.wrapErr("deleteWebhook", err))
		}
	}
	return errors.Join(errs...)
}

// VerifyWebhookSignature checks the X-Shopify-Hmac-SHA256 value:
// base64(HMAC-SHA256(secret, body)).
func (p *Provider) VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhookPayload normalizes an inbound webhook body. topic carries the
// X-Shopify-Topic header value; an empty topic falls back to product.updated.
func (p *Provider) ParseWebhookPayload(body []byte, topic string) (*domain.WebhookEvent, error) {
	normalized := normalizedTopic(topic)

	event := &domain.WebhookEvent{
		Provider:   domain.StoreTypeShopify,
		Topic:      normalized,
		Payload:    body,
		ReceivedAt: time.Now().UTC(),
	}

	if normalized == domain.WebhookTopicAppRevoked {
		var payload struct {
			Domain string `json:"myshopify_domain"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("invalid shopify webhook payload: %w", err)
		}
		if payload.Domain != "" {
			event.StoreURL = "https://" + payload.Domain
		}
		return event, nil
	}

	var payload struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid shopify webhook payload: %w", err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("shopify webhook payload missing product id")
	}
	event.ProductID = strconv.FormatUint(payload.ID, 10)
	return event, nil
}

func mapProduct(raw *goshopify.Product) domain.ProviderProduct {
	images := make([]domain.ProviderProductImage, 0, len(raw.Images))
	for _, img := range raw.Images {
		images = append(images, domain.ProviderProductImage{
			ID:       strconv.FormatUint(img.Id, 10),
			URL:      img.Src,
			Position: img.Position,
		})
	}

	sku := ""
	if len(raw.Variants) > 0 {
		sku = raw.Variants[0].Sku
	}

	return domain.ProviderProduct{
		ID:          strconv.FormatUint(raw.Id, 10),
		Name:        raw.Title,
		Description: shared.StripHTML(raw.BodyHTML),
		SKU:         sku,
		Status:      string(raw.Status),
		Images:      images,
	}
}

func (p *Provider) wrapErr(operation string, err error) error {
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return &domain.UpstreamError{
			Provider:  domain.StoreTypeShopify,
			Operation: operation,
			Status:    respErr.Status,
			Body:      respErr.Error(),
		}
	}
	return fmt.Errorf("shopify %s failed: %w", operation, err)
}

func isNotFound(err error) bool {
	var respErr goshopify.ResponseError
	return errors.As(err, &respErr) && respErr.Status == http.StatusNotFound
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric id %q: %w", raw, err)
	}
	return id, nil
}
