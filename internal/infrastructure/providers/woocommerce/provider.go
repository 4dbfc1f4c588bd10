// Package woocommerce implements the provider contract against the
// WooCommerce REST API.
package woocommerce

import (
	"bytes"
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

	"github.com/rs/zerolog"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/infrastructure/providers/shared"
	"scenergy-commerce-layer/internal/ports"
)

const (
	apiBasePath       = "/wp-json/wc/v3"
	authPath          = "/wc-auth/v1/authorize"
	webhookIDSep      = ","
	defaultPerPage    = 10
	defaultHTTPExpiry = 30 * time.Second
)

// Provider implements ports.Provider for WooCommerce stores. Credentials are
// consumer key/secret pairs issued by the store's /wc-auth flow.
type Provider struct {
	appName    string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ ports.Provider = (*Provider)(nil)

// New creates a WooCommerce provider.
func New(appName string, logger zerolog.Logger) *Provider {
	return &Provider{
		appName:    appName,
		httpClient: &http.Client{Timeout: defaultHTTPExpiry},
		logger:     logger,
	}
}

// Type returns the WooCommerce store type tag.
func (p *Provider) Type() domain.StoreType {
	return domain.StoreTypeWooCommerce
}

// BuildAuthURL builds the /wc-auth/v1/authorize redirect. The handshake id
// travels as user_id and is echoed back in the store's credential callback.
func (p *Provider) BuildAuthURL(params domain.AuthParams, handshakeID string) (string, error) {
	base, err := shared.NormalizeStoreURL(params.StoreURL)
	if err != nil {
		return "", err
	}

	returnURL := params.ReturnURL
	if returnURL == "" {
		returnURL = strings.Replace(params.CallbackURL, "/callback", "/complete", 1)
	}

	values := url.Values{}
	values.Set("app_name", params.AppName)
	values.Set("scope", "read_write")
	values.Set("user_id", handshakeID)
	values.Set("return_url", returnURL)
	values.Set("callback_url", params.CallbackURL)

	return base + authPath + "?" + values.Encode(), nil
}

// wooCallback is the credential payload the store POSTs to callback_url.
// key_id and user_id arrive as a number or a string depending on the store's
// WordPress version, so both are decoded leniently.
type wooCallback struct {
	KeyID          flexibleInt    `json:"key_id"`
	UserID         flexibleString `json:"user_id"`
	ConsumerKey    string         `json:"consumer_key"`
	ConsumerSecret string         `json:"consumer_secret"`
	KeyPermissions string         `json:"key_permissions"`
}

// ParseCallback turns the store's credential POST into normalized
// credentials. Missing consumer_key/consumer_secret is a hard parse error.
func (p *Provider) ParseCallback(ctx context.Context, payload []byte, state *domain.AuthHandshakeState) (*domain.ProviderCredentials, error) {
	var cb wooCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("invalid woocommerce callback payload: %w", err)
	}

	if cb.ConsumerKey == "" || cb.ConsumerSecret == "" {
		return nil, fmt.Errorf("woocommerce callback missing consumer_key or consumer_secret")
	}

	base, err := shared.NormalizeStoreURL(state.StoreURL)
	if err != nil {
		return nil, err
	}

	return &domain.ProviderCredentials{
		Provider: domain.StoreTypeWooCommerce,
		WooCommerce: &domain.WooCommerceCredentials{
			BaseURL:        base,
			ConsumerKey:    cb.ConsumerKey,
			ConsumerSecret: cb.ConsumerSecret,
			KeyID:          int64(cb.KeyID),
			UserID:         string(cb.UserID),
			Permissions:    cb.KeyPermissions,
		},
	}, nil
}

// TestConnection collapses every failure to false.
func (p *Provider) TestConnection(ctx context.Context, creds *domain.ProviderCredentials) bool {
	q := url.Values{}
	q.Set("per_page", "1")
	_, _, err := p.doRequest(ctx, creds, http.MethodGet, "/products", q, nil, "testConnection")
	if err != nil {
		p.logger.Debug().Err(err).Msg("WooCommerce connection test failed")
		return false
	}
	return true
}

type wooProduct struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	SKU              string `json:"sku"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description"`
	Status           string `json:"status"`
	Categories       []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"categories"`
	Images []wooImage `json:"images"`
}

type wooImage struct {
	ID       int    `json:"id"`
	Src      string `json:"src"`
	Alt      string `json:"alt"`
	Position int    `json:"position,omitempty"`
}

// GetProducts lists products. Pagination totals come from the X-WP-Total and
// X-WP-TotalPages response headers.
func (p *Provider) GetProducts(ctx context.Context, creds *domain.ProviderCredentials, opts domain.ProductListOptions) (*domain.ProductPage, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}

	body, header, err := p.doRequest(ctx, creds, http.MethodGet, "/products", q, nil, "getProducts")
	if err != nil {
		return nil, err
	}

	var raw []wooProduct
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode woocommerce products: %w", err)
	}

	products := make([]domain.ProviderProduct, 0, len(raw))
	for i := range raw {
		products = append(products, mapProduct(&raw[i]))
	}

	total, _ := strconv.Atoi(header.Get("X-WP-Total"))
	totalPages, _ := strconv.Atoi(header.Get("X-WP-TotalPages"))

	return &domain.ProductPage{
		Products:   products,
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
		PerPage:    perPage,
	}, nil
}

// GetProduct returns (nil, nil) when the store reports the product missing.
func (p *Provider) GetProduct(ctx context.Context, creds *domain.ProviderCredentials, productID string) (*domain.ProviderProduct, error) {
	body, _, err := p.doRequest(ctx, creds, http.MethodGet, "/products/"+url.PathEscape(productID), nil, nil, "getProduct")
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) && upstream.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var raw wooProduct
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode woocommerce product: %w", err)
	}

	product := mapProduct(&raw)
	return &product, nil
}

// GetCategories lists product categories.
func (p *Provider) GetCategories(ctx context.Context, creds *domain.ProviderCredentials) ([]domain.ProviderCategory, error) {
	q := url.Values{}
	q.Set("per_page", "100")

	body, _, err := p.doRequest(ctx, creds, http.MethodGet, "/products/categories", q, nil, "getCategories")
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode woocommerce categories: %w", err)
	}

	categories := make([]domain.ProviderCategory, 0, len(raw))
	for _, c := range raw {
		categories = append(categories, domain.ProviderCategory{
			ID:   strconv.Itoa(c.ID),
			Name: c.Name,
			Slug: c.Slug,
		})
	}
	return categories, nil
}

// GetProductImages returns the product's current image set.
func (p *Provider) GetProductImages(ctx context.Context, creds *domain.ProviderCredentials, productID string) ([]domain.ProviderProductImage, error) {
	product, err := p.GetProduct(ctx, creds, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &domain.UpstreamError{
			Provider:  domain.StoreTypeWooCommerce,
			Operation: "getProductImages",
			Status:    http.StatusNotFound,
			Body:      "product not found",
		}
	}
	return product.Images, nil
}

// UpdateProductImages replaces the product's image set.
func (p *Provider) UpdateProductImages(ctx context.Context, creds *domain.ProviderCredentials, productID string, images []domain.ProviderProductImage) error {
	payload := make([]map[string]any, 0, len(images))
	for _, img := range images {
		entry := map[string]any{"src": img.URL}
		if img.Alt != "" {
			entry["alt"] = img.Alt
		}
		payload = append(payload, entry)
	}

	_, _, err := p.doRequest(ctx, creds, http.MethodPut, "/products/"+url.PathEscape(productID), nil,
		map[string]any{"images": payload}, "updateProductImages")
	return err
}

// UpdateSingleProductImage swaps the source of one image, preserving the
// rest of the set. The new source is fetched first: the store downloads it
// server-side and fails opaquely on a dead URL.
func (p *Provider) UpdateSingleProductImage(ctx context.Context, creds *domain.ProviderCredentials, productID, imageID, imageURL string) error {
	if _, _, err := shared.DownloadImage(ctx, p.httpClient, imageURL); err != nil {
		return err
	}

	existing, err := p.GetProductImages(ctx, creds, productID)
	if err != nil {
		return err
	}

	payload := make([]map[string]any, 0, len(existing))
	found := false
	for _, img := range existing {
		if img.ID == imageID {
			payload = append(payload, map[string]any{"src": imageURL})
			found = true
			continue
		}
		id, _ := strconv.Atoi(img.ID)
		payload = append(payload, map[string]any{"id": id})
	}
	if !found {
		return fmt.Errorf("image %s not found on product %s", imageID, productID)
	}

	_, _, err = p.doRequest(ctx, creds, http.MethodPut, "/products/"+url.PathEscape(productID), nil,
		map[string]any{"images": payload}, "updateSingleProductImage")
	return err
}

// DeleteProductImage removes one image from the product's set.
func (p *Provider) DeleteProductImage(ctx context.Context, creds *domain.ProviderCredentials, productID, imageID string) error {
	existing, err := p.GetProductImages(ctx, creds, productID)
	if err != nil {
		return err
	}

	payload := make([]map[string]any, 0, len(existing))
	for _, img := range existing {
		if img.ID == imageID {
			continue
		}
		id, _ := strconv.Atoi(img.ID)
		payload = append(payload, map[string]any{"id": id})
	}
	if len(payload) == len(existing) {
		return fmt.Errorf("image %s not found on product %s", imageID, productID)
	}

	_, _, err = p.doRequest(ctx, creds, http.MethodPut, "/products/"+url.PathEscape(productID), nil,
		map[string]any{"images": payload}, "deleteProductImage")
	return err
}

// RegisterWebhook issues one registration per requested event, because
// WooCommerce supports a single topic per webhook. The returned id is the
// underlying ids joined with a comma.
func (p *Provider) RegisterWebhook(ctx context.Context, creds *domain.ProviderCredentials, cfg domain.WebhookConfig) (*domain.WebhookRegistration, error) {
	if len(cfg.Events) == 0 {
		return nil, fmt.Errorf("at least one webhook event is required")
	}

	ids := make([]string, 0, len(cfg.Events))
	for _, event := range cfg.Events {
		body := map[string]any{
			"name":         p.appName + " " + event,
			"topic":        event,
			"delivery_url": cfg.CallbackURL,
			"secret":       cfg.Secret,
			"status":       "active",
		}

		respBody, _, err := p.doRequest(ctx, creds, http.MethodPost, "/webhooks", nil, body, "registerWebhook")
		if err != nil {
			return nil, fmt.Errorf("failed to register webhook for %s: %w", event, err)
		}

		var created struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(respBody, &created); err != nil {
			return nil, fmt.Errorf("failed to decode webhook response: %w", err)
		}
		ids = append(ids, strconv.Itoa(created.ID))
	}

	return &domain.WebhookRegistration{
		WebhookID: strings.Join(ids, webhookIDSep),
		Events:    cfg.Events,
	}, nil
}

// DeleteWebhook splits a composite id and deletes each registration
// independently. An already-deleted webhook does not abort the batch.
func (p *Provider) DeleteWebhook(ctx context.Context, creds *domain.ProviderCredentials, webhookID string) error {
	var errs []error
	for _, id := range strings.Split(webhookID, webhookIDSep) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		q := url.Values{}
		q.Set("force", "true")
		_, _, err := p.doRequest(ctx, creds, http.MethodDelete, "/webhooks/"+url.PathEscape(id), q, nil, "deleteWebhook")
		if err != nil {
			var upstream *domain.UpstreamError
			if errors.As(err, &upstream) && upstream.Status == http.StatusNotFound {
				p.logger.Debug().Str("webhookId", id).Msg("WooCommerce webhook already deleted")
				continue
			}
			p.logger.Warn().Err(err).Str("webhookId", id).Msg("Failed to delete WooCommerce webhook")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// VerifyWebhookSignature checks the X-WC-Webhook-Signature value:
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

// ParseWebhookPayload normalizes an inbound webhook body. WooCommerce carries
// the topic in the X-WC-Webhook-Topic header, so it is passed in explicitly;
// an empty topic falls back to product.updated.
func (p *Provider) ParseWebhookPayload(body []byte, topic string) (*domain.WebhookEvent, error) {
	var payload struct {
		ID flexibleInt `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid woocommerce webhook payload: %w", err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("woocommerce webhook payload missing product id")
	}

	normalized := normalizeTopic(topic)

	return &domain.WebhookEvent{
		Provider:   domain.StoreTypeWooCommerce,
		Topic:      normalized,
		ProductID:  strconv.FormatInt(int64(payload.ID), 10),
		Payload:    body,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

func normalizeTopic(topic string) string {
	switch topic {
	case "product.created":
		return domain.WebhookTopicProductCreated
	case "product.deleted":
		return domain.WebhookTopicProductDeleted
	case "product.updated", "":
		return domain.WebhookTopicProductUpdated
	default:
		return topic
	}
}

func mapProduct(raw *wooProduct) domain.ProviderProduct {
	images := make([]domain.ProviderProductImage, 0, len(raw.Images))
	for _, img := range raw.Images {
		images = append(images, domain.ProviderProductImage{
			ID:       strconv.Itoa(img.ID),
			URL:      img.Src,
			Alt:      img.Alt,
			Position: img.Position,
		})
	}

	categories := make([]domain.ProviderCategory, 0, len(raw.Categories))
	for _, c := range raw.Categories {
		categories = append(categories, domain.ProviderCategory{
			ID:   strconv.Itoa(c.ID),
			Name: c.Name,
			Slug: c.Slug,
		})
	}

	return domain.ProviderProduct{
		ID:          strconv.Itoa(raw.ID),
		Name:        raw.Name,
		Description: shared.StripHTML(raw.Description),
		SKU:         raw.SKU,
		Status:      raw.Status,
		Images:      images,
		Categories:  categories,
	}
}

// doRequest issues an authenticated REST call. Auth travels as consumer
// key/secret query parameters over HTTPS, matching the WooCommerce docs.
func (p *Provider) doRequest(ctx context.Context, creds *domain.ProviderCredentials, method, path string, query url.Values, body any, operation string) ([]byte, http.Header, error) {
	if err := creds.Validate(); err != nil {
		return nil, nil, err
	}
	wc := creds.WooCommerce

	if query == nil {
		query = url.Values{}
	}
	query.Set("consumer_key", wc.ConsumerKey)
	query.Set("consumer_secret", wc.ConsumerSecret)

	fullURL := wc.BaseURL + apiBasePath + path + "?" + query.Encode()

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("woocommerce request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, nil, &domain.UpstreamError{
			Provider:  domain.StoreTypeWooCommerce,
			Operation: operation,
			Status:    resp.StatusCode,
			Body:      truncate(string(respBody), 256),
		}
	}

	return respBody, resp.Header, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// flexibleInt decodes a JSON number or numeric string.
type flexibleInt int64

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*f = flexibleInt(v)
	return nil
}

// flexibleString decodes a JSON string or number as a string.
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleString(s)
		return nil
	}
	*f = flexibleString(string(data))
	return nil
}
