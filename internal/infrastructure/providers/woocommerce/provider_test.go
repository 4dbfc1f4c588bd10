package woocommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenergy-commerce-layer/internal/domain"
)

func testProvider() *Provider {
	return New("Scenergy Commerce", zerolog.Nop())
}

func testCreds(baseURL string) *domain.ProviderCredentials {
	return &domain.ProviderCredentials{
		Provider: domain.StoreTypeWooCommerce,
		WooCommerce: &domain.WooCommerceCredentials{
			BaseURL:        baseURL,
			ConsumerKey:    "ck_test",
			ConsumerSecret: "cs_test",
		},
	}
}

func TestBuildAuthURL(t *testing.T) {
	p := testProvider()

	authURL, err := p.BuildAuthURL(domain.AuthParams{
		StoreURL:    "store.example.com",
		AppName:     "Scenergy Commerce",
		CallbackURL: "https://api.example.com/auth/woocommerce/callback",
		ReturnURL:   "https://app.example.com/done",
	}, "hs-123")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "store.example.com", u.Host)
	assert.Equal(t, "/wc-auth/v1/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "Scenergy Commerce", q.Get("app_name"))
	assert.Equal(t, "read_write", q.Get("scope"))
	assert.Equal(t, "hs-123", q.Get("user_id"))
	assert.Equal(t, "https://app.example.com/done", q.Get("return_url"))
	assert.Equal(t, "https://api.example.com/auth/woocommerce/callback", q.Get("callback_url"))
}

func TestBuildAuthURLDefaultReturnURL(t *testing.T) {
	p := testProvider()

	authURL, err := p.BuildAuthURL(domain.AuthParams{
		StoreURL:    "store.example.com",
		AppName:     "Scenergy Commerce",
		CallbackURL: "https://api.example.com/auth/woocommerce/callback",
	}, "hs-123")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/auth/woocommerce/complete", u.Query().Get("return_url"))
}

func TestParseCallback(t *testing.T) {
	p := testProvider()
	state := &domain.AuthHandshakeState{
		ID:           "hs-123",
		ProviderType: domain.StoreTypeWooCommerce,
		StoreURL:     "store.example.com",
	}

	payload := []byte(`{
		"key_id": 7,
		"user_id": "hs-123",
		"consumer_key": "ck_live_abc",
		"consumer_secret": "cs_live_def",
		"key_permissions": "read_write"
	}`)

	creds, err := p.ParseCallback(context.Background(), payload, state)
	require.NoError(t, err)
	require.NotNil(t, creds.WooCommerce)
	assert.Equal(t, domain.StoreTypeWooCommerce, creds.Provider)
	assert.Equal(t, "https://store.example.com", creds.WooCommerce.BaseURL)
	assert.Equal(t, "ck_live_abc", creds.WooCommerce.ConsumerKey)
	assert.Equal(t, "cs_live_def", creds.WooCommerce.ConsumerSecret)
	assert.Equal(t, int64(7), creds.WooCommerce.KeyID)
	assert.Equal(t, "hs-123", creds.WooCommerce.UserID)
	assert.Equal(t, "read_write", creds.WooCommerce.Permissions)
}

func TestParseCallbackNumericUserID(t *testing.T) {
	p := testProvider()
	state := &domain.AuthHandshakeState{StoreURL: "store.example.com"}

	payload := []byte(`{"key_id":"9","user_id":42,"consumer_key":"ck","consumer_secret":"cs"}`)
	creds, err := p.ParseCallback(context.Background(), payload, state)
	require.NoError(t, err)
	assert.Equal(t, int64(9), creds.WooCommerce.KeyID)
	assert.Equal(t, "42", creds.WooCommerce.UserID)
}

func TestParseCallbackMissingKeys(t *testing.T) {
	p := testProvider()
	state := &domain.AuthHandshakeState{StoreURL: "store.example.com"}

	_, err := p.ParseCallback(context.Background(), []byte(`{"user_id":"hs"}`), state)
	assert.Error(t, err)
}

func TestGetProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		assert.Equal(t, "ck_test", r.URL.Query().Get("consumer_key"))
		assert.Equal(t, "cs_test", r.URL.Query().Get("consumer_secret"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		assert.Equal(t, "shirt", r.URL.Query().Get("search"))

		w.Header().Set("X-WP-Total", "12")
		w.Header().Set("X-WP-TotalPages", "3")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":          101,
				"name":        "Blue Shirt",
				"sku":         "SHIRT-BLU",
				"description": "<p>A <b>blue</b> shirt</p>",
				"status":      "publish",
				"categories":  []map[string]any{{"id": 3, "name": "Shirts", "slug": "shirts"}},
				"images":      []map[string]any{{"id": 9, "src": "https://cdn.example.com/a.jpg", "alt": "front"}},
			},
		})
	}))
	defer server.Close()

	p := testProvider()
	page, err := p.GetProducts(context.Background(), testCreds(server.URL), domain.ProductListOptions{
		Page: 2, PerPage: 5, Search: "shirt",
	})
	require.NoError(t, err)

	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 5, page.PerPage)
	require.Len(t, page.Products, 1)

	product := page.Products[0]
	assert.Equal(t, "101", product.ID)
	assert.Equal(t, "Blue Shirt", product.Name)
	assert.Equal(t, "A blue shirt", product.Description)
	assert.Equal(t, "SHIRT-BLU", product.SKU)
	require.Len(t, product.Categories, 1)
	assert.Equal(t, "shirts", product.Categories[0].Slug)
	require.Len(t, product.Images, 1)
	assert.Equal(t, "9", product.Images[0].ID)
}

func TestGetProductNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"woocommerce_rest_product_invalid_id"}`))
	}))
	defer server.Close()

	p := testProvider()
	product, err := p.GetProduct(context.Background(), testCreds(server.URL), "999")
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestGetProductUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"internal"}`))
	}))
	defer server.Close()

	p := testProvider()
	_, err := p.GetProduct(context.Background(), testCreds(server.URL), "1")
	require.Error(t, err)

	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.Status)
	assert.Equal(t, domain.StoreTypeWooCommerce, upstream.Provider)
}

func TestUpdateSingleProductImage(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer source.Close()

	var putImages []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"id": 7,
				"images": []map[string]any{
					{"id": 9, "src": "https://cdn.example.com/a.jpg"},
					{"id": 10, "src": "https://cdn.example.com/b.jpg"},
				},
			})
		case http.MethodPut:
			var body struct {
				Images []map[string]any `json:"images"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			putImages = body.Images
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	p := testProvider()
	err := p.UpdateSingleProductImage(context.Background(), testCreds(server.URL), "7", "9", source.URL+"/new.png")
	require.NoError(t, err)

	// The swapped image carries the new source; the other keeps its id.
	require.Len(t, putImages, 2)
	assert.Equal(t, source.URL+"/new.png", putImages[0]["src"])
	assert.Equal(t, float64(10), putImages[1]["id"])
}

func TestUpdateSingleProductImageDeadSource(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer source.Close()

	apiCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalled = true
	}))
	defer server.Close()

	p := testProvider()
	err := p.UpdateSingleProductImage(context.Background(), testCreds(server.URL), "7", "9", source.URL+"/gone.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.False(t, apiCalled)
}

func TestRegisterWebhookPerEvent(t *testing.T) {
	var created []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/wp-json/wc/v3/webhooks", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		created = append(created, body["topic"].(string))
		assert.Equal(t, "https://api.example.com/webhooks/woocommerce/client-1", body["delivery_url"])
		assert.Equal(t, "whsec", body["secret"])
		assert.Equal(t, "active", body["status"])

		json.NewEncoder(w).Encode(map[string]any{"id": 100 + len(created)})
	}))
	defer server.Close()

	p := testProvider()
	reg, err := p.RegisterWebhook(context.Background(), testCreds(server.URL), domain.WebhookConfig{
		CallbackURL: "https://api.example.com/webhooks/woocommerce/client-1",
		Events:      []string{"product.created", "product.updated"},
		Secret:      "whsec",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"product.created", "product.updated"}, created)
	assert.Equal(t, "101,102", reg.WebhookID)
	assert.Equal(t, []string{"product.created", "product.updated"}, reg.Events)
}

func TestDeleteWebhookCompositeTolerates404(t *testing.T) {
	var deleted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "true", r.URL.Query().Get("force"))

		id := r.URL.Path[len("/wp-json/wc/v3/webhooks/"):]
		deleted = append(deleted, id)
		if id == "102" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	p := testProvider()
	err := p.DeleteWebhook(context.Background(), testCreds(server.URL), "101,102,103")
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102", "103"}, deleted)
}

func TestVerifyWebhookSignature(t *testing.T) {
	p := testProvider()
	body := []byte(`{"id":42}`)
	secret := "whsec"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, p.VerifyWebhookSignature(body, signature, secret))
	assert.False(t, p.VerifyWebhookSignature(body, signature, "other"))
	assert.False(t, p.VerifyWebhookSignature([]byte(`{"id":43}`), signature, secret))
	assert.False(t, p.VerifyWebhookSignature(body, "", secret))
	assert.False(t, p.VerifyWebhookSignature(body, signature, ""))
}

func TestParseWebhookPayload(t *testing.T) {
	p := testProvider()

	event, err := p.ParseWebhookPayload([]byte(`{"id":42,"name":"Blue Shirt"}`), "product.created")
	require.NoError(t, err)
	assert.Equal(t, domain.StoreTypeWooCommerce, event.Provider)
	assert.Equal(t, domain.WebhookTopicProductCreated, event.Topic)
	assert.Equal(t, "42", event.ProductID)

	// Missing topic header falls back to product.updated.
	event, err = p.ParseWebhookPayload([]byte(`{"id":7}`), "")
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookTopicProductUpdated, event.Topic)

	_, err = p.ParseWebhookPayload([]byte(`{"name":"no id"}`), "product.updated")
	assert.Error(t, err)

	_, err = p.ParseWebhookPayload([]byte(`not json`), "product.updated")
	assert.Error(t, err)
}

func TestTestConnection(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer ok.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer bad.Close()

	p := testProvider()
	assert.True(t, p.TestConnection(context.Background(), testCreds(ok.URL)))
	assert.False(t, p.TestConnection(context.Background(), testCreds(bad.URL)))
}
