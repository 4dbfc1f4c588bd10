package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scenergy-commerce-layer/internal/application"
	"scenergy-commerce-layer/internal/application/webhook_handlers"
	"scenergy-commerce-layer/internal/config"
	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/infrastructure/handshake"
	"scenergy-commerce-layer/internal/infrastructure/metrics"
	"scenergy-commerce-layer/internal/infrastructure/providers/shopify"
	"scenergy-commerce-layer/internal/infrastructure/providers/woocommerce"
	"scenergy-commerce-layer/internal/infrastructure/pubsub"
	"scenergy-commerce-layer/internal/infrastructure/registry"
	"scenergy-commerce-layer/internal/infrastructure/repository"
	"scenergy-commerce-layer/internal/infrastructure/vault"
	"scenergy-commerce-layer/internal/ports"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.MongoDatabase)

	// Credential vault
	keyring, err := vault.NewKeyring(cfg.CredentialsKeyID, cfg.CredentialsKey, cfg.CredentialsKeyFallbacks)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize keyring")
	}
	cipher := vault.NewCipher()

	// Repositories
	connRepo := repository.NewMongoConnectionRepository(db)
	if err := connRepo.EnsureIndexes(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("Failed to ensure connection indexes")
	}

	// Handshake store: Redis when configured so any instance can complete a
	// callback, in-memory otherwise.
	var handshakes ports.HandshakeStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		handshakes = handshake.NewRedisStore(redisClient)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis handshake store")
	} else {
		memStore := handshake.NewMemoryStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Sweep()
			}
		}()
		handshakes = memStore
		logger.Info().Msg("Using in-memory handshake store")
	}

	// Providers
	providerRegistry := registry.New()
	providerRegistry.Register(woocommerce.New(cfg.AppName, logger))
	providerRegistry.Register(shopify.New(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, logger))

	// Metrics
	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register metrics")
	}

	// Webhook fan-out and handlers
	webhookPubSub := pubsub.NewWebhookPubSub(logger)
	webhookDispatcher := application.NewWebhookDispatcher(webhookPubSub, logger)
	webhookDispatcher.RegisterHandler(webhook_handlers.NewProductHandler(logger))
	webhookDispatcher.RegisterHandler(webhook_handlers.NewConnectionRevokedHandler(connRepo, logger))

	storeService := application.NewStoreService(
		providerRegistry,
		connRepo,
		cipher,
		keyring,
		handshakes,
		webhookDispatcher,
		m,
		logger,
		application.StoreServiceConfig{
			AppURL:        cfg.AppURL,
			AppName:       cfg.AppName,
			WebhookSecret: cfg.WebhookSecret,
		},
	)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(clientIDMiddleware(logger))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// Authorization flow
	r.Post("/auth/{provider}/init", authInitHandler(storeService, logger))
	r.Post("/auth/woocommerce/callback", wooCallbackHandler(storeService, logger))
	r.Get("/auth/woocommerce/complete", wooCompleteHandler(cfg.FrontendURL, logger))
	r.Get("/auth/shopify/callback", shopifyCallbackHandler(storeService, cfg.FrontendURL, logger))

	// Connection management
	r.Get("/connections", listConnectionsHandler(storeService, logger))
	r.Get("/connections/test", testConnectionHandler(storeService))
	r.Get("/connections/{id}", getConnectionHandler(storeService, logger))
	r.Post("/connections/{id}/disconnect", disconnectHandler(storeService, logger))
	r.Delete("/connections/{id}", deleteConnectionHandler(storeService, logger))

	// Catalog, always against the client's active store
	r.Get("/store/products", listProductsHandler(storeService, logger))
	r.Get("/store/products/{productId}", getProductHandler(storeService, logger))
	r.Get("/store/categories", listCategoriesHandler(storeService, logger))
	r.Get("/store/products/{productId}/images", listImagesHandler(storeService, logger))
	r.Put("/store/products/{productId}/images", updateImagesHandler(storeService, logger))
	r.Put("/store/products/{productId}/images/{imageId}", updateSingleImageHandler(storeService, logger))
	r.Delete("/store/products/{productId}/images/{imageId}", deleteImageHandler(storeService, logger))
	r.Post("/store/webhooks", registerWebhooksHandler(storeService, logger))

	// Inbound webhook deliveries
	r.Post("/webhooks/{provider}/{clientId}", webhookHandler(storeService, logger))

	logger.Info().Str("port", cfg.Port).Msg("Starting API server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

// publicPrefixes lists routes that never require a client id: health and
// docs, plus callbacks and webhooks addressed by the provider, not a client.
var publicPrefixes = []string{
	"/health",
	"/metrics",
	"/swagger",
	"/webhooks/",
	"/auth/woocommerce/callback",
	"/auth/woocommerce/complete",
	"/auth/shopify/callback",
}

// clientIDMiddleware extracts the X-Client-ID header into the request
// context for all non-public routes.
func clientIDMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range publicPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			clientID := r.Header.Get("X-Client-ID")
			if clientID == "" {
				writeError(w, http.StatusUnauthorized, "X-Client-ID header is required")
				return
			}

			ctx := domain.WithClientID(r.Context(), clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authInitHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeType := domain.StoreType(chi.URLParam(r, "provider"))
		clientID := domain.GetClientIDFromContext(r.Context())

		var req application.AuthInitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.InitAuth(r.Context(), clientID, storeType, req)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// wooCallbackHandler receives the store's server-to-server credential POST.
// The handshake id arrives as user_id inside the JSON body.
func wooCallbackHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		defer r.Body.Close()

		var probe struct {
			UserID json.RawMessage `json:"user_id"`
		}
		if err := json.Unmarshal(body, &probe); err != nil || len(probe.UserID) == 0 {
			writeError(w, http.StatusBadRequest, "missing user_id in callback payload")
			return
		}
		handshakeID := strings.Trim(string(probe.UserID), `"`)

		result, err := svc.HandleCallback(r.Context(), domain.StoreTypeWooCommerce, handshakeID, body)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if !result.Success {
			writeJSON(w, http.StatusUnauthorized, result)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// wooCompleteHandler is where the merchant's browser lands after approving
// or rejecting access. It forwards the outcome to the frontend.
func wooCompleteHandler(frontendURL string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		success := r.URL.Query().Get("success")

		status := "success"
		if success == "0" {
			status = "denied"
		}

		redirectURL := fmt.Sprintf("%s?store_auth=%s&provider=woocommerce", frontendURL, status)
		logger.Info().Str("status", status).Msg("WooCommerce authorization completed")
		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

// shopifyCallbackHandler handles the OAuth redirect. The handshake id is the
// OAuth state parameter.
func shopifyCallbackHandler(svc *application.StoreService, frontendURL string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		shop := r.URL.Query().Get("shop")
		state := r.URL.Query().Get("state")

		if code == "" || shop == "" || state == "" {
			writeError(w, http.StatusBadRequest, "missing required parameters")
			return
		}

		payload, _ := json.Marshal(map[string]string{"code": code, "shop": shop})
		result, err := svc.HandleCallback(r.Context(), domain.StoreTypeShopify, state, payload)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		status := "success"
		if !result.Success {
			status = "failed"
		}
		base := frontendURL
		if result.ReturnURL != "" {
			base = result.ReturnURL
		}
		redirectURL := fmt.Sprintf("%s?store_auth=%s&provider=shopify&shop=%s",
			base, status, url.QueryEscape(shop))
		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

func listConnectionsHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		connections, err := svc.ListConnections(r.Context(), clientID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if connections == nil {
			connections = []*domain.StoreConnection{}
		}
		writeJSON(w, http.StatusOK, connections)
	}
}

func getConnectionHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		conn, err := svc.GetConnection(r.Context(), clientID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if conn == nil {
			writeError(w, http.StatusNotFound, "connection not found")
			return
		}
		writeJSON(w, http.StatusOK, conn)
	}
}

func testConnectionHandler(svc *application.StoreService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		ok := svc.TestConnection(r.Context(), clientID)
		writeJSON(w, http.StatusOK, map[string]bool{"connected": ok})
	}
}

func disconnectHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		if err := svc.Disconnect(r.Context(), clientID, chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
	}
}

func deleteConnectionHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		if err := svc.DeleteConnection(r.Context(), clientID, chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listProductsHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())

		opts := domain.ProductListOptions{
			Search: r.URL.Query().Get("search"),
			Status: r.URL.Query().Get("status"),
		}
		opts.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
		opts.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

		page, err := svc.GetProducts(r.Context(), clientID, opts)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func getProductHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		product, err := svc.GetProduct(r.Context(), clientID, chi.URLParam(r, "productId"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if product == nil {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeJSON(w, http.StatusOK, product)
	}
}

func listCategoriesHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		categories, err := svc.GetCategories(r.Context(), clientID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if categories == nil {
			categories = []domain.ProviderCategory{}
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

func listImagesHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		images, err := svc.GetProductImages(r.Context(), clientID, chi.URLParam(r, "productId"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if images == nil {
			images = []domain.ProviderProductImage{}
		}
		writeJSON(w, http.StatusOK, images)
	}
}

func updateImagesHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())

		var req struct {
			Images []domain.ProviderProductImage `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpdateProductImages(r.Context(), clientID, chi.URLParam(r, "productId"), req.Images); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func updateSingleImageHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())

		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}

		err := svc.UpdateSingleProductImage(r.Context(), clientID,
			chi.URLParam(r, "productId"), chi.URLParam(r, "imageId"), req.URL)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func deleteImageHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		err := svc.DeleteProductImage(r.Context(), clientID,
			chi.URLParam(r, "productId"), chi.URLParam(r, "imageId"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func registerWebhooksHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := domain.GetClientIDFromContext(r.Context())
		reg, err := svc.RegisterWebhooks(r.Context(), clientID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, reg)
	}
}

// webhookHandler receives provider deliveries. The signature and topic live
// in provider-specific headers.
func webhookHandler(svc *application.StoreService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeType := domain.StoreType(chi.URLParam(r, "provider"))
		clientID := chi.URLParam(r, "clientId")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		defer r.Body.Close()

		var signature, topic string
		switch storeType {
		case domain.StoreTypeWooCommerce:
			signature = r.Header.Get("X-WC-Webhook-Signature")
			topic = r.Header.Get("X-WC-Webhook-Topic")
		case domain.StoreTypeShopify:
			signature = r.Header.Get("X-Shopify-Hmac-SHA256")
			topic = r.Header.Get("X-Shopify-Topic")
		default:
			writeError(w, http.StatusNotFound, "unknown provider")
			return
		}

		event, err := svc.HandleWebhook(r.Context(), storeType, clientID, body, signature, topic)
		if err != nil {
			if errors.Is(err, domain.ErrProviderNotFound) {
				writeError(w, http.StatusNotFound, "unknown provider")
				return
			}
			logger.Warn().Err(err).
				Str("provider", string(storeType)).
				Str("clientId", clientID).
				Msg("Webhook rejected")
			writeError(w, http.StatusUnauthorized, "webhook rejected")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "received",
			"topic":  event.Topic,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var upstream *domain.UpstreamError

	switch {
	case errors.Is(err, domain.ErrNoStoreConnected):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrHandshakeNotFound):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrCredentialMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upstream):
		logger.Error().Err(err).Msg("Upstream provider error")
		writeError(w, http.StatusBadGateway, "upstream provider error")
	default:
		logger.Error().Err(err).Msg("Internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
