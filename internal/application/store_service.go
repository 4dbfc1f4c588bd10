// Package application contains the use-case layer tying providers, the
// credential vault and persistence together.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

// HandshakeTTL is how long an auth handshake stays valid between InitAuth
// and the provider's callback.
const HandshakeTTL = 15 * time.Minute

// Webhook events requested for every new connection.
var defaultWebhookEvents = []string{
	domain.WebhookTopicProductCreated,
	domain.WebhookTopicProductUpdated,
	domain.WebhookTopicProductDeleted,
}

// StoreServiceConfig carries the static wiring for a StoreService.
type StoreServiceConfig struct {
	// AppURL is the public base URL callbacks and webhooks are addressed to.
	AppURL string
	// AppName is shown on provider consent screens.
	AppName string
	// WebhookSecret signs WooCommerce webhook deliveries.
	WebhookSecret string
}

// StoreService implements the authorization, catalog and webhook use cases
// over whichever provider a client has connected.
type StoreService struct {
	registry   ports.ProviderRegistry
	repo       ports.ConnectionRepository
	cipher     ports.CredentialCipher
	keys       ports.KeyProvider
	handshakes ports.HandshakeStore
	dispatcher *WebhookDispatcher
	metrics    ports.MetricsRecorder
	logger     zerolog.Logger
	cfg        StoreServiceConfig

	// Decrypted-credential cache keyed by client id, validated against the
	// stored fingerprint so a re-authorization invalidates naturally.
	credMu    sync.RWMutex
	credCache map[string]*cachedCredentials
}

type cachedCredentials struct {
	fingerprint string
	creds       *domain.ProviderCredentials
}

// NewStoreService wires a StoreService.
func NewStoreService(
	registry ports.ProviderRegistry,
	repo ports.ConnectionRepository,
	cipher ports.CredentialCipher,
	keys ports.KeyProvider,
	handshakes ports.HandshakeStore,
	dispatcher *WebhookDispatcher,
	metrics ports.MetricsRecorder,
	logger zerolog.Logger,
	cfg StoreServiceConfig,
) *StoreService {
	return &StoreService{
		registry:   registry,
		repo:       repo,
		cipher:     cipher,
		keys:       keys,
		handshakes: handshakes,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		credCache:  make(map[string]*cachedCredentials),
	}
}

// AuthInitRequest is the client's input to InitAuth.
type AuthInitRequest struct {
	StoreURL  string   `json:"store_url"`
	ReturnURL string   `json:"return_url,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
}

// AuthInitResponse is the result of InitAuth.
type AuthInitResponse struct {
	AuthURL     string    `json:"auth_url"`
	HandshakeID string    `json:"handshake_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// InitAuth starts an authorization handshake and returns the URL the client
// redirects the merchant to.
func (s *StoreService) InitAuth(ctx context.Context, clientID string, storeType domain.StoreType, req AuthInitRequest) (*AuthInitResponse, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if req.StoreURL == "" {
		return nil, fmt.Errorf("store_url is required")
	}

	provider, err := s.registry.Resolve(storeType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	state := &domain.AuthHandshakeState{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		ProviderType: storeType,
		StoreURL:     req.StoreURL,
		ReturnURL:    req.ReturnURL,
		Scopes:       req.Scopes,
		CreatedAt:    now,
		ExpiresAt:    now.Add(HandshakeTTL),
	}

	if err := s.handshakes.Put(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to store handshake: %w", err)
	}

	params := domain.AuthParams{
		StoreURL:    req.StoreURL,
		AppName:     s.cfg.AppName,
		CallbackURL: s.callbackURL(storeType),
		ReturnURL:   req.ReturnURL,
		Scopes:      req.Scopes,
	}

	authURL, err := provider.BuildAuthURL(params, state.ID)
	if err != nil {
		_ = s.handshakes.Delete(ctx, state.ID)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.HandshakeStarted()
	}

	s.logger.Info().
		Str("clientId", clientID).
		Str("provider", string(storeType)).
		Str("handshakeId", state.ID).
		Msg("Auth handshake started")

	return &AuthInitResponse{
		AuthURL:     authURL,
		HandshakeID: state.ID,
		ExpiresAt:   state.ExpiresAt,
	}, nil
}

// CallbackResult reports the outcome of HandleCallback. A missing or expired
// handshake is a normal outcome, not an error. ReturnURL carries the client's
// redirect-back target from the handshake state.
type CallbackResult struct {
	Success    bool                    `json:"success"`
	Error      string                  `json:"error,omitempty"`
	ReturnURL  string                  `json:"return_url,omitempty"`
	Connection *domain.StoreConnection `json:"connection,omitempty"`
}

// HandleCallback completes an authorization handshake: the provider parses
// its callback payload into credentials, which are verified live, encrypted
// and upserted. The handshake is consumed exactly once; an unknown or expired
// id fails closed without touching the provider.
func (s *StoreService) HandleCallback(ctx context.Context, storeType domain.StoreType, handshakeID string, payload []byte) (*CallbackResult, error) {
	state, err := s.handshakes.Get(ctx, handshakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load handshake: %w", err)
	}
	if state == nil || state.ProviderType != storeType {
		s.logger.Warn().
			Str("provider", string(storeType)).
			Str("handshakeId", handshakeID).
			Msg("Callback with unknown or expired handshake")
		return &CallbackResult{Success: false, Error: domain.ErrHandshakeNotFound.Error()}, nil
	}

	returnURL := state.ReturnURL

	provider, err := s.registry.Resolve(storeType)
	if err != nil {
		return nil, err
	}

	creds, parseErr := provider.ParseCallback(ctx, payload, state)

	// The handshake is spent once a callback attempt resolves, success or not.
	if err := s.handshakes.Delete(ctx, handshakeID); err != nil {
		s.logger.Warn().Err(err).Str("handshakeId", handshakeID).Msg("Failed to delete handshake")
	}
	if s.metrics != nil {
		s.metrics.HandshakeFinished()
	}

	if parseErr != nil {
		s.logger.Error().Err(parseErr).
			Str("provider", string(storeType)).
			Str("handshakeId", handshakeID).
			Msg("Callback parsing failed")
		return &CallbackResult{Success: false, Error: "authorization callback rejected", ReturnURL: returnURL}, nil
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	status := domain.ConnectionStatusActive
	if !provider.TestConnection(ctx, creds) {
		s.logger.Warn().
			Str("provider", string(storeType)).
			Str("clientId", state.ClientID).
			Msg("Connection test failed after authorization")
		status = domain.ConnectionStatusError
	}

	enc, err := s.encrypt(creds)
	if err != nil {
		return nil, err
	}

	conn := &domain.StoreConnection{
		ClientID:    state.ClientID,
		StoreType:   storeType,
		StoreURL:    creds.BaseURL(),
		StoreName:   storeName(creds),
		Credentials: *enc,
		Status:      status,
	}

	// Carry the prior registration id so a re-authorization replaces its
	// webhooks instead of accumulating duplicates upstream.
	if prior, err := s.repo.Get(ctx, state.ClientID, storeType, conn.StoreURL); err != nil {
		s.logger.Warn().Err(err).Str("clientId", state.ClientID).Msg("Failed to load prior connection")
	} else if prior != nil {
		conn.WebhookID = prior.WebhookID
	}

	if err := s.repo.Upsert(ctx, conn); err != nil {
		return nil, err
	}
	s.invalidateCache(state.ClientID)

	if status == domain.ConnectionStatusActive {
		if _, err := s.registerWebhooks(ctx, provider, creds, conn); err != nil {
			s.logger.Warn().Err(err).
				Str("provider", string(storeType)).
				Str("clientId", state.ClientID).
				Msg("Webhook registration failed; connection kept")
		}
	}

	s.logger.Info().
		Str("clientId", state.ClientID).
		Str("provider", string(storeType)).
		Str("storeUrl", conn.StoreURL).
		Str("status", string(status)).
		Msg("Store connected")

	return &CallbackResult{Success: true, ReturnURL: returnURL, Connection: conn}, nil
}

// GetProducts lists products from the client's active store.
func (s *StoreService) GetProducts(ctx context.Context, clientID string, opts domain.ProductListOptions) (*domain.ProductPage, error) {
	provider, creds, _, err := s.resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	page, err := provider.GetProducts(ctx, creds, opts)
	s.recordOp(provider, "getProducts", start, err)
	return page, err
}

// GetProduct fetches one product, or (nil, nil) when the store does not have
// it.
func (s *StoreService) GetProduct(ctx context.Context, clientID, productID string) (*domain.ProviderProduct, error) {
	provider, creds, _, err := s.resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	product, err := provider.GetProduct(ctx, creds, productID)
	s.recordOp(provider, "getProduct", start, err)
	return product, err
}

// GetCategories lists the store's categories.
func (s *StoreService) GetCategories(ctx context.Context, clientID string) ([]domain.ProviderCategory, error) {
	provider, creds, _, err := s.resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	categories, err := provider.GetCategories(ctx, creds)
	s.recordOp(provider, "getCategories", start, err)
	return categories, err
}

// GetProductImages lists a product's images.
func (s *StoreService) GetProductImages(ctx context.Context, clientID, productID string) ([]domain.ProviderProductImage, error) {
	provider, creds, _, err := s.resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	images, err := provider.GetProductImages(ctx, creds, productID)
	s.recordOp(provider, "getProductImages", start, err)
	return images, err
}

// UpdateProductImages replaces a product's image set.
func (s *StoreService) UpdateProductImages(ctx context.Context, clientID, productID string, images []domain.ProviderProductImage) error {
	provider, creds, conn, err := s.resolve(ctx, clientID)
	if err != nil {
		return err
	}

	start := time.Now()
	err = provider.UpdateProductImages(ctx, creds, productID, images)
	s.recordOp(provider, "updateProductImages", start, err)
	if err == nil {
		s.touchLastSync(ctx, conn)
	}
	return err
}

// UpdateSingleProductImage swaps one image's source.
func (s *StoreService) UpdateSingleProductImage(ctx context.Context, clientID, productID, imageID, imageURL string) error {
	provider, creds, conn, err := s.resolve(ctx, clientID)
	if err != nil {
		return err
	}

	start := time.Now()
	err = provider.UpdateSingleProductImage(ctx, creds, productID, imageID, imageURL)
	s.recordOp(provider, "updateSingleProductImage", start, err)
	if err == nil {
		s.touchLastSync(ctx, conn)
	}
	return err
}

// DeleteProductImage removes one image from a product.
func (s *StoreService) DeleteProductImage(ctx context.Context, clientID, productID, imageID string) error {
	provider, creds, conn, err := s.resolve(ctx, clientID)
	if err != nil {
		return err
	}

	start := time.Now()
	err = provider.DeleteProductImage(ctx, creds, productID, imageID)
	s.recordOp(provider, "deleteProductImage", start, err)
	if err == nil {
		s.touchLastSync(ctx, conn)
	}
	return err
}

// TestConnection probes the client's active store. A client with no
// connection tests false rather than erroring.
func (s *StoreService) TestConnection(ctx context.Context, clientID string) bool {
	provider, creds, _, err := s.resolve(ctx, clientID)
	if err != nil {
		return false
	}

	start := time.Now()
	ok := provider.TestConnection(ctx, creds)
	if ok {
		s.recordOp(provider, "testConnection", start, nil)
	} else {
		s.recordOp(provider, "testConnection", start, errors.New("unreachable"))
	}
	return ok
}

// ListConnections returns all of the client's connections.
func (s *StoreService) ListConnections(ctx context.Context, clientID string) ([]*domain.StoreConnection, error) {
	return s.repo.ListByClient(ctx, clientID)
}

// GetConnection returns one connection by id, scoped to the client.
func (s *StoreService) GetConnection(ctx context.Context, clientID, connectionID string) (*domain.StoreConnection, error) {
	conn, err := s.repo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn == nil || conn.ClientID != clientID {
		return nil, nil
	}
	return conn, nil
}

// Disconnect marks a connection disconnected and tears down its provider
// webhooks best-effort. Credentials stay stored so a later re-authorization
// reactivates in place.
func (s *StoreService) Disconnect(ctx context.Context, clientID, connectionID string) error {
	conn, err := s.GetConnection(ctx, clientID, connectionID)
	if err != nil {
		return err
	}
	if conn == nil {
		return domain.ErrNoStoreConnected
	}

	s.teardownWebhooks(ctx, conn)

	if err := s.repo.UpdateStatus(ctx, conn.ID, domain.ConnectionStatusDisconnected); err != nil {
		return err
	}
	s.invalidateCache(clientID)

	s.logger.Info().
		Str("clientId", clientID).
		Str("connectionId", conn.ID).
		Str("provider", string(conn.StoreType)).
		Msg("Store disconnected")
	return nil
}

// DeleteConnection removes a connection and its credentials permanently.
func (s *StoreService) DeleteConnection(ctx context.Context, clientID, connectionID string) error {
	conn, err := s.GetConnection(ctx, clientID, connectionID)
	if err != nil {
		return err
	}
	if conn == nil {
		return domain.ErrNoStoreConnected
	}

	s.teardownWebhooks(ctx, conn)

	if err := s.repo.Delete(ctx, conn.ID); err != nil {
		return err
	}
	s.invalidateCache(clientID)

	s.logger.Info().
		Str("clientId", clientID).
		Str("connectionId", conn.ID).
		Msg("Store connection deleted")
	return nil
}

// RegisterWebhooks (re)registers the default product webhooks for the
// client's active store, replacing any prior registration.
func (s *StoreService) RegisterWebhooks(ctx context.Context, clientID string) (*domain.WebhookRegistration, error) {
	provider, creds, conn, err := s.resolve(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.registerWebhooks(ctx, provider, creds, conn)
}

// registerWebhooks deletes the connection's stale registrations, registers the
// default set and persists the new composite id on the connection.
func (s *StoreService) registerWebhooks(ctx context.Context, provider ports.Provider, creds *domain.ProviderCredentials, conn *domain.StoreConnection) (*domain.WebhookRegistration, error) {
	if conn.WebhookID != "" {
		if err := provider.DeleteWebhook(ctx, creds, conn.WebhookID); err != nil {
			s.logger.Warn().Err(err).
				Str("connectionId", conn.ID).
				Str("webhookId", conn.WebhookID).
				Msg("Failed to delete stale webhook registrations")
		}
	}

	events := defaultWebhookEvents
	if provider.Type() == domain.StoreTypeShopify {
		events = append(append([]string{}, events...), domain.WebhookTopicAppRevoked)
	}

	cfg := domain.WebhookConfig{
		CallbackURL: s.webhookURL(provider.Type(), conn.ClientID),
		Events:      events,
		Secret:      s.cfg.WebhookSecret,
	}

	start := time.Now()
	reg, err := provider.RegisterWebhook(ctx, creds, cfg)
	s.recordOp(provider, "registerWebhook", start, err)
	if err != nil {
		return nil, err
	}

	conn.WebhookID = reg.WebhookID
	if err := s.repo.Upsert(ctx, conn); err != nil {
		s.logger.Warn().Err(err).
			Str("connectionId", conn.ID).
			Msg("Failed to persist webhook registration id")
	}
	return reg, nil
}

// teardownWebhooks removes the connection's provider registrations
// best-effort; a failure never blocks the lifecycle change.
func (s *StoreService) teardownWebhooks(ctx context.Context, conn *domain.StoreConnection) {
	if conn.WebhookID == "" {
		return
	}

	creds, err := s.decrypt(ctx, conn)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("connectionId", conn.ID).
			Msg("Failed to decrypt credentials for webhook teardown")
		return
	}
	provider, err := s.registry.CreateProvider(conn.StoreType, creds)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("connectionId", conn.ID).
			Msg("Failed to resolve provider for webhook teardown")
		return
	}

	start := time.Now()
	err = provider.DeleteWebhook(ctx, creds, conn.WebhookID)
	s.recordOp(provider, "deleteWebhook", start, err)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("connectionId", conn.ID).
			Str("webhookId", conn.WebhookID).
			Msg("Failed to delete provider webhooks")
	}
}

// HandleWebhook verifies, normalizes and dispatches one inbound webhook
// delivery. Signature failure rejects the delivery outright.
func (s *StoreService) HandleWebhook(ctx context.Context, storeType domain.StoreType, clientID string, body []byte, signature, topic string) (*domain.WebhookEvent, error) {
	provider, err := s.registry.Resolve(storeType)
	if err != nil {
		return nil, err
	}

	if !provider.VerifyWebhookSignature(body, signature, s.cfg.WebhookSecret) {
		if s.metrics != nil {
			s.metrics.RecordWebhookVerification(string(storeType), "rejected")
		}
		s.logger.Warn().
			Str("provider", string(storeType)).
			Str("clientId", clientID).
			Str("topic", topic).
			Msg("Webhook signature verification failed")
		return nil, fmt.Errorf("webhook signature verification failed")
	}
	if s.metrics != nil {
		s.metrics.RecordWebhookVerification(string(storeType), "verified")
	}

	event, err := provider.ParseWebhookPayload(body, topic)
	if err != nil {
		return nil, err
	}
	event.ClientID = clientID
	event.Verified = true

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, event)
	}
	return event, nil
}

// resolve loads the client's active connection, decrypts its credentials and
// returns the matching provider. Decrypted credentials are cached against the
// stored fingerprint.
func (s *StoreService) resolve(ctx context.Context, clientID string) (ports.Provider, *domain.ProviderCredentials, *domain.StoreConnection, error) {
	conn, err := s.repo.GetActiveByClient(ctx, clientID)
	if err != nil {
		return nil, nil, nil, err
	}
	if conn == nil {
		return nil, nil, nil, domain.ErrNoStoreConnected
	}

	creds, err := s.decrypt(ctx, conn)
	if err != nil {
		return nil, nil, nil, err
	}

	provider, err := s.registry.CreateProvider(conn.StoreType, creds)
	if err != nil {
		return nil, nil, nil, err
	}
	return provider, creds, conn, nil
}

func (s *StoreService) decrypt(ctx context.Context, conn *domain.StoreConnection) (*domain.ProviderCredentials, error) {
	s.credMu.RLock()
	cached, ok := s.credCache[conn.ClientID]
	s.credMu.RUnlock()
	if ok && cached.fingerprint == conn.Credentials.Fingerprint {
		return cached.creds, nil
	}

	key, err := s.keys.Key(conn.Credentials.KeyID)
	if err != nil {
		return nil, err
	}

	creds, err := s.cipher.Decrypt(&conn.Credentials, key)
	if err != nil {
		return nil, err
	}

	// Lazy rotation: records encrypted under a retired key generation are
	// re-encrypted under the primary on first use.
	if conn.Credentials.KeyID != s.keys.PrimaryKeyID() {
		if enc, err := s.encrypt(creds); err == nil {
			conn.Credentials = *enc
			if err := s.repo.Upsert(ctx, conn); err != nil {
				s.logger.Warn().Err(err).
					Str("connectionId", conn.ID).
					Msg("Failed to persist re-encrypted credentials")
			} else {
				s.logger.Info().
					Str("connectionId", conn.ID).
					Str("keyId", s.keys.PrimaryKeyID()).
					Msg("Credentials rotated to primary key")
			}
		}
	}

	s.credMu.Lock()
	s.credCache[conn.ClientID] = &cachedCredentials{
		fingerprint: conn.Credentials.Fingerprint,
		creds:       creds,
	}
	s.credMu.Unlock()

	return creds, nil
}

func (s *StoreService) encrypt(creds *domain.ProviderCredentials) (*domain.EncryptedCredentials, error) {
	keyID := s.keys.PrimaryKeyID()
	key, err := s.keys.Key(keyID)
	if err != nil {
		return nil, err
	}
	return s.cipher.Encrypt(creds, keyID, key)
}

func (s *StoreService) invalidateCache(clientID string) {
	s.credMu.Lock()
	delete(s.credCache, clientID)
	s.credMu.Unlock()
}

func (s *StoreService) touchLastSync(ctx context.Context, conn *domain.StoreConnection) {
	if err := s.repo.UpdateLastSync(ctx, conn.ID, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("connectionId", conn.ID).Msg("Failed to update last sync time")
	}
}

func (s *StoreService) recordOp(provider ports.Provider, operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordProviderOp(string(provider.Type()), operation, status, time.Since(start).Seconds())
}

func (s *StoreService) callbackURL(storeType domain.StoreType) string {
	return strings.TrimRight(s.cfg.AppURL, "/") + "/auth/" + string(storeType) + "/callback"
}

func (s *StoreService) webhookURL(storeType domain.StoreType, clientID string) string {
	return strings.TrimRight(s.cfg.AppURL, "/") + "/webhooks/" + string(storeType) + "/" + clientID
}

func storeName(creds *domain.ProviderCredentials) string {
	if creds.Provider == domain.StoreTypeShopify && creds.Shopify != nil {
		return creds.Shopify.ShopName
	}
	return ""
}
