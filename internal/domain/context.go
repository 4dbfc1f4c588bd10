package domain

import "context"

type contextKey string

const clientIDKey contextKey = "client_id"

// WithClientID returns a context carrying the calling client's id.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// GetClientIDFromContext extracts the client id, or "" when absent.
func GetClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey).(string); ok {
		return v
	}
	return ""
}

// AuthParams are the caller-supplied inputs to BuildAuthURL.
type AuthParams struct {
	StoreURL    string
	AppName     string
	CallbackURL string
	ReturnURL   string
	Scopes      []string
}
