// Package shared holds helpers common to all commerce providers.
package shared

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// NormalizeStoreURL turns raw store input into an absolute HTTPS origin.
// A bare "store.com" becomes "https://store.com"; trailing slashes are
// stripped and query/fragment discarded. HTTP is only preserved for
// local-loopback hosts.
func NormalizeStoreURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("store url is empty")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid store url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid store url %q: missing host", raw)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !IsLoopbackHost(u.Hostname()) {
			u.Scheme = "https"
		}
	default:
		return "", fmt.Errorf("invalid store url %q: unsupported scheme %q", raw, u.Scheme)
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")

	return u.String(), nil
}

// IsLoopbackHost reports whether host resolves trivially to the local machine.
func IsLoopbackHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// StripHTML removes markup from a provider description, keeping the text
// content with collapsed whitespace.
func StripHTML(s string) string {
	if s == "" || !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// DownloadImage fetches an image, failing with a descriptive error on any
// non-success HTTP status. It returns the body and the reported content type.
func DownloadImage(ctx context.Context, client *http.Client, imageURL string) ([]byte, string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("failed to download image %s: unexpected status %d", imageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
