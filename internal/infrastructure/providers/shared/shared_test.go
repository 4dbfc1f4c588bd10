package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStoreURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare domain", "store.example.com", "https://store.example.com"},
		{"https kept", "https://store.example.com", "https://store.example.com"},
		{"http upgraded", "http://store.example.com", "https://store.example.com"},
		{"http loopback kept", "http://localhost:8080", "http://localhost:8080"},
		{"http 127 kept", "http://127.0.0.1:3000", "http://127.0.0.1:3000"},
		{"trailing slash stripped", "https://store.example.com/", "https://store.example.com"},
		{"path kept without trailing slash", "https://store.example.com/shop/", "https://store.example.com/shop"},
		{"query dropped", "https://store.example.com?utm=1", "https://store.example.com"},
		{"fragment dropped", "https://store.example.com#top", "https://store.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeStoreURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeStoreURLRejects(t *testing.T) {
	for _, input := range []string{"", "   ", "ftp://store.example.com", "https://"} {
		_, err := NormalizeStoreURL(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestIsLoopbackHost(t *testing.T) {
	assert.True(t, IsLoopbackHost("localhost"))
	assert.True(t, IsLoopbackHost("dev.localhost"))
	assert.True(t, IsLoopbackHost("127.0.0.1"))
	assert.True(t, IsLoopbackHost("::1"))
	assert.False(t, IsLoopbackHost("store.example.com"))
	assert.False(t, IsLoopbackHost("10.0.0.5"))
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"simple markup", "<p>hello <b>world</b></p>", "hello world"},
		{"collapses whitespace", "<p>hello</p>\n\n<p>world</p>", "hello world"},
		{"entities decoded", "fish &amp; chips", "fish & chips"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.input))
		})
	}
}

func TestDownloadImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	body, contentType, err := DownloadImage(context.Background(), nil, server.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), body)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestDownloadImageNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, _, err := DownloadImage(context.Background(), nil, server.URL+"/missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestDownloadImageNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, _, err := DownloadImage(context.Background(), nil, server.URL+"/a.jpg")
	assert.Error(t, err)
}
