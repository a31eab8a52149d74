package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var page = strings.Repeat("<p>Rendang daging sapi, santan, dan rempah.</p>\n", 64)

func pageHandler(contentType string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, page)
	})
}

func TestCompress_PrefersBrotli(t *testing.T) {
	h := Compress(5)(pageHandler("text/html; charset=utf-8"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "br", rec.Header().Get("Content-Encoding"))
	assert.Less(t, rec.Body.Len(), len(page))

	body, err := io.ReadAll(brotli.NewReader(rec.Body))
	require.NoError(t, err)
	assert.Equal(t, page, string(body))
}

func TestCompress_FallsBackToGzip(t *testing.T) {
	h := Compress(5)(pageHandler("application/json"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, page, string(body))
}

func TestCompress_SkipsUnlistedTypesAndPlainClients(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		accept      string
	}{
		{"image", "image/png", "br"},
		{"no accept-encoding", "text/html", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Compress(5)(pageHandler(tt.contentType))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Empty(t, rec.Header().Get("Content-Encoding"))
			assert.Equal(t, page, rec.Body.String())
		})
	}
}
