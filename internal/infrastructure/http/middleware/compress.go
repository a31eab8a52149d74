package middleware

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5/middleware"
)

// compressibleTypes are the content types worth compressing; images and
// fonts are already compressed.
var compressibleTypes = []string{
	"text/html",
	"text/css",
	"text/plain",
	"text/javascript",
	"application/javascript",
	"application/json",
}

// Compress negotiates brotli, then gzip or deflate, for text responses.
// level applies to every encoder; brotli accepts 0 to 11.
func Compress(level int) func(next http.Handler) http.Handler {
	c := middleware.NewCompressor(level, compressibleTypes...)
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return c.Handler
}
