package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/careercoach/internal/auth"
	"github.com/sakif/careercoach/internal/cache"
)

const pageKeyPrefix = "page:"

// PageCache stores successful GET responses per (path, subject) so repeat
// dashboard loads skip the database. Writers that change what a page shows
// call Invalidate after their transaction commits.
type PageCache struct {
	cache  cache.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewPageCache(c cache.Client, ttl time.Duration, logger *slog.Logger) *PageCache {
	return &PageCache{cache: c, ttl: ttl, logger: logger}
}

type cachedPage struct {
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// captureWriter tees the body into buf while it is written to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.buf.Write(b)
	return cw.ResponseWriter.Write(b)
}

// pageKey ends the path with "|" so Invalidate("/") cannot match "/api".
func pageKey(path, subject string) string {
	return pageKeyPrefix + path + "|" + subject
}

// Middleware must run after auth.OptionalAuth so the subject is known.
// Cache errors are logged and the request falls through to next.
func (p *PageCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		subject, _ := auth.SubjectFromContext(r.Context())
		key := pageKey(r.URL.Path, subject)

		if raw, err := p.cache.Get(r.Context(), key); err == nil {
			var page cachedPage
			if err := json.Unmarshal([]byte(raw), &page); err == nil {
				w.Header().Set("Content-Type", page.ContentType)
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				w.Write(page.Body)
				return
			}
		} else if !errors.Is(err, cache.ErrNotFound) {
			p.logger.Warn("page cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}

		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Cache", "MISS")
		next.ServeHTTP(cw, r)

		if cw.status != http.StatusOK {
			return
		}
		b, err := json.Marshal(cachedPage{ContentType: w.Header().Get("Content-Type"), Body: cw.buf.Bytes()})
		if err != nil {
			return
		}
		if err := p.cache.Set(r.Context(), key, string(b), p.ttl); err != nil {
			p.logger.Warn("page cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	})
}

// Invalidate drops every cached rendering of path, for all subjects.
func (p *PageCache) Invalidate(ctx context.Context, path string) error {
	return p.cache.DeletePrefix(ctx, pageKeyPrefix+path+"|")
}
