package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/careercoach/internal/auth"
	"github.com/sakif/careercoach/internal/cache"
)

func newTestPageCache() *PageCache {
	return NewPageCache(cache.NewMemory(""), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// countingHandler answers with the number of times it has run.
func countingHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte{'0' + byte(n)})
	})
}

func get(h http.Handler, path, subject string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if subject != "" {
		req = req.WithContext(auth.WithSubject(req.Context(), subject))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPageCache_HitAfterMiss(t *testing.T) {
	var calls atomic.Int32
	h := newTestPageCache().Middleware(countingHandler(&calls, http.StatusOK))

	first := get(h, "/", "github|1")
	second := get(h, "/", "github|1")

	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPageCache_PerSubject(t *testing.T) {
	var calls atomic.Int32
	h := newTestPageCache().Middleware(countingHandler(&calls, http.StatusOK))

	a := get(h, "/", "github|1")
	b := get(h, "/", "github|2")

	assert.NotEqual(t, a.Body.String(), b.Body.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestPageCache_ErrorsNotCached(t *testing.T) {
	var calls atomic.Int32
	h := newTestPageCache().Middleware(countingHandler(&calls, http.StatusInternalServerError))

	get(h, "/", "")
	get(h, "/", "")

	assert.Equal(t, int32(2), calls.Load())
}

func TestPageCache_Invalidate(t *testing.T) {
	var calls atomic.Int32
	pc := newTestPageCache()
	h := pc.Middleware(countingHandler(&calls, http.StatusOK))

	get(h, "/", "github|1")
	get(h, "/", "github|2")
	get(h, "/api/insights", "github|1")
	require.Equal(t, int32(3), calls.Load())

	require.NoError(t, pc.Invalidate(context.Background(), "/"))

	assert.Equal(t, "MISS", get(h, "/", "github|1").Header().Get("X-Cache"))
	assert.Equal(t, "MISS", get(h, "/", "github|2").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get(h, "/api/insights", "github|1").Header().Get("X-Cache"), "other paths are kept")
}

func TestPageCache_SkipsNonGET(t *testing.T) {
	var calls atomic.Int32
	h := newTestPageCache().Middleware(countingHandler(&calls, http.StatusOK))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	}
	assert.Equal(t, int32(2), calls.Load())
}
