package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/gunturawaludins/mkbd-new/internal/errors"
)

type apiClientKey struct{}

// APIClient returns the key label set by APIKeyAuth.
func APIClient(ctx context.Context) string {
	client, _ := ctx.Value(apiClientKey{}).(string)
	return client
}

// APIKeyAuth requires an X-API-Key header matching one of keys on
// mutating requests. Reads stay open. An empty key list disables the check.
func APIKeyAuth(keys []string, errors *apierrors.ErrorHandler, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			apiKey := r.Header.Get("X-API-Key")
			idx := matchKey(keys, apiKey)
			if idx < 0 {
				logger.WarnContext(ctx, "rejected API key",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"present", apiKey != "",
				)
				errors.HandleError(w, r, apierrors.ErrUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, apiClientKey{}, keyLabel(idx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func matchKey(keys []string, candidate string) int {
	if candidate == "" {
		return -1
	}
	found := -1
	for i, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(candidate)) == 1 && found < 0 {
			found = i
		}
	}
	return found
}

func keyLabel(idx int) string {
	return "key-" + strconv.Itoa(idx+1)
}

// AuditLog records mutating requests with the calling API client.
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.InfoContext(ctx, "audit",
				"event_type", "api_mutation",
				"client", APIClient(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.Query().Encode(),
				"remote_addr", r.RemoteAddr,
				"status", ww.statusCode,
				"duration", time.Since(start).String(),
			)
		})
	}
}
