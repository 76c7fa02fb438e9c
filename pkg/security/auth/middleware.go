package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/toolgate/pkg/server/middleware"
)

// APIKeySource defines where to extract API keys from.
type APIKeySource struct {
	Type   string // header, query
	Name   string // Header name or query param
	Scheme string // "Bearer", etc. (optional)
}

// DefaultSources accepts "Authorization: Bearer <key>" and "X-API-Key".
func DefaultSources() []APIKeySource {
	return []APIKeySource{
		{Type: "header", Name: "Authorization", Scheme: "Bearer"},
		{Type: "header", Name: "X-API-Key"},
	}
}

// APIKeyMiddleware is HTTP middleware for API key authentication.
type APIKeyMiddleware struct {
	store   APIKeyStore
	sources []APIKeySource
	exempt  []string
	logger  *slog.Logger
}

// Option configures an APIKeyMiddleware.
type Option func(*APIKeyMiddleware)

// WithExemptPaths lets requests for the given exact paths through
// unauthenticated. Health probes and metric scrapers usually go here.
func WithExemptPaths(paths ...string) Option {
	return func(m *APIKeyMiddleware) {
		m.exempt = append(m.exempt, paths...)
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *APIKeyMiddleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewAPIKeyMiddleware creates a new API key authentication middleware.
// Nil sources means DefaultSources.
func NewAPIKeyMiddleware(store APIKeyStore, sources []APIKeySource, opts ...Option) *APIKeyMiddleware {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	m := &APIKeyMiddleware{
		store:   store,
		sources: sources,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "auth")
	return m
}

// Handle wraps an HTTP handler with API key authentication.
func (m *APIKeyMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey, err := m.extractAPIKey(r)
		if err != nil {
			m.logger.WarnContext(r.Context(), "missing API key",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			unauthorized(w, "missing API key")
			return
		}

		info, err := m.store.Validate(apiKey)
		if err != nil {
			m.logger.WarnContext(r.Context(), "rejected API key",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			unauthorized(w, err.Error())
			return
		}

		m.logger.DebugContext(r.Context(), "API key authenticated",
			"key_name", info.Name,
			"path", r.URL.Path,
		)

		ctx := context.WithValue(r.Context(), apiKeyContextKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *APIKeyMiddleware) isExempt(path string) bool {
	for _, p := range m.exempt {
		if p == path {
			return true
		}
	}
	return false
}

// extractAPIKey tries each source in order and returns the first key found.
func (m *APIKeyMiddleware) extractAPIKey(r *http.Request) (string, error) {
	for _, source := range m.sources {
		switch source.Type {
		case "header":
			value := r.Header.Get(source.Name)
			if value == "" {
				continue
			}
			if source.Scheme == "" {
				return value, nil
			}
			if key, ok := strings.CutPrefix(value, source.Scheme+" "); ok && key != "" {
				return key, nil
			}
		case "query":
			if value := r.URL.Query().Get(source.Name); value != "" {
				return value, nil
			}
		}
	}
	return "", ErrMissingKey
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="toolgate"`)
	middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrorTypeAuthentication, message)
}

type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const apiKeyContextKey contextKey = "api_key"

// GetAPIKey returns the authenticated key from the request context.
func GetAPIKey(ctx context.Context) (*APIKey, bool) {
	info, ok := ctx.Value(apiKeyContextKey).(*APIKey)
	return info, ok
}
