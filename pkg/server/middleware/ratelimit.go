package middleware

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"mercator-hq/toolgate/pkg/dispatch"
	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/enforcement"
	"mercator-hq/toolgate/pkg/telemetry/logging"
	"mercator-hq/toolgate/pkg/telemetry/tracing"
)

// Headers read by DefaultRequestExtractor and written on denial.
const (
	SessionIDHeader    = "X-Session-ID"
	ToolNameHeader     = "X-Tool-Name"
	ToolCategoryHeader = "X-Tool-Category"
	ForwardedForHeader = "X-Forwarded-For"

	DimensionHeader  = "X-RateLimit-Dimension"
	LimitHeader      = "X-RateLimit-Limit"
	RetryAfterHeader = "Retry-After"
)

// RequestExtractor builds the admission request for an HTTP request.
type RequestExtractor func(r *http.Request) (limits.Request, error)

// DefaultRequestExtractor reads the session, tool, and category headers.
// The tool name falls back to the last path segment. The IP address comes
// from the connection's remote address.
func DefaultRequestExtractor(r *http.Request) (limits.Request, error) {
	req := limits.Request{
		SessionID: r.Header.Get(SessionIDHeader),
		ToolName:  r.Header.Get(ToolNameHeader),
		Category:  r.Header.Get(ToolCategoryHeader),
		IPAddress: remoteIP(r.RemoteAddr),
	}
	if req.ToolName == "" {
		path := strings.Trim(r.URL.Path, "/")
		if i := strings.LastIndex(path, "/"); i >= 0 {
			path = path[i+1:]
		}
		req.ToolName = path
	}
	if req.SessionID == "" {
		return req, fmt.Errorf("missing %s header", SessionIDHeader)
	}
	return req, nil
}

// ForwardedForExtractor wraps an extractor and takes the IP address from the
// first X-Forwarded-For entry. Use it only behind a trusted proxy.
func ForwardedForExtractor(next RequestExtractor) RequestExtractor {
	return func(r *http.Request) (limits.Request, error) {
		req, err := next(r)
		if err != nil {
			return req, err
		}
		if fwd := r.Header.Get(ForwardedForHeader); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				req.IPAddress = ip
			}
		}
		return req, nil
	}
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// RateLimitConfig configures RateLimitMiddleware.
type RateLimitConfig struct {
	// Checker admits requests. Required.
	Checker dispatch.Checker

	// Extractor defaults to DefaultRequestExtractor.
	Extractor RequestExtractor

	// Enforcer applies a deny policy. Nil blocks every deny.
	Enforcer *enforcement.Enforcer
}

// RateLimitMiddleware admits every HTTP request through the limiter before
// it reaches next. A denied request gets 429 Too Many Requests with
// Retry-After (whole seconds, rounded up) and X-RateLimit-Dimension set.
// A request the extractor cannot identify gets 400.
//
// Example:
//
//	handler = RateLimitMiddleware(RateLimitConfig{Checker: manager})(toolHandler)
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Extractor == nil {
		cfg.Extractor = DefaultRequestExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			req, err := cfg.Extractor(r)
			if err != nil {
				WriteError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, err.Error())
				return
			}

			decision, err := cfg.Checker.Check(ctx, req)
			if err != nil {
				if errors.Is(err, limits.ErrInvalidRequest) {
					WriteError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, err.Error())
					return
				}
				WriteError(w, http.StatusInternalServerError, ErrorTypeServerError, "admission check failed")
				return
			}

			if !decision.Allowed && cfg.Enforcer != nil {
				result, err := cfg.Enforcer.Enforce(ctx, decision, func() (*limits.Decision, error) {
					return cfg.Checker.Check(ctx, req)
				})
				if err != nil {
					WriteError(w, http.StatusServiceUnavailable, ErrorTypeUnavailable, err.Error())
					return
				}
				if result.Allowed {
					decision = &limits.Decision{Allowed: true, Info: decision.Info}
				} else if result.Decision != nil {
					decision = result.Decision
				}
			}
			tracing.SetDecisionAttributes(tracing.SpanFromContext(ctx), decision)

			if !decision.Allowed {
				writeDenied(w, decision)
				return
			}

			ctx = logging.WithSession(ctx, req.SessionID)
			ctx = logging.WithTool(ctx, req.ToolName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeDenied(w http.ResponseWriter, d *limits.Decision) {
	info := d.Info
	w.Header().Set(DimensionHeader, string(info.DeniedBy))
	if info.Limit != nil {
		w.Header().Set(LimitHeader, strconv.Itoa(info.Limit.Requests))
	}
	if info.RetryAfter > 0 {
		w.Header().Set(RetryAfterHeader, strconv.Itoa(int(math.Ceil(info.RetryAfter.Seconds()))))
	}

	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: ErrorDetail{
		Message:           d.Message,
		Type:              ErrorTypeRateLimitExceeded,
		Dimension:         string(info.DeniedBy),
		RetryAfterSeconds: info.RetryAfter.Seconds(),
	}})
}
