package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/toolgate/pkg/limits"
)

// Span attribute keys. Custom keys use the "toolgate.*" namespace; HTTP keys
// follow OpenTelemetry semantic conventions.
const (
	AttrSessionID = "toolgate.session_id"
	AttrTool      = "toolgate.tool"
	AttrCategory  = "toolgate.category"
	AttrClientIP  = "toolgate.client_ip"
	AttrRequestID = "toolgate.request_id"

	AttrAllowed      = "toolgate.allowed"
	AttrToolRule     = "toolgate.tool_rule"
	AttrDeniedBy     = "toolgate.denied_by"
	AttrRetryAfterMS = "toolgate.retry_after_ms"

	AttrEnforcementAction = "toolgate.enforcement.action"

	AttrHTTPMethod     = "http.request.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.response.status_code"

	AttrErrorMessage = "error.message"
)

// RequestAttributes describes an admission request.
func RequestAttributes(req limits.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrSessionID, req.SessionID),
		attribute.String(AttrTool, req.ToolName),
	}
	if req.Category != "" {
		attrs = append(attrs, attribute.String(AttrCategory, req.Category))
	}
	if req.IPAddress != "" {
		attrs = append(attrs, attribute.String(AttrClientIP, req.IPAddress))
	}
	return attrs
}

// SetDecisionAttributes records the outcome of an admission check on span.
func SetDecisionAttributes(span trace.Span, d *limits.Decision) {
	if d == nil {
		return
	}
	span.SetAttributes(
		attribute.Bool(AttrAllowed, d.Allowed),
		attribute.String(AttrToolRule, d.Info.ToolRule),
	)
	if !d.Allowed {
		span.SetAttributes(
			attribute.String(AttrDeniedBy, string(d.Info.DeniedBy)),
			attribute.Int64(AttrRetryAfterMS, d.Info.RetryAfter.Milliseconds()),
		)
	}
}

// SetEnforcementAttributes records the enforcement action applied to a deny.
func SetEnforcementAttributes(span trace.Span, action string, allowed bool) {
	span.SetAttributes(
		attribute.String(AttrEnforcementAction, action),
		attribute.Bool(AttrAllowed, allowed),
	)
}
