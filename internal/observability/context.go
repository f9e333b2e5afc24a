package observability

import (
	"context"
	"time"

	"github.com/nubianresearch/research-repository-service/internal/domain"
)

// contextKey is the private key type for observability context values.
type contextKey string

const requestContextKey contextKey = "request_context"

// RequestContext carries the per-request data that handlers and
// repositories need for logging and authorization decisions: the
// correlation id, the resolved principal and the request start time.
type RequestContext struct {
	RequestID string
	Principal domain.Principal
	StartedAt time.Time
}

// Elapsed returns the time since the request started.
func (rc RequestContext) Elapsed() time.Duration {
	if rc.StartedAt.IsZero() {
		return 0
	}
	return time.Since(rc.StartedAt)
}

// WithRequestContext attaches a RequestContext to the context.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// RequestContextFrom retrieves the RequestContext from the context.
// A zero-valued RequestContext (anonymous principal) is returned when absent.
func RequestContextFrom(ctx context.Context) RequestContext {
	if v, ok := ctx.Value(requestContextKey).(RequestContext); ok {
		return v
	}
	return RequestContext{Principal: domain.Anonymous()}
}

// PrincipalFrom is a shortcut for RequestContextFrom(ctx).Principal.
func PrincipalFrom(ctx context.Context) domain.Principal {
	return RequestContextFrom(ctx).Principal
}

// RequestIDFrom is a shortcut for RequestContextFrom(ctx).RequestID.
func RequestIDFrom(ctx context.Context) string {
	return RequestContextFrom(ctx).RequestID
}
