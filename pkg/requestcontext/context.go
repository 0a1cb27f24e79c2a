// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	candidateIDKey struct{}
	clientIPKey    struct{}
	deviceKey      struct{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside of a request (timers, workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// CandidateID retrieves the candidate the portal forwarded with the request.
// Returns the zero value when not set.
func CandidateID(ctx context.Context) id.CandidateID {
	if candidateID, ok := ctx.Value(candidateIDKey{}).(id.CandidateID); ok {
		return candidateID
	}
	return id.CandidateID{}
}

// WithCandidateID injects a candidate ID into the context.
func WithCandidateID(ctx context.Context, candidateID id.CandidateID) context.Context {
	return context.WithValue(ctx, candidateIDKey{}, candidateID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the client IP into a context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// Device retrieves the user-agent summary from the context.
func Device(ctx context.Context) string {
	if device, ok := ctx.Value(deviceKey{}).(string); ok {
		return device
	}
	return ""
}

// WithDevice injects a user-agent summary into a context.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey{}, device)
}

// Detach returns a background context that keeps the request ID and client
// metadata but none of the request's deadline or cancellation. Timer callbacks
// outlive the request that mounted them.
func Detach(ctx context.Context) context.Context {
	detached := context.Background()
	if reqID := RequestID(ctx); reqID != "" {
		detached = WithRequestID(detached, reqID)
	}
	if ip := ClientIP(ctx); ip != "" {
		detached = WithClientIP(detached, ip)
	}
	if device := Device(ctx); device != "" {
		detached = WithDevice(detached, device)
	}
	return detached
}
