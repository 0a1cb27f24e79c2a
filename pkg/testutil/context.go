package testutil

import (
	"context"
	"time"

	"github.com/Ziel-Global/community-healers-sub001/pkg/requestcontext"
)

// RequestContext returns a context carrying the metadata the HTTP middleware
// chain would set, for service tests that bypass it.
func RequestContext(requestID, clientIP, device string, now time.Time) context.Context {
	ctx := context.Background()
	ctx = requestcontext.WithRequestID(ctx, requestID)
	ctx = requestcontext.WithClientIP(ctx, clientIP)
	ctx = requestcontext.WithDevice(ctx, device)
	if !now.IsZero() {
		ctx = requestcontext.WithTime(ctx, now)
	}
	return ctx
}
