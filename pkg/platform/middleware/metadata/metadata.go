// Package metadata records who is calling: client IP and a short device
// summary parsed from the User-Agent.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"github.com/Ziel-Global/community-healers-sub001/pkg/requestcontext"
)

const maxDeviceLength = 120

// ClientMetadata stores the client IP and device summary in the request
// context. Apply it early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientIP(r.Context(), ClientIPFromRequest(r))
		if device := DeviceSummary(r.UserAgent()); device != "" {
			ctx = requestcontext.WithDevice(ctx, device)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the originating client IP, preferring
// X-Forwarded-For, then X-Real-IP, then the connection address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// DeviceSummary condenses a User-Agent into "<browser> <version> on <os>",
// with a "(mobile)" or "(bot)" suffix. Empty input yields "".
func DeviceSummary(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()

	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		b.WriteString(" ")
		b.WriteString(version)
	}
	if os := ua.OS(); os != "" {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	switch {
	case ua.Bot():
		b.WriteString(" (bot)")
	case ua.Mobile():
		b.WriteString(" (mobile)")
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		summary = "unknown"
	}
	if len(summary) > maxDeviceLength {
		summary = summary[:maxDeviceLength]
	}
	return summary
}
