package audit

import (
	"context"
	"log/slog"

	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/circuit"
)

// Guarded wraps a best-effort sink with a circuit breaker. While the breaker
// is open, append failures are counted but not returned, so an unreachable
// sink does not fail every event.
type Guarded struct {
	store   Store
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(store Store, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guarded{store: store, breaker: breaker, logger: logger}
}

func (g *Guarded) Append(ctx context.Context, event Event) error {
	if err := g.store.Append(ctx, event); err != nil {
		useFallback, change := g.breaker.RecordFailure()
		if change.Opened {
			g.logger.WarnContext(ctx, "audit sink circuit opened",
				"sink", g.breaker.Name(),
				"error", err,
			)
		}
		if useFallback {
			return nil
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "audit sink recovered", "sink", g.breaker.Name())
	}
	return nil
}
