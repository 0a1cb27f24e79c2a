package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
	httpapi "github.com/Ziel-Global/community-healers-sub001/internal/http"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/config"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/kafka"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/postgres"
	platformredis "github.com/Ziel-Global/community-healers-sub001/internal/platform/redis"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/metrics"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/service"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/store"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit/publisher"
	auditkafka "github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit/store/kafka"
	auditmemory "github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit/store/memory"
	auditpostgres "github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit/store/postgres"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/circuit"
)

// deps holds every long-lived dependency. close releases them in reverse
// order of construction.
type deps struct {
	service *service.Service
	issuer  *exampass.Issuer
	checks  map[string]httpapi.HealthCheck
	closers []func()
}

func (d *deps) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg config.Config, log *slog.Logger) (*deps, error) {
	d := &deps{checks: map[string]httpapi.HealthCheck{}}
	built := false
	defer func() {
		if !built {
			d.close()
		}
	}()

	loc, err := cfg.WaitingRoom.Location()
	if err != nil {
		return nil, err
	}

	sinks := audit.Fanout{}
	var sessions service.SessionStore

	if cfg.Postgres.URL != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		d.onClose(pool.Close)
		d.checks["postgres"] = pool.Ping
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				return nil, err
			}
		}

		db, err := postgres.OpenDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		d.onClose(func() { _ = db.Close() })
		sinks = append(sinks, auditpostgres.New(db))

		if cfg.WaitingRoom.SessionStore == config.StorePostgres {
			sessions = store.NewPostgres(pool)
		}
	} else {
		sinks = append(sinks, auditmemory.NewInMemoryStore())
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		d.onClose(func() { _ = rdb.Close() })
		d.checks["redis"] = rdb.Health
		if cfg.WaitingRoom.SessionStore == config.StoreRedis {
			sessions = store.NewRedis(rdb.Client, store.WithSessionTTL(cfg.WaitingRoom.SessionTTL))
		}
	}

	kc, err := kafka.New(ctx, cfg.Kafka, log)
	if err != nil {
		return nil, err
	}
	if kc != nil {
		d.onClose(kc.Close)
		d.checks["kafka"] = kc.Ping
		breaker := circuit.New("kafka-audit")
		sinks = append(sinks, audit.NewGuarded(auditkafka.New(kc, cfg.Kafka.AuditTopic), breaker, log))
	}

	if sessions == nil {
		if cfg.WaitingRoom.SessionStore != config.StoreMemory {
			return nil, errors.New("session store backend is not configured")
		}
		sessions = store.NewInMemory()
	}

	audits := publisher.NewPublisher(sinks,
		publisher.WithAsyncBuffer(cfg.WaitingRoom.AuditBuffer),
		publisher.WithLogger(log),
	)
	d.onClose(audits.Close)

	key, err := exampass.DeriveSigningKey(cfg.ExamPass.SigningKey)
	if err != nil {
		return nil, err
	}
	d.issuer, err = exampass.NewIssuer(key,
		exampass.WithTTL(cfg.ExamPass.TTL),
		exampass.WithIssuer(cfg.ExamPass.Issuer),
		exampass.WithAudience(cfg.ExamPass.Audience),
	)
	if err != nil {
		return nil, fmt.Errorf("exam pass issuer: %w", err)
	}

	d.service, err = service.New(sessions,
		service.WithLogger(log),
		service.WithAuditPublisher(audits),
		service.WithPassIssuer(d.issuer),
		service.WithMetrics(metrics.New()),
		service.WithLocation(loc),
		service.WithStartHour(cfg.WaitingRoom.StartHour),
		service.WithTickInterval(cfg.WaitingRoom.TickInterval),
		service.WithAutoStartDelay(cfg.WaitingRoom.AutoStartDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("waiting room service: %w", err)
	}
	built = true
	return d, nil
}
