// Package kafka builds the franz-go client used by the audit sink.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Ziel-Global/community-healers-sub001/internal/platform/config"
)

// New returns a producer client for cfg. It returns nil when no brokers are
// configured.
func New(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (*kgo.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.AuditTopic == "" {
		return nil, errors.New("kafka audit topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.WithLogger(kgo.BasicLogger(slogWriter{logger}, kgo.LogLevelWarn, nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return client, nil
}

// slogWriter forwards franz-go's line logger into slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Warn("kafka client", "message", string(p))
	return len(p), nil
}
