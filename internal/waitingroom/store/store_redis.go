package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/sentinel"
)

var (
	executeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "examroom_session_store_execute_retries_total",
		Help: "Optimistic transaction retries on the Redis session store",
	})
)

const (
	sessionKeyPrefix = "waitingroom:session:"
	openSessionsKey  = "waitingroom:open"

	// DefaultSessionTTL bounds how long an abandoned session lingers.
	DefaultSessionTTL = 7 * 24 * time.Hour

	maxExecuteAttempts = 5
)

// Redis stores each session as a JSON value and tracks open sessions in a set.
// Execute uses WATCH/MULTI so concurrent admissions of one session serialize.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*Redis)

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: DefaultSessionTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

// Create writes the session and its open index entry in one transaction.
func (r *Redis) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKey(session.ID)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if exists > 0 {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			if session.Status.IsOpen() {
				pipe.SAdd(ctx, openSessionsKey, session.ID.String())
			}
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return sentinel.ErrConflict
	default:
		return fmt.Errorf("create session: %w", err)
	}
}

func (r *Redis) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(raw)
}

// Execute retries a lost optimistic transaction a few times before reporting
// sentinel.ErrConflict.
func (r *Redis) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	key := sessionKey(sessionID)
	var result *models.Session

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		session, err := decodeSession(raw)
		if err != nil {
			return err
		}
		if err := validate(session); err != nil {
			return err
		}
		mutate(session)
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			if !session.Status.IsOpen() {
				pipe.SRem(ctx, openSessionsKey, sessionID.String())
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = session
		return nil
	}

	for attempt := 0; attempt < maxExecuteAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			executeRetries.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, sentinel.ErrConflict
}

// ListOpen loads every indexed open session. Index entries whose value expired
// are pruned.
func (r *Redis) ListOpen(ctx context.Context) ([]*models.Session, error) {
	ids, err := r.client.SMembers(ctx, openSessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, sid := range ids {
		keys[i] = sessionKeyPrefix + sid
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load open sessions: %w", err)
	}

	open := make([]*models.Session, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		if session.Status.IsOpen() {
			open = append(open, session)
		}
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, openSessionsKey, stale...).Err()
	}
	sort.Slice(open, func(i, j int) bool { return open[i].OpenedAt.Before(open[j].OpenedAt) })
	return open, nil
}

func decodeSession(raw []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
