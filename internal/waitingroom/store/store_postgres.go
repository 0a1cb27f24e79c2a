package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists sessions in waiting_room_sessions. Execute locks the row
// with SELECT ... FOR UPDATE for the duration of validate and mutate.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO waiting_room_sessions (id, candidate_id, exam_id, status, opened_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, session.ID.String(), session.CandidateID.String(), session.ExamID.String(), string(session.Status), session.OpenedAt, data)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *Postgres) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM waiting_room_sessions WHERE id = $1`, sessionID.String()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return decodeSession(data)
}

func (p *Postgres) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	var result *models.Session
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(ctx, `SELECT data FROM waiting_room_sessions WHERE id = $1 FOR UPDATE`, sessionID.String()).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if err := validate(session); err != nil {
			return err
		}
		mutate(session)
		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE waiting_room_sessions SET status = $2, data = $3 WHERE id = $1`,
			sessionID.String(), string(session.Status), updated); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Postgres) ListOpen(ctx context.Context) ([]*models.Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT data FROM waiting_room_sessions
		WHERE status <> 'closed'
		ORDER BY opened_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	open, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Session, error) {
		var data []byte
		if err := row.Scan(&data); err != nil {
			return nil, err
		}
		return decodeSession(data)
	})
	if err != nil {
		return nil, fmt.Errorf("scan open sessions: %w", err)
	}
	return open, nil
}
