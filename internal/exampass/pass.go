// Package exampass issues and verifies the signed entry pass a candidate
// carries from the waiting room into the exam-taking view.
package exampass

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
)

const (
	DefaultIssuer   = "examroom"
	DefaultAudience = "exam-delivery"
	DefaultTTL      = 4 * time.Hour

	minKeyLength = 32
)

var (
	ErrPassExpired = dErrors.New(dErrors.CodeUnauthorized, "exam pass has expired")
	ErrPassInvalid = dErrors.New(dErrors.CodeUnauthorized, "invalid exam pass")
)

// Claims are the JWT claims of an exam pass.
type Claims struct {
	SessionID   string `json:"session_id"`
	CandidateID string `json:"candidate_id"`
	ExamID      string `json:"exam_id"`
	Trigger     string `json:"trigger"`
	jwt.RegisteredClaims
}

// Grant describes the admission a pass is issued for.
type Grant struct {
	SessionID   id.SessionID
	CandidateID id.CandidateID
	ExamID      id.ExamID
	Trigger     countdown.Trigger
}

// Pass is an issued exam pass.
type Pass struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer signs and verifies HS256 exam passes.
type Issuer struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

type Option func(*Issuer)

func WithIssuer(issuer string) Option {
	return func(i *Issuer) {
		if issuer != "" {
			i.issuer = issuer
		}
	}
}

func WithAudience(audience string) Option {
	return func(i *Issuer) {
		if audience != "" {
			i.audience = audience
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewIssuer(signingKey []byte, opts ...Option) (*Issuer, error) {
	if len(signingKey) < minKeyLength {
		return nil, errors.New("exam pass signing key must be at least 32 bytes")
	}
	i := &Issuer{
		signingKey: signingKey,
		issuer:     DefaultIssuer,
		audience:   DefaultAudience,
		ttl:        DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	if i.ttl <= 0 {
		return nil, errors.New("exam pass ttl must be positive")
	}
	return i, nil
}

// Issue signs a pass for g.
func (i *Issuer) Issue(g Grant) (Pass, error) {
	if g.SessionID.IsNil() || g.CandidateID.IsNil() || g.ExamID.IsNil() {
		return Pass{}, dErrors.New(dErrors.CodeInvariantViolation, "exam pass requires session, candidate and exam")
	}
	if !g.Trigger.Valid() {
		return Pass{}, dErrors.New(dErrors.CodeInvariantViolation, "exam pass requires an auto or manual trigger")
	}
	now := i.now()
	expiresAt := now.Add(i.ttl)
	passID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID:   g.SessionID.String(),
		CandidateID: g.CandidateID.String(),
		ExamID:      g.ExamID.String(),
		Trigger:     string(g.Trigger),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   g.CandidateID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			ID:        passID,
		},
	})
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return Pass{}, err
	}
	return Pass{ID: passID, Token: signed, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}

// Verify checks signature, issuer, audience and expiry.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(i.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrPassExpired
		}
		return nil, ErrPassInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrPassInvalid
	}
	return claims, nil
}
