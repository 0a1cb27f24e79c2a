package exampass

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
)

var (
	testKey  = []byte("0123456789abcdef0123456789abcdef")
	issuedAt = time.Date(2026, 6, 1, 10, 0, 2, 0, time.UTC)
)

func newGrant() Grant {
	return Grant{
		SessionID:   id.SessionID(uuid.New()),
		CandidateID: id.CandidateID(uuid.New()),
		ExamID:      id.ExamID(uuid.New()),
		Trigger:     countdown.TriggerAuto,
	}
}

func newIssuer(t *testing.T, now time.Time, opts ...Option) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testKey, append([]Option{WithClock(func() time.Time { return now })}, opts...)...)
	require.NoError(t, err)
	return issuer
}

func Test_IssueAndVerify(t *testing.T) {
	grant := newGrant()
	issuer := newIssuer(t, issuedAt)

	pass, err := issuer.Issue(grant)
	require.NoError(t, err)
	require.NotEmpty(t, pass.Token)
	assert.Equal(t, issuedAt.Add(DefaultTTL), pass.ExpiresAt)

	claims, err := issuer.Verify(pass.Token)
	require.NoError(t, err)
	assert.Equal(t, grant.SessionID.String(), claims.SessionID)
	assert.Equal(t, grant.CandidateID.String(), claims.CandidateID)
	assert.Equal(t, grant.ExamID.String(), claims.ExamID)
	assert.Equal(t, "auto", claims.Trigger)
	assert.Equal(t, pass.ID, claims.ID)
}

func Test_VerifyExpired(t *testing.T) {
	pass, err := newIssuer(t, issuedAt, WithTTL(time.Minute)).Issue(newGrant())
	require.NoError(t, err)

	_, err = newIssuer(t, issuedAt.Add(2*time.Minute)).Verify(pass.Token)
	require.ErrorIs(t, err, ErrPassExpired)
}

func Test_VerifyRejectsTampering(t *testing.T) {
	issuer := newIssuer(t, issuedAt)

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not-a-token")
		require.ErrorIs(t, err, ErrPassInvalid)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), WithClock(func() time.Time { return issuedAt }))
		require.NoError(t, err)
		pass, err := other.Issue(newGrant())
		require.NoError(t, err)

		_, err = issuer.Verify(pass.Token)
		require.ErrorIs(t, err, ErrPassInvalid)
	})

	t.Run("other audience", func(t *testing.T) {
		pass, err := newIssuer(t, issuedAt, WithAudience("billing")).Issue(newGrant())
		require.NoError(t, err)

		_, err = issuer.Verify(pass.Token)
		require.ErrorIs(t, err, ErrPassInvalid)
	})

	t.Run("unsigned", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: uuid.NewString()})
		raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Verify(raw)
		require.ErrorIs(t, err, ErrPassInvalid)
	})
}

func Test_NewIssuerValidation(t *testing.T) {
	_, err := NewIssuer([]byte("short"))
	require.Error(t, err)

	_, err = NewIssuer(testKey, WithTTL(0))
	require.Error(t, err)
}

func Test_IssueRequiresIdentifiers(t *testing.T) {
	_, err := newIssuer(t, issuedAt).Issue(Grant{Trigger: countdown.TriggerManual})
	require.Error(t, err)

	grant := newGrant()
	grant.Trigger = "timer"
	_, err = newIssuer(t, issuedAt).Issue(grant)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func Test_DeriveSigningKey(t *testing.T) {
	a, err := DeriveSigningKey("a-reasonably-long-secret")
	require.NoError(t, err)
	b, err := DeriveSigningKey("a-reasonably-long-secret")
	require.NoError(t, err)
	c, err := DeriveSigningKey("another-long-secret-value")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = DeriveSigningKey("short")
	require.Error(t, err)
}
