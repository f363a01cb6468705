package service_test

import (
	"testing"
	"time"

	"github.com/njaeplume/plume/internal/auth/domain"
	"github.com/njaeplume/plume/internal/auth/service"
	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newVerifier(t *testing.T, clk clock.Clock, secret string) domain.Verifier {
	t.Helper()
	v, err := service.New(service.Params{
		Config: config.Config{Auth: config.AuthConfig{JWTSecret: secret}},
		Clock:  clk,
	})
	require.NoError(t, err)
	return v
}

func TestIssueAndVerify(t *testing.T) {
	clk := clock.NewFakeClock(time.Now().UTC())
	v := newVerifier(t, clk, testSecret)

	token, _, err := v.Issue(domain.IssueRequest{UserID: "user_1", Email: "Ada@Example.com", TTL: time.Hour})
	require.NoError(t, err)

	principal, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user_1", principal.UserID)
	require.Equal(t, "ada@example.com", principal.Email)
	require.Equal(t, domain.RoleCustomer, principal.Role)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	clk := clock.NewFakeClock(time.Now().UTC())
	v := newVerifier(t, clk, testSecret)

	token, _, err := v.Issue(domain.IssueRequest{UserID: "user_1", TTL: time.Minute})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = v.Verify(token)
	require.ErrorIs(t, err, domain.ErrTokenExpired)

	other := newVerifier(t, clk, "ffffffffffffffffffffffffffffffff")
	foreign, _, err := other.Issue(domain.IssueRequest{UserID: "user_1", TTL: time.Hour})
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = v.Verify("")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestNewRejectsShortSecret(t *testing.T) {
	_, err := service.New(service.Params{
		Config: config.Config{Auth: config.AuthConfig{JWTSecret: "short"}},
		Clock:  clock.SystemClock{},
	})
	require.ErrorIs(t, err, domain.ErrMisconfigured)
}
