package domain

import (
	"errors"
	"time"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Principal is the authenticated caller resolved from a storefront session token.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

type IssueRequest struct {
	UserID string
	Email  string
	Name   string
	Role   string
	TTL    time.Duration
}

// Verifier turns a session token into a Principal.
type Verifier interface {
	Verify(token string) (Principal, error)
	Issue(req IssueRequest) (string, time.Time, error)
}

var (
	ErrMisconfigured = errors.New("auth_misconfigured")
	ErrInvalidToken  = errors.New("invalid_session")
	ErrTokenExpired  = errors.New("session_expired")
)
