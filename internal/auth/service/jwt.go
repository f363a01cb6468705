package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/njaeplume/plume/internal/auth/domain"
	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	"go.uber.org/fx"
)

const issuer = "plume"

// Claims carried by storefront session tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Params struct {
	fx.In

	Config config.Config
	Clock  clock.Clock
}

type JWTVerifier struct {
	secret []byte
	clock  clock.Clock
	parser *jwt.Parser
}

func New(p Params) (domain.Verifier, error) {
	secret := strings.TrimSpace(p.Config.Auth.JWTSecret)
	if len(secret) < 32 {
		return nil, domain.ErrMisconfigured
	}
	v := &JWTVerifier{secret: []byte(secret), clock: p.Clock}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.Clock.Now),
	)
	return v, nil
}

func (v *JWTVerifier) Verify(token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, domain.ErrInvalidToken
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, domain.ErrTokenExpired
		}
		return domain.Principal{}, domain.ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return domain.Principal{}, domain.ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	return domain.Principal{
		UserID: subject,
		Email:  strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:   strings.TrimSpace(claims.Name),
		Role:   role,
	}, nil
}

func (v *JWTVerifier) Issue(req domain.IssueRequest) (string, time.Time, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", time.Time{}, domain.ErrInvalidToken
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := v.clock.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Email: req.Email,
		Name:  req.Name,
		Role:  req.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   req.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
