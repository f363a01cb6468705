package session

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/njaeplume/plume/internal/config"
)

const DefaultCookieName = "__session"

// Manager reads storefront session tokens from the Authorization header or the session cookie.
type Manager struct {
	cookieName string
}

func NewManager(cfg config.Config) *Manager {
	name := strings.TrimSpace(cfg.Auth.CookieName)
	if name == "" {
		name = DefaultCookieName
	}
	return &Manager{cookieName: name}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadToken prefers a bearer token over the cookie.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), true
		}
		return "", false
	}

	token, err := c.Cookie(m.cookieName)
	if err != nil || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}
