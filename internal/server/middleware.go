package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/njaeplume/plume/internal/auth/domain"
	identitydomain "github.com/njaeplume/plume/internal/identity/domain"
	obscontext "github.com/njaeplume/plume/internal/observability/context"
	"github.com/njaeplume/plume/internal/observability/logger"
	"go.uber.org/zap"
)

const contextPrincipalKey = "principal"

const rateLimitReasonUserRate = "user-rate"

// AuthRequired resolves the storefront session and mirrors the profile into
// the identity directory so webhooks can find contact details later.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.verifier.Verify(token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithUserID(c.Request.Context(), principal.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipalKey, principal)

		if principal.Email != "" && s.identitySvc != nil {
			err := s.identitySvc.Sync(ctx, identitydomain.SyncRequest{
				UserID:   principal.UserID,
				Email:    principal.Email,
				FullName: principal.Name,
			})
			if err != nil {
				logger.FromContext(ctx).Warn("identity sync failed", zap.Error(err))
			}
		}
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return authdomain.Principal{}, false
	}
	principal, ok := value.(authdomain.Principal)
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		return authdomain.Principal{}, false
	}
	return principal, true
}

// DownloadRateLimit throttles link issuance per user. A limiter error fails
// closed with 503.
func (s *Server) DownloadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.downloadLimiter.Enabled() {
			c.Next()
			return
		}
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		res, err := s.downloadLimiter.Allow(ctx, principal.UserID)
		if err != nil {
			logger.FromContext(ctx).Warn("download rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			endpoint := c.FullPath()
			logger.FromContext(ctx).Warn("download rate limit exceeded",
				zap.String("reason", rateLimitReasonUserRate),
				zap.String("endpoint", endpoint),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonUserRate)

			retryAfter := int(res.RetryAfter.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonUserRate)
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
