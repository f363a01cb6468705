package server

import (
	"github.com/gin-gonic/gin"
	"github.com/njaeplume/plume/internal/authorization"
	"github.com/njaeplume/plume/internal/observability/logger"
	"go.uber.org/zap"
)

// authorizeCastleAction gates castle routes through the casbin policy.
func (s *Server) authorizeCastleAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}

		err := s.authzSvc.Authorize(c.Request.Context(), authorization.Actor{
			UserID: principal.UserID,
			Role:   principal.Role,
		}, object, action)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("castle access denied",
				zap.String("object", object),
				zap.String("action", action),
				zap.Error(err),
			)
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}
