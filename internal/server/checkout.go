package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/njaeplume/plume/internal/checkout/domain"
)

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req checkoutdomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkoutSvc.CreateSession(c.Request.Context(), checkoutdomain.Caller{
		UserID: principal.UserID,
		Email:  principal.Email,
	}, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
