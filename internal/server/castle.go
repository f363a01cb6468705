package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
)

func (s *Server) ListCastleOrders(c *gin.Context) {
	var req orderdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCastleOrder(c *gin.Context) {
	resp, err := s.orderSvc.GetByDisplayID(c.Request.Context(), strings.TrimSpace(c.Param("displayId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
