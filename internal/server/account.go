package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListAccountOrders(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orders, err := s.orderSvc.ListForUser(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (s *Server) RequestDownload(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	itemID, err := snowflake.ParseString(strings.TrimSpace(c.Param("itemId")))
	if err != nil || itemID <= 0 {
		AbortWithError(c, newValidationError("item_id", "invalid_item_id", "invalid item id"))
		return
	}

	resp, err := s.downloadSvc.RequestDownload(c.Request.Context(), itemID, principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
