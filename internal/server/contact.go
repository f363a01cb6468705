package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/njaeplume/plume/internal/notification/domain"
)

func (s *Server) SubmitContact(c *gin.Context) {
	var req notificationdomain.ContactMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("message", "invalid_contact_message", "name, email and a message of at least 10 characters are required"))
		return
	}

	if err := s.notificationSvc.ContactMessage(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}
