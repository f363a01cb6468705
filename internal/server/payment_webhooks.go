package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

// HandlePaymentWebhook acks only once the event is durably handled. Benign
// outcomes ack with 200 so the provider stops retrying.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(payload) > maxWebhookBody {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, paymentdomain.ErrEventAlreadyProcessed):
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
	case errors.Is(err, paymentdomain.ErrEventIgnored):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		AbortWithError(c, err)
	}
}
