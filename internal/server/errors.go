package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/njaeplume/plume/internal/auth/domain"
	"github.com/njaeplume/plume/internal/authorization"
	catalogdomain "github.com/njaeplume/plume/internal/catalog/domain"
	checkoutdomain "github.com/njaeplume/plume/internal/checkout/domain"
	downloaddomain "github.com/njaeplume/plume/internal/download/domain"
	notificationdomain "github.com/njaeplume/plume/internal/notification/domain"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	"github.com/njaeplume/plume/pkg/db/pagination"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

// mapError turns domain errors into a status and a payload safe for callers.
// Object paths and provider details never reach the response.
func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, checkoutdomain.ErrEmptyCart):
		return http.StatusBadRequest, errorPayload{Type: "empty_cart", Message: "your cart is empty"}
	case errors.Is(err, checkoutdomain.ErrMetadataTooLarge):
		return http.StatusBadRequest, errorPayload{Type: "metadata_too_large", Message: "too many items for a single checkout"}
	case errors.Is(err, checkoutdomain.ErrInvalidInput):
		return http.StatusBadRequest, errorPayload{Type: "invalid_input", Message: err.Error()}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{Type: "invalid_signature", Message: "invalid signature"}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []ValidationError{{Field: validationErrorField(err), Code: err.Error(), Message: "invalid value"}},
		}
	case isUnauthorized(err):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, downloaddomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, downloaddomain.ErrNotEligible):
		return http.StatusConflict, errorPayload{Type: "not_eligible", Message: "order is not completed"}
	case errors.Is(err, downloaddomain.ErrAlreadyDownloaded):
		return http.StatusConflict, errorPayload{Type: "already_downloaded", Message: "this item was already downloaded"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	case errors.Is(err, downloaddomain.ErrObjectNotFound),
		errors.Is(err, downloaddomain.ErrSigningFailed):
		return http.StatusServiceUnavailable, errorPayload{Type: "download_unavailable", Message: "download is temporarily unavailable, try again later"}
	case errors.Is(err, notificationdomain.ErrNoRecipient),
		errors.Is(err, notificationdomain.ErrDeliveryFailed):
		return http.StatusServiceUnavailable, errorPayload{Type: "message_not_sent", Message: "message could not be sent, try again later"}
	case errors.Is(err, checkoutdomain.ErrUnavailable),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

// classifyErrorForLog feeds the request logger a stable type and code.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		code = vErr.Errors[0].Code
	} else if payload.Type == "validation_error" {
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isUnauthorized(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, checkoutdomain.ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, orderdomain.ErrInvalidStatus),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidCategory),
		errors.Is(err, catalogdomain.ErrInvalidPrice),
		errors.Is(err, catalogdomain.ErrInvalidCurrency),
		errors.Is(err, catalogdomain.ErrInvalidFile),
		errors.Is(err, notificationdomain.ErrInvalidMessage),
		errors.Is(err, paymentdomain.ErrInvalidProvider):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrItemNotFound),
		errors.Is(err, downloaddomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(err error) string {
	switch {
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "page_token"
	case errors.Is(err, orderdomain.ErrInvalidStatus):
		return "status"
	case errors.Is(err, catalogdomain.ErrInvalidName):
		return "name"
	case errors.Is(err, catalogdomain.ErrInvalidCategory):
		return "category"
	case errors.Is(err, catalogdomain.ErrInvalidPrice):
		return "price"
	case errors.Is(err, catalogdomain.ErrInvalidCurrency):
		return "currency"
	case errors.Is(err, catalogdomain.ErrInvalidFile):
		return "zip_file_name"
	case errors.Is(err, paymentdomain.ErrInvalidProvider):
		return "provider"
	case errors.Is(err, notificationdomain.ErrInvalidMessage):
		return "message"
	default:
		return "request"
	}
}
