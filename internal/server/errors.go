package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	creditnotedomain "github.com/easybilling/easybilling/internal/creditnote/domain"
	customerdomain "github.com/easybilling/easybilling/internal/customer/domain"
	gstdomain "github.com/easybilling/easybilling/internal/gst/domain"
	inventorydomain "github.com/easybilling/easybilling/internal/inventory/domain"
	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
	offerdomain "github.com/easybilling/easybilling/internal/offer/domain"
	productdomain "github.com/easybilling/easybilling/internal/product/domain"
	quotedomain "github.com/easybilling/easybilling/internal/quote/domain"
	recurringdomain "github.com/easybilling/easybilling/internal/recurring/domain"
	securitygroupdomain "github.com/easybilling/easybilling/internal/securitygroup/domain"
	supplierdomain "github.com/easybilling/easybilling/internal/supplier/domain"
	tenantdomain "github.com/easybilling/easybilling/internal/tenant/domain"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
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
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Code: code, Message: "invalid value"},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, securitygroupdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isBusinessError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, tenantdomain.ErrInvalidName),
		errors.Is(err, tenantdomain.ErrInvalidState),
		errors.Is(err, tenantdomain.ErrInvalidKey),
		errors.Is(err, tenantdomain.ErrInvalidID),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, supplierdomain.ErrInvalidName),
		errors.Is(err, supplierdomain.ErrInvalidID),
		errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidSKU),
		errors.Is(err, productdomain.ErrInvalidPrice),
		errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, gstdomain.ErrInvalidCode),
		errors.Is(err, gstdomain.ErrInvalidRate),
		errors.Is(err, gstdomain.ErrInvalidID),
		errors.Is(err, offerdomain.ErrInvalidName),
		errors.Is(err, offerdomain.ErrInvalidType),
		errors.Is(err, offerdomain.ErrInvalidValue),
		errors.Is(err, offerdomain.ErrInvalidID),
		errors.Is(err, inventorydomain.ErrInvalidQuantity),
		errors.Is(err, invoicedomain.ErrEmptyItems),
		errors.Is(err, invoicedomain.ErrInvalidQuantity),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, quotedomain.ErrEmptyItems),
		errors.Is(err, quotedomain.ErrInvalidID),
		errors.Is(err, recurringdomain.ErrInvalidAmount),
		errors.Is(err, recurringdomain.ErrInvalidSchedule),
		errors.Is(err, recurringdomain.ErrInvalidID),
		errors.Is(err, creditnotedomain.ErrEmptyItems),
		errors.Is(err, creditnotedomain.ErrInvalidMethod),
		errors.Is(err, creditnotedomain.ErrInvalidID),
		errors.Is(err, securitygroupdomain.ErrInvalidName),
		errors.Is(err, securitygroupdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, tenantdomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, supplierdomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, gstdomain.ErrNotFound),
		errors.Is(err, offerdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrHoldNotFound),
		errors.Is(err, quotedomain.ErrNotFound),
		errors.Is(err, recurringdomain.ErrNotFound),
		errors.Is(err, creditnotedomain.ErrNotFound),
		errors.Is(err, securitygroupdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrIllegalState),
		errors.Is(err, quotedomain.ErrIllegalState),
		errors.Is(err, quotedomain.ErrExpired),
		errors.Is(err, creditnotedomain.ErrIllegalState),
		errors.Is(err, tenantdomain.ErrDuplicateCode),
		errors.Is(err, tenantdomain.ErrDuplicateKey),
		errors.Is(err, productdomain.ErrDuplicateSKU),
		errors.Is(err, securitygroupdomain.ErrDuplicateGroup):
		return true
	default:
		return false
	}
}

func isBusinessError(err error) bool {
	switch {
	case errors.Is(err, inventorydomain.ErrInsufficientStock),
		errors.Is(err, offerdomain.ErrUsageLimitExceeded):
		return true
	default:
		return false
	}
}
