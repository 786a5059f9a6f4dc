package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/classbook/internal/audit/domain"
	"github.com/smallbiznis/classbook/internal/authorization"
	bookingdomain "github.com/smallbiznis/classbook/internal/booking/domain"
	classdomain "github.com/smallbiznis/classbook/internal/classdef/domain"
	clubdomain "github.com/smallbiznis/classbook/internal/club/domain"
	creditdomain "github.com/smallbiznis/classbook/internal/credit/domain"
	"github.com/smallbiznis/classbook/internal/liveevents"
	notificationdomain "github.com/smallbiznis/classbook/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/classbook/internal/payment/domain"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"github.com/smallbiznis/classbook/pkg/db/pagination"
	"gorm.io/gorm"
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

const (
	errorTypeValidation      = "validation_error"
	errorTypeInvalidRule     = "invalid_rule"
	errorTypeUnauthorized    = "unauthorized"
	errorTypeForbidden       = "forbidden"
	errorTypeNotFound        = "not_found"
	errorTypeConflict        = "conflict"
	errorTypePolicyViolation = "policy_violation"
	errorTypeRateLimited     = "rate_limited"
	errorTypeUpstream        = "upstream_failure"
	errorTypeUnavailable     = "service_unavailable"
	errorTypeInternal        = "internal_error"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

var notFoundErrors = []error{
	ErrNotFound,
	classdomain.ErrNotFound,
	bookingdomain.ErrSessionNotFound,
	bookingdomain.ErrBookingNotFound,
	notificationdomain.ErrNotificationMissing,
	paymentdomain.ErrProviderNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	ErrConflict,
	classdomain.ErrSlugTaken,
	classdomain.ErrAnchorLocked,
	bookingdomain.ErrAlreadyBooked,
	bookingdomain.ErrSeatsAvailable,
	bookingdomain.ErrPaymentMismatch,
	gorm.ErrDuplicatedKey,
}

var invalidRuleErrors = []error{
	recurrence.ErrInvalidRule,
	recurrence.ErrInvalidFrequency,
	recurrence.ErrInvalidInterval,
	recurrence.ErrInvalidTermination,
	recurrence.ErrInvalidUntil,
	recurrence.ErrInvalidCount,
	recurrence.ErrInvalidWeekdays,
	recurrence.ErrInvalidMonthDay,
	recurrence.ErrInvalidOrdinal,
	recurrence.ErrInvalidDaySelector,
	recurrence.ErrAmbiguousMonthlyRule,
	recurrence.ErrMissingMonthlySelector,
	recurrence.ErrInvalidAnchor,
	recurrence.ErrInvalidSessionKey,
}

var policyViolationErrors = []error{
	bookingdomain.ErrSessionStarted,
	bookingdomain.ErrWaitlistDisabled,
	bookingdomain.ErrInPersonPaymentDisabled,
	bookingdomain.ErrPaymentNotRetryable,
	creditdomain.ErrInsufficientCredit,
}

var upstreamFailureErrors = []error{
	paymentdomain.ErrProviderFailure,
}

var validationErrors = []error{
	ErrInvalidRequest,
	classdomain.ErrInvalidID,
	classdomain.ErrInvalidName,
	classdomain.ErrInvalidCapacity,
	classdomain.ErrInvalidAnchorDate,
	classdomain.ErrInvalidStartTime,
	classdomain.ErrInvalidDuration,
	classdomain.ErrInvalidTimezone,
	classdomain.ErrInvalidPrice,
	classdomain.ErrInvalidCurrency,
	bookingdomain.ErrInvalidID,
	bookingdomain.ErrInvalidDate,
	bookingdomain.ErrInvalidWindow,
	bookingdomain.ErrInvalidPaymentMethod,
	bookingdomain.ErrInvalidStatus,
	clubdomain.ErrInvalidGraceValue,
	clubdomain.ErrInvalidGraceUnit,
	clubdomain.ErrInvalidOfferTTL,
	notificationdomain.ErrInvalidID,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	pagination.ErrInvalidPageToken,
	paymentdomain.ErrInvalidSignature,
	paymentdomain.ErrInvalidPayload,
	paymentdomain.ErrInvalidEvent,
	paymentdomain.ErrInvalidAmount,
}

// Missing actor identity surfaces from the services as invalid club/member.
var unauthorizedErrors = []error{
	ErrUnauthorized,
	classdomain.ErrInvalidClub,
	bookingdomain.ErrInvalidClub,
	bookingdomain.ErrInvalidMember,
	clubdomain.ErrInvalidClub,
	creditdomain.ErrInvalidClub,
	creditdomain.ErrInvalidMember,
	notificationdomain.ErrInvalidClub,
	notificationdomain.ErrInvalidMember,
	auditdomain.ErrInvalidClub,
	authorization.ErrInvalidActor,
	authorization.ErrInvalidClub,
}

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
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    errorTypeInternal,
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    errorTypeValidation,
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if matched := isInvalidRuleError(err); matched != nil {
		code := matched.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    errorTypeInvalidRule,
			Message: "invalid recurrence rule",
			Errors: []ValidationError{
				{Field: validationErrorField(code), Code: code, Message: validationErrorMessage(code)},
			},
		}
	}

	if matched := isValidationError(err); matched != nil {
		code := matched.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    errorTypeValidation,
			Message: "validation error",
			Errors: []ValidationError{
				{Field: validationErrorField(code), Code: code, Message: validationErrorMessage(code)},
			},
		}
	}

	if matched := isNotFoundError(err); matched != nil {
		return http.StatusNotFound, errorPayload{Type: errorTypeNotFound, Message: matched.Error()}
	}
	if matched := isConflictError(err); matched != nil {
		return http.StatusConflict, errorPayload{Type: errorTypeConflict, Message: matched.Error()}
	}
	if matched := isPolicyViolationError(err); matched != nil {
		return http.StatusUnprocessableEntity, errorPayload{Type: errorTypePolicyViolation, Message: matched.Error()}
	}
	if matched := isUpstreamFailureError(err); matched != nil {
		return http.StatusBadGateway, errorPayload{Type: errorTypeUpstream, Message: matched.Error()}
	}

	switch {
	case matchAny(err, unauthorizedErrors) != nil:
		return http.StatusUnauthorized, errorPayload{
			Type:    errorTypeUnauthorized,
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    errorTypeForbidden,
			Message: "forbidden",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    errorTypeRateLimited,
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, liveevents.ErrHubUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    errorTypeUnavailable,
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    errorTypeInternal,
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same taxonomy clients see.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Message
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
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

func matchAny(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func isNotFoundError(err error) error {
	return matchAny(err, notFoundErrors)
}

func isConflictError(err error) error {
	return matchAny(err, conflictErrors)
}

func isInvalidRuleError(err error) error {
	return matchAny(err, invalidRuleErrors)
}

func isPolicyViolationError(err error) error {
	return matchAny(err, policyViolationErrors)
}

func isUpstreamFailureError(err error) error {
	return matchAny(err, upstreamFailureErrors)
}

func isValidationError(err error) error {
	return matchAny(err, validationErrors)
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
