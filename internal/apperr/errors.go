// Package apperr defines the error taxonomy shared by every pipeline and the
// HTTP status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuth       Kind = "AuthError"
	KindValidation Kind = "ValidationError"
	KindSchema     Kind = "SchemaError"
	KindExternal   Kind = "ExternalServiceError"
	KindRateLimit  Kind = "RateLimitExceeded"
	KindNotFound   Kind = "NotFoundError"
)

const (
	ReasonUnauthorized      = "Unauthorized"
	ReasonTenantNotFound    = "TenantNotFound"
	ReasonInvalidKey        = "InvalidKey"
	ReasonUnknownAction     = "UnknownAction"
	ReasonInvalidPayload    = "InvalidPayload"
	ReasonExtractionFailed  = "ExtractionFailed"
	ReasonScrapeFailed      = "ScrapeFailed"
	ReasonCompletionFailed  = "CompletionFailed"
	ReasonNoCredential      = "NoCredential"
	ReasonAuthRefreshFailed = "AuthRefreshFailed"
	ReasonSendFailed        = "SendFailed"
	ReasonCalendarFailed    = "CalendarFailed"
	ReasonTimeout           = "Timeout"
	ReasonHourlyLimit       = "HourlyLimit"
	ReasonDailyLimit        = "DailyLimit"
)

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error to the HTTP status returned in the error envelope.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindAuth:
		switch e.Reason {
		case ReasonTenantNotFound:
			return http.StatusNotFound
		case ReasonInvalidKey:
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindSchema:
		return http.StatusUnprocessableEntity
	case KindExternal:
		return http.StatusBadGateway
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func Auth(reason, message string) *Error {
	return &Error{Kind: KindAuth, Reason: reason, Message: message}
}

func Validation(reason, message string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: message}
}

func Schema(message string) *Error {
	return &Error{Kind: KindSchema, Message: message}
}

func Schemaf(format string, args ...interface{}) *Error {
	return Schema(fmt.Sprintf(format, args...))
}

func External(reason, message string, err error) *Error {
	return &Error{Kind: KindExternal, Reason: reason, Message: message, Err: err}
}

func RateLimit(reason, message string) *Error {
	return &Error{Kind: KindRateLimit, Reason: reason, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
