package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Category groups error codes so callers can map them without knowing every code.
type Category string

const (
	CategoryInput         Category = "input"
	CategoryBusinessRule  Category = "business_rule"
	CategoryAuthorization Category = "authorization"
	CategoryNotFound      Category = "not_found"
	CategoryConflict      Category = "conflict"
	CategoryInternal      Category = "internal"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Status   int                    `json:"status"`
	Category Category               `json:"category,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Err      error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so errors.Is works against the predefined values
// even after Clone or WithDetails.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Category: categoryForStatus(status)}
}

// NewRule creates a business-rule violation.
func NewRule(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Category: CategoryBusinessRule}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Category: categoryForStatus(status), Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTooManyRequests    = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Holiday request input errors.
var (
	ErrInvalidDate  = New("INVALID_DATE", http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
	ErrInvalidType  = New("INVALID_TYPE", http.StatusBadRequest, "type must be one of vacation, sick, personal")
	ErrInvalidScope = New("INVALID_SCOPE", http.StatusBadRequest, "scope must be one of own, team, all")
)

// Holiday request business rules.
var (
	ErrInvalidRange           = NewRule("INVALID_RANGE", http.StatusUnprocessableEntity, "start date must be on or before end date")
	ErrPastDate               = NewRule("PAST_DATE", http.StatusUnprocessableEntity, "holiday requests cannot start in the past")
	ErrPastDateEdit           = NewRule("PAST_DATE_EDIT", http.StatusUnprocessableEntity, "an edited holiday request cannot start in the past")
	ErrTooFarInFuture         = NewRule("TOO_FAR_IN_FUTURE", http.StatusUnprocessableEntity, "holiday requests cannot start more than one year ahead")
	ErrZeroDuration           = NewRule("ZERO_DURATION", http.StatusUnprocessableEntity, "the selected range contains no working days")
	ErrDateOverlap            = NewRule("DATE_OVERLAP", http.StatusConflict, "the selected range overlaps an existing holiday request")
	ErrInsufficientAllowance  = NewRule("INSUFFICIENT_ALLOWANCE", http.StatusUnprocessableEntity, "not enough holiday allowance remaining")
	ErrApprovedNotEditable    = NewRule("APPROVED_NOT_EDITABLE", http.StatusUnprocessableEntity, "approved holiday requests cannot be edited")
	ErrNotPending             = NewRule("NOT_PENDING", http.StatusUnprocessableEntity, "only pending holiday requests can be approved or rejected")
	ErrPastDateApproval       = NewRule("PAST_DATE_APPROVAL", http.StatusUnprocessableEntity, "holiday requests that already started cannot be approved")
	ErrMissingRejectionReason = NewRule("MISSING_REJECTION_REASON", http.StatusUnprocessableEntity, "a rejection reason is required")
	ErrInvalidTransition      = NewRule("INVALID_TRANSITION", http.StatusUnprocessableEntity, "the holiday request cannot change to the requested status")
)

// Holiday request authorization errors.
var (
	ErrSelfApproval = New("SELF_APPROVAL", http.StatusForbidden, "admins cannot decide on their own holiday requests")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Details != nil {
		clone.Details = make(map[string]interface{}, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}

// WithDetails returns a copy of err carrying machine-readable details.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if clone.Details == nil {
		clone.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

// IsCategory reports whether err normalises to an *Error of the given category.
func IsCategory(err error, category Category) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Category == category
}

func categoryForStatus(status int) Category {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryAuthorization
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusConflict:
		return CategoryConflict
	case status >= http.StatusInternalServerError:
		return CategoryInternal
	case status >= http.StatusBadRequest:
		return CategoryInput
	default:
		return ""
	}
}
