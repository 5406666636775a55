package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeDispatch        ErrorCode = "DISPATCH_FAILED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, поэтому errors.Is находит
// sentinel-ошибку и после WithCause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause возвращает копию ошибки с причиной.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Cause = err
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// As извлекает AppError из цепочки.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Ошибки выдачи и проверки одноразовых кодов. Тексты входят в HTTP контракт.
var (
	ErrInvalidIdentifier = New(ErrCodeValidation, "Valid email is required")
	ErrMissingOTPFields  = New(ErrCodeValidation, "Email and code are required")
	ErrRateLimited       = New(ErrCodeTooManyRequests, "Too many requests. Please try again later.")
	ErrDispatchFailed    = New(ErrCodeDispatch, "Failed to send OTP")
	ErrOTPNotFound       = New(ErrCodeBadRequest, "OTP not found or expired")
	ErrOTPExpired        = New(ErrCodeBadRequest, "OTP expired")
	ErrOTPMismatch       = New(ErrCodeBadRequest, "Invalid OTP")
	ErrTooManyAttempts   = New(ErrCodeBadRequest, "Too many invalid attempts. Please request a new code.")
	ErrVerifyFailed      = New(ErrCodeInternal, "Failed to verify OTP")
)

// Ошибки анализа вклада.
var (
	ErrPhotosRequired   = New(ErrCodeValidation, "Photos array is required")
	ErrFeedbackRequired = New(ErrCodeValidation, "Feedback text is required")
	ErrEventRequired    = New(ErrCodeValidation, "Event ID and wallet address are required")
	ErrInvalidWallet    = New(ErrCodeValidation, "Invalid wallet address")
	ErrTooManyPhotos    = New(ErrCodeValidation, "Too many photos")
	ErrFeedbackTooLong  = New(ErrCodeValidation, "Feedback text is too long")
	ErrAnalysisFailed   = New(ErrCodeInternal, "Failed to analyze contribution")
)

// Ошибки хранилища и отметок.
var (
	ErrContentNotFound    = New(ErrCodeNotFound, "content not found")
	ErrInvalidContentHash = New(ErrCodeValidation, "invalid content hash")
	ErrUnsupportedContent = New(ErrCodeValidation, "unsupported content type")
	ErrContentTooLarge    = New(ErrCodeValidation, "content exceeds upload limit")
	ErrEmptyContent       = New(ErrCodeValidation, "content is empty")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "verified email token required")
	ErrInvalidSignature   = New(ErrCodeValidation, "signature does not match wallet address")
	ErrEmailMismatch      = New(ErrCodeValidation, "signed email does not match verified email")
	ErrInvalidEventID     = New(ErrCodeValidation, "invalid event id")
	ErrInvalidBody        = New(ErrCodeValidation, "invalid request body")
)
