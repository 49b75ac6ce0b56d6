// Package businessflow contains the core business logic for click registration and chat correlation
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Input errors
	ErrValidation     = errors.New("validation failed")
	ErrRequestNil     = errors.New("request is nil")
	ErrFieldTooLong   = errors.New("field exceeds maximum length")
	ErrInvalidIP      = errors.New("ip is not a valid address")
	ErrUpdateNil      = errors.New("update is nil")
	ErrMissingChatID  = errors.New("message has no chat id")
	ErrTokenMalformed = errors.New("token is not a correlation token")

	// Storage errors
	ErrStorage              = errors.New("storage failure")
	ErrTokenSpaceExhausted  = errors.New("could not allocate a unique token")
	ErrClickRecordNotFound  = errors.New("click record not found")
	ErrClickAlreadyResolved = errors.New("click record already linked to a chat")

	// External API errors
	ErrExternalAPI = errors.New("external api failure")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// NewStorageError wraps a store failure so callers can match ErrStorage
func NewStorageError(code, message string, err error) *BusinessError {
	return NewBusinessError(code, message, errors.Join(ErrStorage, err))
}

// NewExternalAPIError wraps a bot or conversions API failure
func NewExternalAPIError(code, message string, err error) *BusinessError {
	return NewBusinessError(code, message, errors.Join(ErrExternalAPI, err))
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorage)
}

// ErrorCode returns the BusinessError code carried by err, or "" when there is none
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
