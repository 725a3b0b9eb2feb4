package parity

import (
	"errors"
	"fmt"
)

// ErrorType classifies cache and conversion failures so callers can branch
// without string matching
type ErrorType int

const (
	ErrorTypeInvalidAmount ErrorType = iota
	ErrorTypeUnsupportedCurrency
	ErrorTypeDataSource
)

// Error represents a parity-system error with type information
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError unwraps err into a parity *Error, reporting whether it is one.
func AsError(err error) (*Error, bool) {
	var parityErr *Error
	if errors.As(err, &parityErr) {
		return parityErr, true
	}
	return nil, false
}

func invalidAmountError(message string) *Error {
	return &Error{Type: ErrorTypeInvalidAmount, Message: message}
}

func unsupportedCurrencyError(code string) *Error {
	return &Error{Type: ErrorTypeUnsupportedCurrency, Message: "unsupported currency: " + code}
}

func dataSourceError(message string, cause error) *Error {
	return &Error{Type: ErrorTypeDataSource, Message: message, Cause: cause}
}
