package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrValidation    = errors.New("validation failed")
	ErrConfiguration = errors.New("invalid configuration")
	ErrInternal      = errors.New("internal error")
	ErrDelivery      = errors.New("delivery failed")
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err != e.sentinel() {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) sentinel() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindConfiguration:
		return ErrConfiguration
	default:
		return ErrInternal
	}
}

func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message, Err: ErrNotFound}
}

func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Err: ErrValidation}
}

func Configuration(message string) *AppError {
	return &AppError{Kind: KindConfiguration, Message: message, Err: ErrConfiguration}
}

func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// DeliveryError is returned by every transport call that failed to reach
// its recipient. It is logged where it happens and never retried.
type DeliveryError struct {
	Op        string
	Recipient int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s to %d: %v", e.Op, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

func Delivery(op string, recipient int64, err error) *DeliveryError {
	return &DeliveryError{Op: op, Recipient: recipient, Err: err}
}

func IsNotFound(err error) bool {
	return hasKind(err, KindNotFound) || errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return hasKind(err, KindValidation) || errors.Is(err, ErrValidation)
}

func IsConfiguration(err error) bool {
	return hasKind(err, KindConfiguration) || errors.Is(err, ErrConfiguration)
}

func IsDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

func hasKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
