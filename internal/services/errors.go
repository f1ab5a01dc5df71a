package services

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to HTTP status codes.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyPaid         = errors.New("order already paid")
	ErrPaymentVerification = errors.New("payment verification failed")
	ErrGateway             = errors.New("payment gateway error")
)

// UserError carries a message that is safe to return to the client.
type UserError struct {
	Kind    error
	Message string
}

func (e UserError) Error() string {
	return e.Message
}

func (e UserError) Unwrap() error {
	return e.Kind
}

func validationError(format string, args ...any) error {
	return UserError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func forbiddenError(message string) error {
	return UserError{Kind: ErrForbidden, Message: message}
}

var (
	errOrderNotFound   = UserError{Kind: ErrNotFound, Message: "Order not found"}
	errProductNotFound = UserError{Kind: ErrNotFound, Message: "Product not found"}
	errOrderPaid       = UserError{Kind: ErrAlreadyPaid, Message: "Order is already paid"}
	errPaymentRecorded = UserError{Kind: ErrAlreadyPaid, Message: "This payment is already recorded on another order"}
	errInvalidSig      = UserError{Kind: ErrPaymentVerification, Message: "Invalid signature"}
	errNotAuthorized   = UserError{Kind: ErrUnauthorized, Message: "Not authorized"}
)
