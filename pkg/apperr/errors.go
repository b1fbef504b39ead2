// Package apperr defines the error taxonomy shared by the shop services and
// the HTTP gateway.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuthorization
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Machine readable codes for the conflicts callers branch on.
const (
	CodeInsufficientStock = "insufficient_stock"
	CodeOutOfStock        = "out_of_stock"
	CodeEmptyCart         = "empty_cart"
	CodeCategoryInUse     = "category_in_use"
	CodeDuplicate         = "duplicate"
	CodeCheckoutFailed    = "checkout_failed"
	CodeProductOrdered    = "product_ordered"
)

// Error carries a kind, an optional code and a user-facing message. Err is
// the underlying cause and is never shown to shoppers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func Infrastructure(code, message string, err error) *Error {
	return &Error{Kind: KindInfrastructure, Code: code, Message: message, Err: err}
}

func InsufficientStock(productName string) *Error {
	return Conflict(CodeInsufficientStock, fmt.Sprintf("insufficient stock for %q", productName))
}

func EmptyCart() *Error {
	return Conflict(CodeEmptyCart, "cart is empty")
}

func CategoryInUse() *Error {
	return Conflict(CodeCategoryInUse, "category is still used by products")
}

func Duplicate(what string) *Error {
	return Conflict(CodeDuplicate, what+" already exists")
}

// KindOf reports the kind of the first *Error in err's chain. Errors outside
// the taxonomy are infrastructure failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Message returns the user-facing message, or fallback for errors outside the
// taxonomy.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
