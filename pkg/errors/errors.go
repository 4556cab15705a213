// Package errors defines the error kinds returned by the item store and the
// condition model. It is a leaf package so every core package can depend on it.
//
// Import graph: errors <- variant <- items, alarms <- simulation, lifecycle
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrDuplicateKey indicates an item path or catalog id is already in use.
	ErrDuplicateKey ErrorCode = iota + 1

	// ErrUnknownHandle indicates an item handle that was never issued or was removed.
	ErrUnknownHandle

	// ErrUnknownReference indicates a category, attribute, definition,
	// sub-condition, area, source or condition id that does not exist.
	ErrUnknownReference

	// ErrInvalidType indicates a value whose data type is unsupported or does
	// not match the declared type.
	ErrInvalidType

	// ErrAttributeArityMismatch indicates an attribute vector whose length
	// differs from the category schema.
	ErrAttributeArityMismatch

	// ErrAlreadySealed indicates a catalog mutation after the model was sealed.
	ErrAlreadySealed

	// ErrResourceExhausted indicates a configured limit or the handle space is exhausted.
	ErrResourceExhausted

	ErrInvalidArgument

	// ErrNotReadable indicates a read of a write-only item.
	ErrNotReadable

	// ErrNotWritable indicates a client write to a read-only item.
	ErrNotWritable
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrDuplicateKey:
		return "DuplicateKey"
	case ErrUnknownHandle:
		return "UnknownHandle"
	case ErrUnknownReference:
		return "UnknownReference"
	case ErrInvalidType:
		return "InvalidType"
	case ErrAttributeArityMismatch:
		return "AttributeArityMismatch"
	case ErrAlreadySealed:
		return "AlreadySealed"
	case ErrResourceExhausted:
		return "ResourceExhausted"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrNotReadable:
		return "NotReadable"
	case ErrNotWritable:
		return "NotWritable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// CoreError is an error with a code. Ref names the offending item path or
// catalog id when there is one.
type CoreError struct {
	Code    ErrorCode
	Message string
	Ref     string
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s (ref: %s)", e.Code, e.Message, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *CoreError carrying the same code, so errors.Is(err,
// &CoreError{Code: ErrDuplicateKey}) works without comparing messages.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	return ok && t.Code == e.Code
}

func NewDuplicateKeyError(kind, ref string) *CoreError {
	return &CoreError{
		Code:    ErrDuplicateKey,
		Message: fmt.Sprintf("%s already exists", kind),
		Ref:     ref,
	}
}

func NewUnknownHandleError(ref string) *CoreError {
	return &CoreError{
		Code:    ErrUnknownHandle,
		Message: "unknown or removed item handle",
		Ref:     ref,
	}
}

func NewUnknownReferenceError(kind, ref string) *CoreError {
	return &CoreError{
		Code:    ErrUnknownReference,
		Message: fmt.Sprintf("unknown %s", kind),
		Ref:     ref,
	}
}

func NewInvalidTypeError(message, ref string) *CoreError {
	return &CoreError{
		Code:    ErrInvalidType,
		Message: message,
		Ref:     ref,
	}
}

func NewArityMismatchError(want, got int, ref string) *CoreError {
	return &CoreError{
		Code:    ErrAttributeArityMismatch,
		Message: fmt.Sprintf("expected %d attribute values, got %d", want, got),
		Ref:     ref,
	}
}

func NewAlreadySealedError(operation string) *CoreError {
	return &CoreError{
		Code:    ErrAlreadySealed,
		Message: fmt.Sprintf("%s rejected: condition model is sealed", operation),
	}
}

func NewResourceExhaustedError(message string) *CoreError {
	return &CoreError{
		Code:    ErrResourceExhausted,
		Message: message,
	}
}

func NewInvalidArgumentError(message string) *CoreError {
	return &CoreError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

func NewNotReadableError(ref string) *CoreError {
	return &CoreError{Code: ErrNotReadable, Message: "item is not readable", Ref: ref}
}

func NewNotWritableError(ref string) *CoreError {
	return &CoreError{Code: ErrNotWritable, Message: "item is not writable", Ref: ref}
}

// CodeOf extracts the ErrorCode from err, looking through wrapping.
func CodeOf(err error) (ErrorCode, bool) {
	var ce *CoreError
	if stderrors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}

// IsCode reports whether err (or anything it wraps) is a CoreError with code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsDuplicateKeyError returns true if the error is a DuplicateKey error.
func IsDuplicateKeyError(err error) bool { return IsCode(err, ErrDuplicateKey) }

// IsUnknownHandleError returns true if the error is an UnknownHandle error.
func IsUnknownHandleError(err error) bool { return IsCode(err, ErrUnknownHandle) }

// IsUnknownReferenceError returns true if the error is an UnknownReference error.
func IsUnknownReferenceError(err error) bool { return IsCode(err, ErrUnknownReference) }

// IsInvalidTypeError returns true if the error is an InvalidType error.
func IsInvalidTypeError(err error) bool { return IsCode(err, ErrInvalidType) }

// IsAlreadySealedError returns true if the error is an AlreadySealed error.
func IsAlreadySealedError(err error) bool { return IsCode(err, ErrAlreadySealed) }
