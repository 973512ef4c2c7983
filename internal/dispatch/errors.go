package dispatch

import (
	"errors"
	"fmt"
)

// Error represents a failure detected during override dispatch.
//
// Dispatch failures include:
//   - Invalid operand access: nil operands or malformed call sequences
//   - Operand unsupported: an operand forbids overridden operations
//   - Unhandled override: every candidate declined the call
//   - Unknown variant: the variant is not in the schema registry
//
// Handler errors are NOT wrapped in Error; they propagate to the caller
// unchanged so handler-defined error types survive errors.As.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the operation being dispatched.
	Op string

	// Variant is the invocation variant's string form.
	Variant string

	// TypeName identifies the operand type involved, when one is.
	TypeName string
}

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeInvalidOperandAccess indicates a nil operand or a call whose
	// operand sequences exceed the operation's arity or MaxOperands.
	ErrCodeInvalidOperandAccess ErrorCode = "INVALID_OPERAND_ACCESS"

	// ErrCodeOperandUnsupported indicates an operand whose capability
	// forbids overridden operations.
	ErrCodeOperandUnsupported ErrorCode = "OPERAND_UNSUPPORTED"

	// ErrCodeUnhandledOverride indicates every candidate declined.
	ErrCodeUnhandledOverride ErrorCode = "UNHANDLED_OVERRIDE"

	// ErrCodeUnknownVariant indicates a variant missing from the schema
	// registry. Always a programming error in the caller.
	ErrCodeUnknownVariant ErrorCode = "UNKNOWN_VARIANT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" && e.Variant != "" {
		return fmt.Sprintf("%s: %s (op=%s, variant=%s)", e.Code, e.Message, e.Op, e.Variant)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidOperandAccess returns true if the error is an invalid operand
// access error. Uses errors.As to handle wrapped errors.
func IsInvalidOperandAccess(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeInvalidOperandAccess
	}
	return false
}

// IsOperandUnsupported returns true if the error reports an operand that
// forbids overridden operations. Uses errors.As to handle wrapped errors.
func IsOperandUnsupported(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeOperandUnsupported
	}
	return false
}

// IsUnhandledOverride returns true if the error reports that every
// candidate declined the call. Uses errors.As to handle wrapped errors.
func IsUnhandledOverride(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeUnhandledOverride
	}
	return false
}

// IsUnknownVariant returns true if the error reports a variant missing
// from the schema registry. Uses errors.As to handle wrapped errors.
func IsUnknownVariant(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeUnknownVariant
	}
	return false
}

// newInvalidOperandAccessError creates an Error for nil operands or
// malformed call sequences.
func newInvalidOperandAccessError(op *Operation, variant Variant) *Error {
	e := &Error{
		Code:    ErrCodeInvalidOperandAccess,
		Message: "failed to retrieve operand from input or output sequences",
	}
	if op != nil {
		e.Op = op.Name
		e.Variant = variant.String()
	}
	return e
}

// newOperandUnsupportedError creates an Error naming the operand type that
// forbids overridden operations.
func newOperandUnsupportedError(op *Operation, variant Variant, typeName string) *Error {
	return &Error{
		Code:     ErrCodeOperandUnsupported,
		Message:  fmt.Sprintf("operand '%s' does not support overridden operations (override disabled)", typeName),
		Op:       op.Name,
		Variant:  variant.String(),
		TypeName: typeName,
	}
}

// newUnknownVariantError creates an Error for a variant the schema
// registry does not know.
func newUnknownVariantError(op *Operation, variant Variant) *Error {
	return &Error{
		Code:    ErrCodeUnknownVariant,
		Message: fmt.Sprintf("internal dispatch error: unknown operation variant '%s' in override check", variant),
		Op:      op.Name,
		Variant: variant.String(),
	}
}
