// Package errors defines the coded errors surfaced by the ledger runtime and the
// fixed-ratio trading program.
//
// Runtime failures carry a symbolic code (InvalidArgument, AccountInUse, ...).
// Program failures use the Custom code plus a numeric program error code, so a
// client can map them to user-facing messages the way it would for an on-chain
// "custom program error: 0x3e9".
package errors

import (
	"errors"
	"fmt"
)

// Runtime error codes.
const (
	ErrCodeCustom                      = "Custom"
	ErrCodeMissingRequiredSignature    = "MissingRequiredSignature"
	ErrCodeInvalidArgument             = "InvalidArgument"
	ErrCodeInvalidInstructionData      = "InvalidInstructionData"
	ErrCodeInvalidAccountData          = "InvalidAccountData"
	ErrCodeAccountAlreadyInitialized   = "AccountAlreadyInitialized"
	ErrCodeUninitializedAccount        = "UninitializedAccount"
	ErrCodeInsufficientFunds           = "InsufficientFunds"
	ErrCodeAccountInUse                = "AccountInUse"
	ErrCodeAccountDataTooSmall         = "AccountDataTooSmall"
	ErrCodeExternalAccountDataModified = "ExternalAccountDataModified"
	ErrCodeExternalLamportSpend        = "ExternalAccountLamportSpend"
	ErrCodeReadonlyDataModified        = "ReadonlyDataModified"
	ErrCodeComputeBudgetExceeded       = "ComputationalBudgetExceeded"
	ErrCodeIncorrectProgramID          = "IncorrectProgramId"
	ErrCodeInvalidSeeds                = "InvalidSeeds"
	ErrCodeCallDepth                   = "CallDepth"
	ErrCodeNotEnoughAccountKeys        = "NotEnoughAccountKeys"
	ErrCodeArithmeticOverflow          = "ArithmeticOverflow"
	ErrCodeUnsupportedProgramID        = "UnsupportedProgramId"
	ErrCodeMissingAccount              = "MissingAccount"
	ErrCodePrivilegeEscalation         = "PrivilegeEscalation"
	ErrCodeAccountAlreadyInUse         = "AccountAlreadyInUse"
	ErrCodeBlockhashNotFound           = "BlockhashNotFound"
	ErrCodeAlreadyProcessed            = "AlreadyProcessed"
	ErrCodeSignatureFailure            = "SignatureFailure"
	ErrCodeInsufficientFundsForRent    = "InsufficientFundsForRent"
	ErrCodeInsufficientFundsForFee     = "InsufficientFundsForFee"
	ErrCodeUnbalancedInstruction       = "UnbalancedInstruction"
	ErrCodeInvalidAccountOwner         = "InvalidAccountOwner"
	ErrCodeIncorrectAuthority          = "IncorrectAuthority"
	ErrCodeDecodeFailed                = "DecodeFailed"
	ErrCodeProcessFailed               = "ProcessFailed"
)

// Error is a coded failure.
type Error struct {
	// Code is the symbolic error code.
	Code string

	// Custom is the program error number when Code is ErrCodeCustom.
	Custom uint32

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional error context.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	code := e.Code
	if e.Code == ErrCodeCustom {
		code = fmt.Sprintf("Custom(%d)", e.Custom)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Custom == t.Custom
}

// WithCause returns a copy of the error carrying cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details map[string]any) *Error {
	c := *e
	c.Details = details
	return &c
}

// Withf returns a copy of the error with a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// LogString renders the error the way the runtime prints it in a failure log line.
func (e *Error) LogString() string {
	if e.Code == ErrCodeCustom {
		return fmt.Sprintf("custom program error: 0x%x", e.Custom)
	}
	return e.Code
}

// NewError creates a new runtime error.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewCustom creates a program error with a numeric code.
func NewCustom(code uint32, message string) *Error {
	return &Error{
		Code:    ErrCodeCustom,
		Custom:  code,
		Message: message,
	}
}

// Pre-defined runtime errors.
var (
	ErrMissingRequiredSignature    = NewError(ErrCodeMissingRequiredSignature, "missing required signature for instruction")
	ErrInvalidArgument             = NewError(ErrCodeInvalidArgument, "invalid program argument")
	ErrInvalidInstructionData      = NewError(ErrCodeInvalidInstructionData, "invalid instruction data")
	ErrInvalidAccountData          = NewError(ErrCodeInvalidAccountData, "invalid account data for instruction")
	ErrAccountAlreadyInitialized   = NewError(ErrCodeAccountAlreadyInitialized, "account already initialized")
	ErrUninitializedAccount        = NewError(ErrCodeUninitializedAccount, "attempt to operate on an account that was not yet initialized")
	ErrInsufficientFunds           = NewError(ErrCodeInsufficientFunds, "insufficient funds for instruction")
	ErrAccountInUse                = NewError(ErrCodeAccountInUse, "account in use")
	ErrAccountDataTooSmall         = NewError(ErrCodeAccountDataTooSmall, "account data too small for instruction")
	ErrExternalAccountDataModified = NewError(ErrCodeExternalAccountDataModified, "instruction modified data of an account it does not own")
	ErrExternalLamportSpend        = NewError(ErrCodeExternalLamportSpend, "instruction spent from the balance of an account it does not own")
	ErrReadonlyDataModified        = NewError(ErrCodeReadonlyDataModified, "instruction modified data of a read-only account")
	ErrComputeBudgetExceeded       = NewError(ErrCodeComputeBudgetExceeded, "computational budget exceeded")
	ErrIncorrectProgramID          = NewError(ErrCodeIncorrectProgramID, "incorrect program id for instruction")
	ErrInvalidSeeds                = NewError(ErrCodeInvalidSeeds, "provided seeds do not result in a valid address")
	ErrCallDepth                   = NewError(ErrCodeCallDepth, "cross-program invocation call depth too deep")
	ErrNotEnoughAccountKeys        = NewError(ErrCodeNotEnoughAccountKeys, "insufficient account keys for instruction")
	ErrArithmeticOverflow          = NewError(ErrCodeArithmeticOverflow, "program arithmetic overflowed")
	ErrUnsupportedProgramID        = NewError(ErrCodeUnsupportedProgramID, "unsupported program id")
	ErrMissingAccount              = NewError(ErrCodeMissingAccount, "account not found")
	ErrPrivilegeEscalation         = NewError(ErrCodePrivilegeEscalation, "cross-program invocation with unauthorized signer or writable account")
	ErrAccountAlreadyInUse         = NewError(ErrCodeAccountAlreadyInUse, "an account with the same address already exists")
	ErrBlockhashNotFound           = NewError(ErrCodeBlockhashNotFound, "blockhash not found")
	ErrAlreadyProcessed            = NewError(ErrCodeAlreadyProcessed, "this transaction has already been processed")
	ErrSignatureFailure            = NewError(ErrCodeSignatureFailure, "transaction did not pass signature verification")
	ErrInsufficientFundsForRent    = NewError(ErrCodeInsufficientFundsForRent, "account would not be rent exempt")
	ErrInsufficientFundsForFee     = NewError(ErrCodeInsufficientFundsForFee, "insufficient funds for fee")
	ErrUnbalancedInstruction       = NewError(ErrCodeUnbalancedInstruction, "sum of account balances before and after instruction do not match")
	ErrInvalidAccountOwner         = NewError(ErrCodeInvalidAccountOwner, "invalid account owner")
	ErrIncorrectAuthority          = NewError(ErrCodeIncorrectAuthority, "incorrect authority provided")
)

// CustomCode extracts the numeric program error code from err's chain.
func CustomCode(err error) (uint32, bool) {
	var e *Error
	if errors.As(err, &e) && e.Code == ErrCodeCustom {
		return e.Custom, true
	}
	return 0, false
}

// LogString renders any error for a runtime failure log line.
func LogString(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.LogString()
	}
	return err.Error()
}

// DecodeFailed creates an error for decoding failures.
func DecodeFailed(what string, cause error) *Error {
	return NewError(ErrCodeDecodeFailed, fmt.Sprintf("failed to decode %s", what)).WithCause(cause)
}

// ProcessFailed creates an error for processing failures.
func ProcessFailed(what string, cause error) *Error {
	return NewError(ErrCodeProcessFailed, fmt.Sprintf("failed to process %s", what)).WithCause(cause)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
