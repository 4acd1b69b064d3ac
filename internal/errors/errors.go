// Package errors defines the error taxonomy shared by the settings store and the
// utility classification engine. It re-exports the standard helpers so callers
// only import one errors package.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Category sentinels. Every typed error below reports itself as one of these
// through Is, so callers can branch with errors.Is(err, errors.ErrNotFound)
// and reach field detail with errors.As when they need it.
var (
	ErrValidation       = stderrors.New("validation failed")
	ErrDuplicateKey     = stderrors.New("duplicate key")
	ErrDuplicateAccount = stderrors.New("duplicate account")
	ErrInUse            = stderrors.New("in use")
	ErrConfigType       = stderrors.New("config type mismatch")
	ErrNotFound         = stderrors.New("not found")
	ErrInvalidKeyFormat = stderrors.New("invalid key format")
)

func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func New(text string) error         { return stderrors.New(text) }
func Join(errs ...error) error      { return stderrors.Join(errs...) }

// ValidationError reports malformed input rejected before persistence.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidation is a shorthand for a field-level validation failure.
func NewValidation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DuplicateKeyError reports a uniqueness violation on a natural key.
type DuplicateKeyError struct {
	Entity string
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Key)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// DuplicateAccountError reports that a GL account number is already mapped.
type DuplicateAccountError struct {
	AccountNumber string
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("GL account %s is already mapped; edit the existing mapping instead", e.AccountNumber)
}

func (e *DuplicateAccountError) Is(target error) bool { return target == ErrDuplicateAccount }

// InUseError reports a delete blocked by references or by a built-in flag.
type InUseError struct {
	Entity   string
	ID       uint
	Reason   string
	Accounts int64
	Expenses int64
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d cannot be deleted: %s", e.Entity, e.ID, e.Reason)
}

func (e *InUseError) Is(target error) bool { return target == ErrInUse }

// ConfigTypeError reports a stored setting whose kind differs from what the
// caller asked for.
type ConfigTypeError struct {
	Category string
	Key      string
	Want     string
	Got      string
}

func (e *ConfigTypeError) Error() string {
	return fmt.Sprintf("setting %s.%s: expected %s, stored %s", e.Category, e.Key, e.Want, e.Got)
}

func (e *ConfigTypeError) Is(target error) bool { return target == ErrConfigType }

// NotFoundError reports an unknown id or key.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidKeyFormatError reports a utility type key outside [a-z0-9_]+.
// It also matches ErrValidation.
type InvalidKeyFormatError struct {
	Key string
}

func (e *InvalidKeyFormatError) Error() string {
	return fmt.Sprintf("key %q must match [a-z0-9_]+", e.Key)
}

func (e *InvalidKeyFormatError) Is(target error) bool {
	return target == ErrInvalidKeyFormat || target == ErrValidation
}

// ItemError is one per-record failure collected by a bulk operation.
type ItemError struct {
	Item    string `json:"item"`
	Message string `json:"message"`
}
