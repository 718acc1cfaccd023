// Package result provides a tagged success-or-failure value used by
// fallible business logic, so expected failures (authentication,
// validation, not-found) travel as values and only unexpected faults
// are raised as plain errors.
package result

import "errors"

// Code classifies an expected failure.
type Code string

const (
	CodeUnauthorized Code = "unauthorized"
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal"
)

// Failure is an expected, classified failure carried inside a Result.
type Failure struct {
	Code    Code
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return f.Message
	}
	if f.Cause != nil {
		return f.Cause.Error()
	}
	return string(f.Code)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Result holds either a value or a Failure. The zero value is a success
// holding the zero value of T.
type Result[T any] struct {
	value   T
	failure *Failure
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err wraps a classified failure.
func Err[T any](code Code, message string, cause error) Result[T] {
	return Result[T]{failure: &Failure{Code: code, Message: message, Cause: cause}}
}

// FromError classifies err using the supplied sentinel mapping and wraps
// it. A nil err yields Ok of the provided value.
func FromError[T any](value T, err error, classify func(error) Code) Result[T] {
	if err == nil {
		return Ok(value)
	}
	code := CodeInternal
	if classify != nil {
		code = classify(err)
	}
	return Result[T]{failure: &Failure{Code: code, Message: err.Error(), Cause: err}}
}

// IsOk reports whether the result carries a value.
func (r Result[T]) IsOk() bool { return r.failure == nil }

// Value returns the carried value and whether it is valid.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.failure == nil
}

// Failure returns the carried failure, or nil on success.
func (r Result[T]) Failure() *Failure { return r.failure }

// Unwrap returns the value or the underlying error for callers who
// prefer the throwing convention at the outermost boundary.
func (r Result[T]) Unwrap() (T, error) {
	if r.failure == nil {
		return r.value, nil
	}
	var zero T
	if r.failure.Cause != nil {
		return zero, r.failure.Cause
	}
	return zero, r.failure
}

// Is reports whether the result failed with the given code.
func (r Result[T]) Is(code Code) bool {
	return r.failure != nil && r.failure.Code == code
}

// AsFailure extracts a *Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
