package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorContext is structured detail attached to an error and emitted as log attributes.
type ErrorContext map[string]any

// ClassifiedError is an error with a category, a severity and a retry hint.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	prefix := fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
	if e.cause == nil {
		return prefix
	}
	return prefix + ": " + e.cause.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory      { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity      { return e.severity }
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }
func (e *ClassifiedError) Message() string              { return e.message }
func (e *ClassifiedError) Cause() error                 { return e.cause }
func (e *ClassifiedError) Context() ErrorContext        { return e.context }

// Is matches a ClassifiedError with the same category and message, so package level
// sentinels built with NewError work with errors.Is.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	return ok && e.category == other.category && e.message == other.message
}

// CanRetry reports whether an automatic retry may succeed.
func (e *ClassifiedError) CanRetry() bool { return e.retry == RetryBackoff }

func (e *ClassifiedError) IsFatal() bool { return e.severity == SeverityFatal }

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a non-fatal, non-retryable error.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
	}}
}

// WrapError starts an error caused by err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	if b.err.context == nil {
		b.err.context = make(ErrorContext)
	}
	b.err.context[key] = value
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder { return b.WithSeverity(SeverityFatal) }

func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	b.err.retry = RetryBackoff
	return b
}

func (b *ErrorBuilder) UserAction() *ErrorBuilder {
	b.err.retry = RetryUserAction
	return b
}

// Build returns a copy, so one builder may produce several errors.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	if len(b.err.context) > 0 {
		e.context = make(ErrorContext, len(b.err.context))
		for k, v := range b.err.context {
			e.context[k] = v
		}
	}
	return &e
}

// AsClassified finds the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory reports whether the first classified error in the chain has category.
func HasCategory(err error, category ErrorCategory) bool {
	c, ok := AsClassified(err)
	return ok && c.category == category
}

// GetCategory returns the category of err, or CategoryInternal when unclassified.
func GetCategory(err error) ErrorCategory {
	if c, ok := AsClassified(err); ok {
		return c.category
	}
	return CategoryInternal
}

// IsFatal reports whether err carries a fatal classification.
func IsFatal(err error) bool {
	c, ok := AsClassified(err)
	return ok && c.IsFatal()
}
