package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeStore represents document store failures (network or backend)
	ErrorTypeStore ErrorType = "store"
	// ErrorTypePrecondition represents an action rejected before any write
	ErrorTypePrecondition ErrorType = "precondition"
	// ErrorTypeCascade represents a multi-step workflow that stopped partway
	ErrorTypeCascade ErrorType = "cascade"
	// ErrorTypeNotFound represents a missing record
	ErrorTypeNotFound ErrorType = "notfound"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// GenericRetryMessage is shown to users for failures they can only retry.
const GenericRetryMessage = "Something went wrong. Please try again."

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Store Errors

// ErrStoreOperationFailed is returned when a single document store call fails
type ErrStoreOperationFailed struct {
	*BaseError
	Operation  string
	Collection string
	DocumentID string
}

func NewStoreOperationFailed(operation, collection, documentID string, err error) *ErrStoreOperationFailed {
	target := collection
	if documentID != "" {
		target = collection + "/" + documentID
	}
	return &ErrStoreOperationFailed{
		BaseError:  NewBaseError(ErrorTypeStore, fmt.Sprintf("%s %s failed", operation, target), err),
		Operation:  operation,
		Collection: collection,
		DocumentID: documentID,
	}
}

// ErrStoreConnectionFailed is returned when a store backend cannot be reached
type ErrStoreConnectionFailed struct {
	*BaseError
	Backend string
	URI     string
}

func NewStoreConnectionFailed(backend, uri string, err error) *ErrStoreConnectionFailed {
	return &ErrStoreConnectionFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("failed to connect to %s: %s", backend, uri), err),
		Backend:   backend,
		URI:       uri,
	}
}

// Not Found Errors

// ErrAccountNotFound is returned when an account record does not exist
type ErrAccountNotFound struct {
	*BaseError
	AccountID string
}

func NewAccountNotFound(accountID string) *ErrAccountNotFound {
	return &ErrAccountNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("account not found: %s", accountID), nil),
		AccountID: accountID,
	}
}

// ErrPostNotFound is returned when a post record does not exist
type ErrPostNotFound struct {
	*BaseError
	PostID string
}

func NewPostNotFound(postID string) *ErrPostNotFound {
	return &ErrPostNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("post not found: %s", postID), nil),
		PostID:    postID,
	}
}

// ErrBoardNotFound is returned when an inspiration board does not exist or is not owned by the caller
type ErrBoardNotFound struct {
	*BaseError
	BoardID string
}

func NewBoardNotFound(boardID string) *ErrBoardNotFound {
	return &ErrBoardNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("board not found: %s", boardID), nil),
		BoardID:   boardID,
	}
}

// Precondition Errors

// ErrPrecondition is returned when an action is refused before anything is written.
// UserMessage is safe to show as-is.
type ErrPrecondition struct {
	*BaseError
	Reason      string
	UserMessage string
}

func NewPrecondition(reason, userMessage string, cause error) *ErrPrecondition {
	return &ErrPrecondition{
		BaseError:   NewBaseError(ErrorTypePrecondition, reason, cause),
		Reason:      reason,
		UserMessage: userMessage,
	}
}

// Cascade Errors

// ErrPartialFailure is returned when a workflow of independent writes stopped partway.
// Completed steps are not rolled back.
type ErrPartialFailure struct {
	*BaseError
	Workflow   string
	FailedStep string
	Completed  []string
}

func NewPartialFailure(workflow, failedStep string, completed []string, err error) *ErrPartialFailure {
	done := make([]string, len(completed))
	copy(done, completed)
	return &ErrPartialFailure{
		BaseError: NewBaseError(ErrorTypeCascade,
			fmt.Sprintf("%s stopped at %q after [%s]", workflow, failedStep, strings.Join(done, ", ")), err),
		Workflow:   workflow,
		FailedStep: failedStep,
		Completed:  done,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Helper functions

type typed interface {
	errorType() ErrorType
}

func (e *BaseError) errorType() ErrorType { return e.Type }

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if t, ok := err.(typed); ok && t.errorType() == errType {
			return true
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				if IsErrorType(e, errType) {
					return true
				}
			}
			return false
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsRetryable reports whether the caller may retry the action.
// The engine itself never retries.
func IsRetryable(err error) bool {
	switch {
	case IsErrorType(err, ErrorTypeContext),
		IsErrorType(err, ErrorTypePrecondition),
		IsErrorType(err, ErrorTypeNotFound),
		IsErrorType(err, ErrorTypeConfig):
		return false
	case IsErrorType(err, ErrorTypeStore), IsErrorType(err, ErrorTypeCascade):
		return true
	}
	return false
}

// UserMessage returns the text to show for err: the precondition message when
// there is one, otherwise a generic retry prompt.
func UserMessage(err error) string {
	var pre *ErrPrecondition
	if errors.As(err, &pre) && pre.UserMessage != "" {
		return pre.UserMessage
	}
	if IsErrorType(err, ErrorTypeNotFound) {
		return "This content is no longer available."
	}
	return GenericRetryMessage
}
