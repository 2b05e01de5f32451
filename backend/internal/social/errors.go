package social

import (
	"errors"

	apperrors "lookbook/backend/pkg/errors"
)

// Actions refused before any write. They reach callers wrapped in an
// apperrors.ErrPrecondition, so match them with errors.Is.
var (
	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrPrivateContent   = errors.New("content belongs to a private account")
	ErrNoPendingRequest = errors.New("no pending follow request")
	ErrInvalidInput     = errors.New("invalid input")
)

func precondition(sentinel error, userMessage string) error {
	return apperrors.NewPrecondition(sentinel.Error(), userMessage, sentinel)
}

func invalid(userMessage string) error {
	return apperrors.NewPrecondition(ErrInvalidInput.Error()+": "+userMessage, userMessage, ErrInvalidInput)
}
