package domain

import "errors"

// Operation errors surfaced to the originating connection only.
var (
	ErrUnauthenticated      = errors.New("not authenticated")
	ErrForbidden            = errors.New("not the author of this message")
	ErrMessageNotFound      = errors.New("message not found")
	ErrAlreadyDeleted       = errors.New("message already deleted")
	ErrUneditableKind       = errors.New("only text messages can be edited")
	ErrCannotReactToDeleted = errors.New("cannot react to a deleted message")
	ErrValidation           = errors.New("invalid payload")
	ErrInvalidParticipants  = errors.New("both participant ids are required")
	ErrHistoryUnavailable   = errors.New("chat history unavailable")
	ErrRateLimited          = errors.New("too many messages, slow down")
)

// ErrorKind maps an operation error to its wire-level error code.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return ErrCodeUnauthenticated
	case errors.Is(err, ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, ErrMessageNotFound):
		return ErrCodeMessageNotFound
	case errors.Is(err, ErrAlreadyDeleted):
		return ErrCodeAlreadyDeleted
	case errors.Is(err, ErrUneditableKind):
		return ErrCodeUneditableKind
	case errors.Is(err, ErrCannotReactToDeleted):
		return ErrCodeCannotReactToDeleted
	case errors.Is(err, ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, ErrInvalidParticipants):
		return ErrCodeInvalidParticipants
	case errors.Is(err, ErrHistoryUnavailable):
		return ErrCodeHistoryUnavailable
	case errors.Is(err, ErrRateLimited):
		return ErrCodeRateLimited
	default:
		return ErrCodeInternal
	}
}
