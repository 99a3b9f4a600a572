package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the application.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("resource already exists")
	ErrValidation     = errors.New("invalid input")
	ErrIncompleteTeam = errors.New("not all assignees have completed their part")
)

// Refinements of the sentinels above; errors.Is matches both.
var (
	ErrEmptyBody        = fmt.Errorf("%w: message body is empty", ErrValidation)
	ErrSelfConversation = fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)
	ErrNotParticipant   = fmt.Errorf("%w: not a participant in this conversation", ErrForbidden)
)
