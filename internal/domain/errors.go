package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing post, comment, target, report or job.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrInputTooShort is returned by summarizers for inputs below their minimum length.
	ErrInputTooShort = errors.New("input too short")
	// ErrCollaborator wraps failures reported by scraper or model backends.
	ErrCollaborator = errors.New("collaborator failure")
)

// NotFound builds an ErrNotFound with the entity name and key.
func NotFound(entity string, key any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, key)
}

// Invalid builds an ErrValidation with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
