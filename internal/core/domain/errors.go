package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration     = errors.New("invalid configuration")
	ErrFetch             = errors.New("document fetch failed")
	ErrTranslation       = errors.New("translation failed")
	ErrRanking           = errors.New("ranking failed")
	ErrGeneration        = errors.New("generation failed")
	ErrMalformedResponse = errors.New("malformed response")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotReady          = errors.New("document not loaded")
	ErrLoadInProgress    = errors.New("document load already in progress")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
