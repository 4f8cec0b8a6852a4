package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a malformed manifest or an undecidable embedding
	// dimension. Fatal for the current request.
	ErrConfig = errors.New("configuration error")
	// ErrNavigation marks a selection-tree walk past a leaf. The caller
	// recovers by resetting its bit path.
	ErrNavigation = errors.New("tree navigation error")

	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
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
