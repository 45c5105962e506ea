package domain

import (
	"errors"
	"fmt"
)

// Retrieval error taxonomy. Source failures degrade the result set and
// are recorded in Outcome.PartialFailures; only invalid input and
// invalid strategy surface to the caller.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidStrategy   = errors.New("invalid fusion strategy")
	ErrSourceTimeout     = errors.New("source timeout")
	ErrSourceUnavailable = errors.New("source unavailable")
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
