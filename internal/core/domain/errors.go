package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyDecided     = errors.New("analysis already decided")
	ErrForbidden          = errors.New("forbidden")
	ErrNoStagedActivities = errors.New("no staged activities")
	ErrTransactionFailed  = errors.New("transaction failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")
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

func errInStatus(status AnalysisStatus) error {
	return fmt.Errorf("analysis status is %q", status)
}
