package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/towing-settlement/internal/repository"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInvalidState           = errors.New("invalid state")
	ErrAlreadyMatched         = errors.New("already matched")
	ErrAmountMismatch         = errors.New("amount mismatch")
	ErrClosureNotApproved     = errors.New("closure not approved")
	ErrClosureAlreadyInvoiced = errors.New("closure already invoiced")
	ErrNoEligibleServices     = errors.New("no eligible services for selected period")
	ErrNoEntriesInPeriod      = errors.New("no commission entries for selected period")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")
	ErrConcurrentUpdate       = errors.New("concurrent update")
)

// TransitionError reports a rejected status move.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move from %q to %q", ErrInvalidTransition, e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repository.ErrNotFound)
}

// notFound maps store misses to ErrNotFound and passes other errors through.
func notFound(err error, what string) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

// dependency maps lookup failures in catalog collaborators.
func dependency(err error, what string) error {
	return fmt.Errorf("%w: %s: %v", ErrDependencyUnavailable, what, err)
}
