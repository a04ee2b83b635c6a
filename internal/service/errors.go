package service

import (
	"errors"
	"fmt"
	"gymbook/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("session is full")
	ErrAlreadyBooked    = errors.New("visitor is already booked for this session")
	ErrNotBooked        = errors.New("visitor is not booked for this session")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPartialWrite     = errors.New("partial write")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDuplicateSession = errors.New("session with the same details already exists")
	ErrUsernameTaken    = errors.New("username is already taken")
	ErrConflict         = errors.New("conflict")

	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	ErrVisitorNotFound = fmt.Errorf("visitor %w", ErrNotFound)
	ErrTrainerNotFound = fmt.Errorf("trainer %w", ErrNotFound)
	ErrReviewNotFound  = fmt.Errorf("review %w", ErrNotFound)
)

// invalidInput wraps ErrInvalidInput with a human readable reason.
func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storeError marks an unexpected repository failure. Known repository sentinels are
// translated by the caller before it gets here.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// mapRosterError translates the store's conditional-write failures into service errors.
func mapRosterError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrCapacityExceeded):
		return ErrCapacityExceeded
	case errors.Is(err, repository.ErrAlreadyBooked):
		return ErrAlreadyBooked
	case errors.Is(err, repository.ErrNotBooked):
		return ErrNotBooked
	case errors.Is(err, repository.ErrRosterTooLarge):
		return invalidInput("maxVisitors is below the number of booked visitors")
	default:
		return storeError(err)
	}
}

// PartialWriteError reports a two-sided write whose session side succeeded but whose visitor
// side did not. RolledBack tells whether the session side was undone; Queued whether a
// reconciliation record was stored for later repair.
type PartialWriteError struct {
	Op         string
	SessionID  primitive.ObjectID
	VisitorID  primitive.ObjectID
	ReviewID   primitive.ObjectID
	RolledBack bool
	Queued     bool
	Cause      error
}

func (e *PartialWriteError) Error() string {
	state := "not rolled back"
	if e.RolledBack {
		state = "rolled back"
	} else if e.Queued {
		state = "queued for reconciliation"
	}
	return fmt.Sprintf("partial write during %s (session %s, visitor %s, %s): %v",
		e.Op, e.SessionID.Hex(), e.VisitorID.Hex(), state, e.Cause)
}

// Unwrap lets errors.Is match both ErrPartialWrite and the underlying cause.
func (e *PartialWriteError) Unwrap() []error {
	return []error{ErrPartialWrite, e.Cause}
}
