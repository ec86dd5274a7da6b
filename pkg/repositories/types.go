package repositories

import (
	"errors"
	"fmt"
)

type ErrNotFound struct {
	Kind string
	Key  string
}

func (e *ErrNotFound) Error() string {
	if e.Kind == "" {
		return "not found"
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

func roomNotFound(roomID string) error {
	return &ErrNotFound{Kind: "room", Key: roomID}
}

func gameNotFound(roomID string) error {
	return &ErrNotFound{Kind: "game", Key: roomID}
}

func codeNotFound(code string) error {
	return &ErrNotFound{Kind: "room code", Key: code}
}

// ErrDuplicateCode is returned when a new room's code is already held.
type ErrDuplicateCode struct {
	Code string
}

func (e *ErrDuplicateCode) Error() string {
	return fmt.Sprintf("room code %s is already in use", e.Code)
}

func IsDuplicateCode(err error) bool {
	var e *ErrDuplicateCode
	return errors.As(err, &e)
}

// ErrTransient is returned when a transaction kept conflicting with
// concurrent writers. Nothing was written; the whole operation can be retried.
type ErrTransient struct {
	Attempts int
	Err      error
}

func (e *ErrTransient) Error() string {
	return fmt.Sprintf("transaction failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ErrTransient) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var e *ErrTransient
	return errors.As(err, &e)
}
