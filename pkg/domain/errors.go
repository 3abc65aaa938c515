package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation targets a missing primary key.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds an ErrNotFound formatting id with %v.
func NotFound(entity EntityType, id any) ErrNotFound {
	return ErrNotFound{Entity: entity, ID: fmt.Sprint(id)}
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

var (
	// ErrStaleRevision is returned when a save was based on an older
	// document revision than the one currently persisted.
	ErrStaleRevision = errors.New("document revision is stale")
	// ErrCorruptDocument marks a persisted document that could not be decoded.
	ErrCorruptDocument = errors.New("persisted document is corrupt")
	// ErrNoDocument is returned by backends that hold no document yet.
	ErrNoDocument = errors.New("no persisted document")
	// ErrInvalidBackup is returned when an imported backup lacks the
	// required collections.
	ErrInvalidBackup = errors.New("invalid backup document")
	// ErrInvalidInput wraps caller supplied values that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)
