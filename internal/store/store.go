package store

import "errors"

// Errors returned by repositories. Callers match them with errors.Is.
var (
	ErrNotFound            = errors.New("entity not found")
	ErrParentNotFound      = errors.New("parent entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrConcurrencyConflict = errors.New("entity was modified concurrently")
	ErrRefIDAssigned       = errors.New("entity already has a ref id")
	ErrInUse               = errors.New("entity is still referenced")
	ErrCorruptEventStream  = errors.New("corrupt event stream")
)

// FindOptions narrows a FindAll query.
type FindOptions struct {
	// AllowArchived includes archived entities.
	AllowArchived bool

	// RefIDs restricts the result to these ids when non-empty.
	RefIDs []string
}
