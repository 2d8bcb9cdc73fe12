// Package mirror defines the external content system lifeplan collections
// are reconciled against, plus the retry policy wrapped around it.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRowNotFound is returned when a row or collection does not exist
	// on the mirror.
	ErrRowNotFound = errors.New("mirror row not found")

	// ErrUnavailable is returned once transient failures exhaust the
	// retry budget.
	ErrUnavailable = errors.New("mirror unavailable")
)

// TransientError wraps a failure worth retrying: timeouts, rate limits
// and server errors.
type TransientError struct {
	Op  string
	Err error

	// RetryAfter is the delay the mirror asked for, zero when unknown.
	RetryAfter time.Duration

	// Acknowledged is set when the request may have been applied, for
	// example a timeout after the body was sent. Creations are never
	// retried after an acknowledged failure.
	Acknowledged bool
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient mirror error on %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err (or any error in its chain) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// AuthError indicates that the mirror rejected the credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mirror auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// PropertyType is the kind of a collection property.
type PropertyType string

const (
	PropertyText        PropertyType = "text"
	PropertyDate        PropertyType = "date"
	PropertyCheckbox    PropertyType = "checkbox"
	PropertySelect      PropertyType = "select"
	PropertyMultiSelect PropertyType = "multi_select"
	PropertyRelation    PropertyType = "relation"
)

// Option is one choice of a select or multi_select property. The mirror
// assigns the id; local code only names options.
type Option struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
}

// Property is one column of a collection.
type Property struct {
	Name    string       `json:"name" yaml:"name"`
	Type    PropertyType `json:"type" yaml:"type"`
	Options []Option     `json:"options,omitempty" yaml:"options,omitempty"`
}

// Schema is the ordered property list of a collection.
type Schema struct {
	Properties []Property `json:"properties" yaml:"properties"`
}

// Property returns the property called name.
func (s Schema) Property(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Collection is a mirror-side table.
type Collection struct {
	ID     string `json:"id" yaml:"id"`
	Key    string `json:"key" yaml:"key"`
	Schema Schema `json:"schema" yaml:"schema"`
}

// Row is one record of a collection. Field values are rendered as
// strings; converters own the format of each property.
type Row struct {
	ExternalID string `json:"id,omitempty" yaml:"id,omitempty"`

	// RefID is the local entity id; empty for rows created on the mirror.
	RefID string `json:"ref_id,omitempty" yaml:"ref_id,omitempty"`

	Archived       bool              `json:"archived" yaml:"archived"`
	LastEditedTime time.Time         `json:"last_edited_time" yaml:"last_edited_time"`
	Fields         map[string]string `json:"fields" yaml:"fields"`
}

// Mirror is the capability set the reconciler needs from an external
// system. Every edit advances the row's LastEditedTime.
type Mirror interface {
	// UpsertCollection creates the collection or replaces its schema.
	UpsertCollection(ctx context.Context, key string, schema Schema) (Collection, error)

	// LoadAllRows returns every row of the collection.
	LoadAllRows(ctx context.Context, collectionID string) ([]Row, error)

	// UpsertRow creates the row when ExternalID is empty and replaces it
	// otherwise, returning the stored row.
	UpsertRow(ctx context.Context, collectionID string, row Row) (Row, error)

	// DeleteRow removes a row; ErrRowNotFound when it is already gone.
	DeleteRow(ctx context.Context, collectionID, externalID string) error
}
