package repository

import (
	"context"
	"errors"
	"time"
)

// Kind partitions stored documents: microscope setups vs measurement
// preset sets.
type Kind string

const (
	KindSetup        Kind = "setup"
	KindMeasurements Kind = "measurements"
)

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	return k == KindSetup || k == KindMeasurements
}

// ErrNotFound is returned when no document matches a query.
var ErrNotFound = errors.New("document not found")

// Revision is one stored version of a named configuration document.
// Every import creates a new revision; exactly one revision per
// (kind, name) is active at a time.
type Revision struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the interface for configuration document storage.
type Repository interface {
	// SaveRevision stores a new revision and makes it active.
	SaveRevision(ctx context.Context, kind Kind, name, format string, data []byte) (*Revision, error)

	// GetActive returns the active revision and its payload.
	GetActive(ctx context.Context, kind Kind, name string) (*Revision, []byte, error)

	// GetRevision returns a specific revision by ID.
	GetRevision(ctx context.Context, id int64) (*Revision, []byte, error)

	// ListRevisions returns all revisions of a document, newest first.
	ListRevisions(ctx context.Context, kind Kind, name string) ([]Revision, error)

	// ListNames returns the document names stored for a kind.
	ListNames(ctx context.Context, kind Kind) ([]string, error)

	// Activate makes an older revision active again.
	Activate(ctx context.Context, id int64) error

	// Close releases resources
	Close() error
}
