// Package repository defines the contract between the document store facade
// and whatever engine actually holds the bytes.
//
// An Engine knows nothing about schemas or entity types: it stores opaque
// JSON bodies keyed by collection and id, and can match top-level fields by
// equality. Validation, identifier generation and timestamps all happen
// above it, in internal/store.
package repository

import (
	"context"
	"time"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps the options to the supported range.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Filter is a conjunction of equality conditions on top-level document
// fields. The key "_id" matches the record id. Values are strings, bools or
// numbers.
type Filter map[string]any

// Record is one stored document.
type Record struct {
	ID        string
	Body      []byte // JSON object, including _id and timestamps
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UniqueIndex forbids two records in Collection from sharing the same
// values for Fields. An absent field counts as "" so single-target likes
// still collide. Violations surface as apperror.ErrConflict.
type UniqueIndex struct {
	Collection string
	Fields     []string
}

type Engine interface {
	// Insert stores a new record. A duplicate id is apperror.ErrConflict.
	Insert(ctx context.Context, collection string, rec Record) error
	// Get returns apperror.ErrNotFound when no record has the id.
	Get(ctx context.Context, collection, id string) (*Record, error)
	// Find returns matches in creation order.
	Find(ctx context.Context, collection string, filter Filter, opts ListOptions) ([]Record, error)
	// Replace overwrites body and UpdatedAt of an existing record;
	// apperror.ErrNotFound if it does not exist. CreatedAt is never changed.
	// A body that collides on a unique index is apperror.ErrConflict.
	Replace(ctx context.Context, collection string, rec Record) error
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, collection, id string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
