// Package store is the document store facade: one Collection per entity
// kind, each offering the same operations (create, find, update, delete,
// save, populate) over a repository.Engine.
//
// A Collection owns everything the engine does not: schema validation,
// identifier generation, timestamps and error classification. Validation
// and identifier checks run before any engine call, so a rejected
// operation never writes.
//
// Lookups report "not found" as data: FindByID, FindOne and
// FindByIDAndUpdate return (nil, nil), and the delete operations return
// false.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/objectid"
	"github.com/sakif/videotube/internal/repository"
	"github.com/sakif/videotube/internal/schema"
)

// Filter matches documents whose top-level fields equal the given values.
type Filter = repository.Filter

// ListOptions paginates Find.
type ListOptions = repository.ListOptions

// Patch maps field names to new values for FindByIDAndUpdate. A nil value
// clears the field.
type Patch map[string]any

// Populated is a document in field-map form with one reference expanded.
type Populated map[string]any

// Collection is the facade for one entity kind T. T must round-trip through
// encoding/json using the field names declared in the collection's schema.
type Collection[T any] struct {
	schema *schema.Schema
	engine repository.Engine
	logger logrus.FieldLogger
	now    func() time.Time
}

func newCollection[T any](s *schema.Schema, engine repository.Engine, logger logrus.FieldLogger, now func() time.Time) *Collection[T] {
	return &Collection[T]{
		schema: s,
		engine: engine,
		logger: logger.WithField("collection", s.Collection),
		now:    now,
	}
}

// Schema returns the collection's schema.
func (c *Collection[T]) Schema() *schema.Schema {
	return c.schema
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.schema.Collection
}

// Create validates doc, assigns a fresh id and timestamps, and persists it.
// Any _id or timestamps already on doc are discarded.
func (c *Collection[T]) Create(ctx context.Context, doc T) (*T, error) {
	fields, err := toFields(doc)
	if err != nil {
		return nil, err
	}
	stripReserved(fields)

	if err := c.schema.Validate(fields); err != nil {
		return nil, err
	}
	c.schema.ApplyDefaults(fields)

	now := c.now()
	id := objectid.New()
	fields[schema.KeyID] = id
	fields[schema.KeyCreatedAt] = now
	fields[schema.KeyUpdatedAt] = now

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("store: encoding %s: %w", c.Name(), err)
	}

	err = c.engine.Insert(ctx, c.Name(), repository.Record{
		ID:        id,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		c.logger.WithError(err).Error("failed to insert document")
		return nil, apperror.Classify("inserting "+c.Name(), err)
	}

	c.logger.WithField("id", id).Info("document created")
	return c.decode(body)
}

// FindByID returns the document with the given id, or nil if there is none.
// A malformed id is a CastError.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	if err := c.checkID(id); err != nil {
		return nil, err
	}

	rec, err := c.engine.Get(ctx, c.Name(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, apperror.Classify("finding "+c.Name(), err)
	}
	return c.decode(rec.Body)
}

// FindOne returns the oldest document matching filter, or nil.
func (c *Collection[T]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	rec, err := c.findOneRecord(ctx, filter)
	if err != nil || rec == nil {
		return nil, err
	}
	return c.decode(rec.Body)
}

// Find returns every document matching filter, oldest first, paginated by
// opts.
func (c *Collection[T]) Find(ctx context.Context, filter Filter, opts ListOptions) ([]T, error) {
	if err := c.checkFilter(filter); err != nil {
		return nil, err
	}

	recs, err := c.engine.Find(ctx, c.Name(), filter, opts)
	if err != nil {
		return nil, apperror.Classify("finding "+c.Name(), err)
	}

	docs := make([]T, 0, len(recs))
	for _, rec := range recs {
		doc, err := c.decode(rec.Body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// FindByIDAndUpdate merges patch over the stored document, re-validates the
// result with the create rules and stores it. It returns the updated
// document, or nil if no document has the id. A rejected patch leaves the
// stored document untouched.
func (c *Collection[T]) FindByIDAndUpdate(ctx context.Context, id string, patch Patch) (*T, error) {
	if err := c.checkID(id); err != nil {
		return nil, err
	}
	if err := c.checkPatch(patch); err != nil {
		return nil, err
	}
	normalized, err := normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	rec, err := c.engine.Get(ctx, c.Name(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, apperror.Classify("finding "+c.Name(), err)
	}
	if len(normalized) == 0 {
		return c.decode(rec.Body)
	}

	var fields map[string]any
	if err := json.Unmarshal(rec.Body, &fields); err != nil {
		return nil, apperror.Unavailable("decoding "+c.Name(), err)
	}
	for k, v := range normalized {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	if err := c.schema.Validate(fields); err != nil {
		return nil, err
	}
	c.schema.ApplyDefaults(fields)

	body, err := c.replace(ctx, id, rec.CreatedAt, fields)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Deleted between the read and the write.
			return nil, nil
		}
		return nil, err
	}

	c.logger.WithField("id", id).Info("document updated")
	return c.decode(body)
}

// FindByIDAndDelete removes the document with the given id and reports
// whether it existed. Deleting an absent id is not an error.
func (c *Collection[T]) FindByIDAndDelete(ctx context.Context, id string) (bool, error) {
	if err := c.checkID(id); err != nil {
		return false, err
	}
	return c.delete(ctx, id)
}

// DeleteOne removes the oldest document matching filter and reports whether
// anything was removed.
func (c *Collection[T]) DeleteOne(ctx context.Context, filter Filter) (bool, error) {
	rec, err := c.findOneRecord(ctx, filter)
	if err != nil || rec == nil {
		return false, err
	}
	return c.delete(ctx, rec.ID)
}

// Save persists doc in place. Without an id it behaves like Create and
// fills in the id and timestamps. With an id it replaces the stored
// document wholesale, keeping createdAt and refreshing updatedAt; saving
// an id that no longer exists is a NotFound error.
func (c *Collection[T]) Save(ctx context.Context, doc *T) error {
	fields, err := toFields(*doc)
	if err != nil {
		return err
	}

	id, _ := fields[schema.KeyID].(string)
	if id == "" {
		created, err := c.Create(ctx, *doc)
		if err != nil {
			return err
		}
		*doc = *created
		return nil
	}

	if err := c.checkID(id); err != nil {
		return err
	}
	stripReserved(fields)
	if err := c.schema.Validate(fields); err != nil {
		return err
	}
	c.schema.ApplyDefaults(fields)

	rec, err := c.engine.Get(ctx, c.Name(), id)
	if err != nil {
		return apperror.Classify("finding "+c.Name(), err)
	}

	body, err := c.replace(ctx, id, rec.CreatedAt, fields)
	if err != nil {
		return err
	}

	saved, err := c.decode(body)
	if err != nil {
		return err
	}
	*doc = *saved
	c.logger.WithField("id", id).Info("document saved")
	return nil
}

// Populate returns doc as a field map in which field holds the full
// referenced document(s). Hidden fields are removed from both. An empty
// reference is left as is, a dangling single reference becomes null and
// dangling list elements are dropped.
func (c *Collection[T]) Populate(ctx context.Context, doc T, field string) (Populated, error) {
	f, ok := c.schema.Field(field)
	if !ok || !f.IsRef() {
		return nil, apperror.ValidationFailed(field,
			fmt.Sprintf("cannot populate %s: not a reference field of %s", field, c.Name()))
	}

	fields, err := toFields(doc)
	if err != nil {
		return nil, err
	}
	c.schema.Redact(fields)

	switch v := fields[field].(type) {
	case nil:
		return fields, nil

	case string:
		if v == "" {
			return fields, nil
		}
		ref, err := c.resolve(ctx, f, v)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			fields[field] = nil
		} else {
			fields[field] = ref
		}

	case []any:
		resolved := make([]any, 0, len(v))
		for _, item := range v {
			id, _ := item.(string)
			ref, err := c.resolve(ctx, f, id)
			if err != nil {
				return nil, err
			}
			if ref != nil {
				resolved = append(resolved, ref)
			}
		}
		fields[field] = resolved

	default:
		return nil, apperror.ValidationFailed(field, fmt.Sprintf("%s is not a reference", field))
	}

	return Populated(fields), nil
}

// resolve loads the document id refers to. A missing document is (nil, nil).
func (c *Collection[T]) resolve(ctx context.Context, f schema.Field, id string) (map[string]any, error) {
	if !objectid.IsValid(id) {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		return nil, apperror.Cast(f.Name, label, id)
	}

	rec, err := c.engine.Get(ctx, f.Ref, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, apperror.Classify("populating "+f.Name, err)
	}

	var ref map[string]any
	if err := json.Unmarshal(rec.Body, &ref); err != nil {
		return nil, apperror.Unavailable("decoding "+f.Ref, err)
	}
	if target, ok := schema.Lookup(f.Ref); ok {
		target.Redact(ref)
	}
	return ref, nil
}

func (c *Collection[T]) findOneRecord(ctx context.Context, filter Filter) (*repository.Record, error) {
	if err := c.checkFilter(filter); err != nil {
		return nil, err
	}

	recs, err := c.engine.Find(ctx, c.Name(), filter, ListOptions{Limit: 1})
	if err != nil {
		return nil, apperror.Classify("finding "+c.Name(), err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (c *Collection[T]) delete(ctx context.Context, id string) (bool, error) {
	deleted, err := c.engine.Delete(ctx, c.Name(), id)
	if err != nil {
		c.logger.WithError(err).WithField("id", id).Error("failed to delete document")
		return false, apperror.Classify("deleting "+c.Name(), err)
	}
	if deleted {
		c.logger.WithField("id", id).Info("document deleted")
	}
	return deleted, nil
}

// replace stamps fields with the store-owned keys and overwrites the
// stored document, returning the new body.
func (c *Collection[T]) replace(ctx context.Context, id string, createdAt time.Time, fields map[string]any) ([]byte, error) {
	now := c.now()
	fields[schema.KeyID] = id
	fields[schema.KeyCreatedAt] = createdAt.UTC()
	fields[schema.KeyUpdatedAt] = now

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("store: encoding %s: %w", c.Name(), err)
	}

	err = c.engine.Replace(ctx, c.Name(), repository.Record{
		ID:        id,
		Body:      body,
		CreatedAt: createdAt,
		UpdatedAt: now,
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			c.logger.WithError(err).WithField("id", id).Error("failed to replace document")
		}
		return nil, apperror.Classify("updating "+c.Name(), err)
	}
	return body, nil
}

func (c *Collection[T]) checkID(id string) error {
	if !objectid.IsValid(id) {
		return apperror.Cast(schema.KeyID, strings.TrimSuffix(c.Name(), "s"), id)
	}
	return nil
}

func (c *Collection[T]) checkFilter(filter Filter) error {
	for k, v := range filter {
		if err := c.schema.CheckFilterValue(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection[T]) checkPatch(patch Patch) error {
	for k := range patch {
		if schema.IsReserved(k) {
			return apperror.ValidationFailed(k, fmt.Sprintf("%s is managed by the store", k))
		}
	}
	return c.schema.CheckUnknown(patch)
}

func (c *Collection[T]) decode(body []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperror.Unavailable("decoding "+c.Name(), err)
	}
	return &doc, nil
}

// toFields converts a typed document to its JSON field map.
func toFields(doc any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperror.ValidationFailed("", fmt.Sprintf("invalid document: %v", err))
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, apperror.ValidationFailed("", fmt.Sprintf("invalid document: %v", err))
	}
	return fields, nil
}

// normalizePatch pushes patch values through encoding/json so they have
// the same dynamic types as decoded documents ([]string becomes []any,
// ints become float64).
func normalizePatch(patch Patch) (map[string]any, error) {
	if len(patch) == 0 {
		return nil, nil
	}
	return toFields(map[string]any(patch))
}

func stripReserved(fields map[string]any) {
	delete(fields, schema.KeyID)
	delete(fields, schema.KeyCreatedAt)
	delete(fields, schema.KeyUpdatedAt)
}
