// Package cached wraps a repository.Engine with a read-through cache for
// lookups by id.
//
// Only Get is served from the cache. Filtered finds always go to the
// engine, since a cached id cannot say which filters it would match.
// Every mutation bumps a per-document generation counter and drops the
// cached copy after the engine confirms the write. A fill only lands if
// the counter it read before going to the engine is still current, so a
// Get that raced an update or delete cannot put the old record back.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/cache"
	"github.com/sakif/videotube/internal/repository"
)

const DefaultTTL = 10 * time.Minute

type Engine struct {
	next   repository.Engine
	cache  cache.Cache
	prefix string
	ttl    time.Duration
	logger logrus.FieldLogger
}

var _ repository.Engine = (*Engine)(nil)

// New wraps next. Cache failures are logged and otherwise ignored: the
// engine stays correct without the cache, just slower.
func New(next repository.Engine, c cache.Cache, prefix string, ttl time.Duration, logger logrus.FieldLogger) *Engine {
	if prefix == "" {
		prefix = "doc:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{
		next:   next,
		cache:  c,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// cachedRecord is the cache's on-the-wire form of a Record.
type cachedRecord struct {
	ID        string          `json:"id"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (e *Engine) key(collection, id string) string {
	return e.prefix + collection + ":" + id
}

func (e *Engine) versionKey(collection, id string) string {
	return e.key(collection, id) + ":v"
}

func (e *Engine) Insert(ctx context.Context, collection string, rec repository.Record) error {
	version, ok := e.version(ctx, collection, rec.ID)
	if err := e.next.Insert(ctx, collection, rec); err != nil {
		return err
	}
	if ok {
		e.fill(ctx, collection, &rec, version)
	}
	return nil
}

func (e *Engine) Get(ctx context.Context, collection, id string) (*repository.Record, error) {
	key := e.key(collection, id)

	data, err := e.cache.Get(ctx, key)
	if err == nil {
		var c cachedRecord
		if jerr := json.Unmarshal(data, &c); jerr == nil {
			return &repository.Record{
				ID:        c.ID,
				Body:      c.Body,
				CreatedAt: c.CreatedAt,
				UpdatedAt: c.UpdatedAt,
			}, nil
		}
		// Corrupt entry: drop it and fall through to the engine.
		e.invalidate(ctx, collection, id)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		e.logger.WithError(err).WithField("key", key).Warn("cache read failed")
	}

	version, ok := e.version(ctx, collection, id)
	rec, err := e.next.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if ok {
		e.fill(ctx, collection, rec, version)
	}
	return rec, nil
}

func (e *Engine) Find(ctx context.Context, collection string, filter repository.Filter, opts repository.ListOptions) ([]repository.Record, error) {
	return e.next.Find(ctx, collection, filter, opts)
}

func (e *Engine) Replace(ctx context.Context, collection string, rec repository.Record) error {
	err := e.next.Replace(ctx, collection, rec)
	e.bump(ctx, collection, rec.ID)
	e.invalidate(ctx, collection, rec.ID)
	return err
}

func (e *Engine) Delete(ctx context.Context, collection, id string) (bool, error) {
	deleted, err := e.next.Delete(ctx, collection, id)
	e.bump(ctx, collection, id)
	e.invalidate(ctx, collection, id)
	return deleted, err
}

// Ping reports the engine's health. A sick cache only degrades reads, so
// it is logged rather than returned.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.cache.Ping(ctx); err != nil {
		e.logger.WithError(err).Warn("cache ping failed")
	}
	return e.next.Ping(ctx)
}

func (e *Engine) Close() error {
	cerr := e.cache.Close()
	if err := e.next.Close(); err != nil {
		return err
	}
	return cerr
}

// version reads the generation counter for a document. ok is false when
// the cache cannot answer, in which case the caller must not fill.
func (e *Engine) version(ctx context.Context, collection, id string) (int64, bool) {
	v, err := e.cache.Version(ctx, e.versionKey(collection, id))
	if err != nil {
		e.logger.WithError(err).WithField("collection", collection).Warn("cache version read failed")
		return 0, false
	}
	return v, true
}

// fill caches rec unless a mutation has bumped its counter past version.
func (e *Engine) fill(ctx context.Context, collection string, rec *repository.Record, version int64) {
	data, err := json.Marshal(cachedRecord{
		ID:        rec.ID,
		Body:      rec.Body,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
	if err != nil {
		e.logger.WithError(err).WithField("collection", collection).Warn("cache encode failed")
		return
	}
	stored, err := e.cache.SetIfVersion(ctx, e.key(collection, rec.ID), e.versionKey(collection, rec.ID), version, data, e.ttl)
	if err != nil {
		e.logger.WithError(err).WithField("collection", collection).Warn("cache write failed")
		return
	}
	if !stored {
		e.logger.WithField("collection", collection).WithField("id", rec.ID).Debug("cache fill skipped after concurrent write")
	}
}

// bump outlives the cached entry it guards, so a fill that started before
// the mutation always sees the new counter.
func (e *Engine) bump(ctx context.Context, collection, id string) {
	if err := e.cache.Bump(ctx, e.versionKey(collection, id), 2*e.ttl); err != nil {
		e.logger.WithError(err).WithField("collection", collection).Warn("cache version bump failed")
	}
}

func (e *Engine) invalidate(ctx context.Context, collection, id string) {
	if err := e.cache.Delete(ctx, e.key(collection, id)); err != nil {
		e.logger.WithError(err).WithField("collection", collection).Warn("cache invalidate failed")
	}
}
