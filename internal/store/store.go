package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/model"
	"github.com/sakif/videotube/internal/repository"
	"github.com/sakif/videotube/internal/schema"
)

// Store is the client handle: one Collection per entity kind, all sharing a
// single engine.
type Store struct {
	engine repository.Engine

	Likes         *Collection[model.Like]
	Subscriptions *Collection[model.Subscription]
	Playlists     *Collection[model.Playlist]
	Tweets        *Collection[model.Tweet]
	Users         *Collection[model.User]
	Videos        *Collection[model.Video]
	Comments      *Collection[model.Comment]
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a Store over engine. The engine must already have a table for
// every collection in schema.Collections().
func New(engine repository.Engine, logger logrus.FieldLogger, opts ...Option) *Store {
	o := options{now: defaultClock}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.WithField("component", "store")
	return &Store{
		engine:        engine,
		Likes:         newCollection[model.Like](schema.Like, engine, logger, o.now),
		Subscriptions: newCollection[model.Subscription](schema.Subscription, engine, logger, o.now),
		Playlists:     newCollection[model.Playlist](schema.Playlist, engine, logger, o.now),
		Tweets:        newCollection[model.Tweet](schema.Tweet, engine, logger, o.now),
		Users:         newCollection[model.User](schema.User, engine, logger, o.now),
		Videos:        newCollection[model.Video](schema.Video, engine, logger, o.now),
		Comments:      newCollection[model.Comment](schema.Comment, engine, logger, o.now),
	}
}

// Ping reports whether the engine is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.engine.Ping(ctx)
}

func (s *Store) Close() error {
	return s.engine.Close()
}

// Timestamps are kept at millisecond precision in UTC so a document reads
// back exactly as it was returned from a write.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
