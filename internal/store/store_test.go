package store

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/model"
	"github.com/sakif/videotube/internal/objectid"
	"github.com/sakif/videotube/internal/repository/sqlite"
	"github.com/sakif/videotube/internal/schema"
)

const (
	ownerID   = "60d0fe4f5311236168a109ca"
	otherID   = "60d0fe4f5311236168a109cb"
	videoID   = "60d21b4667d0d8992e610c85"
	commentID = "60d21b4667d0d8992e610c86"
	tweetID   = "60d21b4667d0d8992e610c87"
)

// stepClock hands out strictly increasing times, one second apart.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.New(":memory:", schema.Collections(), schema.UniqueIndexes()...)
	require.NoError(t, err, "failed to create test db")

	clock := &stepClock{cur: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(db, quietLogger(), WithClock(clock.Now))
	t.Cleanup(func() { s.Close() })
	return s
}

func assertKind(t *testing.T, err error, want error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, want), "error = %v, want %v", err, want)
}

// --- create, per kind ---

func TestCreate_AllKinds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		create func() (model.Meta, error)
	}{
		{"like", func() (model.Meta, error) {
			l, err := s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.VideoTarget(videoID)}, LikedBy: ownerID})
			if err != nil {
				return model.Meta{}, err
			}
			return l.Meta, nil
		}},
		{"subscription", func() (model.Meta, error) {
			sub, err := s.Subscriptions.Create(ctx, model.Subscription{Subscriber: ownerID, Channel: otherID})
			if err != nil {
				return model.Meta{}, err
			}
			return sub.Meta, nil
		}},
		{"playlist", func() (model.Meta, error) {
			p, err := s.Playlists.Create(ctx, model.Playlist{
				Name: "Favorites", Description: "best of", Videos: []string{videoID}, Owner: ownerID,
			})
			if err != nil {
				return model.Meta{}, err
			}
			return p.Meta, nil
		}},
		{"tweet", func() (model.Meta, error) {
			tw, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi", Owner: ownerID})
			if err != nil {
				return model.Meta{}, err
			}
			return tw.Meta, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := tt.create()
			require.NoError(t, err)
			assert.True(t, objectid.IsValid(meta.ID), "id %q is not an ObjectId", meta.ID)
			assert.False(t, meta.CreatedAt.IsZero())
			assert.Equal(t, meta.CreatedAt, meta.UpdatedAt)
		})
	}
}

func TestCreate_TweetExample(t *testing.T) {
	s := newTestStore(t)

	tweet, err := s.Tweets.Create(context.Background(), model.Tweet{Content: "hi", Owner: ownerID})
	require.NoError(t, err)

	assert.Equal(t, "hi", tweet.Content)
	assert.Equal(t, ownerID, tweet.Owner)
	assert.NotEmpty(t, tweet.ID)
	assert.False(t, tweet.CreatedAt.IsZero())
	assert.False(t, tweet.UpdatedAt.IsZero())
}

func TestCreate_TweetWithoutOwner(t *testing.T) {
	s := newTestStore(t)

	tweet, err := s.Tweets.Create(context.Background(), model.Tweet{Content: "anonymous"})
	require.NoError(t, err)
	assert.Empty(t, tweet.Owner)
}

func TestCreate_IgnoresCallerMeta(t *testing.T) {
	s := newTestStore(t)
	stale := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	tweet, err := s.Tweets.Create(context.Background(), model.Tweet{
		Meta:    model.Meta{ID: ownerID, CreatedAt: stale, UpdatedAt: stale},
		Content: "hi",
	})
	require.NoError(t, err)
	assert.NotEqual(t, ownerID, tweet.ID)
	assert.NotEqual(t, stale, tweet.CreatedAt)
}

func TestCreate_PlaylistVideosDefaultToEmpty(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Playlists.Create(context.Background(), model.Playlist{Name: "Later", Description: "watch later"})
	require.NoError(t, err)
	assert.NotNil(t, p.Videos)
	assert.Empty(t, p.Videos)
	assert.Empty(t, p.Owner)
}

func TestCreate_MissingRequiredField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		collection string
		create     func() error
		wantField  string
	}{
		{"tweet without content", model.CollectionTweets, func() error {
			_, err := s.Tweets.Create(ctx, model.Tweet{Owner: ownerID})
			return err
		}, "content"},
		{"tweet with blank content", model.CollectionTweets, func() error {
			_, err := s.Tweets.Create(ctx, model.Tweet{Content: "   ", Owner: ownerID})
			return err
		}, "content"},
		{"playlist without name", model.CollectionPlaylists, func() error {
			_, err := s.Playlists.Create(ctx, model.Playlist{Description: "d"})
			return err
		}, "name"},
		{"playlist without description", model.CollectionPlaylists, func() error {
			_, err := s.Playlists.Create(ctx, model.Playlist{Name: "n"})
			return err
		}, "description"},
		{"subscription without subscriber", model.CollectionSubscriptions, func() error {
			_, err := s.Subscriptions.Create(ctx, model.Subscription{Channel: otherID})
			return err
		}, "subscriber"},
		{"subscription without channel", model.CollectionSubscriptions, func() error {
			_, err := s.Subscriptions.Create(ctx, model.Subscription{Subscriber: ownerID})
			return err
		}, "channel"},
		{"like without actor", model.CollectionLikes, func() error {
			_, err := s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.TweetTarget(tweetID)}})
			return err
		}, "likedBy"},
		{"like without target", model.CollectionLikes, func() error {
			_, err := s.Likes.Create(ctx, model.Like{LikedBy: ownerID})
			return err
		}, "video"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.create()
			assertKind(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}

	// Nothing was written by any of the failed creates.
	tweets, err := s.Tweets.Find(ctx, nil, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, tweets)
	playlists, err := s.Playlists.Find(ctx, nil, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, playlists)
	likes, err := s.Likes.Find(ctx, nil, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func TestCreate_MalformedReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi", Owner: "invalid_object_id"})
	assertKind(t, err, apperror.ErrCast)

	_, err = s.Playlists.Create(ctx, model.Playlist{
		Name: "n", Description: "d", Videos: []string{videoID, "invalid_object_id"},
	})
	assertKind(t, err, apperror.ErrCast)
	assert.Contains(t, err.Error(), `invalid video ID "invalid_object_id"`)

	_, err = s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.CommentTarget("nope")}, LikedBy: ownerID})
	assertKind(t, err, apperror.ErrCast)

	_, err = s.Tweets.Create(ctx, model.Tweet{Content: "hi", Owner: strings.ToUpper(ownerID)})
	assertKind(t, err, apperror.ErrCast)

	tweets, err := s.Tweets.Find(ctx, nil, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, tweets)
}

// --- findById ---

func TestFindByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi", Owner: ownerID})
	require.NoError(t, err)

	t.Run("known id returns stored fields", func(t *testing.T) {
		found, err := s.Tweets.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, *created, *found)
	})

	t.Run("unknown id returns nil", func(t *testing.T) {
		found, err := s.Tweets.FindByID(ctx, objectid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("malformed id is a cast error", func(t *testing.T) {
		_, err := s.Tweets.FindByID(ctx, "invalid_object_id")
		assertKind(t, err, apperror.ErrCast)
		assert.Equal(t, `invalid tweet ID "invalid_object_id"`, err.Error())
	})

	t.Run("uppercase id is a cast error", func(t *testing.T) {
		found, err := s.Tweets.FindByID(ctx, strings.ToUpper(created.ID))
		assertKind(t, err, apperror.ErrCast)
		assert.Nil(t, found)
	})
}

func TestFindByID_LikeRoundTripsTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.CommentTarget(commentID)}, LikedBy: ownerID})
	require.NoError(t, err)

	found, err := s.Likes.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []model.LikeTarget{model.CommentTarget(commentID)}, found.Targets)
	assert.Equal(t, ownerID, found.LikedBy)
}

// --- find / findOne ---

func TestCreate_LikeOnEveryKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	like, err := s.Likes.Create(ctx, model.Like{
		Targets: []model.LikeTarget{
			model.VideoTarget(videoID),
			model.CommentTarget(commentID),
			model.TweetTarget(tweetID),
		},
		LikedBy: ownerID,
	})
	require.NoError(t, err)

	found, err := s.Likes.FindByID(ctx, like.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, videoID, found.Target(model.TargetVideo))
	assert.Equal(t, commentID, found.Target(model.TargetComment))
	assert.Equal(t, tweetID, found.Target(model.TargetTweet))
	assert.Equal(t, ownerID, found.LikedBy)

	byComment, err := s.Likes.FindOne(ctx, Filter{"comment": commentID})
	require.NoError(t, err)
	require.NotNil(t, byComment)
	assert.Equal(t, like.ID, byComment.ID)
}

func TestCreate_UniqueTuplesConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.VideoTarget(videoID)}, LikedBy: ownerID})
	require.NoError(t, err)
	_, err = s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.VideoTarget(videoID)}, LikedBy: ownerID})
	assertKind(t, err, apperror.ErrConflict)

	_, err = s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.VideoTarget(videoID)}, LikedBy: otherID})
	require.NoError(t, err, "another user may like the same video")

	_, err = s.Subscriptions.Create(ctx, model.Subscription{Subscriber: ownerID, Channel: otherID})
	require.NoError(t, err)
	_, err = s.Subscriptions.Create(ctx, model.Subscription{Subscriber: ownerID, Channel: otherID})
	assertKind(t, err, apperror.ErrConflict)

	_, err = s.Users.Create(ctx, model.User{Username: "alice", Email: "alice@example.com", FullName: "Alice"})
	require.NoError(t, err)
	_, err = s.Users.Create(ctx, model.User{Username: "alice", Email: "other@example.com", FullName: "Alice"})
	assertKind(t, err, apperror.ErrConflict)
	_, err = s.Users.Create(ctx, model.User{Username: "alice2", Email: "alice@example.com", FullName: "Alice"})
	assertKind(t, err, apperror.ErrConflict)
}

func TestFind_FiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Tweets.Create(ctx, model.Tweet{Content: "one", Owner: ownerID})
	require.NoError(t, err)
	_, err = s.Tweets.Create(ctx, model.Tweet{Content: "two", Owner: otherID})
	require.NoError(t, err)
	third, err := s.Tweets.Create(ctx, model.Tweet{Content: "three", Owner: ownerID})
	require.NoError(t, err)

	got, err := s.Tweets.Find(ctx, Filter{"owner": ownerID}, ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, third.ID, got[1].ID)

	all, err := s.Tweets.Find(ctx, nil, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, third.ID, all[1].ID)

	one, err := s.Tweets.FindOne(ctx, Filter{"owner": ownerID})
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, first.ID, one.ID)

	none, err := s.Tweets.FindOne(ctx, Filter{"content": "missing"})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFind_RejectsBadFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	findTweets := func(f Filter) error {
		_, err := s.Tweets.Find(ctx, f, ListOptions{})
		return err
	}
	findPlaylists := func(f Filter) error {
		_, err := s.Playlists.Find(ctx, f, ListOptions{})
		return err
	}

	tests := []struct {
		name   string
		find   func(Filter) error
		filter Filter
		want   error
	}{
		{"unknown field", findTweets, Filter{"title": "x"}, apperror.ErrValidation},
		{"malformed reference", findTweets, Filter{"owner": "invalid_object_id"}, apperror.ErrCast},
		{"malformed _id", findTweets, Filter{"_id": "123"}, apperror.ErrCast},
		{"list field", findPlaylists, Filter{"videos": videoID}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertKind(t, tt.find(tt.filter), tt.want)
		})
	}
}

func TestFindOne_LikeByTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.VideoTarget(videoID)}, LikedBy: otherID})
	require.NoError(t, err)
	mine, err := s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.VideoTarget(videoID)}, LikedBy: ownerID})
	require.NoError(t, err)

	found, err := s.Likes.FindOne(ctx, Filter{"video": videoID, "likedBy": ownerID})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, mine.ID, found.ID)
}

// --- findByIdAndUpdate ---

func TestFindByIDAndUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Playlists.Create(ctx, model.Playlist{Name: "Mix", Description: "d", Owner: ownerID})
	require.NoError(t, err)

	updated, err := s.Playlists.FindByIDAndUpdate(ctx, created.ID, Patch{
		"name":   "Mix 2",
		"videos": []string{videoID},
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "Mix 2", updated.Name)
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, []string{videoID}, updated.Videos)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	found, err := s.Playlists.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *updated, *found)
}

func TestFindByIDAndUpdate_EmptyRequiredLeavesDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Playlists.Create(ctx, model.Playlist{Name: "Mix", Description: "d"})
	require.NoError(t, err)

	for _, patch := range []Patch{{"name": ""}, {"name": nil}, {"description": 42}} {
		_, err := s.Playlists.FindByIDAndUpdate(ctx, created.ID, patch)
		assertKind(t, err, apperror.ErrValidation)
	}

	found, err := s.Playlists.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *found)
}

func TestFindByIDAndUpdate_RejectsReservedAndUnknownKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi"})
	require.NoError(t, err)

	for _, key := range []string{"_id", "createdAt", "updatedAt", "title"} {
		_, err := s.Tweets.FindByIDAndUpdate(ctx, created.ID, Patch{key: "x"})
		assertKind(t, err, apperror.ErrValidation)
	}
}

func TestFindByIDAndUpdate_MalformedReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi", Owner: ownerID})
	require.NoError(t, err)

	_, err = s.Tweets.FindByIDAndUpdate(ctx, created.ID, Patch{"owner": "invalid_object_id"})
	assertKind(t, err, apperror.ErrCast)

	found, err := s.Tweets.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ownerID, found.Owner)
}

func TestFindByIDAndUpdate_NotFoundAndCast(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Tweets.FindByIDAndUpdate(ctx, objectid.New(), Patch{"content": "x"})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.Tweets.FindByIDAndUpdate(ctx, "bad", Patch{"content": "x"})
	assertKind(t, err, apperror.ErrCast)
}

func TestFindByIDAndUpdate_LikeTargets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	like, err := s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.VideoTarget(videoID)}, LikedBy: ownerID})
	require.NoError(t, err)

	updated, err := s.Likes.FindByIDAndUpdate(ctx, like.ID, Patch{"tweet": tweetID})
	require.NoError(t, err)
	assert.Equal(t, []model.LikeTarget{model.VideoTarget(videoID), model.TweetTarget(tweetID)}, updated.Targets)

	updated, err = s.Likes.FindByIDAndUpdate(ctx, like.ID, Patch{"video": nil})
	require.NoError(t, err)
	assert.Equal(t, []model.LikeTarget{model.TweetTarget(tweetID)}, updated.Targets)

	_, err = s.Likes.FindByIDAndUpdate(ctx, like.ID, Patch{"tweet": nil})
	assertKind(t, err, apperror.ErrValidation)

	stored, err := s.Likes.FindByID(ctx, like.ID)
	require.NoError(t, err)
	assert.Equal(t, tweetID, stored.Target(model.TargetTweet), "rejected patch must not write")
}

// --- delete ---

func TestFindByIDAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Subscriptions.Create(ctx, model.Subscription{Subscriber: ownerID, Channel: otherID})
	require.NoError(t, err)

	deleted, err := s.Subscriptions.FindByIDAndDelete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	found, err := s.Subscriptions.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	deleted, err = s.Subscriptions.FindByIDAndDelete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Subscriptions.FindByIDAndDelete(ctx, "invalid_object_id")
	assertKind(t, err, apperror.ErrCast)
}

func TestDeleteOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{model.TweetTarget(tweetID)}, LikedBy: ownerID})
	require.NoError(t, err)
	second, err := s.Likes.Create(ctx, model.Like{
		Targets: []model.LikeTarget{model.VideoTarget(videoID), model.TweetTarget(tweetID)},
		LikedBy: ownerID,
	})
	require.NoError(t, err)

	deleted, err := s.Likes.DeleteOne(ctx, Filter{"tweet": tweetID, "likedBy": ownerID})
	require.NoError(t, err)
	assert.True(t, deleted)

	gone, err := s.Likes.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, gone, "oldest match should be removed first")

	kept, err := s.Likes.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	deleted, err = s.Likes.DeleteOne(ctx, Filter{"comment": commentID})
	require.NoError(t, err)
	assert.False(t, deleted)
}

// --- save ---

func TestSave_NewDocumentBehavesLikeCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tweet := model.Tweet{Content: "draft"}
	require.NoError(t, s.Tweets.Save(ctx, &tweet))
	assert.True(t, objectid.IsValid(tweet.ID))
	assert.False(t, tweet.CreatedAt.IsZero())

	found, err := s.Tweets.FindByID(ctx, tweet.ID)
	require.NoError(t, err)
	assert.Equal(t, tweet, *found)
}

func TestSave_ReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tweet, err := s.Tweets.Create(ctx, model.Tweet{Content: "draft", Owner: ownerID})
	require.NoError(t, err)
	createdAt := tweet.CreatedAt

	tweet.Content = "final"
	tweet.Owner = ""
	require.NoError(t, s.Tweets.Save(ctx, tweet))

	assert.Equal(t, createdAt, tweet.CreatedAt)
	assert.True(t, tweet.UpdatedAt.After(createdAt))

	found, err := s.Tweets.FindByID(ctx, tweet.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", found.Content)
	assert.Empty(t, found.Owner, "save replaces the whole document")
}

func TestSave_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing := model.Tweet{Meta: model.Meta{ID: objectid.New()}, Content: "x"}
	assertKind(t, s.Tweets.Save(ctx, &missing), apperror.ErrNotFound)

	malformed := model.Tweet{Meta: model.Meta{ID: "abc"}, Content: "x"}
	assertKind(t, s.Tweets.Save(ctx, &malformed), apperror.ErrCast)

	tweet, err := s.Tweets.Create(ctx, model.Tweet{Content: "x"})
	require.NoError(t, err)
	tweet.Content = ""
	assertKind(t, s.Tweets.Save(ctx, tweet), apperror.ErrValidation)

	found, err := s.Tweets.FindByID(ctx, tweet.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", found.Content)
}

// --- populate ---

func TestPopulate_SingleReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.Users.Create(ctx, model.User{
		Username: "alice", Email: "alice@example.com", FullName: "Alice", Password: "$2a$10$hash",
	})
	require.NoError(t, err)
	tweet, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi", Owner: user.ID})
	require.NoError(t, err)

	got, err := s.Tweets.Populate(ctx, *tweet, "owner")
	require.NoError(t, err)

	owner, ok := got["owner"].(map[string]any)
	require.True(t, ok, "owner = %#v", got["owner"])
	assert.Equal(t, user.ID, owner["_id"])
	assert.Equal(t, "alice", owner["username"])
	assert.NotContains(t, owner, "password")
	assert.Equal(t, "hi", got["content"])
}

func TestPopulate_DanglingAndAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dangling, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi", Owner: ownerID})
	require.NoError(t, err)
	got, err := s.Tweets.Populate(ctx, *dangling, "owner")
	require.NoError(t, err)
	assert.Contains(t, got, "owner")
	assert.Nil(t, got["owner"])

	orphan, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi"})
	require.NoError(t, err)
	got, err = s.Tweets.Populate(ctx, *orphan, "owner")
	require.NoError(t, err)
	assert.NotContains(t, got, "owner")
}

func TestPopulate_ReferenceList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	video, err := s.Videos.Create(ctx, model.Video{Title: "Intro", VideoFile: "intro.mp4", Owner: ownerID})
	require.NoError(t, err)
	playlist, err := s.Playlists.Create(ctx, model.Playlist{
		Name: "Mix", Description: "d", Videos: []string{video.ID, videoID},
	})
	require.NoError(t, err)

	got, err := s.Playlists.Populate(ctx, *playlist, "videos")
	require.NoError(t, err)

	videos, ok := got["videos"].([]any)
	require.True(t, ok)
	require.Len(t, videos, 1, "dangling entries are dropped")
	assert.Equal(t, "Intro", videos[0].(map[string]any)["title"])
}

func TestPopulate_NonReferenceField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tweet, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi"})
	require.NoError(t, err)

	for _, field := range []string{"content", "nope"} {
		_, err := s.Tweets.Populate(ctx, *tweet, field)
		assertKind(t, err, apperror.ErrValidation)
	}
}

// --- engine failures ---

func TestClosedEngineIsUnavailable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Close())

	_, err := s.Tweets.Create(ctx, model.Tweet{Content: "hi"})
	assertKind(t, err, apperror.ErrUnavailable)

	_, err = s.Tweets.FindByID(ctx, objectid.New())
	assertKind(t, err, apperror.ErrUnavailable)
}
