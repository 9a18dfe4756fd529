// Command seeder fills a videotube database with fake users, videos,
// comments, tweets, playlists, likes and subscriptions.
//
//	go run ./cmd/seeder -users 50 -videos 200
//
// It writes through the same store and services as the server, so every
// seeded document passes the normal validation. All seeded users share
// the password "password123".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/go-faker/faker/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/auth"
	"github.com/sakif/videotube/internal/config"
	"github.com/sakif/videotube/internal/model"
	"github.com/sakif/videotube/internal/repository/sqlite"
	"github.com/sakif/videotube/internal/schema"
	"github.com/sakif/videotube/internal/service"
	"github.com/sakif/videotube/internal/store"
	"github.com/sakif/videotube/pkg/logger"
)

const seedPassword = "password123"

// Tokens minted while registering seed users are thrown away, so the
// seeder signs them with its own key.
const seederSecret = "videotube-seeder-discarded-tokens"

type counts struct {
	users, videos, comments, tweets, playlists, likes, subscriptions int
}

func main() {
	var n counts
	flag.IntVar(&n.users, "users", 20, "number of users")
	flag.IntVar(&n.videos, "videos", 100, "number of videos")
	flag.IntVar(&n.comments, "comments", 300, "number of comments")
	flag.IntVar(&n.tweets, "tweets", 100, "number of tweets")
	flag.IntVar(&n.playlists, "playlists", 30, "number of playlists")
	flag.IntVar(&n.likes, "likes", 500, "number of like toggles")
	flag.IntVar(&n.subscriptions, "subscriptions", 60, "number of subscription toggles")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log, err := logger.New(cfg.App.LogLevel, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("invalid LOG_LEVEL")
	}

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			log.WithError(err).Fatal("failed to create database directory")
		}
	}
	db, err := sqlite.New(cfg.Database.Path, schema.Collections(), schema.UniqueIndexes()...)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}

	// Per-document logs would drown the summary.
	quiet := logrus.New()
	quiet.SetOutput(log.Out)
	quiet.SetFormatter(log.Formatter)
	quiet.SetLevel(logrus.WarnLevel)

	st := store.New(db, quiet)
	defer st.Close()

	if err := seed(context.Background(), st, n, quiet); err != nil {
		log.WithError(err).Fatal("seeding failed")
	}
	log.WithFields(logrus.Fields{
		"database": cfg.Database.Path,
		"users":    n.users,
		"videos":   n.videos,
	}).Info("seeding complete")
}

func seed(ctx context.Context, st *store.Store, n counts, log logrus.FieldLogger) error {
	tokens, err := auth.NewTokenService(seederSecret, 0)
	if err != nil {
		return err
	}
	authSvc := service.NewAuthService(st.Users, tokens, auth.NewPasswordServiceWithCost(bcrypt.DefaultCost), log)
	engagement := service.NewEngagementService(st, log)

	users := make([]string, 0, n.users)
	for len(users) < n.users {
		res, err := authSvc.Register(ctx, service.RegisterInput{
			Username: faker.Username(),
			Email:    faker.Email(),
			FullName: faker.Name(),
			Avatar:   faker.URL(),
			Password: seedPassword,
		})
		if errors.Is(err, apperror.ErrConflict) {
			continue // faker repeated a name; draw again
		}
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		users = append(users, res.User.ID)
	}
	if len(users) == 0 {
		return nil
	}
	pick := func(ids []string) string { return ids[rand.IntN(len(ids))] }

	videos := make([]string, 0, n.videos)
	for range n.videos {
		v, err := st.Videos.Create(ctx, model.Video{
			Title:       faker.Sentence(),
			Description: faker.Paragraph(),
			VideoFile:   "https://cdn.example.com/videos/" + faker.UUIDDigit() + ".mp4",
			Thumbnail:   "https://cdn.example.com/thumbs/" + faker.UUIDDigit() + ".jpg",
			Duration:    float64(30 + rand.IntN(3600)),
			Views:       rand.Int64N(100000),
			IsPublished: rand.IntN(10) > 0,
			Owner:       pick(users),
		})
		if err != nil {
			return fmt.Errorf("creating video: %w", err)
		}
		videos = append(videos, v.ID)
	}

	comments := make([]string, 0, n.comments)
	tweets := make([]string, 0, n.tweets)
	if len(videos) > 0 {
		for range n.comments {
			c, err := st.Comments.Create(ctx, model.Comment{
				Content: faker.Sentence(),
				Video:   pick(videos),
				Owner:   pick(users),
			})
			if err != nil {
				return fmt.Errorf("creating comment: %w", err)
			}
			comments = append(comments, c.ID)
		}
	}

	for range n.tweets {
		t, err := st.Tweets.Create(ctx, model.Tweet{Content: faker.Sentence(), Owner: pick(users)})
		if err != nil {
			return fmt.Errorf("creating tweet: %w", err)
		}
		tweets = append(tweets, t.ID)
	}

	for range n.playlists {
		var list []string
		if len(videos) > 0 {
			for range rand.IntN(10) {
				list = append(list, pick(videos))
			}
		}
		_, err := st.Playlists.Create(ctx, model.Playlist{
			Name:        faker.Word() + " " + faker.Word(),
			Description: faker.Sentence(),
			Videos:      list,
			Owner:       pick(users),
		})
		if err != nil {
			return fmt.Errorf("creating playlist: %w", err)
		}
	}

	targets := func() (model.LikeTarget, bool) {
		switch rand.IntN(3) {
		case 0:
			if len(videos) > 0 {
				return model.VideoTarget(pick(videos)), true
			}
		case 1:
			if len(comments) > 0 {
				return model.CommentTarget(pick(comments)), true
			}
		case 2:
			if len(tweets) > 0 {
				return model.TweetTarget(pick(tweets)), true
			}
		}
		return model.LikeTarget{}, false
	}
	for range n.likes {
		target, ok := targets()
		if !ok {
			continue
		}
		if _, err := engagement.ToggleLike(ctx, pick(users), target); err != nil {
			return fmt.Errorf("toggling like: %w", err)
		}
	}

	if len(users) > 1 {
		for range n.subscriptions {
			subscriber, channel := pick(users), pick(users)
			if subscriber == channel {
				continue
			}
			if _, err := engagement.ToggleSubscription(ctx, subscriber, channel); err != nil {
				return fmt.Errorf("toggling subscription: %w", err)
			}
		}
	}

	return nil
}
