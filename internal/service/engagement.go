package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/model"
	"github.com/sakif/videotube/internal/store"
)

// EngagementService implements like and subscribe buttons: each call flips
// the current state for the acting user.
type EngagementService struct {
	store  *store.Store
	logger logrus.FieldLogger
}

func NewEngagementService(s *store.Store, logger logrus.FieldLogger) *EngagementService {
	return &EngagementService{
		store:  s,
		logger: logger.WithField("service", "engagement"),
	}
}

// ToggleLike removes userID's like on target if there is one and creates
// it otherwise. It returns true when the target is liked afterwards.
// The target document must exist.
func (s *EngagementService) ToggleLike(ctx context.Context, userID string, target model.LikeTarget) (bool, error) {
	if !target.Kind.Valid() {
		return false, apperror.ValidationFailed("kind",
			fmt.Sprintf("cannot like a %q; expected video, comment or tweet", target.Kind))
	}
	if err := s.targetExists(ctx, target); err != nil {
		return false, err
	}

	filter := store.Filter{string(target.Kind): target.ID, "likedBy": userID}
	removed, err := s.store.Likes.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"userID": userID,
		"kind":   target.Kind,
		"target": target.ID,
	})
	if removed {
		log.Info("like removed")
		return false, nil
	}

	_, err = s.store.Likes.Create(ctx, model.Like{Targets: []model.LikeTarget{target}, LikedBy: userID})
	if errors.Is(err, apperror.ErrConflict) {
		// A concurrent toggle created the same like first.
		log.Debug("like already present")
		return true, nil
	}
	if err != nil {
		return false, err
	}
	log.Info("like added")
	return true, nil
}

// ToggleSubscription flips subscriberID's subscription to channelID and
// returns true when subscribed afterwards.
func (s *EngagementService) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error) {
	if subscriberID == channelID {
		return false, apperror.ValidationFailed("channel", "cannot subscribe to your own channel")
	}

	channel, err := s.store.Users.FindByID(ctx, channelID)
	if err != nil {
		return false, err
	}
	if channel == nil {
		return false, apperror.NotFound("channel", channelID)
	}

	filter := store.Filter{"subscriber": subscriberID, "channel": channelID}
	removed, err := s.store.Subscriptions.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"subscriber": subscriberID,
		"channel":    channelID,
	})
	if removed {
		log.Info("unsubscribed")
		return false, nil
	}

	sub := model.Subscription{Subscriber: subscriberID, Channel: channelID}
	_, err = s.store.Subscriptions.Create(ctx, sub)
	if errors.Is(err, apperror.ErrConflict) {
		log.Debug("subscription already present")
		return true, nil
	}
	if err != nil {
		return false, err
	}
	log.Info("subscribed")
	return true, nil
}

func (s *EngagementService) targetExists(ctx context.Context, target model.LikeTarget) error {
	var (
		found bool
		err   error
	)
	switch target.Kind {
	case model.TargetVideo:
		var v *model.Video
		v, err = s.store.Videos.FindByID(ctx, target.ID)
		found = v != nil
	case model.TargetComment:
		var c *model.Comment
		c, err = s.store.Comments.FindByID(ctx, target.ID)
		found = c != nil
	case model.TargetTweet:
		var t *model.Tweet
		t, err = s.store.Tweets.FindByID(ctx, target.ID)
		found = t != nil
	}
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFound(string(target.Kind), target.ID)
	}
	return nil
}
