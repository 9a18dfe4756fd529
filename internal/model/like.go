package model

import (
	"encoding/json"
	"fmt"
)

// TargetKind says what a Like points at.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
	TargetTweet   TargetKind = "tweet"
)

// Valid reports whether k is one of the three likeable kinds.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetVideo, TargetComment, TargetTweet:
		return true
	}
	return false
}

// LikeTarget is one branch of a Like: the kind of document liked and its
// id.
type LikeTarget struct {
	Kind TargetKind
	ID   string
}

func VideoTarget(id string) LikeTarget   { return LikeTarget{Kind: TargetVideo, ID: id} }
func CommentTarget(id string) LikeTarget { return LikeTarget{Kind: TargetComment, ID: id} }
func TweetTarget(id string) LikeTarget   { return LikeTarget{Kind: TargetTweet, ID: id} }

// Like records that an actor liked at least one video, comment or tweet.
// Targets holds at most one entry per kind.
//
// On the wire each target is flattened to the key of its kind:
//
//	{"video": "60d2...", "tweet": "60d2...", "likedBy": "60d2..."}
//
// which keeps documents filterable by field ("video" = id) like any other.
type Like struct {
	Meta
	Targets []LikeTarget `json:"-"`
	LikedBy string       `json:"likedBy"`
}

// Target returns the id liked for kind, or "" if the like has none.
func (l Like) Target(kind TargetKind) string {
	for _, t := range l.Targets {
		if t.Kind == kind {
			return t.ID
		}
	}
	return ""
}

type likeWire struct {
	Meta
	Video   string `json:"video,omitempty"`
	Comment string `json:"comment,omitempty"`
	Tweet   string `json:"tweet,omitempty"`
	LikedBy string `json:"likedBy"`
}

func (l Like) MarshalJSON() ([]byte, error) {
	w := likeWire{Meta: l.Meta, LikedBy: l.LikedBy}
	for _, t := range l.Targets {
		var slot *string
		switch t.Kind {
		case TargetVideo:
			slot = &w.Video
		case TargetComment:
			slot = &w.Comment
		case TargetTweet:
			slot = &w.Tweet
		default:
			return nil, fmt.Errorf("model: unknown like target kind %q", t.Kind)
		}
		if *slot != "" {
			return nil, fmt.Errorf("model: like has more than one %s target", t.Kind)
		}
		*slot = t.ID
	}
	return json.Marshal(w)
}

// UnmarshalJSON collects the target keys in video, comment, tweet order.
func (l *Like) UnmarshalJSON(data []byte) error {
	var w likeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var targets []LikeTarget
	if w.Video != "" {
		targets = append(targets, VideoTarget(w.Video))
	}
	if w.Comment != "" {
		targets = append(targets, CommentTarget(w.Comment))
	}
	if w.Tweet != "" {
		targets = append(targets, TweetTarget(w.Tweet))
	}

	*l = Like{Meta: w.Meta, Targets: targets, LikedBy: w.LikedBy}
	return nil
}
