// Package model defines the documents the store persists.
//
// Every document embeds Meta. The store owns Meta: whatever a caller puts
// there before Create is discarded and replaced.
package model

import "time"

type Meta struct {
	ID        string    `json:"_id,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Collection names. These double as SQLite table names and as the
// targets of reference fields.
const (
	CollectionLikes         = "likes"
	CollectionSubscriptions = "subscriptions"
	CollectionPlaylists     = "playlists"
	CollectionTweets        = "tweets"
	CollectionUsers         = "users"
	CollectionVideos        = "videos"
	CollectionComments      = "comments"
)
