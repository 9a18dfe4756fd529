package schema

import (
	"github.com/sakif/videotube/internal/model"
	"github.com/sakif/videotube/internal/repository"
)

// Like: at least one of video/comment/tweet plus the actor.
var Like = &Schema{
	Collection: model.CollectionLikes,
	Fields: []Field{
		{Name: "video", Type: Ref, Ref: model.CollectionVideos},
		{Name: "comment", Type: Ref, Ref: model.CollectionComments},
		{Name: "tweet", Type: Ref, Ref: model.CollectionTweets},
		{Name: "likedBy", Type: Ref, Required: true, Ref: model.CollectionUsers, Label: "user"},
	},
	AnyOf:  [][]string{{"video", "comment", "tweet"}},
	Unique: [][]string{{"video", "comment", "tweet", "likedBy"}},
}

var Subscription = &Schema{
	Collection: model.CollectionSubscriptions,
	Fields: []Field{
		{Name: "subscriber", Type: Ref, Required: true, Ref: model.CollectionUsers},
		{Name: "channel", Type: Ref, Required: true, Ref: model.CollectionUsers},
	},
	Unique: [][]string{{"subscriber", "channel"}},
}

var Playlist = &Schema{
	Collection: model.CollectionPlaylists,
	Fields: []Field{
		{Name: "name", Type: String, Required: true},
		{Name: "description", Type: String, Required: true},
		{Name: "videos", Type: RefList, Ref: model.CollectionVideos, Label: "video"},
		{Name: "owner", Type: Ref, Ref: model.CollectionUsers},
	},
}

// Tweet owner is optional; see DESIGN.md for the decision.
var Tweet = &Schema{
	Collection: model.CollectionTweets,
	Fields: []Field{
		{Name: "content", Type: String, Required: true},
		{Name: "owner", Type: Ref, Ref: model.CollectionUsers},
	},
}

var User = &Schema{
	Collection: model.CollectionUsers,
	Fields: []Field{
		{Name: "username", Type: String, Required: true},
		{Name: "email", Type: String, Required: true},
		{Name: "fullName", Type: String, Required: true},
		{Name: "avatar", Type: String},
		{Name: "password", Type: String, Hidden: true},
	},
	Unique: [][]string{{"username"}, {"email"}},
}

var Video = &Schema{
	Collection: model.CollectionVideos,
	Fields: []Field{
		{Name: "title", Type: String, Required: true},
		{Name: "description", Type: String},
		{Name: "videoFile", Type: String, Required: true},
		{Name: "thumbnail", Type: String},
		{Name: "duration", Type: Number},
		{Name: "views", Type: Number},
		{Name: "isPublished", Type: Bool},
		{Name: "owner", Type: Ref, Required: true, Ref: model.CollectionUsers},
	},
}

var Comment = &Schema{
	Collection: model.CollectionComments,
	Fields: []Field{
		{Name: "content", Type: String, Required: true},
		{Name: "video", Type: Ref, Required: true, Ref: model.CollectionVideos},
		{Name: "owner", Type: Ref, Required: true, Ref: model.CollectionUsers},
	},
}

// All lists every schema, in the order tables are created.
var All = []*Schema{User, Video, Comment, Tweet, Playlist, Like, Subscription}

// Collections returns the collection names of All.
func Collections() []string {
	names := make([]string, len(All))
	for i, s := range All {
		names[i] = s.Collection
	}
	return names
}

// UniqueIndexes returns the Unique tuples of All in engine form.
func UniqueIndexes() []repository.UniqueIndex {
	var out []repository.UniqueIndex
	for _, s := range All {
		for _, fields := range s.Unique {
			out = append(out, repository.UniqueIndex{Collection: s.Collection, Fields: fields})
		}
	}
	return out
}

// Lookup finds a schema by collection name.
func Lookup(collection string) (*Schema, bool) {
	for _, s := range All {
		if s.Collection == collection {
			return s, true
		}
	}
	return nil, false
}
