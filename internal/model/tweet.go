package model

// Tweet is a short text post. Owner is optional: a tweet whose author was
// removed is still a valid document.
type Tweet struct {
	Meta
	Content string `json:"content"`
	Owner   string `json:"owner,omitempty"`
}
