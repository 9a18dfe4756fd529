package model

// Subscription links a subscriber to the channel (another user) they follow.
type Subscription struct {
	Meta
	Subscriber string `json:"subscriber"`
	Channel    string `json:"channel"`
}
