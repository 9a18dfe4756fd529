package model

type Playlist struct {
	Meta
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Videos      []string `json:"videos"` // ordered video ids
	Owner       string   `json:"owner,omitempty"`
}
