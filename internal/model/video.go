package model

type Video struct {
	Meta
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	VideoFile   string  `json:"videoFile"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Duration    float64 `json:"duration"`
	Views       int64   `json:"views"`
	IsPublished bool    `json:"isPublished"`
	Owner       string  `json:"owner"`
}

type Comment struct {
	Meta
	Content string `json:"content"`
	Video   string `json:"video"`
	Owner   string `json:"owner"`
}
