package model

// User is the actor behind owner, likedBy, subscriber and channel
// references.
//
// Password holds the bcrypt hash, never the plaintext. The users schema
// marks it hidden, so populate and HTTP responses leave it out.
type User struct {
	Meta
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
	Password string `json:"password,omitempty"`
}
