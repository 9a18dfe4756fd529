// Package service holds the business rules that sit between the HTTP
// handlers and the document store:
//
//	Handler (HTTP) → Service (rules) → store.Collection (documents)
//
// Services take and return domain types and apperror values, never HTTP
// types, so the same logic serves the API server and the seeder.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/auth"
	"github.com/sakif/videotube/internal/model"
	"github.com/sakif/videotube/internal/store"
)

// MinPasswordLength is the shortest password Register accepts, in bytes.
const MinPasswordLength = 8

// AuthService registers users and logs them in.
type AuthService struct {
	users     *store.Collection[model.User]
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    logrus.FieldLogger
}

func NewAuthService(
	users *store.Collection[model.User],
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger.WithField("service", "auth"),
	}
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
	Password string `json:"password"`
}

// AuthResult bundles the user and the issued token so the handler can set
// the cookie and respond in one step. User never carries the password hash.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a user with a bcrypt-hashed password and logs them in.
// Usernames and emails are unique, compared case-insensitively.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if len(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", "password must be at least 8 characters")
	}

	if username != "" {
		existing, err := s.users.FindOne(ctx, store.Filter{"username": username})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperror.Conflict("user", username)
		}
	}
	if email != "" {
		existing, err := s.users.FindOne(ctx, store.Filter{"email": email})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperror.Conflict("user", email)
		}
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
		}
		return nil, err
	}

	user, err := s.users.Create(ctx, model.User{
		Username: username,
		Email:    email,
		FullName: strings.TrimSpace(in.FullName),
		Avatar:   strings.TrimSpace(in.Avatar),
		Password: hash,
	})
	if errors.Is(err, apperror.ErrConflict) {
		// Lost a race with a concurrent registration of the same name.
		return nil, apperror.Conflict("user", username)
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"userID":   user.ID,
		"username": user.Username,
	}).Info("user registered")

	return s.issue(user)
}

// Login checks the password and issues a token. Unknown users and wrong
// passwords give the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	user, err := s.users.FindOne(ctx, store.Filter{"username": username})
	if err != nil {
		return nil, err
	}
	if user == nil || user.Password == "" {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	if err := s.passwords.Verify(user.Password, password); err != nil {
		s.logger.WithField("username", username).Warn("failed login")
		return nil, apperror.Unauthorized("invalid username or password")
	}

	s.logger.WithField("userID", user.ID).Info("user logged in")
	return s.issue(user)
}

// GetUserByID returns the user without the password hash.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("user", id)
	}
	user.Password = ""
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return &AuthResult{User: user, Token: token}, nil
}
