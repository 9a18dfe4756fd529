package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor; about 250ms per hash on current
// server hardware.
const defaultCost = 12

// bcrypt silently truncates input past this length.
const maxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for inputs bcrypt would truncate.
var ErrPasswordTooLong = errors.New("auth: password must be 72 bytes or fewer")

// PasswordService hashes and verifies user passwords with bcrypt.
//
// The output of Hash is self-contained:
//
//	$2a$12$<22-char salt><31-char hash>
//
// and is stored as-is in the user document's hidden password field.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost lets tests in other packages use
// bcrypt.MinCost. Do not use a low cost in production.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil if plaintext matches hash. The comparison is constant
// time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
