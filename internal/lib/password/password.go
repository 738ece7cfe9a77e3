package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest input bcrypt accepts, in bytes.
const MaxLength = 72

var (
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

type Hasher struct {
	cost int
}

// New returns a bcrypt hasher. A cost outside bcrypt's accepted range falls back to bcrypt.DefaultCost.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(password string) (string, error) {
	const op = "password.Hash"

	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxLength {
		return "", fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(hash), nil
}

// Verify reports whether password matches hash. A malformed hash never matches.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
