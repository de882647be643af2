package local

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost used by HashPassword
var HashCost = passwordHashCost()

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password hash")
	}
	return nil
}
