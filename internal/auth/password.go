package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

// Credentials hashes and verifies user passwords with bcrypt. The cost is
// fixed when the process starts.
type Credentials struct {
	cost int
}

// NewCredentials returns a Credentials using the given bcrypt cost. A zero
// cost selects bcrypt.DefaultCost.
func NewCredentials(cost int) (*Credentials, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Credentials{cost: cost}, nil
}

// Hash returns the bcrypt digest of plain.
func (c *Credentials) Hash(plain string) (string, error) {
	if plain == "" {
		return "", apperr.Invalid("password", "cannot be blank")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), c.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.Invalid("password", "must be at most 72 bytes")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// SetPassword replaces u.PasswordHash with a fresh digest of plain. Callers
// still have to persist the user.
func (c *Credentials) SetPassword(u *model.User, plain string) error {
	h, err := c.Hash(plain)
	if err != nil {
		return err
	}
	u.PasswordHash = h
	return nil
}

// VerifyPassword reports whether plain matches the stored digest. bcrypt
// compares in constant time.
func (c *Credentials) VerifyPassword(u model.User, plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}
