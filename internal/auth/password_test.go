package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

func TestNewCredentialsCostRange(t *testing.T) {
	_, err := NewCredentials(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	c, err := NewCredentials(0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, c.cost)
}

func TestSetAndVerifyPassword(t *testing.T) {
	c, err := NewCredentials(bcrypt.MinCost)
	require.NoError(t, err)

	var u model.User
	require.NoError(t, c.SetPassword(&u, "p"))
	assert.NotEmpty(t, u.PasswordHash)
	assert.NotEqual(t, "p", u.PasswordHash)

	assert.True(t, c.VerifyPassword(u, "p"))
	assert.False(t, c.VerifyPassword(u, "P"))
	assert.False(t, c.VerifyPassword(model.User{}, "p"))
}

func TestHashIsSalted(t *testing.T) {
	c, err := NewCredentials(bcrypt.MinCost)
	require.NoError(t, err)

	a, err := c.Hash("secret")
	require.NoError(t, err)
	b, err := c.Hash("secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashRejectsBlankAndOversized(t *testing.T) {
	c, err := NewCredentials(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = c.Hash("")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
