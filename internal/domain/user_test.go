package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUserValidation(t *testing.T) {
	user, err := NewUser("u1", "Alice")
	require.NoError(t, err)
	require.Equal(t, UserID("u1"), user.ID)
	require.Equal(t, "Alice", user.Username)

	_, err = NewUser("u1", "")
	require.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = NewUser("u1", strings.Repeat("x", MaxUsernameLen+1))
	require.ErrorIs(t, err, ErrUsernameTooLong)
}
