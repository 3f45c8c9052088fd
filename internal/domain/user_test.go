package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlog/callscribe-api/internal/domain"
)

func TestNewUser(t *testing.T) {
	user, err := domain.NewUser("Ada Lovelace", "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "correct-horse-battery", user.Password)
	assert.Empty(t, user.HashedPassword)
}

func TestNewUser_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  error
	}{
		{"empty name", "", "ada@example.com", "correct-horse-battery", domain.ErrEmptyUserName},
		{"empty email", "Ada", "", "correct-horse-battery", domain.ErrEmptyEmail},
		{"malformed email", "Ada", "not-an-email", "correct-horse-battery", domain.ErrInvalidEmail},
		{"short password", "Ada", "ada@example.com", "short", domain.ErrPasswordTooShort},
		{
			"overlong password",
			"Ada",
			"ada@example.com",
			strings.Repeat("p", 73),
			domain.ErrPasswordTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewUser(tt.userName, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUser_Validate_HashedOnly(t *testing.T) {
	user, err := domain.NewUser("Ada", "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)

	// After hashing, the plaintext password is cleared.
	user.Password = ""
	user.HashedPassword = "$2a$10$abcdefghijklmnopqrstuv"
	assert.NoError(t, user.Validate())

	user.HashedPassword = ""
	assert.ErrorIs(t, user.Validate(), domain.ErrEmptyPassword)
}
