package staff

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAccountNormalizesLogin(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))
	account, err := CreateAccount(CreateAccountInput{
		Login:        "  Alice@Shop ",
		Role:         RoleManager,
		PasswordHash: "hash",
	}, func() time.Time { return now }, func() (string, error) { return "staff-1", nil })
	require.NoError(t, err)
	require.Equal(t, "staff-1", account.ID)
	require.Equal(t, "alice@shop", account.Login)
	require.Equal(t, RoleManager, account.Role)
	require.Equal(t, time.UTC, account.CreatedAt.Location())
	require.Equal(t, account.CreatedAt, account.UpdatedAt)
	require.Equal(t, NotEnrolled, account.TwoFactor.State())
}

func TestCreateAccountValidation(t *testing.T) {
	ids := func() (string, error) { return "id", nil }
	tests := []struct {
		name  string
		input CreateAccountInput
		want  error
	}{
		{"empty login", CreateAccountInput{Role: RoleAdmin, PasswordHash: "h"}, ErrEmptyLogin},
		{"bad login", CreateAccountInput{Login: "a b", Role: RoleAdmin, PasswordHash: "h"}, ErrInvalidLogin},
		{"no role", CreateAccountInput{Login: "alice", PasswordHash: "h"}, ErrUnknownRole},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateAccount(tc.input, nil, ids)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := CreateAccount(CreateAccountInput{Login: "alice", Role: RoleAdmin}, nil, ids)
	require.Error(t, err)
}

func TestCreateAccountIDFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := CreateAccount(CreateAccountInput{Login: "alice", Role: RoleAdmin, PasswordHash: "h"}, nil, func() (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
}
