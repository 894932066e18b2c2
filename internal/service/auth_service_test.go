package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"chatrelay-backend/internal/auth"
)

func newAuthService() (*AuthService, *memUserRepo, *auth.Tokens) {
	users := newMemUserRepo()
	tokens := auth.NewTokens("test-secret", time.Hour)
	return NewAuthService(users, tokens), users, tokens
}

func TestAuthService_Signup(t *testing.T) {
	ctx := context.Background()

	input := SignupInput{
		Email:       "alice@example.com",
		Username:    "alice",
		DisplayName: "Alice A",
		Password:    "Sup3rSecret",
	}

	t.Run("creates an active account with a hashed password", func(t *testing.T) {
		req := require.New(t)
		svc, users, _ := newAuthService()

		pub, err := svc.Signup(ctx, input)
		req.NoError(err)
		req.Equal("alice", pub.Username)
		req.True(pub.IsActive)

		stored, err := users.GetByUsername(ctx, "alice")
		req.NoError(err)
		req.NotNil(stored)
		req.NotEqual(input.Password, stored.PasswordHash)
		req.True(auth.VerifyPassword(input.Password, stored.PasswordHash))
	})

	t.Run("rejects duplicate email, username and display name", func(t *testing.T) {
		req := require.New(t)
		svc, _, _ := newAuthService()

		_, err := svc.Signup(ctx, input)
		req.NoError(err)

		dup := input
		dup.Username = "alice2"
		dup.DisplayName = "Someone Else"
		_, err = svc.Signup(ctx, dup)
		req.ErrorIs(err, ErrEmailTaken)

		dup = input
		dup.Email = "other@example.com"
		dup.DisplayName = "Someone Else"
		_, err = svc.Signup(ctx, dup)
		req.ErrorIs(err, ErrUsernameTaken)

		dup = input
		dup.Email = "other@example.com"
		dup.Username = "alice2"
		_, err = svc.Signup(ctx, dup)
		req.ErrorIs(err, ErrDisplayNameTaken)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	signup := SignupInput{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "Sup3rSecret",
	}

	t.Run("returns a verifiable token for valid credentials", func(t *testing.T) {
		req := require.New(t)
		svc, _, tokens := newAuthService()

		_, err := svc.Signup(ctx, signup)
		req.NoError(err)

		resp, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "Sup3rSecret"})
		req.NoError(err)
		req.Equal("alice", resp.User.Username)

		ident, err := tokens.Verify(resp.AccessToken)
		req.NoError(err)
		req.Equal(resp.User.ID, ident.UserID)
		req.Equal("alice", ident.Username)
	})

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		req := require.New(t)
		svc, _, _ := newAuthService()

		_, err := svc.Signup(ctx, signup)
		req.NoError(err)

		_, unknownErr := svc.Login(ctx, LoginInput{Username: "nobody", Password: "Sup3rSecret"})
		_, wrongErr := svc.Login(ctx, LoginInput{Username: "alice", Password: "not-it"})
		req.ErrorIs(unknownErr, ErrInvalidCreds)
		req.ErrorIs(wrongErr, ErrInvalidCreds)
	})

	t.Run("deactivated account cannot log in", func(t *testing.T) {
		req := require.New(t)
		svc, users, _ := newAuthService()

		pub, err := svc.Signup(ctx, signup)
		req.NoError(err)

		stored, err := users.GetByID(ctx, pub.ID)
		req.NoError(err)
		stored.IsActive = false
		req.NoError(users.Update(ctx, stored))

		_, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "Sup3rSecret"})
		req.ErrorIs(err, ErrAccountDisabled)
	})
}
