package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"chatrelay-backend/internal/auth"
	"chatrelay-backend/internal/domain"
)

type testEnv struct {
	users    *memUserRepo
	channels *memChannelRepo
	messages *memMessageRepo

	channelSvc *ChannelService
	messageSvc *MessageService
	broadcast  *fakeBroadcaster
}

func newTestEnv() *testEnv {
	users := newMemUserRepo()
	channels := newMemChannelRepo(users)
	messages := newMemMessageRepo(users, channels)

	messageSvc := NewMessageService(messages, channels, users)
	broadcast := &fakeBroadcaster{}
	messageSvc.SetBroadcaster(broadcast)

	return &testEnv{
		users:      users,
		channels:   channels,
		messages:   messages,
		channelSvc: NewChannelService(channels, users),
		messageSvc: messageSvc,
		broadcast:  broadcast,
	}
}

func (e *testEnv) addUser(t *testing.T, username string) auth.Identity {
	t.Helper()
	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "irrelevant",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return auth.Identity{UserID: user.ID, Email: user.Email, Username: user.Username}
}

func TestChannelService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates channel with creator as first member", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")

		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)
		req.Equal("general", ch.Name)
		req.True(ch.IsPublic)
		req.NotNil(ch.CreatedBy)
		req.Equal(alice.UserID, *ch.CreatedBy)

		member, err := env.channels.GetMember(ctx, ch.ID, alice.UserID)
		req.NoError(err)
		req.NotNil(member)
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")

		_, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)

		_, err = env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.ErrorIs(err, ErrChannelNameTaken)
	})

	t.Run("hashes private channel password and never stores the plaintext", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")

		private := false
		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{
			Name: "secret", IsPublic: &private, Password: "hunter22",
		})
		req.NoError(err)
		req.False(ch.IsPublic)
		req.NotNil(ch.PasswordHash)
		req.NotEqual("hunter22", *ch.PasswordHash)
		req.True(auth.VerifyPassword("hunter22", *ch.PasswordHash))
	})

	t.Run("dm requires a distinct recipient", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")

		self := alice.UserID
		_, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{IsDM: true, RecipientID: &self})
		req.ErrorIs(err, ErrDMWithSelf)

		_, err = env.channelSvc.Create(ctx, alice, CreateChannelInput{IsDM: true})
		req.ErrorIs(err, ErrDMWithSelf)

		ghost := uuid.New()
		_, err = env.channelSvc.Create(ctx, alice, CreateChannelInput{IsDM: true, RecipientID: &ghost})
		req.ErrorIs(err, ErrUserNotFound)
	})

	t.Run("dm gets exactly two members and skips the name uniqueness check", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")
		bob := env.addUser(t, "bob")

		_, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)

		dm, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{
			Name: "general", IsDM: true, RecipientID: &bob.UserID,
		})
		req.NoError(err)
		req.True(dm.IsDM)
		req.False(dm.IsPublic)

		members, err := env.channelSvc.ListMembers(ctx, dm.ID)
		req.NoError(err)
		req.Len(members, 2)
	})

	t.Run("dm channels are excluded from the public listing", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")
		bob := env.addUser(t, "bob")

		_, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)
		_, err = env.channelSvc.Create(ctx, alice, CreateChannelInput{IsDM: true, RecipientID: &bob.UserID})
		req.NoError(err)

		listing, err := env.channelSvc.List(ctx)
		req.NoError(err)
		req.Len(listing, 1)
		req.Equal("general", listing[0].Name)

		mine, err := env.channelSvc.ListMine(ctx, alice)
		req.NoError(err)
		req.Len(mine, 2)
	})
}

func TestChannelService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("public channel is always joinable, but only once", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")
		bob := env.addUser(t, "bob")

		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)

		req.NoError(env.channelSvc.Join(ctx, bob, ch.ID, JoinChannelInput{}))
		req.ErrorIs(env.channelSvc.Join(ctx, bob, ch.ID, JoinChannelInput{}), ErrAlreadyMember)
	})

	t.Run("private channel password matrix", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")
		bob := env.addUser(t, "bob")

		private := false
		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{
			Name: "vault", IsPublic: &private, Password: "hunter22",
		})
		req.NoError(err)

		req.ErrorIs(env.channelSvc.Join(ctx, bob, ch.ID, JoinChannelInput{Password: "wrong"}), ErrWrongPassword)
		req.NoError(env.channelSvc.Join(ctx, bob, ch.ID, JoinChannelInput{Password: "hunter22"}))
		req.ErrorIs(env.channelSvc.Join(ctx, bob, ch.ID, JoinChannelInput{Password: "hunter22"}), ErrAlreadyMember)
	})

	t.Run("passwordless private channel cannot be joined", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")
		bob := env.addUser(t, "bob")

		private := false
		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "vault", IsPublic: &private})
		req.NoError(err)

		req.ErrorIs(env.channelSvc.Join(ctx, bob, ch.ID, JoinChannelInput{}), ErrChannelLocked)
	})

	t.Run("unknown channel or user is not found", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")

		req.ErrorIs(env.channelSvc.Join(ctx, alice, uuid.New(), JoinChannelInput{}), ErrChannelNotFound)

		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)

		ghost := auth.Identity{UserID: uuid.New()}
		req.ErrorIs(env.channelSvc.Join(ctx, ghost, ch.ID, JoinChannelInput{}), ErrUserNotFound)
	})
}

func TestChannelService_Leave(t *testing.T) {
	ctx := context.Background()

	t.Run("leave without membership is a client error, not a no-op", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")
		bob := env.addUser(t, "bob")

		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)

		// leave → join → leave: the first leave must fail because no join
		// intervened, unlike the gateway's tolerant unsubscribe.
		req.ErrorIs(env.channelSvc.Leave(ctx, bob, ch.ID), ErrNotMember)
		req.NoError(env.channelSvc.Join(ctx, bob, ch.ID, JoinChannelInput{}))
		req.NoError(env.channelSvc.Leave(ctx, bob, ch.ID))
		req.ErrorIs(env.channelSvc.Leave(ctx, bob, ch.ID), ErrNotMember)
	})
}

func TestChannelService_UpdateDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("only the creator can update", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")
		bob := env.addUser(t, "bob")

		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)

		newName := "renamed"
		_, err = env.channelSvc.Update(ctx, bob, ch.ID, UpdateChannelInput{Name: &newName})
		req.ErrorIs(err, ErrNotCreator)

		updated, err := env.channelSvc.Update(ctx, alice, ch.ID, UpdateChannelInput{Name: &newName})
		req.NoError(err)
		req.Equal("renamed", updated.Name)
	})

	t.Run("rename conflicts, except against the current name", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")

		_, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)
		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "random"})
		req.NoError(err)

		taken := "general"
		_, err = env.channelSvc.Update(ctx, alice, ch.ID, UpdateChannelInput{Name: &taken})
		req.ErrorIs(err, ErrChannelNameTaken)

		// Renaming to the channel's own name skips the uniqueness check.
		same := "random"
		_, err = env.channelSvc.Update(ctx, alice, ch.ID, UpdateChannelInput{Name: &same})
		req.NoError(err)
	})

	t.Run("only the creator can delete, and failure leaves everything intact", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv()
		alice := env.addUser(t, "alice")
		bob := env.addUser(t, "bob")

		ch, err := env.channelSvc.Create(ctx, alice, CreateChannelInput{Name: "general"})
		req.NoError(err)

		_, err = env.messageSvc.Create(ctx, alice, CreateMessageInput{ChannelID: ch.ID, Content: "hello"})
		req.NoError(err)

		req.ErrorIs(env.channelSvc.Delete(ctx, bob, ch.ID), ErrNotCreator)

		still, err := env.channelSvc.GetByID(ctx, ch.ID)
		req.NoError(err)
		req.NotNil(still)
		messages, err := env.messageSvc.ListByChannel(ctx, alice, ch.ID)
		req.NoError(err)
		req.Len(messages, 1)

		req.NoError(env.channelSvc.Delete(ctx, alice, ch.ID))
		_, err = env.channelSvc.GetByID(ctx, ch.ID)
		req.ErrorIs(err, ErrChannelNotFound)
	})
}
