package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"chatrelay-backend/internal/domain"
)

// In-memory repository fakes backing the service tests.

type memUserRepo struct {
	users map[uuid.UUID]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *memUserRepo) GetByDisplayName(_ context.Context, displayName string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool {
		return u.DisplayName != nil && *u.DisplayName == displayName
	})
}

func (r *memUserRepo) List(_ context.Context) ([]domain.User, error) {
	var users []domain.User
	for _, u := range r.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type membershipKey struct {
	channelID uuid.UUID
	userID    uuid.UUID
}

type memChannelRepo struct {
	channels map[uuid.UUID]*domain.Channel
	members  map[membershipKey]domain.Member
	users    *memUserRepo
}

func newMemChannelRepo(users *memUserRepo) *memChannelRepo {
	return &memChannelRepo{
		channels: make(map[uuid.UUID]*domain.Channel),
		members:  make(map[membershipKey]domain.Member),
		users:    users,
	}
}

func (r *memChannelRepo) Create(_ context.Context, ch *domain.Channel) error {
	cp := *ch
	r.channels[ch.ID] = &cp
	return nil
}

func (r *memChannelRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Channel, error) {
	if ch, ok := r.channels[id]; ok {
		cp := *ch
		return &cp, nil
	}
	return nil, nil
}

func (r *memChannelRepo) GetByName(_ context.Context, name string) (*domain.Channel, error) {
	for _, ch := range r.channels {
		if !ch.IsDM && ch.Name == name {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memChannelRepo) List(_ context.Context) ([]domain.Channel, error) {
	var channels []domain.Channel
	for _, ch := range r.channels {
		if !ch.IsDM {
			channels = append(channels, *ch)
		}
	}
	return channels, nil
}

func (r *memChannelRepo) ListByMember(_ context.Context, userID uuid.UUID) ([]domain.Channel, error) {
	var channels []domain.Channel
	for key, m := range r.members {
		if m.UserID == userID {
			if ch, ok := r.channels[key.channelID]; ok {
				channels = append(channels, *ch)
			}
		}
	}
	return channels, nil
}

func (r *memChannelRepo) Update(_ context.Context, ch *domain.Channel) error {
	cp := *ch
	r.channels[ch.ID] = &cp
	return nil
}

func (r *memChannelRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.channels, id)
	for key := range r.members {
		if key.channelID == id {
			delete(r.members, key)
		}
	}
	return nil
}

func (r *memChannelRepo) AddMember(_ context.Context, m *domain.Member) error {
	r.members[membershipKey{m.ChannelID, m.UserID}] = *m
	return nil
}

func (r *memChannelRepo) RemoveMember(_ context.Context, channelID, userID uuid.UUID) error {
	delete(r.members, membershipKey{channelID, userID})
	return nil
}

func (r *memChannelRepo) GetMember(_ context.Context, channelID, userID uuid.UUID) (*domain.Member, error) {
	if m, ok := r.members[membershipKey{channelID, userID}]; ok {
		cp := m
		return &cp, nil
	}
	return nil, nil
}

func (r *memChannelRepo) ListMembers(_ context.Context, channelID uuid.UUID) ([]domain.PublicUser, error) {
	var members []domain.PublicUser
	for key := range r.members {
		if key.channelID == channelID {
			if u, ok := r.users.users[key.userID]; ok {
				members = append(members, u.Public())
			}
		}
	}
	return members, nil
}

type memMessageRepo struct {
	messages map[uuid.UUID]*domain.Message
	users    *memUserRepo
	channels *memChannelRepo
}

func newMemMessageRepo(users *memUserRepo, channels *memChannelRepo) *memMessageRepo {
	return &memMessageRepo{
		messages: make(map[uuid.UUID]*domain.Message),
		users:    users,
		channels: channels,
	}
}

func (r *memMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	cp := *msg
	r.messages[msg.ID] = &cp
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	return r.materialize(msg), nil
}

func (r *memMessageRepo) List(_ context.Context) ([]domain.Message, error) {
	var messages []domain.Message
	for _, msg := range r.messages {
		messages = append(messages, *r.materialize(msg))
	}
	return messages, nil
}

func (r *memMessageRepo) ListByChannel(_ context.Context, channelID uuid.UUID) ([]domain.Message, error) {
	var messages []domain.Message
	for _, msg := range r.messages {
		if msg.ChannelID == channelID {
			messages = append(messages, *r.materialize(msg))
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].CreatedAt.Before(messages[j].CreatedAt) })
	return messages, nil
}

func (r *memMessageRepo) Update(_ context.Context, msg *domain.Message) error {
	cp := *msg
	cp.Author, cp.Channel = nil, nil
	r.messages[msg.ID] = &cp
	return nil
}

func (r *memMessageRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.messages, id)
	return nil
}

// materialize mirrors the SQL join: author and channel snapshots attached.
func (r *memMessageRepo) materialize(msg *domain.Message) *domain.Message {
	cp := *msg
	if u, ok := r.users.users[msg.AuthorID]; ok {
		pub := u.Public()
		cp.Author = &pub
	}
	if ch, ok := r.channels.channels[msg.ChannelID]; ok {
		chCp := *ch
		cp.Channel = &chCp
	}
	return &cp
}

type deletedEvent struct {
	channelID uuid.UUID
	messageID uuid.UUID
}

type fakeBroadcaster struct {
	created []*domain.Message
	deleted []deletedEvent
}

func (b *fakeBroadcaster) BroadcastMessageCreated(msg *domain.Message) {
	b.created = append(b.created, msg)
}

func (b *fakeBroadcaster) BroadcastMessageDeleted(channelID, messageID uuid.UUID) {
	b.deleted = append(b.deleted, deletedEvent{channelID: channelID, messageID: messageID})
}
