package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"chatrelay-backend/internal/auth"
	"chatrelay-backend/internal/domain"
	"chatrelay-backend/internal/repository"
	"chatrelay-backend/internal/repository/postgres"
)

var (
	ErrChannelNotFound  = errors.New("channel not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrChannelNameTaken = errors.New("channel name already exists")
	ErrNotCreator       = errors.New("only the channel creator can perform this action")
	ErrAlreadyMember    = errors.New("user is already a member of this channel")
	ErrNotMember        = errors.New("user is not a member of this channel")
	ErrWrongPassword    = errors.New("wrong channel password")
	ErrChannelLocked    = errors.New("private channel cannot be joined")
	ErrDMWithSelf       = errors.New("cannot open a direct channel with yourself")
)

type ChannelService struct {
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository
}

func NewChannelService(channelRepo repository.ChannelRepository, userRepo repository.UserRepository) *ChannelService {
	return &ChannelService{channelRepo: channelRepo, userRepo: userRepo}
}

type CreateChannelInput struct {
	Name        string     `json:"name" validate:"required_unless=IsDM true,omitempty,min=2,max=100"`
	Description string     `json:"description" validate:"max=500"`
	IsPublic    *bool      `json:"is_public"`
	Password    string     `json:"password" validate:"omitempty,min=4"`
	IsDM        bool       `json:"is_dm"`
	RecipientID *uuid.UUID `json:"recipient_id"`
}

type UpdateChannelInput struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

type JoinChannelInput struct {
	Password string `json:"password"`
}

func (s *ChannelService) Create(ctx context.Context, ident auth.Identity, input CreateChannelInput) (*domain.Channel, error) {
	if input.IsDM {
		return s.createDM(ctx, ident, input)
	}

	existing, err := s.channelRepo.GetByName(ctx, input.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrChannelNameTaken
	}

	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	var passwordHash *string
	if !isPublic && input.Password != "" {
		hash, err := auth.HashPassword(input.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing channel password: %w", err)
		}
		passwordHash = &hash
	}

	now := time.Now()
	creatorID := ident.UserID
	ch := &domain.Channel{
		ID:           uuid.New(),
		Name:         input.Name,
		Description:  optional(input.Description),
		IsPublic:     isPublic,
		IsDM:         false,
		PasswordHash: passwordHash,
		CreatedBy:    &creatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.channelRepo.Create(ctx, ch); err != nil {
		if postgres.IsDuplicate(err) {
			return nil, ErrChannelNameTaken
		}
		return nil, fmt.Errorf("creating channel: %w", err)
	}

	if err := s.addMember(ctx, ch.ID, creatorID, now); err != nil {
		return nil, fmt.Errorf("adding creator as member: %w", err)
	}

	return ch, nil
}

// createDM builds a private two-member channel. DM channels skip the name
// uniqueness check and never appear in the public listing.
func (s *ChannelService) createDM(ctx context.Context, ident auth.Identity, input CreateChannelInput) (*domain.Channel, error) {
	if input.RecipientID == nil || *input.RecipientID == ident.UserID {
		return nil, ErrDMWithSelf
	}

	recipient, err := s.userRepo.GetByID(ctx, *input.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrUserNotFound
	}

	now := time.Now()
	creatorID := ident.UserID
	ch := &domain.Channel{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: optional(input.Description),
		IsPublic:    false,
		IsDM:        true,
		CreatedBy:   &creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ch.Name == "" {
		ch.Name = "dm-" + ch.ID.String()[:8]
	}

	if err := s.channelRepo.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("creating dm channel: %w", err)
	}

	// Creator and recipient are the only two members, ever.
	if err := s.addMember(ctx, ch.ID, creatorID, now); err != nil {
		return nil, fmt.Errorf("adding creator as member: %w", err)
	}
	if err := s.addMember(ctx, ch.ID, recipient.ID, now); err != nil {
		return nil, fmt.Errorf("adding recipient as member: %w", err)
	}

	return ch, nil
}

func (s *ChannelService) GetByID(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error) {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}

// List returns the public channel listing, DM channels excluded.
func (s *ChannelService) List(ctx context.Context) ([]domain.Channel, error) {
	channels, err := s.channelRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	return channels, nil
}

// ListMine returns every channel the caller belongs to, DMs included.
func (s *ChannelService) ListMine(ctx context.Context, ident auth.Identity) ([]domain.Channel, error) {
	channels, err := s.channelRepo.ListByMember(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	return channels, nil
}

func (s *ChannelService) ListMembers(ctx context.Context, channelID uuid.UUID) ([]domain.PublicUser, error) {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChannelNotFound
	}

	members, err := s.channelRepo.ListMembers(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.PublicUser{}
	}
	return members, nil
}

// Join adds the caller to the persisted membership. Unlike the gateway's
// subscribe, a duplicate join is a conflict, not a no-op.
func (s *ChannelService) Join(ctx context.Context, ident auth.Identity, channelID uuid.UUID, input JoinChannelInput) error {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrChannelNotFound
	}

	user, err := s.userRepo.GetByID(ctx, ident.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	existing, err := s.channelRepo.GetMember(ctx, channelID, ident.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyMember
	}

	if !ch.IsPublic {
		if !ch.HasPassword() {
			// No password configured: the channel is invite-only via creation.
			return ErrChannelLocked
		}
		if !auth.VerifyPassword(input.Password, *ch.PasswordHash) {
			return ErrWrongPassword
		}
	}

	if err := s.addMember(ctx, channelID, ident.UserID, time.Now()); err != nil {
		if postgres.IsDuplicate(err) {
			return ErrAlreadyMember
		}
		return fmt.Errorf("joining channel: %w", err)
	}
	return nil
}

// Leave is strict: leaving a channel you are not a member of is an error,
// because a persisted membership removal is a meaningful state transition.
func (s *ChannelService) Leave(ctx context.Context, ident auth.Identity, channelID uuid.UUID) error {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrChannelNotFound
	}

	member, err := s.channelRepo.GetMember(ctx, channelID, ident.UserID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotMember
	}

	return s.channelRepo.RemoveMember(ctx, channelID, ident.UserID)
}

func (s *ChannelService) Update(ctx context.Context, ident auth.Identity, channelID uuid.UUID, input UpdateChannelInput) (*domain.Channel, error) {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChannelNotFound
	}

	if ch.CreatedBy == nil || *ch.CreatedBy != ident.UserID {
		return nil, ErrNotCreator
	}

	if input.Name != nil && *input.Name != ch.Name {
		existing, err := s.channelRepo.GetByName(ctx, *input.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrChannelNameTaken
		}
		ch.Name = *input.Name
	}
	if input.Description != nil {
		ch.Description = input.Description
	}
	ch.UpdatedAt = time.Now()

	if err := s.channelRepo.Update(ctx, ch); err != nil {
		if postgres.IsDuplicate(err) {
			return nil, ErrChannelNameTaken
		}
		return nil, fmt.Errorf("updating channel: %w", err)
	}

	return ch, nil
}

func (s *ChannelService) Delete(ctx context.Context, ident auth.Identity, channelID uuid.UUID) error {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return ErrChannelNotFound
	}

	if ch.CreatedBy == nil || *ch.CreatedBy != ident.UserID {
		return ErrNotCreator
	}

	return s.channelRepo.Delete(ctx, channelID)
}

func (s *ChannelService) addMember(ctx context.Context, channelID, userID uuid.UUID, at time.Time) error {
	return s.channelRepo.AddMember(ctx, &domain.Member{
		ChannelID: channelID,
		UserID:    userID,
		JoinedAt:  at,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
