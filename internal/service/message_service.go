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
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAuthor       = errors.New("only the message author can perform this action")
)

// Broadcaster fans message lifecycle events out to live subscribers. The
// websocket gateway implements it; the service stays transport-agnostic.
type Broadcaster interface {
	BroadcastMessageCreated(msg *domain.Message)
	BroadcastMessageDeleted(channelID, messageID uuid.UUID)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository
	broadcaster Broadcaster
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		channelRepo: channelRepo,
		userRepo:    userRepo,
	}
}

// SetBroadcaster wires the realtime gateway in after construction.
func (s *MessageService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

type CreateMessageInput struct {
	ChannelID uuid.UUID `json:"channel_id" validate:"required"`
	Content   string    `json:"content" validate:"required,max=4000"`
}

type UpdateMessageInput struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// Create persists the message and then synchronously announces it to live
// subscribers, exactly once, before returning.
func (s *MessageService) Create(ctx context.Context, ident auth.Identity, input CreateMessageInput) (*domain.Message, error) {
	ch, err := s.channelRepo.GetByID(ctx, input.ChannelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChannelNotFound
	}

	author, err := s.userRepo.GetByID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, ErrUserNotFound
	}

	// Membership is checked against the live relation, not the token.
	member, err := s.channelRepo.GetMember(ctx, input.ChannelID, ident.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotMember
	}

	now := time.Now()
	msg := &domain.Message{
		ID:        uuid.New(),
		ChannelID: input.ChannelID,
		AuthorID:  ident.UserID,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessageCreated(full)
	}

	return full, nil
}

func (s *MessageService) List(ctx context.Context) ([]domain.Message, error) {
	messages, err := s.messageRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

func (s *MessageService) ListByChannel(ctx context.Context, ident auth.Identity, channelID uuid.UUID) ([]domain.Message, error) {
	ch, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChannelNotFound
	}

	member, err := s.channelRepo.GetMember(ctx, channelID, ident.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotMember
	}

	messages, err := s.messageRepo.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Update edits the content. No re-broadcast: live edit propagation is not
// part of the realtime contract.
func (s *MessageService) Update(ctx context.Context, ident auth.Identity, messageID uuid.UUID, input UpdateMessageInput) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.AuthorID != ident.UserID {
		return nil, ErrNotAuthor
	}

	msg.Content = input.Content
	msg.UpdatedAt = time.Now()
	if err := s.messageRepo.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	return s.messageRepo.GetByID(ctx, msg.ID)
}

// Delete removes the message and announces the deletion. The author must
// still be a member of the channel: membership revoked after posting also
// revokes the right to delete.
func (s *MessageService) Delete(ctx context.Context, ident auth.Identity, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.AuthorID != ident.UserID {
		return ErrNotAuthor
	}

	member, err := s.channelRepo.GetMember(ctx, msg.ChannelID, ident.UserID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotMember
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessageDeleted(msg.ChannelID, messageID)
	}

	return nil
}
