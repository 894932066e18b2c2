package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"chatrelay-backend/internal/auth"
	"chatrelay-backend/internal/domain"
	"chatrelay-backend/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

type UpdateProfileInput struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=100"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,password"`
}

func (s *UserService) List(ctx context.Context) ([]domain.PublicUser, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u domain.User, _ int) domain.PublicUser {
		return u.Public()
	}), nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.PublicUser, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	pub := user.Public()
	return &pub, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, ident auth.Identity, input UpdateProfileInput) (*domain.PublicUser, error) {
	user, err := s.userRepo.GetByID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if input.Email != nil && *input.Email != user.Email {
		existing, err := s.userRepo.GetByEmail(ctx, *input.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrEmailTaken
		}
		user.Email = *input.Email
	}

	if input.DisplayName != nil {
		trimmed := strings.TrimSpace(*input.DisplayName)
		if trimmed == "" {
			user.DisplayName = nil
		} else if user.DisplayName == nil || trimmed != *user.DisplayName {
			existing, err := s.userRepo.GetByDisplayName(ctx, trimmed)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != user.ID {
				return nil, ErrDisplayNameTaken
			}
			user.DisplayName = &trimmed
		}
	}

	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	pub := user.Public()
	return &pub, nil
}

// ChangePassword rotates the account password. The current password must
// verify first; a stolen token alone is not enough.
func (s *UserService) ChangePassword(ctx context.Context, ident auth.Identity, input ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, ident.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if !auth.VerifyPassword(input.CurrentPassword, user.PasswordHash) {
		return ErrInvalidCreds
	}

	hash, err := auth.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("changing password: %w", err)
	}
	return nil
}

// Deactivate soft-disables the account; the default administrative action is
// never a hard delete.
func (s *UserService) Deactivate(ctx context.Context, ident auth.Identity) (*domain.PublicUser, error) {
	user, err := s.userRepo.GetByID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.IsActive = false
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("deactivating user: %w", err)
	}

	pub := user.Public()
	return &pub, nil
}

// Activate re-enables a deactivated account. Targeted by id rather than by
// the caller's identity: a disabled account cannot log in to ask for itself.
func (s *UserService) Activate(ctx context.Context, id uuid.UUID) (*domain.PublicUser, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.IsActive = true
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("activating user: %w", err)
	}

	pub := user.Public()
	return &pub, nil
}

// Delete removes the account for good. Membership and message rows go with
// it through the schema's foreign-key cascades.
func (s *UserService) Delete(ctx context.Context, ident auth.Identity) error {
	user, err := s.userRepo.GetByID(ctx, ident.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := s.userRepo.Delete(ctx, ident.UserID); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
