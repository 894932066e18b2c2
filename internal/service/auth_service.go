package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"chatrelay-backend/internal/auth"
	"chatrelay-backend/internal/domain"
	"chatrelay-backend/internal/repository"
)

var (
	ErrEmailTaken       = errors.New("email already taken")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrDisplayNameTaken = errors.New("display name already taken")
	ErrInvalidCreds     = errors.New("invalid username or password")
	ErrAccountDisabled  = errors.New("account is deactivated")
)

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *auth.Tokens
}

func NewAuthService(userRepo repository.UserRepository, tokens *auth.Tokens) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens}
}

type SignupInput struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"required,min=3,max=50,username"`
	DisplayName string `json:"display_name" validate:"omitempty,min=2,max=100"`
	Password    string `json:"password" validate:"required,min=8,password"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User        domain.PublicUser `json:"user"`
	AccessToken string            `json:"access_token"`
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*domain.PublicUser, error) {
	existing, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	existing, err = s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	var displayName *string
	if trimmed := strings.TrimSpace(input.DisplayName); trimmed != "" {
		existing, err = s.userRepo.GetByDisplayName(ctx, trimmed)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrDisplayNameTaken
		}
		displayName = &trimmed
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        input.Email,
		Username:     input.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	pub := user.Public()
	return &pub, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	// Same error for unknown user and wrong password.
	if user == nil || !auth.VerifyPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCreds
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	return &AuthResponse{User: user.Public(), AccessToken: token}, nil
}
