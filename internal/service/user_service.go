package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

type UserService struct {
	users  domain.UserRepository
	tokens domain.TokenIssuer
	cost   int
	logger *zerolog.Logger
}

func NewUserService(users domain.UserRepository, tokens domain.TokenIssuer, logger *zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		logger: logger,
	}
}

// Signup registers an account and returns it with a fresh token.
func (s *UserService) Signup(ctx context.Context, req domain.SignupRequest) (*models.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, "", domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        email,
		PasswordHash: string(hash),
		Phone:        req.Phone,
		State:        req.State,
		City:         req.City,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return user, token, nil
}

// Login does not reveal whether the email or the password was wrong.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}
