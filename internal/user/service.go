package user

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"datebox-be/internal/auth"
	"datebox-be/internal/logger"
	"datebox-be/internal/utils"

	"go.uber.org/zap"
)

type Service interface {
	// Login verifies the credentials and returns a signed access token.
	Login(ctx context.Context, email, password string) (string, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up admin: %w", err)
	}
	if admin == nil {
		// Same error as a wrong password so the response does not leak which
		// emails exist.
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		logger.FromCtx(ctx).Warn("failed admin login", zap.String("email", email))
		return "", ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(admin.ID, utils.RoleAdmin, admin.Email)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
