package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"datebox-be/internal/auth"
	"datebox-be/internal/utils"
)

// MockRepository is a mock implementation of the Repository interface.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Admin), args.Error(1)
}

func TestService_Login(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret")
	ctx := context.Background()
	email := "admin@example.com"
	password := "correct-horse"

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo)

		mockRepo.On("GetByEmail", ctx, email).Return(&Admin{
			ID:           1,
			Email:        email,
			PasswordHash: string(hash),
		}, nil)

		token, err := svc.Login(ctx, email, password)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := auth.ParseJWT(token)
		require.NoError(t, err)
		assert.Equal(t, uint(1), claims.UserID)
		assert.Equal(t, utils.RoleAdmin, claims.Role)
		assert.Equal(t, email, claims.Email)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo)

		mockRepo.On("GetByEmail", ctx, email).Return(&Admin{
			ID:           1,
			Email:        email,
			PasswordHash: string(hash),
		}, nil)

		_, err := svc.Login(ctx, email, "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo)

		mockRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, nil)

		_, err := svc.Login(ctx, "nobody@example.com", password)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(mockRepo)

		mockRepo.On("GetByEmail", ctx, email).Return(nil, errors.New("db down"))

		_, err := svc.Login(ctx, email, password)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}
