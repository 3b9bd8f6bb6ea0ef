package services

import (
	"testing"
	"time"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, auth.NewTokenManager("test-secret", 24*time.Hour))

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		password := "ComplexPass123!" // Must satisfy the complexity rules
		stored := domain.User{ID: "user-uuid", Username: "alice42"}

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser("alice42", "Alice", "alice@example.com", gomock.Not(password)).
			Return(stored, nil).
			Times(1)

		token, err := svc.Register("alice42", "Alice", "alice@example.com", password)

		req.NoError(err)
		req.NotEmpty(token)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		password := "simple" // Fails validation

		// Repository should NEVER be called
		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Times(0)

		token, err := svc.Register("alice42", "Alice", "alice@example.com", password)

		req.Error(err)
		req.ErrorIs(err, errors.ErrValidation)
		req.Empty(token)
	})

	t.Run("should fail when username is already taken", func(t *testing.T) {
		req := require.New(t)
		password := "ComplexPass123!"

		mockRepo.EXPECT().
			CreateUser("alice42", "Alice", "duplicate@example.com", gomock.Any()).
			Return(domain.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("alice42", "Alice", "duplicate@example.com", password)

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		password := "Secret123456!"

		hashedPassword, _ := auth.HashPassword(password)
		storedUser := domain.User{
			ID:       "uuid-123",
			Username: "alice42",
		}

		mockRepo.EXPECT().
			GetPasswordHash("alice42").
			Return(hashedPassword, nil).
			Times(1)
		mockRepo.EXPECT().
			GetUserByUsername("alice42").
			Return(storedUser, nil).
			Times(1)

		token, err := svc.Login("alice42", password)

		req.NoError(err)
		req.NotEmpty(token)

		// Optional: validate token claims
		identity, err := tokens.Resolve(string(token))
		req.NoError(err)
		req.Equal(storedUser.ID, identity.UserID)
		req.Equal(storedUser.Username, identity.Username)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)

		hashedPassword, _ := auth.HashPassword("CorrectPassword123!")

		mockRepo.EXPECT().
			GetPasswordHash("alice42").
			Return(hashedPassword, nil).
			Times(1)

		_, err := svc.Login("alice42", "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetPasswordHash("ghost").
			Return("", errors.ErrNotFound).
			Times(1)

		_, err := svc.Login("ghost", "anyPassword")

		// Same error as a bad password so callers cannot enumerate accounts
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
