package services

import (
	"fmt"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
)

type IAuthService interface {
	Register(username, displayName, email, password string) (Token, error)
	Login(username, password string) (Token, error)
}

type AuthService struct {
	userRepository contract.IUserRepository
	tokens         *auth.TokenManager
}

type Token string

func NewAuthService(repo contract.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, displayName, email, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username:    username,
		DisplayName: displayName,
		Email:       email,
		Password:    password,
	}

	// Validate business rules before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	// Hashing happens in the service layer to keep the repository unaware
	// of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(username, displayName, email, hashedPassword)
	if err != nil {
		return "", err // Will propagate ErrUserAlreadyExists if the name is taken
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	// Generic error on any failure path to prevent user enumeration.
	hash, err := s.userRepository.GetPasswordHash(username)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, hash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
