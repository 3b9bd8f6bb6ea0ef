package auth

import (
	"strings"
	"testing"
	"time"

	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Test de la comparaison négative (mauvais mot de passe)
	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

// TestRegistrationValidation vérifie les règles métier strictes (CNIL)
func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	valid := RegisterRequest{
		Username:    "alice42",
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "ComplexPass123!",
	}

	tests := []struct {
		name    string
		modify  func(r *RegisterRequest)
		wantErr bool
	}{
		{"Valid request", func(r *RegisterRequest) {}, false},
		{"Invalid email", func(r *RegisterRequest) { r.Email = "notanemail" }, true},
		{"Username too short", func(r *RegisterRequest) { r.Username = "ab" }, true},
		{"Username with spaces", func(r *RegisterRequest) { r.Username = "al ice" }, true},
		{"Password too short", func(r *RegisterRequest) { r.Password = "Short1!" }, true},
		{"Missing digit", func(r *RegisterRequest) { r.Password = "NoDigitPassword!" }, true},
		{"Missing special char", func(r *RegisterRequest) { r.Password = "NoSpecialChar123" }, true},
		{"Missing uppercase", func(r *RegisterRequest) { r.Password = "nouppercase123!!" }, true},
		{"Password too long (edge case)", func(r *RegisterRequest) { r.Password = strings.Repeat("a", 73) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := valid
			tt.modify(&request)
			err := ValidateRegister(request)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)

	token, err := tokens.Generate("uuid-123", "alice")
	req.NoError(err)
	req.NotEmpty(token)

	identity, err := tokens.Resolve(token)
	req.NoError(err)
	req.Equal("uuid-123", string(identity.UserID))
	req.Equal("alice", identity.Username)
}

func TestTokenManager_Rejections(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("test-secret", time.Hour)

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := tokens.Resolve("not-a-jwt")
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", time.Hour)
		token, err := other.Generate("uuid-123", "alice")
		req.NoError(err)

		_, err = tokens.Resolve(token)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		expired := NewTokenManager("test-secret", -time.Minute)
		token, err := expired.Generate("uuid-123", "alice")
		req.NoError(err)

		_, err = tokens.Resolve(token)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})
}

// BenchmarkHashPassword permet de mesurer l'impact CPU/RAM (Crucial pour K8s)
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
