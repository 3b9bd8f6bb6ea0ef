package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) contract.IUserRepository {
	return &UserRepository{db: db}
}

// diskUser is the stored representation of a user. The password hash never
// leaves the repository except through GetPasswordHash.
type diskUser struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

// CreateUser persists a new user. The username index entry reserves the
// name; a taken username fails with ErrUserAlreadyExists.
func (u *UserRepository) CreateUser(username, displayName, email, passwordHash string) (domain.User, error) {
	user := diskUser{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}
	data, err := json.Marshal(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(username)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(usernameKey(username), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(domain.UserID(user.ID)), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(user), nil
}

func (u *UserRepository) GetUser(id domain.UserID) (domain.User, error) {
	disk, err := u.readUser(id)
	if err != nil {
		return domain.User{}, err
	}
	return toUser(disk), nil
}

func (u *UserRepository) GetUserByUsername(username string) (domain.User, error) {
	disk, err := u.readUserByUsername(username)
	if err != nil {
		return domain.User{}, err
	}
	return toUser(disk), nil
}

// GetPasswordHash is consumed by the auth service only.
func (u *UserRepository) GetPasswordHash(username string) (string, error) {
	disk, err := u.readUserByUsername(username)
	if err != nil {
		return "", err
	}
	return disk.PasswordHash, nil
}

func (u *UserRepository) readUser(id domain.UserID) (diskUser, error) {
	var disk diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if err == badger.ErrKeyNotFound {
		return diskUser{}, fmt.Errorf("user %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return diskUser{}, fmt.Errorf("get user: %v: %w", err, errors.ErrStorage)
	}
	return disk, nil
}

func (u *UserRepository) readUserByUsername(username string) (diskUser, error) {
	var id domain.UserID
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = domain.UserID(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return diskUser{}, fmt.Errorf("user %q: %w", username, errors.ErrNotFound)
	}
	if err != nil {
		return diskUser{}, fmt.Errorf("get user by username: %v: %w", err, errors.ErrStorage)
	}
	return u.readUser(id)
}

func toUser(disk diskUser) domain.User {
	return domain.User{
		ID:          domain.UserID(disk.ID),
		Username:    disk.Username,
		DisplayName: disk.DisplayName,
		Email:       disk.Email,
	}
}
