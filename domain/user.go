// Package domain contains core concepts of the chat system.
// This file defines the User entity referenced by channels and messages.
// Users are owned by the identity subsystem; the core never mutates them.
package domain

type UserID string

type User struct {
	ID          UserID
	Username    string
	DisplayName string
	Email       string
}

// Identity is the resolved result of an authentication token.
type Identity struct {
	UserID   UserID
	Username string
}
