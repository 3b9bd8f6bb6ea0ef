// Package domain contains core concepts of the chat system.
// This file defines Message entities and their ordering rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat event. ID, ChannelID, AuthorID and CreatedAt
// never change after creation; only Content may be edited by its author,
// which stamps EditedAt.
type Message struct {
	ID        uuid.UUID
	ChannelID ChannelID
	AuthorID  UserID
	Content   string
	CreatedAt time.Time
	EditedAt  *time.Time
}

// Before reports whether m sorts before other under the total order
// (CreatedAt, ID). The ID tiebreak keeps pagination stable when two
// messages share a timestamp.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID.String() < other.ID.String()
}
