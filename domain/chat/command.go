// Package chat defines the commands accepted by the chat service.
package chat

import (
	"chat-relay/domain"

	"github.com/google/uuid"
)

type CreateChannelCommand struct {
	RequesterID    domain.UserID
	Name           string `validate:"required,min=1,max=100"`
	Description    string `validate:"max=500"`
	IsPublic       bool
	InitialMembers []domain.UserID
}

type CreateDirectMessageCommand struct {
	RequesterID    domain.UserID
	TargetUsername string `validate:"required"`
}

type PostMessageCommand struct {
	AuthorID  domain.UserID
	ChannelID domain.ChannelID
	Content   string `validate:"required,max=4000"`
}

type EditMessageCommand struct {
	RequesterID domain.UserID
	MessageID   uuid.UUID
	Content     string `validate:"required,max=4000"`
}

type HistoryCommand struct {
	ChannelID domain.ChannelID
	Page      int `validate:"min=1"`
	PageSize  int `validate:"min=1,max=200"`
}
