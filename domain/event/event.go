// Package event defines the push notifications emitted by the fan-out
// router. Every payload carries the full entity for Message and Channel
// events so a client can replace-by-id idempotently.
package event

import (
	"chat-relay/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	Kind() string
}

type NewMessage struct {
	Message domain.Message
}

func (NewMessage) Kind() string { return "newMessage" }

type MessageUpdated struct {
	Message domain.Message
}

func (MessageUpdated) Kind() string { return "messageUpdated" }

type MessageDeleted struct {
	MessageID uuid.UUID
	ChannelID domain.ChannelID
}

func (MessageDeleted) Kind() string { return "messageDeleted" }

type ChannelCreated struct {
	Channel domain.Channel
}

func (ChannelCreated) Kind() string { return "channelCreated" }

type ChannelRemoved struct {
	ChannelID domain.ChannelID
}

func (ChannelRemoved) Kind() string { return "channelRemoved" }

type MemberAdded struct {
	ChannelID domain.ChannelID
	UserID    domain.UserID
}

func (MemberAdded) Kind() string { return "memberAdded" }

type MemberRemoved struct {
	ChannelID domain.ChannelID
	UserID    domain.UserID
}

func (MemberRemoved) Kind() string { return "memberRemoved" }

// Error is pushed to the originating connection only, when a
// push-initiated operation fails pre-validation.
type Error struct {
	Message string
}

func (Error) Kind() string { return "error" }
