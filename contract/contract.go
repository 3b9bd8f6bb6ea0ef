//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one recipient connection's inbox. Consume must never block
// the caller; a full sink reports the drop and the fan-out moves on.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IChannelDirectory is the durable record of channels and their members.
// Authorization is the router's responsibility, not the directory's.
type IChannelDirectory interface {
	CreateChannel(name, description string, isPublic bool, creatorID domain.UserID, initialMembers []domain.UserID) (domain.Channel, error)
	GetOrCreateDirectMessage(a, b domain.UserID) (domain.Channel, error)
	GetChannel(id domain.ChannelID) (domain.Channel, error)
	AddMember(id domain.ChannelID, userID domain.UserID) (domain.Channel, error)
	RemoveMember(id domain.ChannelID, userID domain.UserID) (domain.Channel, error)
	ListPublicChannels() ([]domain.Channel, error)
	ListChannelsForUser(userID domain.UserID) ([]domain.Channel, error)
	DeleteChannel(id domain.ChannelID) error
}

// IMessageStore is the durable, append-only message log. Identity and
// ownership checks are the caller's responsibility.
type IMessageStore interface {
	Append(channelID domain.ChannelID, authorID domain.UserID, content string) (domain.Message, error)
	History(channelID domain.ChannelID, page, pageSize int) ([]domain.Message, error)
	Get(id uuid.UUID) (domain.Message, error)
	Edit(id uuid.UUID, content string) (domain.Message, error)
	Remove(id uuid.UUID) (domain.Message, error)
	PurgeChannel(channelID domain.ChannelID) error
}

type IUserRepository interface {
	CreateUser(username, displayName, email, passwordHash string) (domain.User, error)
	GetUser(id domain.UserID) (domain.User, error)
	GetUserByUsername(username string) (domain.User, error)
	GetPasswordHash(username string) (string, error)
}

// IRegistry tracks live connections and their ephemeral room subscriptions.
// Join/Leave scope presence signals only; message delivery targets the
// connections of durable channel members regardless of Join.
type IRegistry interface {
	Connect(userID domain.UserID, sink EventSink) domain.ConnectionID
	Disconnect(connID domain.ConnectionID)
	Join(connID domain.ConnectionID, channelID domain.ChannelID) error
	Leave(connID domain.ConnectionID, channelID domain.ChannelID)
	UserOf(connID domain.ConnectionID) (domain.UserID, bool)
	ConnectionsOf(userID domain.UserID) []domain.ConnectionID
	SinksOf(userID domain.UserID) []EventSink
	SubscribersOf(channelID domain.ChannelID) []domain.ConnectionID
	EvictChannel(channelID domain.ChannelID)
	IsOnline(userID domain.UserID) bool
}

// IIdentityResolver maps an opaque authentication token to a stable identity.
type IIdentityResolver interface {
	Resolve(token string) (domain.Identity, error)
}

// IRouter is the orchestration core reconciling the request/response and
// push views of the same data.
type IRouter interface {
	CreateChannel(ctx context.Context, requesterID domain.UserID, name, description string, isPublic bool, initialMembers []domain.UserID) (domain.Channel, error)
	CreateOrGetDM(ctx context.Context, requesterID domain.UserID, targetUsername string) (domain.Channel, error)
	DeleteChannel(ctx context.Context, requesterID domain.UserID, channelID domain.ChannelID) error
	AddMember(ctx context.Context, requesterID domain.UserID, channelID domain.ChannelID, userID domain.UserID) error
	RemoveMember(ctx context.Context, requesterID domain.UserID, channelID domain.ChannelID, userID domain.UserID) error
	PostMessage(ctx context.Context, authorID domain.UserID, channelID domain.ChannelID, content string) (domain.Message, error)
	HandleSend(ctx context.Context, connID domain.ConnectionID, channelID domain.ChannelID, content string) (domain.Message, error)
	EditMessage(ctx context.Context, requesterID domain.UserID, messageID uuid.UUID, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, requesterID domain.UserID, messageID uuid.UUID) error
}
