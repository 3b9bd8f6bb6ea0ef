package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type stack struct {
	registry *runtime.Registry
	tokens   *auth.TokenManager
	auth     services.IAuthService
	chat     services.IChatService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	req := require.New(t)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	moderator, err := moderation.NewModerator([]string{"sardine"}, '*')
	req.NoError(err)

	registry := runtime.NewRegistry()
	channels := repositories.NewChannelRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	users := repositories.NewUserRepository(db)
	router := runtime.NewRouter(log, channels, messages, users, registry, moderator, observability.NewMonitor())
	tokens := auth.NewTokenManager("integration-secret", time.Hour)

	// Badger GC runs alongside the scenario the way it does in production.
	sup := workers.NewSupervisor(log, 200*time.Millisecond)
	go sup.Add(workers.NewBadgerGCWorker(db, log, 100*time.Millisecond)).Run(context.Background())
	t.Cleanup(sup.Stop)

	return &stack{
		registry: registry,
		tokens:   tokens,
		auth:     services.NewAuthService(users, tokens),
		chat:     services.NewChatService(router, channels, messages, users),
	}
}

// register creates an account and resolves the issued token back to an
// identity, the same round-trip a real client performs.
func (s *stack) register(t *testing.T, username string) domain.Identity {
	t.Helper()
	req := require.New(t)

	token, err := s.auth.Register(username, username, username+"@example.com", "ComplexPass123!")
	req.NoError(err)

	identity, err := s.tokens.Resolve(string(token))
	req.NoError(err)
	return identity
}

func waitForMessage(t *testing.T, inbox *sink.ConnSink) domain.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-inbox.Events:
			if nm, ok := e.(event.NewMessage); ok {
				return nm.Message
			}
			// Unrelated signal (memberAdded, channelCreated...), keep waiting
		case <-deadline:
			t.Fatal("Timeout: message has never reached the connection inbox")
		}
	}
}

func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := newStack(t)

	// Given two registered users, alice on two devices and bob on one
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	aliceLaptop := sink.NewConnSink(16)
	alicePhone := sink.NewConnSink(16)
	bobPhone := sink.NewConnSink(16)
	s.registry.Connect(alice.UserID, aliceLaptop)
	s.registry.Connect(alice.UserID, alicePhone)
	s.registry.Connect(bob.UserID, bobPhone)

	// When alice creates a channel with bob as initial member
	channel, err := s.chat.CreateChannel(ctx, chat.CreateChannelCommand{
		RequesterID:    alice.UserID,
		Name:           "general",
		IsPublic:       true,
		InitialMembers: []domain.UserID{bob.UserID},
	})
	req.NoError(err)
	req.Len(channel.Members, 2)

	// And posts a message containing a censored word
	posted, err := s.chat.PostMessage(ctx, chat.PostMessageCommand{
		AuthorID:  alice.UserID,
		ChannelID: channel.ID,
		Content:   "a sardine walks into a bar",
	})
	req.NoError(err)
	req.Equal("a ******* walks into a bar", posted.Content)

	// Then every live connection of every member receives it, without any
	// explicit join: delivery follows durable membership.
	for _, inbox := range []*sink.ConnSink{aliceLaptop, alicePhone, bobPhone} {
		delivered := waitForMessage(t, inbox)
		req.Equal(posted.ID, delivered.ID)
		req.Equal(posted.Content, delivered.Content)
	}

	// And history returns the censored form
	history, err := s.chat.History(chat.HistoryCommand{ChannelID: channel.ID, Page: 1, PageSize: 50})
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(posted.Content, history[0].Content)

	// When both sides open a direct conversation
	first, err := s.chat.CreateOrGetDM(ctx, chat.CreateDirectMessageCommand{
		RequesterID:    alice.UserID,
		TargetUsername: "bob",
	})
	req.NoError(err)
	second, err := s.chat.CreateOrGetDM(ctx, chat.CreateDirectMessageCommand{
		RequesterID:    bob.UserID,
		TargetUsername: "alice",
	})
	req.NoError(err)

	// Then both directions converge on the same conversation
	req.Equal(first.ID, second.ID)
	req.False(second.IsPublic)
}
