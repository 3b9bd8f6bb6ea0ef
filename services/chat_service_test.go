package services

import (
	"context"
	"strings"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatServiceFixture struct {
	router    *mocks.MockIRouter
	directory *mocks.MockIChannelDirectory
	store     *mocks.MockIMessageStore
	users     *mocks.MockIUserRepository
	svc       IChatService
}

func newChatServiceFixture(t *testing.T) chatServiceFixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := chatServiceFixture{
		router:    mocks.NewMockIRouter(ctrl),
		directory: mocks.NewMockIChannelDirectory(ctrl),
		store:     mocks.NewMockIMessageStore(ctrl),
		users:     mocks.NewMockIUserRepository(ctrl),
	}
	f.svc = NewChatService(f.router, f.directory, f.store, f.users)
	return f
}

func TestChatService_CreateChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("should delegate to the router when the command is valid", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		cmd := chat.CreateChannelCommand{
			RequesterID: "alice",
			Name:        "general",
			IsPublic:    true,
		}
		created := domain.Channel{ID: "chan-1", Name: "general"}

		f.router.EXPECT().
			CreateChannel(ctx, cmd.RequesterID, cmd.Name, cmd.Description, cmd.IsPublic, cmd.InitialMembers).
			Return(created, nil).
			Times(1)

		got, err := f.svc.CreateChannel(ctx, cmd)
		req.NoError(err)
		req.Equal(created, got)
	})

	t.Run("should reject a blank name without touching the router", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		_, err := f.svc.CreateChannel(ctx, chat.CreateChannelCommand{RequesterID: "alice"})
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should reject an oversized description", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		cmd := chat.CreateChannelCommand{
			RequesterID: "alice",
			Name:        "general",
			Description: strings.Repeat("x", 501),
		}
		_, err := f.svc.CreateChannel(ctx, cmd)
		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestChatService_PostMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("should delegate to the router when the command is valid", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		cmd := chat.PostMessageCommand{AuthorID: "alice", ChannelID: "chan-1", Content: "hello"}
		posted := domain.Message{ChannelID: "chan-1", AuthorID: "alice", Content: "hello"}

		f.router.EXPECT().
			PostMessage(ctx, cmd.AuthorID, cmd.ChannelID, cmd.Content).
			Return(posted, nil).
			Times(1)

		got, err := f.svc.PostMessage(ctx, cmd)
		req.NoError(err)
		req.Equal(posted, got)
	})

	t.Run("should reject empty content", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		_, err := f.svc.PostMessage(ctx, chat.PostMessageCommand{AuthorID: "alice", ChannelID: "chan-1"})
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should reject content above the size limit", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		cmd := chat.PostMessageCommand{
			AuthorID:  "alice",
			ChannelID: "chan-1",
			Content:   strings.Repeat("x", 4001),
		}
		_, err := f.svc.PostMessage(ctx, cmd)
		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestChatService_History(t *testing.T) {
	t.Run("should read from the store when the command is valid", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		page := []domain.Message{{ChannelID: "chan-1", Content: "hello"}}
		f.store.EXPECT().
			History(domain.ChannelID("chan-1"), 1, 50).
			Return(page, nil).
			Times(1)

		got, err := f.svc.History(chat.HistoryCommand{ChannelID: "chan-1", Page: 1, PageSize: 50})
		req.NoError(err)
		req.Equal(page, got)
	})

	t.Run("should reject non-positive pagination", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		_, err := f.svc.History(chat.HistoryCommand{ChannelID: "chan-1", Page: 0, PageSize: 50})
		req.ErrorIs(err, errors.ErrValidation)

		_, err = f.svc.History(chat.HistoryCommand{ChannelID: "chan-1", Page: 1, PageSize: 0})
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should cap the page size", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		_, err := f.svc.History(chat.HistoryCommand{ChannelID: "chan-1", Page: 1, PageSize: 201})
		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestChatService_DirectMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("should delegate DM resolution by username", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		dm := domain.Channel{ID: "dm-1", IsPublic: false}
		f.router.EXPECT().
			CreateOrGetDM(ctx, domain.UserID("alice"), "bob").
			Return(dm, nil).
			Times(1)

		got, err := f.svc.CreateOrGetDM(ctx, chat.CreateDirectMessageCommand{RequesterID: "alice", TargetUsername: "bob"})
		req.NoError(err)
		req.Equal(dm, got)
	})

	t.Run("should reject a missing target", func(t *testing.T) {
		req := require.New(t)
		f := newChatServiceFixture(t)

		_, err := f.svc.CreateOrGetDM(ctx, chat.CreateDirectMessageCommand{RequesterID: "alice"})
		req.ErrorIs(err, errors.ErrValidation)
	})
}

func TestChatService_PassThroughReads(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)

	channel := domain.Channel{ID: "chan-1", Name: "general"}
	f.directory.EXPECT().GetChannel(domain.ChannelID("chan-1")).Return(channel, nil)
	got, err := f.svc.GetChannel("chan-1")
	req.NoError(err)
	req.Equal(channel, got)

	f.directory.EXPECT().ListPublicChannels().Return([]domain.Channel{channel}, nil)
	channels, err := f.svc.ListPublicChannels()
	req.NoError(err)
	req.Len(channels, 1)

	user := domain.User{ID: "alice", Username: "alice42"}
	f.users.EXPECT().GetUser(domain.UserID("alice")).Return(user, nil)
	gotUser, err := f.svc.GetUser("alice")
	req.NoError(err)
	req.Equal(user, gotUser)
}
