package services

import (
	"context"
	"fmt"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/chat"
	"chat-relay/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// IChatService is the request/response surface consumed by the REST and
// push edges. It validates input shape, then delegates orchestration to
// the router and reads to the stores.
type IChatService interface {
	CreateChannel(ctx context.Context, cmd chat.CreateChannelCommand) (domain.Channel, error)
	CreateOrGetDM(ctx context.Context, cmd chat.CreateDirectMessageCommand) (domain.Channel, error)
	GetChannel(channelID domain.ChannelID) (domain.Channel, error)
	ListPublicChannels() ([]domain.Channel, error)
	ListChannelsForUser(userID domain.UserID) ([]domain.Channel, error)
	DeleteChannel(ctx context.Context, requesterID domain.UserID, channelID domain.ChannelID) error
	AddMember(ctx context.Context, requesterID domain.UserID, channelID domain.ChannelID, userID domain.UserID) error
	RemoveMember(ctx context.Context, requesterID domain.UserID, channelID domain.ChannelID, userID domain.UserID) error
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (domain.Message, error)
	GetMessage(messageID uuid.UUID) (domain.Message, error)
	EditMessage(ctx context.Context, cmd chat.EditMessageCommand) (domain.Message, error)
	DeleteMessage(ctx context.Context, requesterID domain.UserID, messageID uuid.UUID) error
	History(cmd chat.HistoryCommand) ([]domain.Message, error)
	GetUser(userID domain.UserID) (domain.User, error)
}

type ChatService struct {
	router    contract.IRouter
	directory contract.IChannelDirectory
	store     contract.IMessageStore
	users     contract.IUserRepository
}

func NewChatService(router contract.IRouter, directory contract.IChannelDirectory,
	store contract.IMessageStore, users contract.IUserRepository) IChatService {
	return &ChatService{router: router, directory: directory, store: store, users: users}
}

func (s *ChatService) CreateChannel(ctx context.Context, cmd chat.CreateChannelCommand) (domain.Channel, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return s.router.CreateChannel(ctx, cmd.RequesterID, cmd.Name, cmd.Description, cmd.IsPublic, cmd.InitialMembers)
}

func (s *ChatService) CreateOrGetDM(ctx context.Context, cmd chat.CreateDirectMessageCommand) (domain.Channel, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Channel{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return s.router.CreateOrGetDM(ctx, cmd.RequesterID, cmd.TargetUsername)
}

func (s *ChatService) GetChannel(channelID domain.ChannelID) (domain.Channel, error) {
	return s.directory.GetChannel(channelID)
}

func (s *ChatService) ListPublicChannels() ([]domain.Channel, error) {
	return s.directory.ListPublicChannels()
}

func (s *ChatService) ListChannelsForUser(userID domain.UserID) ([]domain.Channel, error) {
	return s.directory.ListChannelsForUser(userID)
}

func (s *ChatService) DeleteChannel(ctx context.Context, requesterID domain.UserID, channelID domain.ChannelID) error {
	return s.router.DeleteChannel(ctx, requesterID, channelID)
}

func (s *ChatService) AddMember(ctx context.Context, requesterID domain.UserID,
	channelID domain.ChannelID, userID domain.UserID) error {
	return s.router.AddMember(ctx, requesterID, channelID, userID)
}

func (s *ChatService) RemoveMember(ctx context.Context, requesterID domain.UserID,
	channelID domain.ChannelID, userID domain.UserID) error {
	return s.router.RemoveMember(ctx, requesterID, channelID, userID)
}

func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return s.router.PostMessage(ctx, cmd.AuthorID, cmd.ChannelID, cmd.Content)
}

func (s *ChatService) GetMessage(messageID uuid.UUID) (domain.Message, error) {
	return s.store.Get(messageID)
}

func (s *ChatService) EditMessage(ctx context.Context, cmd chat.EditMessageCommand) (domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return s.router.EditMessage(ctx, cmd.RequesterID, cmd.MessageID, cmd.Content)
}

func (s *ChatService) DeleteMessage(ctx context.Context, requesterID domain.UserID, messageID uuid.UUID) error {
	return s.router.DeleteMessage(ctx, requesterID, messageID)
}

func (s *ChatService) GetUser(userID domain.UserID) (domain.User, error) {
	return s.users.GetUser(userID)
}

func (s *ChatService) History(cmd chat.HistoryCommand) ([]domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return s.store.History(cmd.ChannelID, cmd.Page, cmd.PageSize)
}
