package httpapi

import (
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/samber/lo"
)

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type createChannelRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsPublic    bool     `json:"isPublic"`
	Members     []string `json:"members"`
}

type createDMRequest struct {
	Username string `json:"username"`
}

type addMemberRequest struct {
	UserID string `json:"userId"`
}

type postMessageRequest struct {
	Content string `json:"content"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

type channelResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	CreatorID   string    `json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
	Members     []string  `json:"members"`
}

type messageResponse struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channelId"`
	AuthorID  string     `json:"authorId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

type userResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:          string(user.ID),
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}
}

func toChannelResponse(channel domain.Channel) channelResponse {
	return channelResponse{
		ID:          string(channel.ID),
		Name:        channel.Name,
		Description: channel.Description,
		IsPublic:    channel.IsPublic,
		CreatorID:   string(channel.CreatorID),
		CreatedAt:   channel.CreatedAt,
		Members: lo.Map(channel.Members, func(m domain.UserID, _ int) string {
			return string(m)
		}),
	}
}

func toChannelResponses(channels []domain.Channel) []channelResponse {
	return lo.Map(channels, func(channel domain.Channel, _ int) channelResponse {
		return toChannelResponse(channel)
	})
}

func toMessageResponse(message domain.Message) messageResponse {
	return messageResponse{
		ID:        message.ID.String(),
		ChannelID: string(message.ChannelID),
		AuthorID:  string(message.AuthorID),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
		EditedAt:  message.EditedAt,
	}
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(message domain.Message, _ int) messageResponse {
		return toMessageResponse(message)
	})
}

// pushEnvelope is the wire form of a push notification. The payload always
// carries the full entity so clients replace-by-id idempotently.
type pushEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func toPushEnvelope(e event.DomainEvent) pushEnvelope {
	env := pushEnvelope{Type: e.Kind()}
	switch evt := e.(type) {
	case event.NewMessage:
		env.Payload = toMessageResponse(evt.Message)
	case event.MessageUpdated:
		env.Payload = toMessageResponse(evt.Message)
	case event.MessageDeleted:
		env.Payload = map[string]string{
			"messageId": evt.MessageID.String(),
			"channelId": string(evt.ChannelID),
		}
	case event.ChannelCreated:
		env.Payload = toChannelResponse(evt.Channel)
	case event.ChannelRemoved:
		env.Payload = map[string]string{"channelId": string(evt.ChannelID)}
	case event.MemberAdded:
		env.Payload = map[string]string{
			"channelId": string(evt.ChannelID),
			"userId":    string(evt.UserID),
		}
	case event.MemberRemoved:
		env.Payload = map[string]string{
			"channelId": string(evt.ChannelID),
			"userId":    string(evt.UserID),
		}
	case event.Error:
		env.Payload = map[string]string{"message": evt.Message}
	}
	return env
}
