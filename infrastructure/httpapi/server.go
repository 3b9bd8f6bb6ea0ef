// Package httpapi is the thin transport edge: it maps wire requests onto
// the core's operations and holds no business logic of its own.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Server struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	resolver    contract.IIdentityResolver
	gateway     *Gateway
}

func NewServer(log *slog.Logger, authService services.IAuthService,
	chatService services.IChatService, resolver contract.IIdentityResolver,
	gateway *Gateway) *Server {
	return &Server{
		log:         log,
		authService: authService,
		chatService: chatService,
		resolver:    resolver,
		gateway:     gateway,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/api/me", s.handleMe)
		r.Get("/api/channels", s.handleListPublicChannels)
		r.Post("/api/channels", s.handleCreateChannel)
		r.Get("/api/me/channels", s.handleListMyChannels)
		r.Get("/api/channels/{channelID}", s.handleGetChannel)
		r.Delete("/api/channels/{channelID}", s.handleDeleteChannel)
		r.Post("/api/channels/{channelID}/members", s.handleAddMember)
		r.Delete("/api/channels/{channelID}/members/{userID}", s.handleRemoveMember)
		r.Post("/api/dm", s.handleCreateDM)
		r.Get("/api/channels/{channelID}/messages", s.handleHistory)
		r.Post("/api/channels/{channelID}/messages", s.handlePostMessage)
		r.Get("/api/messages/{messageID}", s.handleGetMessage)
		r.Patch("/api/messages/{messageID}", s.handleEditMessage)
		r.Delete("/api/messages/{messageID}", s.handleDeleteMessage)

		r.Get("/ws", s.gateway.ServeHTTP)
	})

	return r
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.authService.Register(req.Username, req.DisplayName, req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	user, err := s.chatService.GetUser(identity.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleListPublicChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.chatService.ListPublicChannels()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toChannelResponses(channels))
}

func (s *Server) handleListMyChannels(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	channels, err := s.chatService.ListChannelsForUser(identity.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toChannelResponses(channels))
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	var req createChannelRequest
	if !s.decode(w, r, &req) {
		return
	}
	members := make([]domain.UserID, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, domain.UserID(m))
	}
	channel, err := s.chatService.CreateChannel(r.Context(), chat.CreateChannelCommand{
		RequesterID:    identity.UserID,
		Name:           req.Name,
		Description:    req.Description,
		IsPublic:       req.IsPublic,
		InitialMembers: members,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toChannelResponse(channel))
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := s.chatService.GetChannel(domain.ChannelID(chi.URLParam(r, "channelID")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toChannelResponse(channel))
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	err := s.chatService.DeleteChannel(r.Context(), identity.UserID,
		domain.ChannelID(chi.URLParam(r, "channelID")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	var req addMemberRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.chatService.AddMember(r.Context(), identity.UserID,
		domain.ChannelID(chi.URLParam(r, "channelID")), domain.UserID(req.UserID))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	err := s.chatService.RemoveMember(r.Context(), identity.UserID,
		domain.ChannelID(chi.URLParam(r, "channelID")),
		domain.UserID(chi.URLParam(r, "userID")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateDM(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	var req createDMRequest
	if !s.decode(w, r, &req) {
		return
	}
	channel, err := s.chatService.CreateOrGetDM(r.Context(), chat.CreateDirectMessageCommand{
		RequesterID:    identity.UserID,
		TargetUsername: req.Username,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toChannelResponse(channel))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 50)
	messages, err := s.chatService.History(chat.HistoryCommand{
		ChannelID: domain.ChannelID(chi.URLParam(r, "channelID")),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	var req postMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	message, err := s.chatService.PostMessage(r.Context(), chat.PostMessageCommand{
		AuthorID:  identity.UserID,
		ChannelID: domain.ChannelID(chi.URLParam(r, "channelID")),
		Content:   req.Content,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := s.parseMessageID(w, r)
	if !ok {
		return
	}
	message, err := s.chatService.GetMessage(messageID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMessageResponse(message))
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	messageID, ok := s.parseMessageID(w, r)
	if !ok {
		return
	}
	var req editMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	message, err := s.chatService.EditMessage(r.Context(), chat.EditMessageCommand{
		RequesterID: identity.UserID,
		MessageID:   messageID,
		Content:     req.Content,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMessageResponse(message))
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	messageID, ok := s.parseMessageID(w, r)
	if !ok {
		return
	}
	if err := s.chatService.DeleteMessage(r.Context(), identity.UserID, messageID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) parseMessageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid message id"})
		return uuid.UUID{}, false
	}
	return messageID, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
