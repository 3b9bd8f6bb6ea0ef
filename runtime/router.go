// Package runtime orchestrates presence, persistence and fan-out.
// It routes operations between the durable stores and the live
// connections without containing storage or transport logic itself.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"

	"github.com/google/uuid"
)

// Router is the fan-out core. Every mutating operation follows the same
// shape: authorize, persist, then push the full persisted entity to the
// live connections of every affected channel member.
//
// Persist-then-broadcast runs under a per-channel lock so messages reach
// all observers in exactly the order they were durably appended. A message
// that fails to persist is never broadcast.
type Router struct {
	log       *slog.Logger
	directory contract.IChannelDirectory
	store     contract.IMessageStore
	users     contract.IUserRepository
	registry  contract.IRegistry
	moderator Moderator
	monitor   *observability.Monitor // nil disables counting

	channelLocks sync.Map // domain.ChannelID -> *sync.Mutex
}

// Moderator sanitizes message text before it is persisted.
type Moderator interface {
	Censor(original string) string
}

func NewRouter(log *slog.Logger, directory contract.IChannelDirectory,
	store contract.IMessageStore, users contract.IUserRepository,
	registry contract.IRegistry, moderator Moderator,
	monitor *observability.Monitor) *Router {
	return &Router{
		log:       log,
		directory: directory,
		store:     store,
		users:     users,
		registry:  registry,
		moderator: moderator,
		monitor:   monitor,
	}
}

// CreateChannel creates a channel on behalf of the requester and notifies
// every live connection of the initial members.
func (r *Router) CreateChannel(ctx context.Context, requesterID domain.UserID,
	name, description string, isPublic bool, initialMembers []domain.UserID) (domain.Channel, error) {
	channel, err := r.directory.CreateChannel(name, description, isPublic, requesterID, initialMembers)
	if err != nil {
		return domain.Channel{}, err
	}
	r.broadcast(ctx, channel.Members, event.ChannelCreated{Channel: channel})
	return channel, nil
}

// CreateOrGetDM resolves the target username and delegates to the
// directory's deduplicated lookup-or-create. Both members' live
// connections are notified so an already-open client sees the new
// conversation without refetching.
func (r *Router) CreateOrGetDM(ctx context.Context, requesterID domain.UserID,
	targetUsername string) (domain.Channel, error) {
	target, err := r.users.GetUserByUsername(targetUsername)
	if err != nil {
		return domain.Channel{}, err
	}
	if target.ID == requesterID {
		return domain.Channel{}, fmt.Errorf("direct message with self: %w", errors.ErrValidation)
	}

	channel, err := r.directory.GetOrCreateDirectMessage(requesterID, target.ID)
	if err != nil {
		return domain.Channel{}, err
	}
	r.broadcast(ctx, channel.Members, event.ChannelCreated{Channel: channel})
	return channel, nil
}

// DeleteChannel is creator-only. The cascade is an ordered sequence of
// independent steps, not a transaction: purge messages, drop the channel,
// evict live subscriptions, then notify former members. A failed push never
// rolls back the delete.
func (r *Router) DeleteChannel(ctx context.Context, requesterID domain.UserID,
	channelID domain.ChannelID) error {
	channel, err := r.directory.GetChannel(channelID)
	if err != nil {
		return err
	}
	if channel.CreatorID != requesterID {
		return fmt.Errorf("only the creator may delete channel %s: %w", channelID, errors.ErrForbidden)
	}

	if err := r.store.PurgeChannel(channelID); err != nil {
		return err
	}
	if err := r.directory.DeleteChannel(channelID); err != nil {
		return err
	}
	r.registry.EvictChannel(channelID)
	r.broadcast(ctx, channel.Members, event.ChannelRemoved{ChannelID: channelID})
	return nil
}

// AddMember lets an existing member add a user to a channel; on public
// channels users may also add themselves.
func (r *Router) AddMember(ctx context.Context, requesterID domain.UserID,
	channelID domain.ChannelID, userID domain.UserID) error {
	channel, err := r.directory.GetChannel(channelID)
	if err != nil {
		return err
	}
	selfJoin := requesterID == userID && channel.IsPublic
	if !channel.HasMember(requesterID) && !selfJoin {
		return fmt.Errorf("requester %s is not a member of %s: %w", requesterID, channelID, errors.ErrForbidden)
	}

	updated, err := r.directory.AddMember(channelID, userID)
	if err != nil {
		return err
	}
	r.broadcast(ctx, updated.Members, event.MemberAdded{ChannelID: channelID, UserID: userID})
	return nil
}

// RemoveMember covers both leaving (requester removes themselves) and
// kicking (creator removes someone else). The removed user is notified
// along with the remaining members.
func (r *Router) RemoveMember(ctx context.Context, requesterID domain.UserID,
	channelID domain.ChannelID, userID domain.UserID) error {
	channel, err := r.directory.GetChannel(channelID)
	if err != nil {
		return err
	}
	if requesterID != userID && requesterID != channel.CreatorID {
		return fmt.Errorf("only the creator may remove members from %s: %w", channelID, errors.ErrForbidden)
	}

	if _, err := r.directory.RemoveMember(channelID, userID); err != nil {
		return err
	}
	// Former member set: the removed user must learn about the removal too.
	r.broadcast(ctx, channel.Members, event.MemberRemoved{ChannelID: channelID, UserID: userID})
	return nil
}

// PostMessage is the durability point of the send path. Under the
// channel's lock: moderate, append, broadcast. The lock guarantees that a
// later-submitted message can neither be durably ordered before an earlier
// one nor overtake it on the way to observers.
//
// Delivery targets the union of live connections of all channel members,
// independent of room-join: a member who never "opened" the channel still
// receives the message rather than silently missing it.
func (r *Router) PostMessage(ctx context.Context, authorID domain.UserID,
	channelID domain.ChannelID, content string) (domain.Message, error) {
	channel, err := r.directory.GetChannel(channelID)
	if err != nil {
		return domain.Message{}, err
	}
	if !channel.CanPost(authorID) {
		return domain.Message{}, fmt.Errorf("user %s may not post to %s: %w", authorID, channelID, errors.ErrForbidden)
	}
	if r.moderator != nil {
		content = r.moderator.Censor(content)
	}

	lock := r.lockFor(channelID)
	lock.Lock()
	defer lock.Unlock()

	message, err := r.store.Append(channelID, authorID, content)
	if err != nil {
		return domain.Message{}, err
	}
	r.monitor.MessagePosted()
	r.broadcast(ctx, channel.Members, event.NewMessage{Message: message})
	return message, nil
}

// HandleSend is the push-transport entry of the send path: it resolves the
// connection to its user, then posts as that user. A stale connection id
// fails with ErrUnauthenticated.
func (r *Router) HandleSend(ctx context.Context, connID domain.ConnectionID,
	channelID domain.ChannelID, content string) (domain.Message, error) {
	userID, ok := r.registry.UserOf(connID)
	if !ok {
		return domain.Message{}, fmt.Errorf("unknown connection %s: %w", connID, errors.ErrUnauthenticated)
	}
	return r.PostMessage(ctx, userID, channelID, content)
}

// EditMessage mutates a message's content. Only the author may edit; the
// full updated entity is pushed to the channel's live members.
func (r *Router) EditMessage(ctx context.Context, requesterID domain.UserID,
	messageID uuid.UUID, content string) (domain.Message, error) {
	message, err := r.store.Get(messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if message.AuthorID != requesterID {
		return domain.Message{}, fmt.Errorf("message %s belongs to another author: %w", messageID, errors.ErrForbidden)
	}
	if r.moderator != nil {
		content = r.moderator.Censor(content)
	}

	updated, err := r.store.Edit(messageID, content)
	if err != nil {
		return domain.Message{}, err
	}
	r.notifyChannel(ctx, updated.ChannelID, event.MessageUpdated{Message: updated})
	return updated, nil
}

// DeleteMessage removes a message. Only the author may delete.
func (r *Router) DeleteMessage(ctx context.Context, requesterID domain.UserID,
	messageID uuid.UUID) error {
	message, err := r.store.Get(messageID)
	if err != nil {
		return err
	}
	if message.AuthorID != requesterID {
		return fmt.Errorf("message %s belongs to another author: %w", messageID, errors.ErrForbidden)
	}

	removed, err := r.store.Remove(messageID)
	if err != nil {
		return err
	}
	r.notifyChannel(ctx, removed.ChannelID, event.MessageDeleted{MessageID: messageID, ChannelID: removed.ChannelID})
	return nil
}

func (r *Router) notifyChannel(ctx context.Context, channelID domain.ChannelID, e event.DomainEvent) {
	channel, err := r.directory.GetChannel(channelID)
	if err != nil {
		r.log.Warn("Channel vanished before notification", "channel_id", channelID, "kind", e.Kind())
		return
	}
	r.broadcast(ctx, channel.Members, e)
}

// broadcast pushes an event to every live connection of every listed
// member. Each push is independent and fire-and-forget: a full or dead
// sink is logged and skipped, never retried inline, never fatal - the
// recipient catches up via history.
func (r *Router) broadcast(ctx context.Context, members []domain.UserID, e event.DomainEvent) {
	for _, member := range members {
		for _, sink := range r.registry.SinksOf(member) {
			if err := sink.Consume(ctx, e); err != nil {
				r.monitor.EventDropped()
				r.log.Warn("Push failed, recipient will catch up via history",
					"user_id", member, "kind", e.Kind(), "error", err)
				continue
			}
			r.monitor.EventDelivered()
		}
	}
}

func (r *Router) lockFor(channelID domain.ChannelID) *sync.Mutex {
	lock, _ := r.channelLocks.LoadOrStore(channelID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
