package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Attempt budget for read-modify-write transactions racing badger's
// conflict detection. Conflicts under concurrent writers are a normal
// occurrence, not a failure: every conflict means another writer
// committed, so contention on one record resolves within roughly as many
// attempts as there are writers.
const txnRetries = 50

type ChannelRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChannelRepository(db *badger.DB, log *slog.Logger) contract.IChannelDirectory {
	return &ChannelRepository{db: db, log: log}
}

// diskChannel is the stored representation of a channel.
// Equivalent to diskMessage for the directory domain.
type diskChannel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	CreatorID   string    `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	Members     []string  `json:"members"`
}

// CreateChannel persists a new channel and its membership index entries.
// The creator is always part of the member set, whatever the caller passed.
func (r *ChannelRepository) CreateChannel(name, description string, isPublic bool,
	creatorID domain.UserID, initialMembers []domain.UserID) (domain.Channel, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Channel{}, fmt.Errorf("channel name is empty: %w", errors.ErrValidation)
	}

	members := lo.Uniq(append([]domain.UserID{creatorID}, initialMembers...))
	channel := domain.Channel{
		ID:          domain.ChannelID(uuid.NewString()),
		Name:        name,
		Description: description,
		IsPublic:    isPublic,
		CreatorID:   creatorID,
		CreatedAt:   time.Now().UTC(),
		Members:     members,
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		return writeChannel(txn, channel)
	})
	if err != nil {
		return domain.Channel{}, fmt.Errorf("create channel: %v: %w", err, errors.ErrStorage)
	}
	return channel, nil
}

// GetOrCreateDirectMessage returns the unique private channel for the
// unordered pair {a, b}, creating it on first use.
//
// Two concurrent calls for the same pair (A messages B while B messages A)
// both miss the lookup and race the insert. Badger's transaction conflict
// detection rejects one of them with ErrConflict; the loser retries, finds
// the winner's channel and returns it. Exactly one channel per pair survives.
func (r *ChannelRepository) GetOrCreateDirectMessage(a, b domain.UserID) (domain.Channel, error) {
	if a == b {
		return domain.Channel{}, fmt.Errorf("direct message with self: %w", errors.ErrValidation)
	}

	for attempt := 0; attempt < txnRetries; attempt++ {
		var channel domain.Channel
		err := r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(dmKey(a, b))
			if err == nil {
				return item.Value(func(val []byte) error {
					existing, err := readChannel(txn, domain.ChannelID(val))
					if err != nil {
						return err
					}
					channel = existing
					return nil
				})
			}
			if err != badger.ErrKeyNotFound {
				return err
			}

			first, second := domain.NormalizePair(a, b)
			channel = domain.Channel{
				ID:        domain.ChannelID(uuid.NewString()),
				Name:      domain.DirectChannelName(a, b),
				IsPublic:  false,
				CreatorID: first,
				CreatedAt: time.Now().UTC(),
				Members:   []domain.UserID{first, second},
			}
			if err := txn.Set(dmKey(a, b), []byte(channel.ID)); err != nil {
				return err
			}
			return writeChannel(txn, channel)
		})
		switch {
		case err == nil:
			return channel, nil
		case err == badger.ErrConflict:
			r.log.Debug("Direct message creation raced, retrying", "a", a, "b", b)
			continue
		default:
			return domain.Channel{}, fmt.Errorf("get or create dm: %v: %w", err, errors.ErrStorage)
		}
	}
	return domain.Channel{}, fmt.Errorf("get or create dm did not converge: %w", errors.ErrConflict)
}

func (r *ChannelRepository) GetChannel(id domain.ChannelID) (domain.Channel, error) {
	var channel domain.Channel
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := readChannel(txn, id)
		if err != nil {
			return err
		}
		channel = found
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return domain.Channel{}, fmt.Errorf("channel %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel: %v: %w", err, errors.ErrStorage)
	}
	return channel, nil
}

// AddMember is idempotent: adding an existing member leaves the set unchanged.
func (r *ChannelRepository) AddMember(id domain.ChannelID, userID domain.UserID) (domain.Channel, error) {
	return r.mutateMembers(id, userID, func(channel domain.Channel) domain.Channel {
		if !channel.HasMember(userID) {
			channel.Members = append(channel.Members, userID)
		}
		return channel
	})
}

// RemoveMember drops a user from the member set. Both the channel and the
// user must exist, even when the user was never a member. Removing the
// last member does not delete the channel; deletion is an explicit
// operation.
func (r *ChannelRepository) RemoveMember(id domain.ChannelID, userID domain.UserID) (domain.Channel, error) {
	return r.mutateMembers(id, userID, func(channel domain.Channel) domain.Channel {
		channel.Members = lo.Filter(channel.Members, func(m domain.UserID, _ int) bool {
			return m != userID
		})
		return channel
	})
}

func (r *ChannelRepository) mutateMembers(id domain.ChannelID, userID domain.UserID,
	mutate func(domain.Channel) domain.Channel) (domain.Channel, error) {
	var channel domain.Channel
	err := r.updateWithRetry("mutate members", func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(userID)); err != nil {
			return err
		}
		found, err := readChannel(txn, id)
		if err != nil {
			return err
		}
		channel = mutate(found)
		if err := txn.Delete(memberKey(userID, id)); err != nil {
			return err
		}
		return writeChannel(txn, channel)
	})
	if err == badger.ErrKeyNotFound {
		return domain.Channel{}, fmt.Errorf("channel %s or user %s: %w", id, userID, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("mutate members: %v: %w", err, errors.ErrStorage)
	}
	return channel, nil
}

// updateWithRetry runs fn in a read-write transaction, retrying when
// badger's conflict detection rejects the commit. Same discipline as the
// direct message creation loop: the retry re-reads, so the mutation always
// applies to the winner's state.
func (r *ChannelRepository) updateWithRetry(op string, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < txnRetries; attempt++ {
		err = r.db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
		r.log.Debug("Transaction conflict, retrying", "op", op, "attempt", attempt+1)
	}
	return err
}

// ListPublicChannels returns public channels ordered by creation time,
// newest first.
func (r *ChannelRepository) ListPublicChannels() ([]domain.Channel, error) {
	var channels []domain.Channel
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("channel:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				channel, err := unmarshalChannel(val)
				if err != nil {
					return err
				}
				if channel.IsPublic {
					channels = append(channels, channel)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list public channels: %v: %w", err, errors.ErrStorage)
	}
	sortByCreationDesc(channels)
	return channels, nil
}

// ListChannelsForUser resolves the user's channels through the membership
// index, ordered by creation time, newest first.
func (r *ChannelRepository) ListChannelsForUser(userID domain.UserID) ([]domain.Channel, error) {
	var channels []domain.Channel
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := memberPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			channelID := domain.ChannelID(it.Item().Key()[len(prefix):])
			channel, err := readChannel(txn, channelID)
			if err == badger.ErrKeyNotFound {
				// Index entry outliving its channel is a bug elsewhere; skip it.
				r.log.Warn("Dangling membership index entry", "channel_id", channelID, "user_id", userID)
				continue
			}
			if err != nil {
				return err
			}
			channels = append(channels, channel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list channels for user: %v: %w", err, errors.ErrStorage)
	}
	sortByCreationDesc(channels)
	return channels, nil
}

// DeleteChannel removes the channel record, its DM index entry if any, and
// all membership index entries. Authorization and the message cascade are
// the router's responsibility.
func (r *ChannelRepository) DeleteChannel(id domain.ChannelID) error {
	err := r.updateWithRetry("delete channel", func(txn *badger.Txn) error {
		channel, err := readChannel(txn, id)
		if err != nil {
			return err
		}
		for _, member := range channel.Members {
			if err := txn.Delete(memberKey(member, id)); err != nil {
				return err
			}
		}
		if channel.IsDirect() {
			if err := txn.Delete(dmKey(channel.Members[0], channel.Members[1])); err != nil {
				return err
			}
		}
		return txn.Delete(channelKey(id))
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("channel %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete channel: %v: %w", err, errors.ErrStorage)
	}
	return nil
}

func writeChannel(txn *badger.Txn, channel domain.Channel) error {
	data, err := json.Marshal(fromChannel(channel))
	if err != nil {
		return err
	}
	for _, member := range channel.Members {
		if err := txn.Set(memberKey(member, channel.ID), nil); err != nil {
			return err
		}
	}
	return txn.Set(channelKey(channel.ID), data)
}

func readChannel(txn *badger.Txn, id domain.ChannelID) (domain.Channel, error) {
	item, err := txn.Get(channelKey(id))
	if err != nil {
		return domain.Channel{}, err
	}
	var channel domain.Channel
	err = item.Value(func(val []byte) error {
		channel, err = unmarshalChannel(val)
		return err
	})
	return channel, err
}

func unmarshalChannel(val []byte) (domain.Channel, error) {
	var disk diskChannel
	if err := json.Unmarshal(val, &disk); err != nil {
		return domain.Channel{}, err
	}
	return toChannel(disk), nil
}

func fromChannel(channel domain.Channel) diskChannel {
	return diskChannel{
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

func toChannel(disk diskChannel) domain.Channel {
	return domain.Channel{
		ID:          domain.ChannelID(disk.ID),
		Name:        disk.Name,
		Description: disk.Description,
		IsPublic:    disk.IsPublic,
		CreatorID:   domain.UserID(disk.CreatorID),
		CreatedAt:   disk.CreatedAt,
		Members: lo.Map(disk.Members, func(m string, _ int) domain.UserID {
			return domain.UserID(m)
		}),
	}
}

func sortByCreationDesc(channels []domain.Channel) {
	sort.Slice(channels, func(i, j int) bool {
		if !channels[i].CreatedAt.Equal(channels[j].CreatedAt) {
			return channels[i].CreatedAt.After(channels[j].CreatedAt)
		}
		return channels[i].ID > channels[j].ID
	})
}
