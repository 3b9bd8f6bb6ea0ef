package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	// Per-channel append clocks. Two concurrent appends to the same channel
	// must never be assigned identical order keys, so each channel's last
	// issued timestamp is tracked and bumped under its own lock.
	mu     sync.Mutex
	clocks map[domain.ChannelID]*channelClock
}

type channelClock struct {
	mu       sync.Mutex
	lastNano int64
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) contract.IMessageStore {
	return &MessageRepository{
		db:     db,
		log:    log,
		clocks: make(map[domain.ChannelID]*channelClock),
	}
}

// diskMessage is the stored representation of a message.
type diskMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	EditedAt  *int64 `json:"edited_at,omitempty"`
}

// Append persists a message with a strictly increasing order key within its
// channel. Channel and author must exist; the durable write and both index
// entries commit in one transaction.
func (m *MessageRepository) Append(channelID domain.ChannelID, authorID domain.UserID,
	content string) (domain.Message, error) {
	clock := m.clockFor(channelID)
	clock.mu.Lock()
	defer clock.mu.Unlock()

	nano := time.Now().UTC().UnixNano()
	if nano <= clock.lastNano {
		nano = clock.lastNano + 1
	}

	message := domain.Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Unix(0, nano).UTC(),
	}

	// The existence checks read the channel record, so an append racing a
	// membership change trips badger's conflict detection. Retry with the
	// same key: the order slot was reserved under the clock lock above.
	var err error
	for attempt := 0; attempt < txnRetries; attempt++ {
		err = m.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(channelKey(channelID)); err != nil {
				return err
			}
			if _, err := txn.Get(userKey(authorID)); err != nil {
				return err
			}
			key := messageKey(channelID, nano, message.ID)
			data, err := json.Marshal(fromMessage(message))
			if err != nil {
				return err
			}
			if err := txn.Set(messageIdxKey(message.ID), key); err != nil {
				return err
			}
			return txn.Set(key, data)
		})
		if err != badger.ErrConflict {
			break
		}
		m.log.Debug("Append raced a channel update, retrying", "channel_id", channelID, "attempt", attempt+1)
	}
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("channel %s or user %s: %w", channelID, authorID, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message: %v: %w", err, errors.ErrStorage)
	}

	clock.lastNano = nano
	return message, nil
}

// History returns one page of a channel's log in ascending creation order.
// Pages are 1-indexed; an out-of-range page yields an empty slice, never an
// error. Thanks to the padded timestamp in the key, a plain forward prefix
// scan is already chronologically sorted.
func (m *MessageRepository) History(channelID domain.ChannelID, page, pageSize int) ([]domain.Message, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("page and pageSize must be positive: %w", errors.ErrValidation)
	}

	skip := (page - 1) * pageSize
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := messagePrefix(channelID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skip > 0 {
				skip--
				continue
			}
			if len(messages) == pageSize {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				message, err := unmarshalMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: %v: %w", err, errors.ErrStorage)
	}
	return messages, nil
}

func (m *MessageRepository) Get(id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		found, err := readMessage(txn, id)
		if err != nil {
			return err
		}
		message = found
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("get message: %v: %w", err, errors.ErrStorage)
	}
	return message, nil
}

// Edit replaces the content and stamps EditedAt. The order key is part of
// the message's identity and never changes, so edited messages keep their
// place in history. Ownership is checked by the caller.
func (m *MessageRepository) Edit(id uuid.UUID, content string) (domain.Message, error) {
	var message domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		found, err := readMessage(txn, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		found.Content = content
		found.EditedAt = &now

		data, err := json.Marshal(fromMessage(found))
		if err != nil {
			return err
		}
		message = found
		return txn.Set(messageKey(found.ChannelID, found.CreatedAt.UnixNano(), found.ID), data)
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("edit message: %v: %w", err, errors.ErrStorage)
	}
	return message, nil
}

// Remove deletes a message and its index entry. A missing message is an
// error, not a no-op: callers distinguish "already deleted" from "deleted
// now" for audit purposes.
func (m *MessageRepository) Remove(id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		found, err := readMessage(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(messageKey(found.ChannelID, found.CreatedAt.UnixNano(), found.ID)); err != nil {
			return err
		}
		message = found
		return txn.Delete(messageIdxKey(id))
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("remove message: %v: %w", err, errors.ErrStorage)
	}
	return message, nil
}

// PurgeChannel hard-deletes every message of a channel. Called by the
// router as part of the channel delete cascade.
func (m *MessageRepository) PurgeChannel(channelID domain.ChannelID) error {
	// Collect first: deleting while iterating the same prefix is undefined.
	var keys [][]byte
	var ids []uuid.UUID
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := messagePrefix(channelID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
			err := it.Item().Value(func(val []byte) error {
				message, err := unmarshalMessage(val)
				if err != nil {
					return err
				}
				ids = append(ids, message.ID)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("purge channel: %v: %w", err, errors.ErrStorage)
	}

	batch := m.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return fmt.Errorf("purge channel: %v: %w", err, errors.ErrStorage)
		}
	}
	for _, id := range ids {
		if err := batch.Delete(messageIdxKey(id)); err != nil {
			return fmt.Errorf("purge channel: %v: %w", err, errors.ErrStorage)
		}
	}
	if err := batch.Flush(); err != nil {
		return fmt.Errorf("purge channel: %v: %w", err, errors.ErrStorage)
	}
	m.log.Debug("Purged channel messages", "channel_id", channelID, "count", len(keys))
	return nil
}

func (m *MessageRepository) clockFor(channelID domain.ChannelID) *channelClock {
	m.mu.Lock()
	defer m.mu.Unlock()
	clock, ok := m.clocks[channelID]
	if !ok {
		clock = &channelClock{}
		m.clocks[channelID] = clock
	}
	return clock
}

func readMessage(txn *badger.Txn, id uuid.UUID) (domain.Message, error) {
	idxItem, err := txn.Get(messageIdxKey(id))
	if err != nil {
		return domain.Message{}, err
	}
	var key []byte
	if err := idxItem.Value(func(val []byte) error {
		key = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return domain.Message{}, err
	}

	item, err := txn.Get(key)
	if err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	err = item.Value(func(val []byte) error {
		message, err = unmarshalMessage(val)
		return err
	})
	return message, err
}

func unmarshalMessage(val []byte) (domain.Message, error) {
	var disk diskMessage
	if err := json.Unmarshal(val, &disk); err != nil {
		return domain.Message{}, err
	}
	return toMessage(disk)
}

func fromMessage(message domain.Message) diskMessage {
	disk := diskMessage{
		ID:        message.ID.String(),
		ChannelID: string(message.ChannelID),
		AuthorID:  string(message.AuthorID),
		Content:   message.Content,
		CreatedAt: message.CreatedAt.UnixNano(),
	}
	if message.EditedAt != nil {
		nano := message.EditedAt.UnixNano()
		disk.EditedAt = &nano
	}
	return disk
}

func toMessage(disk diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		ID:        parsedID,
		ChannelID: domain.ChannelID(disk.ChannelID),
		AuthorID:  domain.UserID(disk.AuthorID),
		Content:   disk.Content,
		CreatedAt: time.Unix(0, disk.CreatedAt).UTC(),
	}
	if disk.EditedAt != nil {
		at := time.Unix(0, *disk.EditedAt).UTC()
		message.EditedAt = &at
	}
	return message, nil
}
