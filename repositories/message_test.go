package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Append_And_History(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	channels := NewChannelRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default())

	alice := createTestUser(t, db, "alice")
	channel, err := channels.CreateChannel("general", "", true, alice, nil)
	req.NoError(err)

	contents := []string{"first", "second", "third", "fourth", "fifth"}
	for _, content := range contents {
		_, err := repository.Append(channel.ID, alice, content)
		req.NoError(err)
	}

	t.Run("should return ascending creation order", func(t *testing.T) {
		messages, err := repository.History(channel.ID, 1, 10)
		req.NoError(err)
		req.Len(messages, len(contents))
		for i, message := range messages {
			req.Equal(contents[i], message.Content)
			if i > 0 {
				req.True(messages[i-1].Before(message))
			}
		}
	})

	t.Run("should paginate without gaps or duplicates", func(t *testing.T) {
		pageOne, err := repository.History(channel.ID, 1, 2)
		req.NoError(err)
		pageTwo, err := repository.History(channel.ID, 2, 2)
		req.NoError(err)
		pageThree, err := repository.History(channel.ID, 3, 2)
		req.NoError(err)

		var all []string
		for _, page := range [][]domain.Message{pageOne, pageTwo, pageThree} {
			for _, message := range page {
				all = append(all, message.Content)
			}
		}
		req.Equal(contents, all)
	})

	t.Run("should be idempotent for the same page", func(t *testing.T) {
		first, err := repository.History(channel.ID, 1, 3)
		req.NoError(err)
		second, err := repository.History(channel.ID, 1, 3)
		req.NoError(err)
		req.Equal(first, second)
	})

	t.Run("should return an empty page past the end", func(t *testing.T) {
		messages, err := repository.History(channel.ID, 99, 10)
		req.NoError(err)
		req.Empty(messages)
	})

	t.Run("should reject non-positive paging parameters", func(t *testing.T) {
		_, err := repository.History(channel.ID, 0, 10)
		req.ErrorIs(err, errors.ErrValidation)
		_, err = repository.History(channel.ID, 1, 0)
		req.ErrorIs(err, errors.ErrValidation)
	})
}

func Test_Append_Requires_Channel_And_Author(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	channels := NewChannelRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default())

	alice := createTestUser(t, db, "alice")
	channel, err := channels.CreateChannel("general", "", true, alice, nil)
	req.NoError(err)

	_, err = repository.Append("no-such-channel", alice, "hello")
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = repository.Append(channel.ID, "ghost", "hello")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Concurrent_Appends_Keep_Distinct_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	channels := NewChannelRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default())

	alice := createTestUser(t, db, "alice")
	channel, err := channels.CreateChannel("general", "", true, alice, nil)
	req.NoError(err)

	const writers = 50
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := repository.Append(channel.ID, alice, fmt.Sprintf("message %d", n))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	messages, err := repository.History(channel.ID, 1, writers)
	req.NoError(err)
	req.Len(messages, writers)
	for i := 1; i < len(messages); i++ {
		// Strict order: no two messages share a position
		req.True(messages[i-1].Before(messages[i]))
	}
}

func Test_Append_Races_Membership_Changes(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	channels := NewChannelRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default())

	alice := createTestUser(t, db, "alice")
	channel, err := channels.CreateChannel("general", "", true, alice, nil)
	req.NoError(err)

	joiners := make([]domain.UserID, 10)
	for i := range joiners {
		joiners[i] = createTestUser(t, db, fmt.Sprintf("user%02d", i))
	}

	// Appends read the channel record that member changes rewrite, so the
	// two workloads conflict at the storage layer. Both must still succeed.
	const posts = 30
	errs := make(chan error, posts+len(joiners))
	var wg sync.WaitGroup
	for _, userID := range joiners {
		wg.Add(1)
		go func(id domain.UserID) {
			defer wg.Done()
			_, err := channels.AddMember(channel.ID, id)
			errs <- err
		}(userID)
	}
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := repository.Append(channel.ID, alice, fmt.Sprintf("message %d", n))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	messages, err := repository.History(channel.ID, 1, posts)
	req.NoError(err)
	req.Len(messages, posts)
	final, err := channels.GetChannel(channel.ID)
	req.NoError(err)
	req.Len(final.Members, len(joiners)+1)
}

func Test_Edit_Message(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	channels := NewChannelRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default())

	alice := createTestUser(t, db, "alice")
	channel, err := channels.CreateChannel("general", "", true, alice, nil)
	req.NoError(err)

	before, err := repository.Append(channel.ID, alice, "tyop")
	req.NoError(err)
	_, err = repository.Append(channel.ID, alice, "second")
	req.NoError(err)

	t.Run("should replace content and stamp EditedAt", func(t *testing.T) {
		edited, err := repository.Edit(before.ID, "typo")
		req.NoError(err)
		req.Equal("typo", edited.Content)
		req.NotNil(edited.EditedAt)
		req.Equal(before.CreatedAt, edited.CreatedAt)
	})

	t.Run("should keep the message's place in history", func(t *testing.T) {
		messages, err := repository.History(channel.ID, 1, 10)
		req.NoError(err)
		req.Equal("typo", messages[0].Content)
		req.Equal("second", messages[1].Content)
	})

	t.Run("should report an unknown message", func(t *testing.T) {
		_, err := repository.Edit(uuid.New(), "nope")
		req.ErrorIs(err, errors.ErrNotFound)
	})
}

func Test_Remove_Message(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	channels := NewChannelRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default())

	alice := createTestUser(t, db, "alice")
	channel, err := channels.CreateChannel("general", "", true, alice, nil)
	req.NoError(err)

	message, err := repository.Append(channel.ID, alice, "delete me")
	req.NoError(err)

	removed, err := repository.Remove(message.ID)
	req.NoError(err)
	req.Equal(message.ID, removed.ID)

	_, err = repository.Get(message.ID)
	req.ErrorIs(err, errors.ErrNotFound)

	// Already deleted is an error, not a no-op
	_, err = repository.Remove(message.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Purge_Channel(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	channels := NewChannelRepository(db, slog.Default())
	repository := NewMessageRepository(db, slog.Default())

	alice := createTestUser(t, db, "alice")
	doomed, err := channels.CreateChannel("doomed", "", true, alice, nil)
	req.NoError(err)
	kept, err := channels.CreateChannel("kept", "", true, alice, nil)
	req.NoError(err)

	var doomedIDs []uuid.UUID
	for i := 0; i < 5; i++ {
		message, err := repository.Append(doomed.ID, alice, fmt.Sprintf("msg %d", i))
		req.NoError(err)
		doomedIDs = append(doomedIDs, message.ID)
	}
	survivor, err := repository.Append(kept.ID, alice, "still here")
	req.NoError(err)

	req.NoError(repository.PurgeChannel(doomed.ID))

	messages, err := repository.History(doomed.ID, 1, 10)
	req.NoError(err)
	req.Empty(messages)
	for _, id := range doomedIDs {
		_, err := repository.Get(id)
		req.ErrorIs(err, errors.ErrNotFound)
	}

	// The other channel is untouched
	fetched, err := repository.Get(survivor.ID)
	req.NoError(err)
	req.Equal("still here", fetched.Content)
}
