package runtime

import (
	"sync"
	"testing"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/sink"

	"github.com/stretchr/testify/require"
)

func Test_Connect_And_Disconnect(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := domain.UserID("alice")

	// Given two devices for the same user
	first := registry.Connect(alice, sink.NewConnSink(10))
	second := registry.Connect(alice, sink.NewConnSink(10))
	req.NotEqual(first, second)

	// Then both connections resolve to the user and both inboxes are live
	userID, ok := registry.UserOf(first)
	req.True(ok)
	req.Equal(alice, userID)
	req.Len(registry.ConnectionsOf(alice), 2)
	req.Len(registry.SinksOf(alice), 2)
	req.True(registry.IsOnline(alice))

	// When one device disconnects, the user stays online
	registry.Disconnect(first)
	req.Len(registry.ConnectionsOf(alice), 1)
	req.True(registry.IsOnline(alice))

	// When the last device disconnects, the user goes offline
	registry.Disconnect(second)
	req.False(registry.IsOnline(alice))
	req.Empty(registry.ConnectionsOf(alice))

	// Disconnecting twice is harmless
	registry.Disconnect(second)
}

func Test_Join_And_Leave(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	channel := domain.ChannelID("general")

	connID := registry.Connect("alice", sink.NewConnSink(10))

	t.Run("should subscribe the connection once", func(t *testing.T) {
		req.NoError(registry.Join(connID, channel))
		req.NoError(registry.Join(connID, channel)) // idempotent
		req.Equal([]domain.ConnectionID{connID}, registry.SubscribersOf(channel))
	})

	t.Run("should reject an unknown connection", func(t *testing.T) {
		err := registry.Join("bogus", channel)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("should unsubscribe on leave", func(t *testing.T) {
		registry.Leave(connID, channel)
		req.Empty(registry.SubscribersOf(channel))
		// Leaving twice is harmless
		registry.Leave(connID, channel)
	})
}

func Test_Disconnect_Clears_Subscriptions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	connID := registry.Connect("alice", sink.NewConnSink(10))
	other := registry.Connect("bob", sink.NewConnSink(10))

	req.NoError(registry.Join(connID, "general"))
	req.NoError(registry.Join(connID, "random"))
	req.NoError(registry.Join(other, "general"))

	registry.Disconnect(connID)

	req.Equal([]domain.ConnectionID{other}, registry.SubscribersOf("general"))
	req.Empty(registry.SubscribersOf("random"))

	// The dead connection cannot rejoin
	req.ErrorIs(registry.Join(connID, "general"), errors.ErrUnauthenticated)
}

func Test_Evict_Channel(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	connID := registry.Connect("alice", sink.NewConnSink(10))
	req.NoError(registry.Join(connID, "doomed"))
	req.NoError(registry.Join(connID, "kept"))

	registry.EvictChannel("doomed")

	req.Empty(registry.SubscribersOf("doomed"))
	req.Equal([]domain.ConnectionID{connID}, registry.SubscribersOf("kept"))
}

func Test_Registry_Concurrent_Churn(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	channel := domain.ChannelID("general")

	const users = 20
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := domain.UserID(rune('a' + n))
			connID := registry.Connect(userID, sink.NewConnSink(10))
			_ = registry.Join(connID, channel)
			registry.Leave(connID, channel)
			_ = registry.Join(connID, channel)
			registry.Disconnect(connID)
		}(i)
	}
	wg.Wait()

	// Everyone churned through; nothing may remain
	req.Empty(registry.SubscribersOf(channel))
	for i := 0; i < users; i++ {
		req.False(registry.IsOnline(domain.UserID(rune('a' + i))))
	}
}

func Test_Connect_Races_Last_Disconnect(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := domain.UserID("alice")

	// A new device connecting while the last old device disconnects must
	// never leave the user reported offline.
	for i := 0; i < 500; i++ {
		old := registry.Connect(alice, sink.NewConnSink(1))

		var wg sync.WaitGroup
		var fresh domain.ConnectionID
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Disconnect(old)
		}()
		go func() {
			defer wg.Done()
			fresh = registry.Connect(alice, sink.NewConnSink(1))
		}()
		wg.Wait()

		req.True(registry.IsOnline(alice), "iteration %d: live connection reported offline", i)
		req.Len(registry.SinksOf(alice), 1, "iteration %d", i)
		registry.Disconnect(fresh)
	}
	req.False(registry.IsOnline(alice))
}

func Test_Join_Races_Disconnect(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	channel := domain.ChannelID("general")

	// Whatever the interleaving, a disconnected connection must never
	// linger in the channel's subscriber set.
	for i := 0; i < 500; i++ {
		connID := registry.Connect("alice", sink.NewConnSink(1))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = registry.Join(connID, channel)
		}()
		go func() {
			defer wg.Done()
			registry.Disconnect(connID)
		}()
		wg.Wait()

		req.Empty(registry.SubscribersOf(channel), "iteration %d: dead connection left subscribed", i)
	}
}
