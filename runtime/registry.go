package runtime

import (
	"fmt"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/google/uuid"
)

// Registry is the in-memory record of live connections. It is rebuilt from
// nothing on restart; reconnecting clients simply connect and re-join.
//
// Synchronization is per-entry: user entries, connections and channel
// subscriber sets each carry their own lock, so the high-frequency
// connect/disconnect/join/leave traffic never funnels through a global
// mutex. The top-level maps are sync.Map for lock-free lookups.
type Registry struct {
	users sync.Map // domain.UserID -> *userEntry
	conns sync.Map // domain.ConnectionID -> *connection
	subs  sync.Map // domain.ChannelID -> *subscriberSet
}

type userEntry struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]*connection
	// Set when the last connection leaves, just before the entry is
	// unlinked from the registry. A concurrent Connect that lands on a
	// retired entry must start over with a fresh one.
	retired bool
}

type connection struct {
	id     domain.ConnectionID
	userID domain.UserID
	sink   contract.EventSink

	mu     sync.Mutex
	joined map[domain.ChannelID]struct{}
	closed bool
}

type subscriberSet struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Connect registers a new live connection for a user. A user may hold any
// number of concurrent connections (multi-tab, multi-device); all of them
// receive pushes.
func (r *Registry) Connect(userID domain.UserID, sink contract.EventSink) domain.ConnectionID {
	conn := &connection{
		id:     domain.ConnectionID(uuid.NewString()),
		userID: userID,
		sink:   sink,
		joined: make(map[domain.ChannelID]struct{}),
	}
	r.conns.Store(conn.id, conn)

	for {
		val, _ := r.users.LoadOrStore(userID, &userEntry{conns: make(map[domain.ConnectionID]*connection)})
		entry := val.(*userEntry)
		entry.mu.Lock()
		if entry.retired {
			// Lost a race with the disconnect of this user's last other
			// connection. Unlink the dead entry and retry.
			entry.mu.Unlock()
			r.users.CompareAndDelete(userID, val)
			continue
		}
		entry.conns[conn.id] = conn
		entry.mu.Unlock()
		break
	}

	return conn.id
}

// Disconnect removes the connection and all of its room subscriptions in
// one pass, before any further push could be scheduled for it. Unknown ids
// are a no-op, which makes transport-side cleanup idempotent.
func (r *Registry) Disconnect(connID domain.ConnectionID) {
	val, ok := r.conns.LoadAndDelete(connID)
	if !ok {
		return
	}
	conn := val.(*connection)

	conn.mu.Lock()
	conn.closed = true
	channels := make([]domain.ChannelID, 0, len(conn.joined))
	for channelID := range conn.joined {
		channels = append(channels, channelID)
	}
	conn.joined = nil
	conn.mu.Unlock()

	for _, channelID := range channels {
		r.dropSubscriber(channelID, connID)
	}

	if val, ok := r.users.Load(conn.userID); ok {
		entry := val.(*userEntry)
		entry.mu.Lock()
		delete(entry.conns, connID)
		empty := len(entry.conns) == 0
		if empty {
			entry.retired = true
		}
		entry.mu.Unlock()
		// Last connection gone: the user transitions to offline. The
		// compare guards against unlinking a fresh entry installed by a
		// concurrent Connect.
		if empty {
			r.users.CompareAndDelete(conn.userID, val)
		}
	}
}

// Join subscribes a connection to a channel's presence scope. Joining a
// channel the connection already subscribes to is a no-op. An unknown
// connection id is a caller bug and is surfaced as an error.
func (r *Registry) Join(connID domain.ConnectionID, channelID domain.ChannelID) error {
	val, ok := r.conns.Load(connID)
	if !ok {
		return fmt.Errorf("join from unknown connection %s: %w", connID, errors.ErrUnauthenticated)
	}
	conn := val.(*connection)

	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return fmt.Errorf("join from closed connection %s: %w", connID, errors.ErrUnauthenticated)
	}
	conn.joined[channelID] = struct{}{}
	conn.mu.Unlock()

	set := r.subscribersFor(channelID)
	set.mu.Lock()
	set.conns[connID] = struct{}{}
	set.mu.Unlock()

	// A disconnect may have completed between the closed check above and
	// the insert; undo the subscription instead of leaking a dead
	// connection into the set.
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if closed {
		r.dropSubscriber(channelID, connID)
		return fmt.Errorf("join from closed connection %s: %w", connID, errors.ErrUnauthenticated)
	}
	return nil
}

func (r *Registry) Leave(connID domain.ConnectionID, channelID domain.ChannelID) {
	if val, ok := r.conns.Load(connID); ok {
		conn := val.(*connection)
		conn.mu.Lock()
		delete(conn.joined, channelID)
		conn.mu.Unlock()
	}
	r.dropSubscriber(channelID, connID)
}

func (r *Registry) UserOf(connID domain.ConnectionID) (domain.UserID, bool) {
	val, ok := r.conns.Load(connID)
	if !ok {
		return "", false
	}
	return val.(*connection).userID, true
}

func (r *Registry) ConnectionsOf(userID domain.UserID) []domain.ConnectionID {
	val, ok := r.users.Load(userID)
	if !ok {
		return nil
	}
	entry := val.(*userEntry)
	entry.mu.RLock()
	defer entry.mu.RUnlock()

	ids := make([]domain.ConnectionID, 0, len(entry.conns))
	for id := range entry.conns {
		ids = append(ids, id)
	}
	return ids
}

// SinksOf resolves every live inbox of a user, the unit the fan-out router
// pushes to.
func (r *Registry) SinksOf(userID domain.UserID) []contract.EventSink {
	val, ok := r.users.Load(userID)
	if !ok {
		return nil
	}
	entry := val.(*userEntry)
	entry.mu.RLock()
	defer entry.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(entry.conns))
	for _, conn := range entry.conns {
		sinks = append(sinks, conn.sink)
	}
	return sinks
}

// SubscribersOf lists connections that explicitly joined the channel.
// This scopes ephemeral room signals only; it does not gate message
// delivery.
func (r *Registry) SubscribersOf(channelID domain.ChannelID) []domain.ConnectionID {
	val, ok := r.subs.Load(channelID)
	if !ok {
		return nil
	}
	set := val.(*subscriberSet)
	set.mu.RLock()
	defer set.mu.RUnlock()

	ids := make([]domain.ConnectionID, 0, len(set.conns))
	for id := range set.conns {
		ids = append(ids, id)
	}
	return ids
}

// EvictChannel clears every subscription to a channel, part of the channel
// delete cascade.
func (r *Registry) EvictChannel(channelID domain.ChannelID) {
	val, ok := r.subs.LoadAndDelete(channelID)
	if !ok {
		return
	}
	set := val.(*subscriberSet)
	set.mu.Lock()
	conns := set.conns
	set.conns = make(map[domain.ConnectionID]struct{})
	set.mu.Unlock()

	for connID := range conns {
		if val, ok := r.conns.Load(connID); ok {
			conn := val.(*connection)
			conn.mu.Lock()
			if !conn.closed {
				delete(conn.joined, channelID)
			}
			conn.mu.Unlock()
		}
	}
}

// CountUsers reports how many users hold at least one live connection.
func (r *Registry) CountUsers() int {
	count := 0
	r.users.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (r *Registry) CountConnections() int {
	count := 0
	r.conns.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	_, ok := r.users.Load(userID)
	return ok
}

func (r *Registry) subscribersFor(channelID domain.ChannelID) *subscriberSet {
	val, _ := r.subs.LoadOrStore(channelID, &subscriberSet{conns: make(map[domain.ConnectionID]struct{})})
	return val.(*subscriberSet)
}

func (r *Registry) dropSubscriber(channelID domain.ChannelID, connID domain.ConnectionID) {
	val, ok := r.subs.Load(channelID)
	if !ok {
		return
	}
	set := val.(*subscriberSet)
	set.mu.Lock()
	delete(set.conns, connID)
	empty := len(set.conns) == 0
	set.mu.Unlock()
	// Empty sets are removed so idle channels don't accumulate.
	if empty {
		r.subs.Delete(channelID)
	}
}
