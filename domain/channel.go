// Package domain contains core concepts of the chat system.
// This file defines Channel entities and their membership invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"
)

type ChannelID string

// Channel is a named message stream.
// A public channel's membership is advisory: any authenticated user may
// read and post. A private channel's membership is the access control list.
// CreatorID is set server-side at creation and is authoritative for delete.
type Channel struct {
	ID          ChannelID
	Name        string
	Description string
	IsPublic    bool
	CreatorID   UserID
	CreatedAt   time.Time
	Members     []UserID
}

func (c Channel) HasMember(id UserID) bool {
	for _, m := range c.Members {
		if m == id {
			return true
		}
	}
	return false
}

// IsDirect reports whether the channel is a deduplicated 1:1 conversation.
func (c Channel) IsDirect() bool {
	return !c.IsPublic && len(c.Members) == 2
}

// CanPost reports whether a user may append messages to the channel.
func (c Channel) CanPost(id UserID) bool {
	return c.IsPublic || c.HasMember(id)
}

// NormalizePair orders a direct-message member pair deterministically so
// that (A,B) and (B,A) resolve to the same storage key.
func NormalizePair(a, b UserID) (UserID, UserID) {
	if b < a {
		return b, a
	}
	return a, b
}

// DirectChannelName derives the canonical name of a DM channel from its
// normalized member pair. Repeated creations under race converge on it.
func DirectChannelName(a, b UserID) string {
	lo, hi := NormalizePair(a, b)
	return "dm:" + string(lo) + ":" + string(hi)
}
