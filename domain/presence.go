// Package domain contains core concepts of the chat system.
// This file defines presence identifiers. Presence entries are ephemeral:
// created on connect, destroyed on disconnect, never persisted.
package domain

type ConnectionID string
