package repositories

import (
	"fmt"

	"chat-relay/domain"

	"github.com/google/uuid"
)

// Key layout. Secondary indexes live under "idx:" so inspection tooling
// can skip them with a single prefix check.
//
//	user:{userID}                      -> user JSON
//	idx:username:{username}            -> userID
//	channel:{channelID}                -> channel JSON
//	idx:dm:{loUserID}:{hiUserID}       -> channelID
//	idx:member:{userID}:{channelID}    -> (empty)
//	msg:{channelID}:{paddedNano}:{id}  -> message JSON
//	idx:msg:{messageID}                -> message key
func userKey(id domain.UserID) []byte {
	return []byte("user:" + id)
}

func usernameKey(username string) []byte {
	return []byte("idx:username:" + username)
}

func channelKey(id domain.ChannelID) []byte {
	return []byte("channel:" + id)
}

func dmKey(a, b domain.UserID) []byte {
	lo, hi := domain.NormalizePair(a, b)
	return []byte(fmt.Sprintf("idx:dm:%s:%s", lo, hi))
}

func memberKey(userID domain.UserID, channelID domain.ChannelID) []byte {
	return []byte(fmt.Sprintf("idx:member:%s:%s", userID, channelID))
}

func memberPrefix(userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("idx:member:%s:", userID))
}

// messageKey pads the timestamp to 19 digits so lexicographic key order is
// chronological order; the message id breaks nanosecond ties.
func messageKey(channelID domain.ChannelID, nano int64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", channelID, nano, id))
}

func messagePrefix(channelID domain.ChannelID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", channelID))
}

func messageIdxKey(id uuid.UUID) []byte {
	return []byte("idx:msg:" + id.String())
}
