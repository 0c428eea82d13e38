package models

import (
	"strings"
	"time"
)

// Message is one physical copy of a direct message. Every logical message
// is filed twice: under the sender's log keyed by the recipient and under
// the recipient's log keyed by the sender. Both copies share LogicalID.
type Message struct {
	ID        string    `json:"id"`
	LogicalID string    `json:"logicalId"`
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq"` // position in the owning log, 1-based
	Likes     []string  `json:"likes"`
}

// LikedBy reports whether uid is in the like set.
func (m *Message) LikedBy(uid string) bool {
	for _, id := range m.Likes {
		if id == uid {
			return true
		}
	}
	return false
}

const (
	conversationPrefix = "messages/"
	indexPrefix        = "recent/"
)

// ConversationKey names the log of ownerID's messages with peerID.
func ConversationKey(ownerID, peerID string) string {
	return conversationPrefix + ownerID + "/" + peerID
}

// IndexKey names ownerID's recent-conversation index.
func IndexKey(ownerID string) string {
	return indexPrefix + ownerID
}

// ParseConversationKey splits a key built by ConversationKey.
func ParseConversationKey(key string) (ownerID, peerID string, ok bool) {
	rest, found := strings.CutPrefix(key, conversationPrefix)
	if !found {
		return "", "", false
	}
	ownerID, peerID, ok = strings.Cut(rest, "/")
	if !ok || ownerID == "" || peerID == "" || strings.Contains(peerID, "/") {
		return "", "", false
	}
	return ownerID, peerID, true
}

// ParseIndexKey returns the owner of a key built by IndexKey.
func ParseIndexKey(key string) (ownerID string, ok bool) {
	ownerID, found := strings.CutPrefix(key, indexPrefix)
	if !found || ownerID == "" || strings.Contains(ownerID, "/") {
		return "", false
	}
	return ownerID, true
}
