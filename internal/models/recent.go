package models

import "time"

// RecentConversationEntry is the denormalized "latest message with peer"
// row kept per (owner, peer). There is at most one live entry per pair.
type RecentConversationEntry struct {
	OwnerID             string    `json:"ownerId"`
	PeerID              string    `json:"peerId"`
	FromID              string    `json:"fromId"`
	ToID                string    `json:"toId"`
	Text                string    `json:"text"`
	Timestamp           time.Time `json:"timestamp"`
	PeerEmail           string    `json:"peerEmail"`
	PeerProfileImageURL string    `json:"peerProfileImageUrl"`
	Seq                 uint64    `json:"seq"` // owner's index version at upsert time
}
