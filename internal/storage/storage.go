// Package storage holds the persistence contracts shared by the memory and
// postgres backends.
package storage

import (
	"context"
	"errors"

	"github.com/Vasu1712/chatcore/internal/models"
)

var (
	ErrNotFound        = errors.New("storage: not found")
	ErrDuplicate       = errors.New("storage: logical message already in log")
	ErrVersionConflict = errors.New("storage: version conflict")
)

// Pair identifies one conversation log.
type Pair struct {
	OwnerID string
	PeerID  string
}

// LikeRecord is the canonical like set of one logical message. Version 0
// means no record exists yet.
type LikeRecord struct {
	LogicalID string
	Likes     []string
	Version   uint64
}

type Users interface {
	PutUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, uid string) (models.User, error)
}

type Messages interface {
	// InsertMessage appends m to the (owner, peer) log and returns it with
	// Seq assigned. ErrDuplicate if the log already holds m.LogicalID.
	InsertMessage(ctx context.Context, ownerID, peerID string, m models.Message) (models.Message, error)
	GetMessage(ctx context.Context, ownerID, peerID, messageID string) (models.Message, error)
	// ListMessages returns at most limit messages with Seq > since, ascending.
	ListMessages(ctx context.Context, ownerID, peerID string, since uint64, limit int) ([]models.Message, error)
	ListPairs(ctx context.Context) ([]Pair, error)
}

type Likes interface {
	GetLikes(ctx context.Context, logicalID string) (LikeRecord, error)
	// SwapLikes stores likes only if the record is still at expected
	// version, returning the new version or ErrVersionConflict.
	SwapLikes(ctx context.Context, logicalID string, expected uint64, likes []string) (uint64, error)
	GetLikesBatch(ctx context.Context, logicalIDs []string) (map[string][]string, error)
}

type Index interface {
	// UpsertRecent replaces the (owner, peer) entry and assigns the
	// owner's next index Seq. An entry older than the live one is not
	// applied; the live entry is returned with applied=false.
	UpsertRecent(ctx context.Context, e models.RecentConversationEntry) (stored models.RecentConversationEntry, applied bool, err error)
	// ListRecent returns ownerID's entries, most recent first.
	ListRecent(ctx context.Context, ownerID string) ([]models.RecentConversationEntry, error)
}

// Backend is one configured connection to the store.
type Backend interface {
	Users
	Messages
	Likes
	Index
	Close() error
}
