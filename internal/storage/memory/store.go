package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage"
)

type convKey struct {
	owner string
	peer  string
}

type conversationLog struct {
	messages  []models.Message
	byID      map[string]int // message id -> index
	byLogical map[string]int // logical id -> index
}

type likeEntry struct {
	likes   []string
	version uint64
}

// Store is an in-process storage.Backend.
type Store struct {
	mu        sync.RWMutex
	users     map[string]models.User
	logs      map[convKey]*conversationLog
	likes     map[string]likeEntry                                // logicalID -> likes
	recent    map[string]map[string]models.RecentConversationEntry // ownerID -> peerID -> entry
	recentSeq map[string]uint64
}

var _ storage.Backend = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:     make(map[string]models.User),
		logs:      make(map[convKey]*conversationLog),
		likes:     make(map[string]likeEntry),
		recent:    make(map[string]map[string]models.RecentConversationEntry),
		recentSeq: make(map[string]uint64),
	}
}

func (s *Store) PutUser(_ context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, uid string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) InsertMessage(_ context.Context, ownerID, peerID string, m models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := convKey{ownerID, peerID}
	log, ok := s.logs[k]
	if !ok {
		log = &conversationLog{
			byID:      make(map[string]int),
			byLogical: make(map[string]int),
		}
		s.logs[k] = log
	}
	if _, dup := log.byLogical[m.LogicalID]; dup {
		return models.Message{}, storage.ErrDuplicate
	}
	m.Seq = uint64(len(log.messages)) + 1
	m.Likes = nil
	log.byID[m.ID] = len(log.messages)
	log.byLogical[m.LogicalID] = len(log.messages)
	log.messages = append(log.messages, m)
	return m, nil
}

func (s *Store) GetMessage(_ context.Context, ownerID, peerID, messageID string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[convKey{ownerID, peerID}]
	if !ok {
		return models.Message{}, storage.ErrNotFound
	}
	i, ok := log.byID[messageID]
	if !ok {
		return models.Message{}, storage.ErrNotFound
	}
	return log.messages[i], nil
}

// ListMessages relies on Seq being the index+1 of a message in its log.
func (s *Store) ListMessages(_ context.Context, ownerID, peerID string, since uint64, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[convKey{ownerID, peerID}]
	if !ok || since >= uint64(len(log.messages)) {
		return nil, nil
	}
	page := log.messages[since:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	out := make([]models.Message, len(page))
	copy(out, page)
	return out, nil
}

func (s *Store) ListPairs(_ context.Context) ([]storage.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pairs := make([]storage.Pair, 0, len(s.logs))
	for k := range s.logs {
		pairs = append(pairs, storage.Pair{OwnerID: k.owner, PeerID: k.peer})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].OwnerID != pairs[j].OwnerID {
			return pairs[i].OwnerID < pairs[j].OwnerID
		}
		return pairs[i].PeerID < pairs[j].PeerID
	})
	return pairs, nil
}

func (s *Store) GetLikes(_ context.Context, logicalID string) (storage.LikeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.likes[logicalID]
	return storage.LikeRecord{
		LogicalID: logicalID,
		Likes:     append([]string(nil), e.likes...),
		Version:   e.version,
	}, nil
}

func (s *Store) SwapLikes(_ context.Context, logicalID string, expected uint64, likes []string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.likes[logicalID]
	if e.version != expected {
		return 0, storage.ErrVersionConflict
	}
	e = likeEntry{likes: append([]string(nil), likes...), version: expected + 1}
	s.likes[logicalID] = e
	return e.version, nil
}

func (s *Store) GetLikesBatch(_ context.Context, logicalIDs []string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(logicalIDs))
	for _, id := range logicalIDs {
		if e, ok := s.likes[id]; ok && len(e.likes) > 0 {
			out[id] = append([]string(nil), e.likes...)
		}
	}
	return out, nil
}

func (s *Store) UpsertRecent(_ context.Context, e models.RecentConversationEntry) (models.RecentConversationEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.recent[e.OwnerID]
	if !ok {
		entries = make(map[string]models.RecentConversationEntry)
		s.recent[e.OwnerID] = entries
	}
	if live, ok := entries[e.PeerID]; ok && live.Timestamp.After(e.Timestamp) {
		return live, false, nil
	}
	s.recentSeq[e.OwnerID]++
	e.Seq = s.recentSeq[e.OwnerID]
	entries[e.PeerID] = e
	return e, true, nil
}

func (s *Store) ListRecent(_ context.Context, ownerID string) ([]models.RecentConversationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RecentConversationEntry, 0, len(s.recent[ownerID]))
	for _, e := range s.recent[ownerID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

func (s *Store) Close() error { return nil }
