package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/feed"
	"github.com/Vasu1712/chatcore/internal/logger"
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage"
	"github.com/Vasu1712/chatcore/internal/storage/memory"
)

var errUnavailable = errors.New("storage unavailable")

// tickClock advances one second per reading from a fixed origin.
func tickClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(t *testing.T, store storage.Backend, opts Options) (*Service, *feed.Broker) {
	t.Helper()
	if store == nil {
		store = memory.NewStore()
	}
	if opts.Now == nil {
		opts.Now = tickClock()
	}
	opts.Logger = logger.Discard()
	b := feed.NewBroker(feed.DefaultWindow, logger.Discard())
	return NewService(store, b, opts), b
}

// failingInserts rejects every insert into logs owned by failOwner.
type failingInserts struct {
	*memory.Store
	failOwner string
}

func (f *failingInserts) InsertMessage(ctx context.Context, ownerID, peerID string, m models.Message) (models.Message, error) {
	if ownerID == f.failOwner {
		return models.Message{}, errUnavailable
	}
	return f.Store.InsertMessage(ctx, ownerID, peerID, m)
}

// failingIndex rejects every index upsert for failOwner.
type failingIndex struct {
	*memory.Store
	failOwner string
}

func (f *failingIndex) UpsertRecent(ctx context.Context, e models.RecentConversationEntry) (models.RecentConversationEntry, bool, error) {
	if e.OwnerID == f.failOwner {
		return models.RecentConversationEntry{}, false, errUnavailable
	}
	return f.Store.UpsertRecent(ctx, e)
}

// restoredFirst files a copy under restoredOwner's log just before the
// service's own insert, the way a reconcile pass would.
type restoredFirst struct {
	*memory.Store
	restoredOwner string
}

func (f *restoredFirst) InsertMessage(ctx context.Context, ownerID, peerID string, m models.Message) (models.Message, error) {
	if ownerID == f.restoredOwner {
		restored := m
		restored.ID = "restored-" + m.LogicalID
		if _, err := f.Store.InsertMessage(ctx, ownerID, peerID, restored); err != nil {
			return models.Message{}, err
		}
	}
	return f.Store.InsertMessage(ctx, ownerID, peerID, m)
}

// alwaysConflicts loses every like swap.
type alwaysConflicts struct {
	*memory.Store
}

func (alwaysConflicts) SwapLikes(context.Context, string, uint64, []string) (uint64, error) {
	return 0, storage.ErrVersionConflict
}

func collectAll(t *testing.T, s *Service, ownerID, peerID string, since uint64) []*models.Message {
	t.Helper()
	var out []*models.Message
	for m, err := range s.List(context.Background(), ownerID, peerID, since) {
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestClockIsStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &clock{now: func() time.Time { return fixed }}

	a, b, d := c.stamp(), c.stamp(), c.stamp()
	assert.Equal(t, fixed, a)
	assert.True(t, b.After(a))
	assert.True(t, d.After(b))
}

func TestSendValidates(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
		text     string
	}{
		{"empty text", "alice", "bob", ""},
		{"whitespace text", "alice", "bob", " \n\t"},
		{"empty from", "", "bob", "hi"},
		{"slash in to", "alice", "bo/b", "hi"},
		{"space in from", "al ice", "bob", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Send(ctx, tt.from, tt.to, tt.text)
			assert.True(t, chaterr.Is(err, chaterr.InvalidArgument), "got %v", err)
		})
	}
}

func TestUsers(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()

	_, err := s.GetUser(ctx, "alice")
	assert.True(t, chaterr.Is(err, chaterr.NotFound))

	_, err = s.PutUser(ctx, models.User{UID: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)

	_, err = s.PutUser(ctx, models.User{UID: ""})
	assert.True(t, chaterr.Is(err, chaterr.InvalidArgument))
}

func TestSubscribeRejectsUnknownKey(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	_, err := s.Subscribe(context.Background(), "nope/alice", 0)
	assert.True(t, chaterr.Is(err, chaterr.InvalidArgument))
}
