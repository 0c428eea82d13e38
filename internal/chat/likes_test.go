package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/storage/memory"
)

func TestToggleParity(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()
	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	for n := 1; n <= 5; n++ {
		res, err := s.ToggleLike(ctx, "alice", "bob", rc.MessageID, "bob")
		require.NoError(t, err)
		assert.Equal(t, n%2 == 1, res.Liked, "after %d toggles", n)
		assert.Equal(t, n%2 == 1, len(res.Likes) == 1)

		liked, err := s.IsLiked(ctx, "alice", "bob", rc.MessageID, "bob")
		require.NoError(t, err)
		assert.Equal(t, res.Liked, liked)
	}
}

func TestLikesAreSharedByBothCopies(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()
	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	// Bob likes through his own copy; Alice sees it on hers.
	_, err = s.ToggleLike(ctx, "bob", "alice", rc.Recipient.ID, "bob")
	require.NoError(t, err)

	m, err := s.Get(ctx, "alice", "bob", rc.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, m.Likes)

	liked, err := s.IsLiked(ctx, "alice", "bob", rc.MessageID, "bob")
	require.NoError(t, err)
	assert.True(t, liked)

	msgs := collectAll(t, s, "bob", "alice", 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"bob"}, msgs[0].Likes)
}

func TestToggleDoesNotTouchIndex(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()
	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	before, err := s.ListRecent(ctx, "alice", 0)
	require.NoError(t, err)
	_, err = s.ToggleLike(ctx, "alice", "bob", rc.MessageID, "alice")
	require.NoError(t, err)
	after, err := s.ListRecent(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConcurrentTogglesConverge(t *testing.T) {
	s, _ := newTestService(t, nil, Options{LikeMaxRetries: 10000})
	ctx := context.Background()
	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	const users = 16
	want := []string{}
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		uid := fmt.Sprintf("user%02d", u)
		toggles := u%3 + 1 // 1, 2 or 3 toggles
		if toggles%2 == 1 {
			want = append(want, uid)
		}
		for i := 0; i < toggles; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.ToggleLike(ctx, "alice", "bob", rc.MessageID, uid)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	m, err := s.Get(ctx, "bob", "alice", rc.Recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, want, m.Likes)
}

func TestToggleConflictAfterRetries(t *testing.T) {
	s, _ := newTestService(t, alwaysConflicts{memory.NewStore()}, Options{LikeMaxRetries: 3})
	ctx := context.Background()
	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	_, err = s.ToggleLike(ctx, "alice", "bob", rc.MessageID, "bob")
	assert.True(t, chaterr.Is(err, chaterr.Conflict), "got %v", err)
}

func TestToggleUnknownMessage(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	_, err := s.ToggleLike(context.Background(), "alice", "bob", "missing", "bob")
	assert.True(t, chaterr.Is(err, chaterr.NotFound))
}

func TestToggleMember(t *testing.T) {
	out, liked := toggleMember([]string{"c", "a"}, "b")
	assert.True(t, liked)
	assert.Equal(t, []string{"a", "b", "c"}, out)

	out, liked = toggleMember(out, "a")
	assert.False(t, liked)
	assert.Equal(t, []string{"b", "c"}, out)
}
