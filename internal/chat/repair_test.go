package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatcore/internal/storage/memory"
)

func TestRepairPairRestoresMissingCopy(t *testing.T) {
	store := &failingInserts{Store: memory.NewStore(), failOwner: "bob"}
	s, _ := newTestService(t, store, Options{})
	ctx := context.Background()

	rc, err := s.Send(ctx, "alice", "bob", "lost")
	require.Error(t, err)
	require.Empty(t, collectAll(t, s, "bob", "alice", 0))

	store.failOwner = ""
	n, err := s.RepairPair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mirror := collectAll(t, s, "bob", "alice", 0)
	require.Len(t, mirror, 1)
	assert.Equal(t, rc.LogicalID, mirror[0].LogicalID)
	assert.Equal(t, "lost", mirror[0].Text)
	assert.Equal(t, rc.Timestamp, mirror[0].Timestamp)

	recent, err := s.ListRecent(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "alice", recent[0].PeerID)
	assert.Equal(t, rc.Timestamp, recent[0].Timestamp)

	// Nothing left to do.
	n, err = s.RepairPair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.RepairPair(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConversationPairs(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()
	_, err := s.Send(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	pairs, err := s.ConversationPairs(ctx)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
}
