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
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage/memory"
)

func TestSendWritesBothCopies(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()

	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	sent := collectAll(t, s, "alice", "bob", 0)
	received := collectAll(t, s, "bob", "alice", 0)
	require.Len(t, sent, 1)
	require.Len(t, received, 1)

	assert.Equal(t, rc.MessageID, sent[0].ID)
	assert.NotEqual(t, sent[0].ID, received[0].ID)
	assert.Equal(t, sent[0].LogicalID, received[0].LogicalID)
	for _, m := range []*models.Message{sent[0], received[0]} {
		assert.Equal(t, "hello", m.Text)
		assert.Equal(t, "alice", m.FromID)
		assert.Equal(t, "bob", m.ToID)
		assert.Equal(t, rc.Timestamp, m.Timestamp)
		assert.NotNil(t, m.Likes)
		assert.Empty(t, m.Likes)
	}
}

func TestSendToSelfWritesOnce(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()

	rc, err := s.Send(ctx, "alice", "alice", "note to self")
	require.NoError(t, err)
	assert.Equal(t, rc.Sender, rc.Recipient)

	msgs := collectAll(t, s, "alice", "alice", 0)
	require.Len(t, msgs, 1)
	recent, err := s.ListRecent(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "alice", recent[0].PeerID)
}

func TestListOrderAndCursor(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()

	texts := []string{"one", "two", "three", "four"}
	for i, text := range texts {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		_, err := s.Send(ctx, from, to, text)
		require.NoError(t, err)
	}

	msgs := collectAll(t, s, "alice", "bob", 0)
	require.Len(t, msgs, 4)
	for i, m := range msgs {
		assert.Equal(t, texts[i], m.Text)
		assert.Equal(t, uint64(i+1), m.Seq)
		if i > 0 {
			assert.True(t, m.Timestamp.After(msgs[i-1].Timestamp))
		}
	}

	rest := collectAll(t, s, "alice", "bob", 2)
	require.Len(t, rest, 2)
	assert.Equal(t, "three", rest[0].Text)
}

func TestConcurrentSendsKeepTimestampOrder(t *testing.T) {
	s, _ := newTestService(t, nil, Options{Now: time.Now})
	ctx := context.Background()

	const n = 400
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			from, to := "alice", "bob"
			if i%2 == 1 {
				from, to = to, from
			}
			_, err := s.Send(ctx, from, to, "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, log := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		msgs := collectAll(t, s, log[0], log[1], 0)
		require.Len(t, msgs, n)
		for i := 1; i < len(msgs); i++ {
			assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp),
				"%s/%s seq %d at %s is not after seq %d at %s", log[0], log[1],
				msgs[i].Seq, msgs[i].Timestamp, msgs[i-1].Seq, msgs[i-1].Timestamp)
		}
	}
}

func TestListPagesAndRestarts(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()

	n := listPageSize + 7
	for i := 0; i < n; i++ {
		_, err := s.Send(ctx, "alice", "bob", "msg")
		require.NoError(t, err)
	}

	seq := s.List(ctx, "alice", "bob", 0)
	count := 0
	for range seq {
		count++
	}
	assert.Equal(t, n, count)

	// Ranging again starts over.
	count = 0
	for m, err := range seq {
		require.NoError(t, err)
		count++
		if count == 3 {
			assert.Equal(t, uint64(3), m.Seq)
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestListUnknownConversationIsEmpty(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	assert.Empty(t, collectAll(t, s, "alice", "nobody", 0))
}

func TestGet(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx := context.Background()

	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	m, err := s.Get(ctx, "alice", "bob", rc.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Text)

	_, err = s.Get(ctx, "bob", "alice", rc.MessageID)
	assert.True(t, chaterr.Is(err, chaterr.NotFound), "sender copy id is not in the recipient log")

	_, err = s.Get(ctx, "alice", "bob", "missing")
	assert.True(t, chaterr.Is(err, chaterr.NotFound))
}

func TestPartialFanoutReportsSides(t *testing.T) {
	store := &failingInserts{Store: memory.NewStore(), failOwner: "bob"}
	s, _ := newTestService(t, store, Options{})
	ctx := context.Background()

	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.Error(t, err)
	assert.True(t, chaterr.Is(err, chaterr.WriteFailed))

	var fe *chaterr.FanoutError
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Partial())
	assert.True(t, fe.SenderOK())
	assert.False(t, fe.RecipientOK())
	assert.ErrorIs(t, err, errUnavailable)

	require.NotNil(t, rc.Sender)
	assert.Nil(t, rc.Recipient)
	assert.Equal(t, rc.Sender.ID, rc.MessageID)

	assert.Len(t, collectAll(t, s, "alice", "bob", 0), 1)
	assert.Empty(t, collectAll(t, s, "bob", "alice", 0))

	aliceRecent, err := s.ListRecent(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, aliceRecent, 1)
	bobRecent, err := s.ListRecent(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, bobRecent)
}

func TestIndexFailureIsReportedPerSide(t *testing.T) {
	store := &failingIndex{Store: memory.NewStore(), failOwner: "bob"}
	s, _ := newTestService(t, store, Options{})
	ctx := context.Background()

	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)
	require.NotNil(t, rc.Sender)
	require.NotNil(t, rc.Recipient)
	assert.True(t, rc.SenderIndexed)
	assert.False(t, rc.RecipientIndexed)

	assert.Len(t, collectAll(t, s, "bob", "alice", 0), 1)
	bobRecent, err := s.ListRecent(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, bobRecent)
}

func TestSendAcceptsCopyAlreadyRestored(t *testing.T) {
	store := &restoredFirst{Store: memory.NewStore(), restoredOwner: "bob"}
	s, _ := newTestService(t, store, Options{})
	ctx := context.Background()

	rc, err := s.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)
	require.NotNil(t, rc.Recipient)
	assert.Equal(t, "restored-"+rc.LogicalID, rc.Recipient.ID)
	assert.True(t, rc.SenderIndexed)
	assert.True(t, rc.RecipientIndexed)

	assert.Len(t, collectAll(t, s, "alice", "bob", 0), 1)
	received := collectAll(t, s, "bob", "alice", 0)
	require.Len(t, received, 1)
	assert.Equal(t, rc.LogicalID, received[0].LogicalID)
}

func TestTotalFanoutFailure(t *testing.T) {
	store := &failingInserts{Store: memory.NewStore(), failOwner: "alice"}
	s, _ := newTestService(t, store, Options{})

	_, err := s.Send(context.Background(), "alice", "alice", "hello")
	require.Error(t, err)
	var fe *chaterr.FanoutError
	require.True(t, errors.As(err, &fe))
	assert.False(t, fe.Partial())
	assert.False(t, fe.SenderOK())
}

func TestAppendPublishesInCommitOrder(t *testing.T) {
	s, _ := newTestService(t, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := s.Subscribe(ctx, models.ConversationKey("bob", "alice"), 0)
	require.NoError(t, err)

	const m = 20
	for i := 0; i < m; i++ {
		_, err := s.Send(ctx, "alice", "bob", "ping")
		require.NoError(t, err)
	}

	timeout := time.After(2 * time.Second)
	for i := 1; i <= m; i++ {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, models.MessageAppended, ev.Kind)
			assert.Equal(t, uint64(i), ev.Seq)
			require.NotNil(t, ev.Message)
			assert.Equal(t, "bob", ev.Message.ToID)
		case <-timeout:
			t.Fatalf("received %d of %d events", i-1, m)
		}
	}
}
