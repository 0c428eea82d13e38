// Package chat is the messaging core: dual-written conversation logs, the
// per-user recent-conversation index and the like toggle. Every committed
// write is published on the change feed while its key is still locked.
package chat

import (
	"cmp"
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/feed"
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage"
)

const DefaultLikeMaxRetries = 8

// Feed is where committed events go. *feed.Broker and the valkey relay
// both satisfy it.
type Feed interface {
	Publish(ev models.Event) bool
	Subscribe(ctx context.Context, key string, since uint64, replay feed.Replayer) (*feed.Subscription, error)
}

type Options struct {
	Now            func() time.Time // defaults to time.Now
	LikeMaxRetries int
	Logger         *slog.Logger
}

type Service struct {
	store          storage.Backend
	feed           Feed
	locks          *keyLock
	pairs          *keyLock // one writer per conversation, held across both copies
	clock          *clock
	likeMaxRetries int
	log            *slog.Logger
}

func NewService(store storage.Backend, f Feed, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LikeMaxRetries <= 0 {
		opts.LikeMaxRetries = DefaultLikeMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:          store,
		feed:           f,
		locks:          newKeyLock(),
		pairs:          newKeyLock(),
		clock:          &clock{now: opts.Now},
		likeMaxRetries: opts.LikeMaxRetries,
		log:            opts.Logger,
	}
}

// clock hands out strictly increasing UTC timestamps at microsecond
// precision, which every backend can store exactly.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *clock) stamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Send stamps and appends a message from fromID to toID and updates both
// recent-conversation entries. Sends between the same two users are
// stamped and written one at a time, so both logs stay in timestamp order.
func (s *Service) Send(ctx context.Context, fromID, toID, text string) (Receipt, error) {
	const op = "chat.Send"
	if err := checkUID(op, "fromId", fromID); err != nil {
		return Receipt{}, err
	}
	if err := checkUID(op, "toId", toID); err != nil {
		return Receipt{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Receipt{}, chaterr.Errorf(chaterr.InvalidArgument, op, "text is empty")
	}
	unlock := s.pairs.lock(pairKey(fromID, toID))
	defer unlock()
	return s.Append(ctx, fromID, toID, text, s.clock.stamp())
}

// pairKey names the conversation between a and b regardless of direction.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "/" + b
}

func (s *Service) PutUser(ctx context.Context, u models.User) (models.User, error) {
	const op = "chat.PutUser"
	if err := checkUID(op, "uid", u.UID); err != nil {
		return models.User{}, err
	}
	if err := s.store.PutUser(ctx, u); err != nil {
		return models.User{}, chaterr.E(chaterr.WriteFailed, op, err)
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, uid string) (models.User, error) {
	const op = "chat.GetUser"
	if err := checkUID(op, "uid", uid); err != nil {
		return models.User{}, err
	}
	u, err := s.store.GetUser(ctx, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, chaterr.Errorf(chaterr.NotFound, op, "user %s", uid)
	}
	if err != nil {
		return models.User{}, chaterr.E(chaterr.WriteFailed, op, err)
	}
	return u, nil
}

// Subscribe attaches to a conversation key or an index key, replaying
// committed events after since before following live ones.
func (s *Service) Subscribe(ctx context.Context, key string, since uint64) (*feed.Subscription, error) {
	const op = "chat.Subscribe"
	if _, _, ok := models.ParseConversationKey(key); !ok {
		if _, ok := models.ParseIndexKey(key); !ok {
			return nil, chaterr.Errorf(chaterr.InvalidArgument, op, "unknown feed key %q", key)
		}
	}
	sub, err := s.feed.Subscribe(ctx, key, since, s)
	if err != nil {
		return nil, chaterr.E(chaterr.InvalidArgument, op, err)
	}
	return sub, nil
}

// Replay yields the committed events of key with Seq > since, ascending.
// For an index key only the live entry of each peer is left to replay.
func (s *Service) Replay(ctx context.Context, key string, since uint64) iter.Seq2[models.Event, error] {
	const op = "chat.Replay"
	if ownerID, peerID, ok := models.ParseConversationKey(key); ok {
		return func(yield func(models.Event, error) bool) {
			for m, err := range s.List(ctx, ownerID, peerID, since) {
				if err != nil {
					yield(models.Event{}, err)
					return
				}
				if !yield(messageEvent(key, *m), nil) {
					return
				}
			}
		}
	}
	if ownerID, ok := models.ParseIndexKey(key); ok {
		return func(yield func(models.Event, error) bool) {
			entries, err := s.ListRecent(ctx, ownerID, since)
			if err != nil {
				yield(models.Event{}, err)
				return
			}
			slices.SortFunc(entries, func(a, b models.RecentConversationEntry) int {
				return cmp.Compare(a.Seq, b.Seq)
			})
			for _, e := range entries {
				if !yield(entryEvent(key, e), nil) {
					return
				}
			}
		}
	}
	return func(yield func(models.Event, error) bool) {
		yield(models.Event{}, chaterr.Errorf(chaterr.InvalidArgument, op, "unknown feed key %q", key))
	}
}

func messageEvent(key string, m models.Message) models.Event {
	return models.Event{Kind: models.MessageAppended, Key: key, Seq: m.Seq, Message: &m}
}

func entryEvent(key string, e models.RecentConversationEntry) models.Event {
	return models.Event{Kind: models.ConversationUpdated, Key: key, Seq: e.Seq, Entry: &e}
}
