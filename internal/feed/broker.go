// Package feed delivers committed messages and index updates to
// long-lived subscribers, in commit order per key.
package feed

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/telemetry"
)

// DefaultWindow is the per-subscriber in-flight event bound.
const DefaultWindow = 64

// keyIdleTTL is how long a key without subscribers keeps its last seq.
const keyIdleTTL = 10 * time.Minute

var (
	ErrSlowConsumer = errors.New("feed: subscriber fell behind, resubscribe with its cursor")
	ErrEmptyKey     = errors.New("feed: empty subscription key")
)

// Replayer yields the committed events of key with Seq > since, ascending.
type Replayer interface {
	Replay(ctx context.Context, key string, since uint64) iter.Seq2[models.Event, error]
}

type published struct {
	seq uint64
	at  time.Time
}

// Broker fans published events out to the subscribers of their key.
// Keys with no subscribers forget their last seq once idle for keyIdleTTL;
// a later subscriber dedupes against its own cursor instead.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	last   map[string]published
	swept  time.Time
	window int
	log    *slog.Logger
}

func NewBroker(window int, log *slog.Logger) *Broker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Broker{
		subs:   make(map[string]map[*Subscription]struct{}),
		last:   make(map[string]published),
		window: window,
		log:    log,
	}
}

// Publish hands ev to every subscriber of ev.Key without blocking. It
// returns false, and delivers nothing, when ev is not newer than the last
// event published for the key. Subscribers whose window is full are
// terminated with ErrSlowConsumer.
func (b *Broker) Publish(ev models.Event) bool {
	var overflow []*Subscription

	now := time.Now()
	b.mu.Lock()
	if now.Sub(b.swept) >= keyIdleTTL {
		b.sweep(now)
	}
	if ev.Seq <= b.last[ev.Key].seq {
		b.mu.Unlock()
		return false
	}
	b.last[ev.Key] = published{seq: ev.Seq, at: now}
	for sub := range b.subs[ev.Key] {
		select {
		case sub.live <- ev:
		default:
			overflow = append(overflow, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range overflow {
		b.log.Warn("dropping slow subscriber", "key", ev.Key, "seq", ev.Seq)
		telemetry.DroppedSubscribers.Inc()
		sub.stop(ErrSlowConsumer)
	}
	return true
}

// Subscribe attaches to key. Committed events after since are replayed
// first, then live events follow. The subscription ends when ctx is done,
// Close is called, or it falls behind.
func (b *Broker) Subscribe(ctx context.Context, key string, since uint64, replay Replayer) (*Subscription, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	sub := &Subscription{
		key:    key,
		broker: b,
		live:   make(chan models.Event, b.window),
		out:    make(chan models.Event),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[*Subscription]struct{})
	}
	b.subs[key][sub] = struct{}{}
	b.mu.Unlock()
	telemetry.ActiveSubscriptions.Inc()

	go sub.pump(ctx, since, replay)
	return sub, nil
}

// sweep drops idle keys without subscribers. b.mu must be held.
func (b *Broker) sweep(now time.Time) {
	for key, p := range b.last {
		if len(b.subs[key]) == 0 && now.Sub(p.at) >= keyIdleTTL {
			delete(b.last, key)
		}
	}
	b.swept = now
}

// Subscribers returns how many subscriptions are attached to key.
func (b *Broker) Subscribers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[sub.key]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			telemetry.ActiveSubscriptions.Dec()
		}
		if len(subs) == 0 {
			delete(b.subs, sub.key)
		}
	}
}
