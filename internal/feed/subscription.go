package feed

import (
	"context"
	"sync"

	"github.com/Vasu1712/chatcore/internal/models"
)

// Subscription is one consumer's view of a key. Events is closed when the
// subscription ends; Err then reports why (nil after Close).
type Subscription struct {
	key    string
	broker *Broker
	live   chan models.Event
	out    chan models.Event
	done   chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *Subscription) Key() string { return s.key }

func (s *Subscription) Events() <-chan models.Event { return s.out }

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription and releases its buffer.
func (s *Subscription) Close() { s.stop(nil) }

func (s *Subscription) stop(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		s.broker.remove(s)
	})
}

// pump replays from since, then forwards live events. Seqs are contiguous
// per key, so a jump in the live stream is filled from the replayer
// before the event is forwarded.
func (s *Subscription) pump(ctx context.Context, since uint64, replay Replayer) {
	defer close(s.out)
	last := since

	fill := func() bool {
		if replay == nil {
			return true
		}
		for ev, err := range replay.Replay(ctx, s.key, last) {
			if err != nil {
				s.stop(err)
				return false
			}
			if ev.Seq <= last {
				continue
			}
			if !s.emit(ctx, ev) {
				return false
			}
			last = ev.Seq
		}
		return true
	}

	if !fill() {
		return
	}
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.stop(ctx.Err())
			return
		case ev := <-s.live:
			if ev.Seq <= last {
				continue
			}
			if ev.Seq > last+1 {
				if !fill() {
					return
				}
				if ev.Seq <= last {
					continue
				}
			}
			if !s.emit(ctx, ev) {
				return
			}
			last = ev.Seq
		}
	}
}

func (s *Subscription) emit(ctx context.Context, ev models.Event) bool {
	select {
	case s.out <- ev:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		s.stop(ctx.Err())
		return false
	}
}
