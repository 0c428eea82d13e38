// Package reconcile periodically repairs conversations whose two message
// copies diverged after a partial fan-out write.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/Vasu1712/chatcore/internal/storage"
)

// ErrRunning is returned by RunOnce while another pass is in progress.
var ErrRunning = errors.New("reconcile: pass already running")

// Repairer is the part of the chat service a pass drives.
type Repairer interface {
	ConversationPairs(ctx context.Context) ([]storage.Pair, error)
	RepairPair(ctx context.Context, ownerID, peerID string) (int, error)
}

// Report summarizes one pass.
type Report struct {
	Pairs    int
	Restored int
	Failed   int
}

type Reconciler struct {
	repairer Repairer
	cron     string
	log      *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

func New(repairer Repairer, cron string, log *slog.Logger) *Reconciler {
	return &Reconciler{repairer: repairer, cron: cron, log: log, now: time.Now}
}

// Start runs passes on the cron schedule until ctx is done. An empty
// schedule disables the loop.
func (r *Reconciler) Start(ctx context.Context) {
	if r.cron == "" {
		r.log.Info("reconcile disabled")
		return
	}
	r.log.Info("reconcile enabled", "cron", r.cron)
	go r.scheduleLoop(ctx)
}

func (r *Reconciler) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(r.cron, r.now(), false)
		if err != nil {
			r.log.Error("reconcile next tick failed", "cron", r.cron, "err", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			r.runJob(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) runJob(ctx context.Context) {
	rep, err := r.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunning):
		r.log.Warn("reconcile pass skipped, previous pass still running")
	case err != nil:
		r.log.Error("reconcile pass failed", "err", err)
	default:
		r.log.Info("reconcile pass done", "pairs", rep.Pairs, "restored", rep.Restored, "failed", rep.Failed)
	}
}

// RunOnce walks every conversation log once. A pair that fails is
// counted and logged; the pass carries on with the rest.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Report{}, ErrRunning
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	pairs, err := r.repairer.ConversationPairs(ctx)
	if err != nil {
		return Report{}, err
	}
	var rep Report
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Pairs++
		n, err := r.repairer.RepairPair(ctx, p.OwnerID, p.PeerID)
		rep.Restored += n
		if err != nil {
			rep.Failed++
			r.log.Warn("reconcile pair failed", "owner", p.OwnerID, "peer", p.PeerID, "err", err)
		}
	}
	return rep, nil
}
