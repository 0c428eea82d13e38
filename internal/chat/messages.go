package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage"
	"github.com/Vasu1712/chatcore/internal/telemetry"
)

const listPageSize = 100

const (
	sideSender    = "sender"
	sideRecipient = "recipient"
)

// Receipt describes an Append. Sender and Recipient are nil for a copy
// that was not written. MessageID is the sender copy's id. SenderIndexed
// and RecipientIndexed report whether that owner's recent-conversation
// entry was brought up to the message; a false value with a committed copy
// is left for reconciliation.
type Receipt struct {
	MessageID        string
	LogicalID        string
	Timestamp        time.Time
	Sender           *models.Message
	Recipient        *models.Message
	SenderIndexed    bool
	RecipientIndexed bool
}

// Append files one logical message under (fromID, toID) and (toID, fromID).
// Both copies are always attempted; when either fails the returned error
// is WriteFailed wrapping a *chaterr.FanoutError that says which side
// landed. Each written copy also refreshes its owner's index entry and
// the receipt says whether that succeeded. A message to oneself has a
// single log and is written once.
func (s *Service) Append(ctx context.Context, fromID, toID, text string, ts time.Time) (Receipt, error) {
	const op = "chat.Append"
	base := models.Message{
		LogicalID: uuid.NewString(),
		FromID:    fromID,
		ToID:      toID,
		Text:      text,
		Timestamp: ts,
	}
	rc := Receipt{LogicalID: base.LogicalID, Timestamp: ts}

	if fromID == toID {
		m, indexed, err := s.deliver(ctx, fromID, toID, base, sideSender)
		if err != nil {
			telemetry.FanoutFailures.WithLabelValues("total").Inc()
			return rc, chaterr.E(chaterr.WriteFailed, op, &chaterr.FanoutError{SenderErr: err, RecipientErr: err})
		}
		rc.MessageID, rc.Sender, rc.Recipient = m.ID, m, m
		rc.SenderIndexed, rc.RecipientIndexed = indexed, indexed
		return rc, nil
	}

	var (
		wg                      sync.WaitGroup
		sender, recipient       *models.Message
		senderErr, recipientErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sender, rc.SenderIndexed, senderErr = s.deliver(ctx, fromID, toID, base, sideSender)
	}()
	go func() {
		defer wg.Done()
		recipient, rc.RecipientIndexed, recipientErr = s.deliver(ctx, toID, fromID, base, sideRecipient)
	}()
	wg.Wait()

	rc.Sender, rc.Recipient = sender, recipient
	if sender != nil {
		rc.MessageID = sender.ID
	}
	if senderErr == nil && recipientErr == nil {
		return rc, nil
	}

	fe := &chaterr.FanoutError{SenderErr: senderErr, RecipientErr: recipientErr}
	outcome := "total"
	if fe.Partial() {
		outcome = "partial"
	}
	telemetry.FanoutFailures.WithLabelValues(outcome).Inc()
	s.log.Warn("fan-out write failed",
		"logical_id", base.LogicalID,
		"from", fromID,
		"to", toID,
		"sender_ok", fe.SenderOK(),
		"recipient_ok", fe.RecipientOK(),
		"err", fe,
	)
	return rc, chaterr.E(chaterr.WriteFailed, op, fe)
}

// deliver writes ownerID's copy and then moves peerID to the front of
// ownerID's index. A failed index write does not fail the delivery: the
// copy is committed, so it comes back as indexed=false and reconciliation
// brings the entry up to date. A copy already present under the logical
// id, restored by another instance's reconcile pass, counts as delivered.
func (s *Service) deliver(ctx context.Context, ownerID, peerID string, base models.Message, side string) (*models.Message, bool, error) {
	m, err := s.writeCopy(ctx, ownerID, peerID, base)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		m, err = s.findCopy(ctx, ownerID, peerID, base.LogicalID)
		if err != nil {
			return nil, false, err
		}
	case err != nil:
		return nil, false, err
	default:
		telemetry.MessagesAppended.WithLabelValues(side).Inc()
	}

	if _, _, err := s.UpsertRecent(ctx, ownerID, peerID, s.snapshot(ctx, ownerID, peerID, m)); err != nil {
		s.log.Error("index upsert failed", "owner", ownerID, "peer", peerID, "message_id", m.ID, "err", err)
		return &m, false, nil
	}
	return &m, true, nil
}

// findCopy returns the copy of logicalID in the (ownerID, peerID) log.
func (s *Service) findCopy(ctx context.Context, ownerID, peerID, logicalID string) (models.Message, error) {
	for m, err := range s.List(ctx, ownerID, peerID, 0) {
		if err != nil {
			return models.Message{}, err
		}
		if m.LogicalID == logicalID {
			return *m, nil
		}
	}
	return models.Message{}, fmt.Errorf("copy of %s missing from %s: %w", logicalID, models.ConversationKey(ownerID, peerID), storage.ErrNotFound)
}

// writeCopy inserts a fresh physical copy of base into the (ownerID,
// peerID) log and publishes it before releasing the key.
func (s *Service) writeCopy(ctx context.Context, ownerID, peerID string, base models.Message) (models.Message, error) {
	m := base
	m.ID = uuid.NewString()
	m.Likes = nil

	key := models.ConversationKey(ownerID, peerID)
	unlock := s.locks.lock(key)
	defer unlock()

	stored, err := s.store.InsertMessage(ctx, ownerID, peerID, m)
	if err != nil {
		return models.Message{}, err
	}
	stored.Likes = []string{}
	s.feed.Publish(messageEvent(key, stored))
	return stored, nil
}

// Get returns one physical copy with the logical message's like set.
func (s *Service) Get(ctx context.Context, ownerID, peerID, messageID string) (*models.Message, error) {
	const op = "chat.Get"
	m, err := s.getCopy(ctx, op, ownerID, peerID, messageID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetLikes(ctx, m.LogicalID)
	if err != nil {
		return nil, chaterr.E(chaterr.WriteFailed, op, err)
	}
	m.Likes = normalizeLikes(rec.Likes)
	return &m, nil
}

func (s *Service) getCopy(ctx context.Context, op, ownerID, peerID, messageID string) (models.Message, error) {
	if err := checkUID(op, "ownerId", ownerID); err != nil {
		return models.Message{}, err
	}
	if err := checkUID(op, "peerId", peerID); err != nil {
		return models.Message{}, err
	}
	m, err := s.store.GetMessage(ctx, ownerID, peerID, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Message{}, chaterr.Errorf(chaterr.NotFound, op, "message %s in %s", messageID, models.ConversationKey(ownerID, peerID))
	}
	if err != nil {
		return models.Message{}, chaterr.E(chaterr.WriteFailed, op, err)
	}
	return m, nil
}

// List yields the (ownerID, peerID) log after the since cursor in Seq
// order. It reads lazily a page at a time; ranging over it again starts a
// fresh read. An unknown conversation is an empty log.
func (s *Service) List(ctx context.Context, ownerID, peerID string, since uint64) iter.Seq2[*models.Message, error] {
	const op = "chat.List"
	return func(yield func(*models.Message, error) bool) {
		if err := checkUID(op, "ownerId", ownerID); err != nil {
			yield(nil, err)
			return
		}
		if err := checkUID(op, "peerId", peerID); err != nil {
			yield(nil, err)
			return
		}
		cursor := since
		for {
			page, err := s.store.ListMessages(ctx, ownerID, peerID, cursor, listPageSize)
			if err != nil {
				yield(nil, chaterr.E(chaterr.WriteFailed, op, err))
				return
			}
			if len(page) == 0 {
				return
			}
			ids := make([]string, len(page))
			for i, m := range page {
				ids[i] = m.LogicalID
			}
			likes, err := s.store.GetLikesBatch(ctx, ids)
			if err != nil {
				yield(nil, chaterr.E(chaterr.WriteFailed, op, err))
				return
			}
			for _, m := range page {
				m.Likes = normalizeLikes(likes[m.LogicalID])
				cursor = m.Seq
				if !yield(&m, nil) {
					return
				}
			}
			if len(page) < listPageSize {
				return
			}
		}
	}
}

// normalizeLikes returns a sorted, non-nil copy.
func normalizeLikes(likes []string) []string {
	out := make([]string, len(likes))
	copy(out, likes)
	slices.Sort(out)
	return out
}
