package chat

import (
	"context"
	"errors"

	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage"
	"github.com/Vasu1712/chatcore/internal/telemetry"
)

// ConversationPairs lists every conversation log in the store.
func (s *Service) ConversationPairs(ctx context.Context) ([]storage.Pair, error) {
	pairs, err := s.store.ListPairs(ctx)
	if err != nil {
		return nil, chaterr.E(chaterr.WriteFailed, "chat.ConversationPairs", err)
	}
	return pairs, nil
}

// RepairPair copies into the (peerID, ownerID) log every logical message
// of the (ownerID, peerID) log that it lacks, then brings both owners'
// index entries up to their log's latest message. Restored copies keep
// their logical id, text and timestamp but are appended at the end of the
// mirror log. It holds the conversation against concurrent sends while it
// runs. It returns the number of copies written.
func (s *Service) RepairPair(ctx context.Context, ownerID, peerID string) (int, error) {
	const op = "chat.RepairPair"
	unlock := s.pairs.lock(pairKey(ownerID, peerID))
	defer unlock()

	source, err := s.collect(ctx, ownerID, peerID)
	if err != nil {
		return 0, err
	}
	if ownerID == peerID {
		return 0, s.refreshEntry(ctx, ownerID, peerID, latest(source))
	}
	mirror, err := s.collect(ctx, peerID, ownerID)
	if err != nil {
		return 0, err
	}

	have := make(map[string]struct{}, len(mirror))
	for _, m := range mirror {
		have[m.LogicalID] = struct{}{}
	}
	restored := 0
	for _, m := range source {
		if _, ok := have[m.LogicalID]; ok {
			continue
		}
		copied, err := s.writeCopy(ctx, peerID, ownerID, m)
		if errors.Is(err, storage.ErrDuplicate) {
			continue
		}
		if err != nil {
			return restored, chaterr.E(chaterr.WriteFailed, op, err)
		}
		restored++
		telemetry.ReconciledCopies.Inc()
		s.log.Info("restored message copy", "owner", peerID, "peer", ownerID, "logical_id", m.LogicalID, "message_id", copied.ID)
		mirror = append(mirror, copied)
	}

	if err := s.refreshEntry(ctx, ownerID, peerID, latest(source)); err != nil {
		return restored, err
	}
	return restored, s.refreshEntry(ctx, peerID, ownerID, latest(mirror))
}

func (s *Service) collect(ctx context.Context, ownerID, peerID string) ([]models.Message, error) {
	var out []models.Message
	for m, err := range s.List(ctx, ownerID, peerID, 0) {
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// refreshEntry upserts ownerID's entry for peerID when it is missing or
// older than m.
func (s *Service) refreshEntry(ctx context.Context, ownerID, peerID string, m *models.Message) error {
	if m == nil {
		return nil
	}
	entries, err := s.store.ListRecent(ctx, ownerID)
	if err != nil {
		return chaterr.E(chaterr.WriteFailed, "chat.RepairPair", err)
	}
	for _, e := range entries {
		if e.PeerID == peerID && !e.Timestamp.Before(m.Timestamp) {
			return nil
		}
	}
	_, _, err = s.UpsertRecent(ctx, ownerID, peerID, s.snapshot(ctx, ownerID, peerID, *m))
	return err
}

func latest(msgs []models.Message) *models.Message {
	var out *models.Message
	for i := range msgs {
		if out == nil || msgs[i].Timestamp.After(out.Timestamp) {
			out = &msgs[i]
		}
	}
	return out
}
