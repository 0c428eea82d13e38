package chat

import (
	"context"
	"errors"

	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage"
	"github.com/Vasu1712/chatcore/internal/telemetry"
)

// UpsertRecent replaces ownerID's entry for peerID with snapshot and
// publishes it. A snapshot older than the live entry is not applied; the
// live entry is returned with applied=false.
func (s *Service) UpsertRecent(ctx context.Context, ownerID, peerID string, snapshot models.RecentConversationEntry) (models.RecentConversationEntry, bool, error) {
	const op = "chat.UpsertRecent"
	snapshot.OwnerID = ownerID
	snapshot.PeerID = peerID

	key := models.IndexKey(ownerID)
	unlock := s.locks.lock(key)
	defer unlock()

	stored, applied, err := s.store.UpsertRecent(ctx, snapshot)
	if err != nil {
		telemetry.IndexUpserts.WithLabelValues("error").Inc()
		return models.RecentConversationEntry{}, false, chaterr.E(chaterr.WriteFailed, op, err)
	}
	if !applied {
		telemetry.IndexUpserts.WithLabelValues("stale").Inc()
		return stored, false, nil
	}
	telemetry.IndexUpserts.WithLabelValues("applied").Inc()
	s.feed.Publish(entryEvent(key, stored))
	return stored, true, nil
}

// snapshot builds ownerID's entry for m, denormalizing peerID's profile.
// A peer without a profile gets empty profile fields.
func (s *Service) snapshot(ctx context.Context, ownerID, peerID string, m models.Message) models.RecentConversationEntry {
	e := models.RecentConversationEntry{
		OwnerID:   ownerID,
		PeerID:    peerID,
		FromID:    m.FromID,
		ToID:      m.ToID,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
	peer, err := s.store.GetUser(ctx, peerID)
	switch {
	case err == nil:
		e.PeerEmail = peer.Email
		e.PeerProfileImageURL = peer.ProfileImageURL
	case !errors.Is(err, storage.ErrNotFound):
		s.log.Warn("peer profile lookup failed", "peer", peerID, "err", err)
	}
	return e
}

// ListRecent returns ownerID's entries with Seq > since, most recent
// conversation first.
func (s *Service) ListRecent(ctx context.Context, ownerID string, since uint64) ([]models.RecentConversationEntry, error) {
	const op = "chat.ListRecent"
	if err := checkUID(op, "ownerId", ownerID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListRecent(ctx, ownerID)
	if err != nil {
		return nil, chaterr.E(chaterr.WriteFailed, op, err)
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Seq > since {
			out = append(out, e)
		}
	}
	return out, nil
}
