package chat

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/storage"
	"github.com/Vasu1712/chatcore/internal/telemetry"
)

type ToggleResult struct {
	Liked bool     `json:"liked"`
	Likes []string `json:"likes"`
}

// ToggleLike flips actingUserID's membership in the like set of the
// message behind (ownerID, peerID, messageID). The set belongs to the
// logical message, so both physical copies report the same state.
// The read-modify-write is retried on a version conflict up to the
// configured bound, then fails with Conflict.
func (s *Service) ToggleLike(ctx context.Context, ownerID, peerID, messageID, actingUserID string) (ToggleResult, error) {
	const op = "chat.ToggleLike"
	if err := checkUID(op, "actingUserId", actingUserID); err != nil {
		return ToggleResult{}, err
	}
	m, err := s.getCopy(ctx, op, ownerID, peerID, messageID)
	if err != nil {
		return ToggleResult{}, err
	}

	for attempt := 0; attempt < s.likeMaxRetries; attempt++ {
		if attempt > 0 {
			telemetry.LikeRetries.Inc()
			if err := sleepCtx(ctx, likeBackoff(attempt)); err != nil {
				return ToggleResult{}, chaterr.E(chaterr.Conflict, op, err)
			}
		}
		rec, err := s.store.GetLikes(ctx, m.LogicalID)
		if err != nil {
			telemetry.LikeToggles.WithLabelValues("error").Inc()
			return ToggleResult{}, chaterr.E(chaterr.WriteFailed, op, err)
		}
		likes, liked := toggleMember(rec.Likes, actingUserID)
		_, err = s.store.SwapLikes(ctx, m.LogicalID, rec.Version, likes)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			telemetry.LikeToggles.WithLabelValues("error").Inc()
			return ToggleResult{}, chaterr.E(chaterr.WriteFailed, op, err)
		}
		if liked {
			telemetry.LikeToggles.WithLabelValues("liked").Inc()
		} else {
			telemetry.LikeToggles.WithLabelValues("unliked").Inc()
		}
		return ToggleResult{Liked: liked, Likes: likes}, nil
	}

	telemetry.LikeToggles.WithLabelValues("conflict").Inc()
	s.log.Warn("like toggle gave up", "logical_id", m.LogicalID, "user", actingUserID, "attempts", s.likeMaxRetries)
	return ToggleResult{}, chaterr.Errorf(chaterr.Conflict, op, "like on %s not committed after %d attempts", messageID, s.likeMaxRetries)
}

// IsLiked reports whether userID likes the message.
func (s *Service) IsLiked(ctx context.Context, ownerID, peerID, messageID, userID string) (bool, error) {
	const op = "chat.IsLiked"
	if err := checkUID(op, "userId", userID); err != nil {
		return false, err
	}
	m, err := s.getCopy(ctx, op, ownerID, peerID, messageID)
	if err != nil {
		return false, err
	}
	rec, err := s.store.GetLikes(ctx, m.LogicalID)
	if err != nil {
		return false, chaterr.E(chaterr.WriteFailed, op, err)
	}
	m.Likes = rec.Likes
	return m.LikedBy(userID), nil
}

// toggleMember returns a sorted copy of set with uid flipped, and whether
// uid is now a member.
func toggleMember(set []string, uid string) ([]string, bool) {
	out := make([]string, 0, len(set)+1)
	found := false
	for _, id := range set {
		if id == uid {
			found = true
			continue
		}
		out = append(out, id)
	}
	if !found {
		out = append(out, uid)
	}
	slices.Sort(out)
	return out, !found
}

func likeBackoff(attempt int) time.Duration {
	return time.Duration(attempt)*time.Millisecond + rand.N(time.Millisecond)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
