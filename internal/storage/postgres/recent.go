package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vasu1712/chatcore/internal/models"
)

const recentColumns = `owner_id, peer_id, from_id, to_id, text, ts, peer_email, peer_profile_image_url, seq`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecent(row rowScanner) (models.RecentConversationEntry, error) {
	e := models.RecentConversationEntry{}
	var seq int64
	err := row.Scan(&e.OwnerID, &e.PeerID, &e.FromID, &e.ToID, &e.Text, &e.Timestamp,
		&e.PeerEmail, &e.PeerProfileImageURL, &seq)
	e.Seq = uint64(seq)
	e.Timestamp = e.Timestamp.UTC()
	return e, err
}

// UpsertRecent runs in one transaction: lock the live row, bump the owner's
// index sequence, replace the row.
func (s *Store) UpsertRecent(ctx context.Context, e models.RecentConversationEntry) (models.RecentConversationEntry, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return e, false, fmt.Errorf("begin recent upsert: %w", err)
	}
	defer tx.Rollback()

	live, err := scanRecent(tx.QueryRowContext(ctx,
		`SELECT `+recentColumns+` FROM chat_recent WHERE owner_id = $1 AND peer_id = $2 FOR UPDATE`,
		e.OwnerID, e.PeerID,
	))
	switch {
	case err == nil:
		if live.Timestamp.After(e.Timestamp) {
			return live, false, nil
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return e, false, fmt.Errorf("read recent %s/%s: %w", e.OwnerID, e.PeerID, err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO chat_recent_seq (owner_id, seq) VALUES ($1, 1)
		ON CONFLICT (owner_id) DO UPDATE SET seq = chat_recent_seq.seq + 1
		RETURNING seq
	`, e.OwnerID).Scan(&seq)
	if err != nil {
		return e, false, fmt.Errorf("bump recent seq %s: %w", e.OwnerID, err)
	}
	e.Seq = uint64(seq)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_recent (`+recentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, peer_id) DO UPDATE SET
			from_id = EXCLUDED.from_id,
			to_id = EXCLUDED.to_id,
			text = EXCLUDED.text,
			ts = EXCLUDED.ts,
			peer_email = EXCLUDED.peer_email,
			peer_profile_image_url = EXCLUDED.peer_profile_image_url,
			seq = EXCLUDED.seq
	`, e.OwnerID, e.PeerID, e.FromID, e.ToID, e.Text, e.Timestamp, e.PeerEmail, e.PeerProfileImageURL, seq)
	if err != nil {
		return e, false, fmt.Errorf("write recent %s/%s: %w", e.OwnerID, e.PeerID, err)
	}

	if err := tx.Commit(); err != nil {
		return e, false, fmt.Errorf("commit recent %s/%s: %w", e.OwnerID, e.PeerID, err)
	}
	return e, true, nil
}

func (s *Store) ListRecent(ctx context.Context, ownerID string) ([]models.RecentConversationEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recentColumns+` FROM chat_recent WHERE owner_id = $1 ORDER BY ts DESC, seq DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent %s: %w", ownerID, err)
	}
	defer rows.Close()

	var entries []models.RecentConversationEntry
	for rows.Next() {
		e, err := scanRecent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent row %s: %w", ownerID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent rows %s: %w", ownerID, err)
	}
	return entries, nil
}
