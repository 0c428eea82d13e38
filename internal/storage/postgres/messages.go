package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage"
)

// insertAttempts bounds retries when another process took the same seq.
const insertAttempts = 3

func (s *Store) InsertMessage(ctx context.Context, ownerID, peerID string, m models.Message) (models.Message, error) {
	query := `
		INSERT INTO chat_messages (owner_id, peer_id, seq, id, logical_id, from_id, to_id, text, ts)
		SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5, $6, $7, $8
		FROM chat_messages
		WHERE owner_id = $1 AND peer_id = $2
		RETURNING seq
	`
	var err error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		var seq int64
		err = s.db.QueryRowContext(ctx, query,
			ownerID, peerID, m.ID, m.LogicalID, m.FromID, m.ToID, m.Text, m.Timestamp,
		).Scan(&seq)
		if err == nil {
			m.Seq = uint64(seq)
			m.Likes = nil
			return m, nil
		}
		constraint, unique := constraintViolated(err)
		if !unique {
			break
		}
		if constraint == "chat_messages_logical_key" {
			return models.Message{}, storage.ErrDuplicate
		}
		s.log.Debug("message seq taken, retrying", "owner_id", ownerID, "peer_id", peerID, "attempt", attempt+1)
	}
	return models.Message{}, fmt.Errorf("insert message into %s/%s: %w", ownerID, peerID, err)
}

func (s *Store) GetMessage(ctx context.Context, ownerID, peerID, messageID string) (models.Message, error) {
	m := models.Message{}
	var seq int64
	query := `
		SELECT id, logical_id, from_id, to_id, text, ts, seq
		FROM chat_messages
		WHERE owner_id = $1 AND peer_id = $2 AND id = $3
	`
	err := s.db.QueryRowContext(ctx, query, ownerID, peerID, messageID).Scan(
		&m.ID, &m.LogicalID, &m.FromID, &m.ToID, &m.Text, &m.Timestamp, &seq,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("get message %s: %w", messageID, err)
	}
	m.Seq = uint64(seq)
	m.Timestamp = m.Timestamp.UTC()
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, ownerID, peerID string, since uint64, limit int) ([]models.Message, error) {
	query := `
		SELECT id, logical_id, from_id, to_id, text, ts, seq
		FROM chat_messages
		WHERE owner_id = $1 AND peer_id = $2 AND seq > $3
		ORDER BY seq ASC
	`
	args := []any{ownerID, peerID, int64(since)}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages %s/%s: %w", ownerID, peerID, err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m := models.Message{}
		var seq int64
		if err := rows.Scan(&m.ID, &m.LogicalID, &m.FromID, &m.ToID, &m.Text, &m.Timestamp, &seq); err != nil {
			return nil, fmt.Errorf("scan message row %s/%s: %w", ownerID, peerID, err)
		}
		m.Seq = uint64(seq)
		m.Timestamp = m.Timestamp.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows %s/%s: %w", ownerID, peerID, err)
	}
	return msgs, nil
}

func (s *Store) ListPairs(ctx context.Context) ([]storage.Pair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner_id, peer_id FROM chat_messages ORDER BY owner_id, peer_id`)
	if err != nil {
		return nil, fmt.Errorf("list conversation pairs: %w", err)
	}
	defer rows.Close()

	var pairs []storage.Pair
	for rows.Next() {
		var p storage.Pair
		if err := rows.Scan(&p.OwnerID, &p.PeerID); err != nil {
			return nil, fmt.Errorf("scan conversation pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
