package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vasu1712/chatcore/internal/storage"
	"github.com/lib/pq"
)

func (s *Store) GetLikes(ctx context.Context, logicalID string) (storage.LikeRecord, error) {
	rec := storage.LikeRecord{LogicalID: logicalID}
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT likes, version FROM chat_likes WHERE logical_id = $1`, logicalID,
	).Scan(pq.Array(&rec.Likes), &version)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return storage.LikeRecord{}, fmt.Errorf("get likes %s: %w", logicalID, err)
	}
	rec.Version = uint64(version)
	return rec, nil
}

// SwapLikes is a compare-and-swap on the version column. Version 0 means
// the row must not exist yet.
func (s *Store) SwapLikes(ctx context.Context, logicalID string, expected uint64, likes []string) (uint64, error) {
	if likes == nil {
		likes = []string{}
	}
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO chat_likes (logical_id, likes, version) VALUES ($1, $2, 1)
			ON CONFLICT (logical_id) DO NOTHING
		`, logicalID, pq.Array(likes))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE chat_likes SET likes = $2, version = version + 1
			WHERE logical_id = $1 AND version = $3
		`, logicalID, pq.Array(likes), int64(expected))
	}
	if err != nil {
		return 0, fmt.Errorf("swap likes %s: %w", logicalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("swap likes %s: %w", logicalID, err)
	}
	if n == 0 {
		return 0, storage.ErrVersionConflict
	}
	return expected + 1, nil
}

func (s *Store) GetLikesBatch(ctx context.Context, logicalIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(logicalIDs))
	if len(logicalIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT logical_id, likes FROM chat_likes WHERE logical_id = ANY($1) AND cardinality(likes) > 0`,
		pq.Array(logicalIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("get likes batch: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var likes []string
		if err := rows.Scan(&id, pq.Array(&likes)); err != nil {
			return nil, fmt.Errorf("scan likes row: %w", err)
		}
		out[id] = likes
	}
	return out, rows.Err()
}
