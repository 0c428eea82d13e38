package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage"
)

func (s *Store) PutUser(ctx context.Context, u models.User) error {
	query := `
		INSERT INTO chat_users (uid, email, profile_image_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET email = EXCLUDED.email, profile_image_url = EXCLUDED.profile_image_url
	`
	if _, err := s.db.ExecContext(ctx, query, u.UID, u.Email, u.ProfileImageURL); err != nil {
		return fmt.Errorf("put user %s: %w", u.UID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (models.User, error) {
	u := models.User{}
	query := `SELECT uid, email, profile_image_url FROM chat_users WHERE uid = $1`
	err := s.db.QueryRowContext(ctx, query, uid).Scan(&u.UID, &u.Email, &u.ProfileImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	return u, nil
}
