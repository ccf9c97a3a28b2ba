package apikey

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alysis/alysis/internal/models"
)

// Store is the persistence boundary for caller credentials. Digest
// uniqueness is enforced by the store (unique index), not the gate.
type Store interface {
	FindByDigest(ctx context.Context, digest string) (*models.APIKey, error)
	FindByID(ctx context.Context, id string) (*models.APIKey, error)
	ListForApp(ctx context.Context, appID string) ([]models.APIKey, error)
	Insert(ctx context.Context, key *models.APIKey) error
	UpdateDigest(ctx context.Context, id, digest string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) (bool, error)
}

type pgStore struct {
	db *pgxpool.Pool
}

const keyColumns = "id, name, key_hash, app_id, created_at, last_used_at"

func (s *pgStore) FindByDigest(ctx context.Context, digest string) (*models.APIKey, error) {
	return s.findOne(ctx, "SELECT "+keyColumns+" FROM api_keys WHERE key_hash = $1", digest)
}

func (s *pgStore) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	return s.findOne(ctx, "SELECT "+keyColumns+" FROM api_keys WHERE id = $1", id)
}

func (s *pgStore) findOne(ctx context.Context, query string, arg any) (*models.APIKey, error) {
	var k models.APIKey
	err := s.db.QueryRow(ctx, query, arg).
		Scan(&k.ID, &k.Name, &k.KeyHash, &k.AppID, &k.CreatedAt, &k.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find api key: %w", err)
	}
	return &k, nil
}

func (s *pgStore) ListForApp(ctx context.Context, appID string) ([]models.APIKey, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+keyColumns+" FROM api_keys WHERE app_id = $1 ORDER BY created_at DESC", appID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.AppID, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *pgStore) Insert(ctx context.Context, key *models.APIKey) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO api_keys (id, name, key_hash, app_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		key.ID, key.Name, key.KeyHash, key.AppID,
	).Scan(&key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *pgStore) UpdateDigest(ctx context.Context, id, digest string) (*models.APIKey, error) {
	var k models.APIKey
	err := s.db.QueryRow(ctx,
		`UPDATE api_keys SET key_hash = $1 WHERE id = $2
		 RETURNING `+keyColumns,
		digest, id,
	).Scan(&k.ID, &k.Name, &k.KeyHash, &k.AppID, &k.CreatedAt, &k.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update api key digest: %w", err)
	}
	return &k, nil
}

func (s *pgStore) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, "UPDATE api_keys SET last_used_at = now() WHERE id = $1", id)
	return err
}

func (s *pgStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM api_keys WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
