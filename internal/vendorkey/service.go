package vendorkey

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alysis/alysis/internal/config"
	"github.com/alysis/alysis/internal/llm"
)

var vendors = []string{llm.VendorOpenAI, llm.VendorAnthropic, llm.VendorGemini}

// Service resolves vendor secrets: an operator-stored key wins over an
// environment-supplied one. Stored keys are base64-encoded at rest,
// encoded rather than encrypted.
type Service struct {
	db  *pgxpool.Pool
	cfg config.LLMConfig
}

func NewService(db *pgxpool.Pool, cfg config.LLMConfig) *Service {
	return &Service{db: db, cfg: cfg}
}

// SecretForVendor implements llm.SecretSource. Returns "" when no key
// is configured anywhere. Reads never mutate state.
func (s *Service) SecretForVendor(ctx context.Context, vendor string) (string, error) {
	var encoded string
	err := s.db.QueryRow(ctx,
		"SELECT encoded_key FROM vendor_api_keys WHERE vendor = $1", vendor,
	).Scan(&encoded)
	switch {
	case err == nil:
		return decodeKey(encoded)
	case errors.Is(err, pgx.ErrNoRows):
		return s.envKey(vendor), nil
	default:
		return "", fmt.Errorf("lookup vendor key: %w", err)
	}
}

type Status struct {
	Vendor     string     `json:"vendor"`
	Configured bool       `json:"configured"`
	Source     *string    `json:"source,omitempty"` // "database" or "environment"
	MaskedKey  *string    `json:"masked_key,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Statuses reports per-vendor key presence without ever exposing more
// than the last four characters of a secret.
func (s *Service) Statuses(ctx context.Context) ([]Status, error) {
	rows, err := s.db.Query(ctx, "SELECT vendor, encoded_key, updated_at FROM vendor_api_keys")
	if err != nil {
		return nil, fmt.Errorf("query vendor keys: %w", err)
	}
	defer rows.Close()

	type stored struct {
		encoded   string
		updatedAt time.Time
	}
	byVendor := make(map[string]stored)
	for rows.Next() {
		var v stored
		var vendor string
		if err := rows.Scan(&vendor, &v.encoded, &v.updatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor key: %w", err)
		}
		byVendor[vendor] = v
	}

	statuses := make([]Status, 0, len(vendors))
	for _, vendor := range vendors {
		if v, ok := byVendor[vendor]; ok {
			decoded, err := decodeKey(v.encoded)
			if err != nil {
				return nil, err
			}
			source := "database"
			masked := maskKey(decoded)
			updatedAt := v.updatedAt
			statuses = append(statuses, Status{
				Vendor: vendor, Configured: true,
				Source: &source, MaskedKey: &masked, UpdatedAt: &updatedAt,
			})
			continue
		}
		if envKey := s.envKey(vendor); envKey != "" {
			source := "environment"
			masked := maskKey(envKey)
			statuses = append(statuses, Status{
				Vendor: vendor, Configured: true,
				Source: &source, MaskedKey: &masked,
			})
			continue
		}
		statuses = append(statuses, Status{Vendor: vendor})
	}
	return statuses, nil
}

func (s *Service) Upsert(ctx context.Context, vendor, apiKey string) (*Status, error) {
	if !Known(vendor) {
		return nil, fmt.Errorf("unknown vendor: %s", vendor)
	}

	id := "vk-" + uuid.NewString()
	var updatedAt time.Time
	err := s.db.QueryRow(ctx,
		`INSERT INTO vendor_api_keys (id, vendor, encoded_key)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (vendor) DO UPDATE SET encoded_key = EXCLUDED.encoded_key, updated_at = now()
		 RETURNING updated_at`,
		id, vendor, encodeKey(apiKey),
	).Scan(&updatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert vendor key: %w", err)
	}

	source := "database"
	masked := maskKey(apiKey)
	return &Status{
		Vendor: vendor, Configured: true,
		Source: &source, MaskedKey: &masked, UpdatedAt: &updatedAt,
	}, nil
}

func (s *Service) Delete(ctx context.Context, vendor string) (bool, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM vendor_api_keys WHERE vendor = $1", vendor)
	if err != nil {
		return false, fmt.Errorf("delete vendor key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func Known(vendor string) bool {
	for _, v := range vendors {
		if v == vendor {
			return true
		}
	}
	return false
}

func (s *Service) envKey(vendor string) string {
	switch vendor {
	case llm.VendorOpenAI:
		return s.cfg.OpenAIKey
	case llm.VendorAnthropic:
		return s.cfg.AnthropicKey
	case llm.VendorGemini:
		return s.cfg.GeminiKey
	default:
		return ""
	}
}

func encodeKey(key string) string {
	return base64.StdEncoding.EncodeToString([]byte(key))
}

func decodeKey(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode vendor key: %w", err)
	}
	return string(raw), nil
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
