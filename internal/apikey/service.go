package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alysis/alysis/internal/models"
)

// Service is the access gate: it issues caller credentials and
// validates presented keys against stored digests.
type Service struct {
	store Store
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{store: &pgStore{db: db}}
}

// HashKey digests a caller secret. Only digests are ever stored.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func generateKey() string {
	buf := make([]byte, 24)
	rand.Read(buf)
	return "aak_" + base64.RawURLEncoding.EncodeToString(buf)
}

type Validation struct {
	Valid  bool
	Name   string
	Global bool
}

// Validate digests the presented key and checks it against the store.
// A scoped key authorizes only its own app; targetAppID == "" means
// the caller is not checking scope. The last-used touch is
// fire-and-forget and never affects the result.
func (s *Service) Validate(ctx context.Context, presented, targetAppID string) (Validation, error) {
	key, err := s.store.FindByDigest(ctx, HashKey(presented))
	if err != nil {
		return Validation{}, err
	}
	if key == nil {
		return Validation{}, nil
	}

	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.TouchLastUsed(touchCtx, key.ID); err != nil {
			slog.Warn("api key last-used touch failed", "key_id", key.ID, "error", err)
		}
	}()

	scope := scopeOf(key)
	if scope.IsGlobal() {
		return Validation{Valid: true, Name: key.Name, Global: true}, nil
	}
	if scope.Authorizes(targetAppID) {
		return Validation{Valid: true, Name: key.Name}, nil
	}
	return Validation{}, nil
}

func scopeOf(key *models.APIKey) Scope {
	if key.AppID == nil {
		return Global()
	}
	return ForApp(*key.AppID)
}

// CreateResult carries the plain-text key. It is shown exactly once;
// afterwards only the digest exists.
type CreateResult struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	AppID     *string   `json:"app_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Service) CreateForApp(ctx context.Context, appID, name string) (*CreateResult, error) {
	if name == "" {
		name = fmt.Sprintf("API Key for %s", appID)
	}
	return s.create(ctx, name, &appID)
}

func (s *Service) CreateGlobal(ctx context.Context, name string) (*CreateResult, error) {
	return s.create(ctx, name, nil)
}

func (s *Service) create(ctx context.Context, name string, appID *string) (*CreateResult, error) {
	plain := generateKey()
	key := &models.APIKey{
		ID:      "ak-" + uuid.NewString(),
		Name:    name,
		KeyHash: HashKey(plain),
		AppID:   appID,
	}
	if err := s.store.Insert(ctx, key); err != nil {
		return nil, err
	}
	return &CreateResult{
		ID:        key.ID,
		Name:      key.Name,
		Key:       plain,
		AppID:     key.AppID,
		CreatedAt: key.CreatedAt,
	}, nil
}

func (s *Service) ListForApp(ctx context.Context, appID string) ([]models.APIKey, error) {
	return s.store.ListForApp(ctx, appID)
}

func (s *Service) Delete(ctx context.Context, keyID string) (bool, error) {
	return s.store.Delete(ctx, keyID)
}

// Rotate replaces the secret behind an existing key, keeping its
// identity and scope. Returns nil when the key does not exist.
func (s *Service) Rotate(ctx context.Context, keyID string) (*CreateResult, error) {
	existing, err := s.store.FindByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	plain := generateKey()
	updated, err := s.store.UpdateDigest(ctx, keyID, HashKey(plain))
	if err != nil || updated == nil {
		return nil, err
	}
	return &CreateResult{
		ID:        updated.ID,
		Name:      updated.Name,
		Key:       plain,
		AppID:     updated.AppID,
		CreatedAt: updated.CreatedAt,
	}, nil
}
