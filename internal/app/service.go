package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alysis/alysis/internal/llm"
	"github.com/alysis/alysis/internal/models"
)

// ErrNoPublishedVersion is returned when activating an app that has
// never had a version published.
var ErrNoPublishedVersion = errors.New("cannot activate app without a published prompt version")

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type CreateRequest struct {
	Name           string                `json:"name"`
	Description    string                `json:"description,omitempty"`
	SystemPrompt   string                `json:"system_prompt"`
	Vendor         string                `json:"vendor,omitempty"`
	Model          string                `json:"model,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat models.ResponseFormat `json:"response_format,omitempty"`
}

// Create inserts the app together with its published version 1 and
// points the app at it, all in one transaction. New apps start active.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.App, *models.PromptVersion, error) {
	vendor := req.Vendor
	if vendor == "" {
		vendor = llm.Infer(req.Model)
	}
	model := req.Model
	if model == "" {
		model = "gpt-4o"
	}
	temperature := 0.7
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	format := req.ResponseFormat
	if format == "" {
		format = models.FormatJSON
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var description *string
	if req.Description != "" {
		description = &req.Description
	}

	a := models.App{ID: generateAppID(req.Name), Status: models.AppStatusActive}
	err = tx.QueryRow(ctx,
		`INSERT INTO apps (id, name, description, status)
		 VALUES ($1, $2, $3, 'active')
		 RETURNING name, description, created_at, updated_at`,
		a.ID, req.Name, description,
	).Scan(&a.Name, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("insert app: %w", err)
	}

	v := models.PromptVersion{
		ID:    "pv-" + uuid.NewString(),
		AppID: a.ID,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions
		     (id, app_id, version, system_prompt, vendor, model, temperature, max_tokens, response_format, published_at)
		 VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, now())
		 RETURNING version, system_prompt, vendor, model, temperature, max_tokens, response_format, published_at, created_at, created_by`,
		v.ID, a.ID, req.SystemPrompt, vendor, model, temperature, maxTokens, format,
	).Scan(&v.Version, &v.SystemPrompt, &v.Vendor, &v.Model, &v.Temperature, &v.MaxTokens,
		&v.ResponseFormat, &v.PublishedAt, &v.CreatedAt, &v.CreatedBy)
	if err != nil {
		return nil, nil, fmt.Errorf("insert first version: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE apps SET active_version_id = $1, updated_at = now() WHERE id = $2", v.ID, a.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("set active version: %w", err)
	}
	a.ActiveVersionID = &v.ID

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	return &a, &v, nil
}

const appColumns = "id, name, description, status, active_version_id, created_at, updated_at"

// GetByID returns nil without error when the app does not exist.
func (s *Service) GetByID(ctx context.Context, id string) (*models.App, error) {
	var a models.App
	err := s.db.QueryRow(ctx,
		"SELECT "+appColumns+" FROM apps WHERE id = $1", id,
	).Scan(&a.ID, &a.Name, &a.Description, &a.Status, &a.ActiveVersionID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	return &a, nil
}

func (s *Service) List(ctx context.Context, search string) ([]models.App, error) {
	query := "SELECT " + appColumns + " FROM apps"
	args := []any{}
	if search != "" {
		query += " WHERE name ILIKE $1 OR description ILIKE $1"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY created_at DESC"
	return s.list(ctx, query, args...)
}

func (s *Service) ListActive(ctx context.Context) ([]models.App, error) {
	return s.list(ctx, "SELECT "+appColumns+" FROM apps WHERE status = 'active' ORDER BY created_at DESC")
}

func (s *Service) list(ctx context.Context, query string, args ...any) ([]models.App, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	var apps []models.App
	for rows.Next() {
		var a models.App
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Status, &a.ActiveVersionID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, nil
}

type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*models.App, error) {
	var a models.App
	err := s.db.QueryRow(ctx,
		`UPDATE apps SET
		     name = COALESCE($1, name),
		     description = COALESCE($2, description),
		     updated_at = now()
		 WHERE id = $3
		 RETURNING `+appColumns,
		req.Name, req.Description, id,
	).Scan(&a.ID, &a.Name, &a.Description, &a.Status, &a.ActiveVersionID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update app: %w", err)
	}
	return &a, nil
}

// Delete cascades to the app's versions, credentials, and records.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM apps WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete app: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Activate moves an app to active. It refuses when no version has been
// published, keeping the status/pointer invariant intact.
func (s *Service) Activate(ctx context.Context, id string) (*models.App, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil || a == nil {
		return nil, err
	}
	if a.ActiveVersionID == nil {
		return nil, ErrNoPublishedVersion
	}
	return s.setStatus(ctx, id, models.AppStatusActive)
}

func (s *Service) Deprecate(ctx context.Context, id string) (*models.App, error) {
	return s.setStatus(ctx, id, models.AppStatusDeprecated)
}

func (s *Service) setStatus(ctx context.Context, id string, status models.AppStatus) (*models.App, error) {
	var a models.App
	err := s.db.QueryRow(ctx,
		"UPDATE apps SET status = $1, updated_at = now() WHERE id = $2 RETURNING "+appColumns,
		status, id,
	).Scan(&a.ID, &a.Name, &a.Description, &a.Status, &a.ActiveVersionID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("set app status: %w", err)
	}
	return &a, nil
}

// Count reports total and active app counts for global stats.
func (s *Service) Count(ctx context.Context) (total, active int, err error) {
	err = s.db.QueryRow(ctx,
		"SELECT count(*), count(*) FILTER (WHERE status = 'active') FROM apps",
	).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count apps: %w", err)
	}
	return total, active, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func generateAppID(name string) string {
	kebab := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	kebab = strings.Trim(kebab, "-")
	if len(kebab) > 6 {
		kebab = strings.TrimSuffix(kebab[:6], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	if kebab == "" {
		return suffix
	}
	return kebab + "-" + suffix
}
