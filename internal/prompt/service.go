package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alysis/alysis/internal/llm"
	"github.com/alysis/alysis/internal/models"
)

// ErrVersionActive is returned when deleting the version an app
// currently points at.
var ErrVersionActive = errors.New("cannot delete the active prompt version")

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type CreateRequest struct {
	SystemPrompt   string                `json:"system_prompt"`
	Vendor         string                `json:"vendor,omitempty"`
	Model          string                `json:"model,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat models.ResponseFormat `json:"response_format,omitempty"`
}

// Create appends an immutable version numbered max(existing)+1. The
// number is computed inside the insert, so a failed attempt never
// consumes one.
func (s *Service) Create(ctx context.Context, appID string, req CreateRequest) (*models.PromptVersion, error) {
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

	v := models.PromptVersion{ID: "pv-" + uuid.NewString(), AppID: appID}
	err := s.db.QueryRow(ctx,
		`INSERT INTO prompt_versions
		     (id, app_id, version, system_prompt, vendor, model, temperature, max_tokens, response_format)
		 VALUES ($1, $2,
		     (SELECT COALESCE(MAX(version), 0) + 1 FROM prompt_versions WHERE app_id = $2),
		     $3, $4, $5, $6, $7, $8)
		 RETURNING version, system_prompt, vendor, model, temperature, max_tokens, response_format, published_at, created_at, created_by`,
		v.ID, appID, req.SystemPrompt, vendor, model, temperature, maxTokens, format,
	).Scan(&v.Version, &v.SystemPrompt, &v.Vendor, &v.Model, &v.Temperature, &v.MaxTokens,
		&v.ResponseFormat, &v.PublishedAt, &v.CreatedAt, &v.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("insert prompt version: %w", err)
	}
	return &v, nil
}

const versionColumns = "id, app_id, version, system_prompt, vendor, model, temperature, max_tokens, response_format, published_at, created_at, created_by"

func (s *Service) ListForApp(ctx context.Context, appID string) ([]models.PromptVersion, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+versionColumns+" FROM prompt_versions WHERE app_id = $1 ORDER BY version DESC", appID)
	if err != nil {
		return nil, fmt.Errorf("list prompt versions: %w", err)
	}
	defer rows.Close()

	var versions []models.PromptVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, nil
}

func (s *Service) GetByID(ctx context.Context, appID, versionID string) (*models.PromptVersion, error) {
	return s.findOne(ctx,
		"SELECT "+versionColumns+" FROM prompt_versions WHERE app_id = $1 AND id = $2", appID, versionID)
}

func (s *Service) GetByNumber(ctx context.Context, appID string, number int) (*models.PromptVersion, error) {
	return s.findOne(ctx,
		"SELECT "+versionColumns+" FROM prompt_versions WHERE app_id = $1 AND version = $2", appID, number)
}

func (s *Service) Latest(ctx context.Context, appID string) (*models.PromptVersion, error) {
	return s.findOne(ctx,
		"SELECT "+versionColumns+" FROM prompt_versions WHERE app_id = $1 ORDER BY version DESC LIMIT 1", appID)
}

// Active resolves the version an app's pointer designates, nil when
// the app has never published.
func (s *Service) Active(ctx context.Context, appID string) (*models.PromptVersion, error) {
	return s.findOne(ctx,
		`SELECT `+prefixed("v")+`
		 FROM prompt_versions v
		 JOIN apps a ON a.active_version_id = v.id
		 WHERE a.id = $1`, appID)
}

func (s *Service) MaxVersionNumber(ctx context.Context, appID string) (int, error) {
	var max int
	err := s.db.QueryRow(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM prompt_versions WHERE app_id = $1", appID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return max, nil
}

// Publish marks the version published and repoints the app in one
// transaction: readers see both updates or neither. Returns nil when
// the version does not belong to the app.
func (s *Service) Publish(ctx context.Context, appID, versionID string) (*models.PromptVersion, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE prompt_versions SET published_at = now()
		 WHERE app_id = $1 AND id = $2
		 RETURNING `+versionColumns, appID, versionID)
	v, err := scanVersion(row)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}

	_, err = tx.Exec(ctx,
		"UPDATE apps SET active_version_id = $1, updated_at = now() WHERE id = $2", versionID, appID)
	if err != nil {
		return nil, fmt.Errorf("point app at version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit publish: %w", err)
	}
	return v, nil
}

// Delete removes a version. The app's currently active version is
// protected; historical execution records keep a null version
// reference via the schema's ON DELETE SET NULL.
func (s *Service) Delete(ctx context.Context, appID, versionID string) (bool, error) {
	var isActive bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM apps WHERE id = $1 AND active_version_id = $2)",
		appID, versionID,
	).Scan(&isActive)
	if err != nil {
		return false, fmt.Errorf("check active version: %w", err)
	}
	if isActive {
		return false, ErrVersionActive
	}

	tag, err := s.db.Exec(ctx,
		"DELETE FROM prompt_versions WHERE app_id = $1 AND id = $2", appID, versionID)
	if err != nil {
		return false, fmt.Errorf("delete prompt version: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Service) findOne(ctx context.Context, query string, args ...any) (*models.PromptVersion, error) {
	return scanVersion(s.db.QueryRow(ctx, query, args...))
}

func scanVersion(row pgx.Row) (*models.PromptVersion, error) {
	var v models.PromptVersion
	err := row.Scan(&v.ID, &v.AppID, &v.Version, &v.SystemPrompt, &v.Vendor, &v.Model,
		&v.Temperature, &v.MaxTokens, &v.ResponseFormat, &v.PublishedAt, &v.CreatedAt, &v.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan prompt version: %w", err)
	}
	return &v, nil
}

func prefixed(alias string) string {
	return alias + ".id, " + alias + ".app_id, " + alias + ".version, " + alias + ".system_prompt, " +
		alias + ".vendor, " + alias + ".model, " + alias + ".temperature, " + alias + ".max_tokens, " +
		alias + ".response_format, " + alias + ".published_at, " + alias + ".created_at, " + alias + ".created_by"
}
