package execution

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alysis/alysis/internal/llm"
	"github.com/alysis/alysis/internal/models"
)

// AppStore resolves the app an execution targets.
type AppStore interface {
	GetByID(ctx context.Context, id string) (*models.App, error)
}

// VersionStore resolves prompt configurations for dispatch.
type VersionStore interface {
	Active(ctx context.Context, appID string) (*models.PromptVersion, error)
	GetByID(ctx context.Context, appID, versionID string) (*models.PromptVersion, error)
}

// RecordStore persists and reads the append-only execution history.
type RecordStore interface {
	Insert(ctx context.Context, record *models.ExecutionRecord) error
	GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	Recent(ctx context.Context, limit int) ([]models.ExecutionRecord, error)
	ListForApp(ctx context.Context, appID string, limit, offset int) ([]models.ExecutionRecord, error)
	StatsForApp(ctx context.Context, appID string) (*models.AppStats, error)
	Totals(ctx context.Context) (Totals, error)
}

// Totals aggregates the whole execution history for global stats.
type Totals struct {
	Executions   int
	Successes    int
	AvgLatencyMs int
	TotalTokens  int
}

// AppCounter reports app counts for global stats.
type AppCounter interface {
	Count(ctx context.Context) (total, active int, err error)
}

// ClientResolver maps a vendor name to its adapter.
type ClientResolver interface {
	Get(vendor string) (llm.Client, error)
}

// Service is the execution gateway: it resolves an app's configuration,
// dispatches to the vendor adapter, recovers structured output, and
// records the attempt.
type Service struct {
	apps     AppStore
	versions VersionStore
	records  RecordStore
	counts   AppCounter
	registry ClientResolver
	timeout  time.Duration
}

func NewService(registry ClientResolver, apps AppStore, versions VersionStore, counts AppCounter, records RecordStore, timeout time.Duration) *Service {
	return &Service{
		apps:     apps,
		versions: versions,
		records:  records,
		counts:   counts,
		registry: registry,
		timeout:  timeout,
	}
}

// Execute runs input through an app's active prompt version. Vendor
// faults come back as an error-status record, not a Go error; the
// error return is reserved for configuration faults and store
// failures, which never touch a vendor.
func (s *Service) Execute(ctx context.Context, appID string, input json.RawMessage, callerService *string) (*models.ExecutionRecord, error) {
	a, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAppNotFound
	}
	if a.Status != models.AppStatusActive {
		return nil, ErrAppNotActive
	}

	v, err := s.versions.Active(ctx, appID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNoActiveVersion
	}

	return s.dispatch(ctx, appID, v, input, callerService, true)
}

// TestVersion runs input through a specific version, published or not.
// The app may be in any status; the attempt lands in the app's history
// like any other dispatch.
func (s *Service) TestVersion(ctx context.Context, appID, versionID string, input json.RawMessage, callerService *string) (*models.ExecutionRecord, error) {
	a, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAppNotFound
	}

	v, err := s.versions.GetByID(ctx, appID, versionID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrVersionNotFound
	}

	return s.dispatch(ctx, appID, v, input, callerService, true)
}

// DirectRequest is an ad-hoc configuration for prompt iteration before
// any app or version exists. AppID is optional and only tags the
// audit record.
type DirectRequest struct {
	AppID          string                `json:"app_id,omitempty"`
	SystemPrompt   string                `json:"system_prompt"`
	Vendor         string                `json:"vendor,omitempty"`
	Model          string                `json:"model,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat models.ResponseFormat `json:"response_format,omitempty"`
	Input          json.RawMessage       `json:"input"`
}

// TestDirect dispatches an ad-hoc configuration. The attempt is
// recorded only when the request names an app to file it under, tagged
// by outcome.
func (s *Service) TestDirect(ctx context.Context, req DirectRequest) (*models.ExecutionRecord, error) {
	v := &models.PromptVersion{
		SystemPrompt:   req.SystemPrompt,
		Vendor:         req.Vendor,
		Model:          req.Model,
		Temperature:    0.7,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: req.ResponseFormat,
	}
	if v.Vendor == "" {
		v.Vendor = llm.Infer(req.Model)
	}
	if v.Model == "" {
		v.Model = "gpt-5.2"
	}
	if req.Temperature != nil {
		v.Temperature = *req.Temperature
	}
	if v.MaxTokens == 0 {
		v.MaxTokens = 4096
	}
	if v.ResponseFormat == "" {
		v.ResponseFormat = models.FormatJSON
	}

	rec, err := s.dispatch(ctx, req.AppID, v, req.Input, nil, false)
	if err != nil {
		return nil, err
	}
	if req.AppID != "" {
		tag := "test_success"
		if rec.Status == models.ExecutionError {
			tag = "test_error"
		}
		rec.CallerService = &tag
		s.persist(ctx, rec)
	}
	return rec, nil
}

// dispatch performs the vendor call and builds the record. The adapter
// is resolved before anything is written, so an unknown vendor aborts
// with no record. When persist is set, an insert failure downgrades to
// a warning and the in-memory record still goes back to the caller.
func (s *Service) dispatch(ctx context.Context, appID string, v *models.PromptVersion, input json.RawMessage, callerService *string, persist bool) (*models.ExecutionRecord, error) {
	client, err := s.registry.Get(v.Vendor)
	if err != nil {
		return nil, err
	}

	record := &models.ExecutionRecord{
		ID:            "exec-" + uuid.NewString(),
		AppID:         appID,
		Input:         input,
		CallerService: callerService,
		CreatedAt:     time.Now().UTC(),
	}
	if v.ID != "" {
		record.VersionID = &v.ID
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cfg := llm.CompletionConfig{
		Model:          v.Model,
		Temperature:    v.Temperature,
		MaxTokens:      v.MaxTokens,
		ResponseFormat: string(v.ResponseFormat),
	}

	start := time.Now()
	resp, err := client.Complete(callCtx, v.SystemPrompt, promptInput(input), cfg)
	record.LatencyMs = int(time.Since(start).Milliseconds())

	if err != nil {
		record.Status = models.ExecutionError
		msg := err.Error()
		record.ErrorMessage = &msg
	} else {
		record.Status = models.ExecutionSuccess
		record.RawResponse = &resp.Content
		record.TokenUsage = &models.TokenUsage{
			Prompt:     resp.TokenUsage.Prompt,
			Completion: resp.TokenUsage.Completion,
			Total:      resp.TokenUsage.Total,
		}
		if v.ResponseFormat == models.FormatJSON {
			record.Output = ExtractJSON(resp.Content)
		}
	}

	if persist {
		s.persist(ctx, record)
	}
	return record, nil
}

// LogFailure records an attempt that never reached a vendor, such as a
// rejected credential. Zero latency, no version.
func (s *Service) LogFailure(ctx context.Context, appID string, input json.RawMessage, callerService *string, message string) *models.ExecutionRecord {
	record := &models.ExecutionRecord{
		ID:            "exec-" + uuid.NewString(),
		AppID:         appID,
		Input:         input,
		Status:        models.ExecutionError,
		ErrorMessage:  &message,
		CallerService: callerService,
		CreatedAt:     time.Now().UTC(),
	}
	s.persist(ctx, record)
	return record
}

func (s *Service) persist(ctx context.Context, record *models.ExecutionRecord) {
	if err := s.records.Insert(ctx, record); err != nil {
		slog.Warn("dropping execution record, insert failed",
			"record_id", record.ID, "app_id", record.AppID, "error", err)
	}
}

// promptInput flattens a JSON string input to its text; any other
// shape goes to the vendor as serialized JSON.
func promptInput(input json.RawMessage) string {
	var s string
	if err := json.Unmarshal(input, &s); err == nil {
		return s
	}
	return string(input)
}

func (s *Service) RecordByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]models.ExecutionRecord, error) {
	return s.records.Recent(ctx, normalizeLimit(limit))
}

func (s *Service) ListForApp(ctx context.Context, appID string, limit, offset int) ([]models.ExecutionRecord, error) {
	if offset < 0 {
		offset = 0
	}
	return s.records.ListForApp(ctx, appID, normalizeLimit(limit), offset)
}

func (s *Service) StatsForApp(ctx context.Context, appID string) (*models.AppStats, error) {
	return s.records.StatsForApp(ctx, appID)
}

// GlobalStats combines app counts with history aggregates. The success
// rate is a 0-100 percentage, 0 when nothing has run.
func (s *Service) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	totalApps, activeApps, err := s.counts.Count(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.records.Totals(ctx)
	if err != nil {
		return nil, err
	}

	rate := 0.0
	if t.Executions > 0 {
		rate = 100 * float64(t.Successes) / float64(t.Executions)
	}
	return &models.GlobalStats{
		TotalApps:       totalApps,
		ActiveApps:      activeApps,
		TotalExecutions: t.Executions,
		SuccessRate:     rate,
		AvgLatencyMs:    t.AvgLatencyMs,
		TotalTokens:     t.TotalTokens,
	}, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
