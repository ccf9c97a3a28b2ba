package execution

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alysis/alysis/internal/llm"
	"github.com/alysis/alysis/internal/models"
)

type fakeApps struct {
	apps map[string]*models.App
}

func (f *fakeApps) GetByID(ctx context.Context, id string) (*models.App, error) {
	return f.apps[id], nil
}

func (f *fakeApps) Count(ctx context.Context) (int, int, error) {
	active := 0
	for _, a := range f.apps {
		if a.Status == models.AppStatusActive {
			active++
		}
	}
	return len(f.apps), active, nil
}

type fakeVersions struct {
	active map[string]*models.PromptVersion
	byID   map[string]*models.PromptVersion
}

func (f *fakeVersions) Active(ctx context.Context, appID string) (*models.PromptVersion, error) {
	return f.active[appID], nil
}

func (f *fakeVersions) GetByID(ctx context.Context, appID, versionID string) (*models.PromptVersion, error) {
	v := f.byID[versionID]
	if v == nil || v.AppID != appID {
		return nil, nil
	}
	return v, nil
}

type fakeRecords struct {
	inserted   []models.ExecutionRecord
	failInsert bool
	lastLimit  int
	lastOffset int
}

func (f *fakeRecords) Insert(ctx context.Context, rec *models.ExecutionRecord) error {
	if f.failInsert {
		return errors.New("store down")
	}
	f.inserted = append(f.inserted, *rec)
	return nil
}

func (f *fakeRecords) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	for i := range f.inserted {
		if f.inserted[i].ID == id {
			return &f.inserted[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRecords) Recent(ctx context.Context, limit int) ([]models.ExecutionRecord, error) {
	return f.inserted, nil
}

func (f *fakeRecords) ListForApp(ctx context.Context, appID string, limit, offset int) ([]models.ExecutionRecord, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	var out []models.ExecutionRecord
	for _, rec := range f.inserted {
		if rec.AppID == appID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRecords) StatsForApp(ctx context.Context, appID string) (*models.AppStats, error) {
	return &models.AppStats{}, nil
}

func (f *fakeRecords) Totals(ctx context.Context) (Totals, error) {
	t := Totals{Executions: len(f.inserted)}
	for _, rec := range f.inserted {
		if rec.Status == models.ExecutionSuccess {
			t.Successes++
		}
	}
	return t, nil
}

type fakeClient struct {
	resp    *llm.Response
	err     error
	calls   int
	lastCfg llm.CompletionConfig
}

func (f *fakeClient) Name() string                         { return "fake" }
func (f *fakeClient) DisplayName() string                  { return "Fake" }
func (f *fakeClient) Models() []llm.ModelInfo              { return nil }
func (f *fakeClient) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeClient) Complete(ctx context.Context, systemPrompt, userInput string, cfg llm.CompletionConfig) (*llm.Response, error) {
	f.calls++
	f.lastCfg = cfg
	return f.resp, f.err
}

type fakeResolver struct {
	client *fakeClient
}

func (f *fakeResolver) Get(vendor string) (llm.Client, error) {
	if vendor == "unknown" {
		return nil, errors.New("unknown vendor: unknown")
	}
	return f.client, nil
}

func testVersion(appID string) *models.PromptVersion {
	return &models.PromptVersion{
		ID:             "pv-1",
		AppID:          appID,
		Version:        1,
		SystemPrompt:   "You are a classifier.",
		Vendor:         "openai",
		Model:          "gpt-4o",
		Temperature:    0.7,
		MaxTokens:      4096,
		ResponseFormat: models.FormatJSON,
	}
}

func newTestService(apps *fakeApps, versions *fakeVersions, records *fakeRecords, client *fakeClient) *Service {
	return NewService(&fakeResolver{client: client}, apps, versions, apps, records, 5*time.Second)
}

func TestExecuteUnknownApp(t *testing.T) {
	records := &fakeRecords{}
	client := &fakeClient{}
	svc := newTestService(&fakeApps{apps: map[string]*models.App{}}, &fakeVersions{}, records, client)

	_, err := svc.Execute(context.Background(), "nope", json.RawMessage(`{"x":1}`), nil)
	require.ErrorIs(t, err, ErrAppNotFound)
	assert.Zero(t, client.calls)
	assert.Empty(t, records.inserted)
}

func TestExecuteInactiveApp(t *testing.T) {
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusDeprecated},
	}}
	records := &fakeRecords{}
	client := &fakeClient{}
	svc := newTestService(apps, &fakeVersions{}, records, client)

	_, err := svc.Execute(context.Background(), "app-1", json.RawMessage(`{}`), nil)
	require.ErrorIs(t, err, ErrAppNotActive)
	assert.Zero(t, client.calls)
	assert.Empty(t, records.inserted)
}

func TestExecuteNoActiveVersion(t *testing.T) {
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusActive},
	}}
	records := &fakeRecords{}
	svc := newTestService(apps, &fakeVersions{active: map[string]*models.PromptVersion{}}, records, &fakeClient{})

	_, err := svc.Execute(context.Background(), "app-1", json.RawMessage(`{}`), nil)
	require.ErrorIs(t, err, ErrNoActiveVersion)
	assert.Empty(t, records.inserted)
}

func TestExecuteSuccess(t *testing.T) {
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusActive},
	}}
	versions := &fakeVersions{active: map[string]*models.PromptVersion{"app-1": testVersion("app-1")}}
	records := &fakeRecords{}
	client := &fakeClient{resp: &llm.Response{
		Content:    `Here you go: {"label": "ok"}`,
		TokenUsage: llm.TokenUsage{Prompt: 10, Completion: 5, Total: 15},
	}}
	svc := newTestService(apps, versions, records, client)

	caller := "billing"
	rec, err := svc.Execute(context.Background(), "app-1", json.RawMessage(`{"text":"hi"}`), &caller)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, models.ExecutionSuccess, rec.Status)
	assert.JSONEq(t, `{"label": "ok"}`, string(rec.Output))
	require.NotNil(t, rec.VersionID)
	assert.Equal(t, "pv-1", *rec.VersionID)
	require.NotNil(t, rec.TokenUsage)
	assert.Equal(t, 15, rec.TokenUsage.Total)
	require.NotNil(t, rec.CallerService)
	assert.Equal(t, "billing", *rec.CallerService)

	require.Len(t, records.inserted, 1)
	assert.Equal(t, rec.ID, records.inserted[0].ID)
}

func TestExecuteVendorFault(t *testing.T) {
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusActive},
	}}
	versions := &fakeVersions{active: map[string]*models.PromptVersion{"app-1": testVersion("app-1")}}
	records := &fakeRecords{}
	client := &fakeClient{err: &llm.ClientError{Vendor: "openai", Err: errors.New("rate limited")}}
	svc := newTestService(apps, versions, records, client)

	rec, err := svc.Execute(context.Background(), "app-1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, models.ExecutionError, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "openai API error")
	assert.Nil(t, rec.Output)
	assert.Nil(t, rec.TokenUsage)

	require.Len(t, records.inserted, 1)
	assert.Equal(t, models.ExecutionError, records.inserted[0].Status)
}

func TestExecuteInsertFailureStillReturnsRecord(t *testing.T) {
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusActive},
	}}
	versions := &fakeVersions{active: map[string]*models.PromptVersion{"app-1": testVersion("app-1")}}
	records := &fakeRecords{failInsert: true}
	client := &fakeClient{resp: &llm.Response{Content: `{"a":1}`}}
	svc := newTestService(apps, versions, records, client)

	rec, err := svc.Execute(context.Background(), "app-1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.ExecutionSuccess, rec.Status)
}

func TestExecuteTextFormatSkipsRecovery(t *testing.T) {
	v := testVersion("app-1")
	v.ResponseFormat = models.FormatText
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusActive},
	}}
	versions := &fakeVersions{active: map[string]*models.PromptVersion{"app-1": v}}
	client := &fakeClient{resp: &llm.Response{Content: `{"would": "parse"}`}}
	svc := newTestService(apps, versions, &fakeRecords{}, client)

	rec, err := svc.Execute(context.Background(), "app-1", json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	assert.Nil(t, rec.Output)
	require.NotNil(t, rec.RawResponse)
	assert.Equal(t, `{"would": "parse"}`, *rec.RawResponse)
}

func TestTestVersionRecordedWithCallerTag(t *testing.T) {
	v := testVersion("app-1")
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusDraft},
	}}
	versions := &fakeVersions{byID: map[string]*models.PromptVersion{"pv-1": v}}
	records := &fakeRecords{}
	client := &fakeClient{resp: &llm.Response{Content: `{"a":1}`}}
	svc := newTestService(apps, versions, records, client)

	caller := "dashboard"
	rec, err := svc.TestVersion(context.Background(), "app-1", "pv-1", json.RawMessage(`{}`), &caller)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, rec.Status)

	require.Len(t, records.inserted, 1)
	require.NotNil(t, records.inserted[0].CallerService)
	assert.Equal(t, "dashboard", *records.inserted[0].CallerService)
	require.NotNil(t, records.inserted[0].VersionID)
	assert.Equal(t, "pv-1", *records.inserted[0].VersionID)
}

func TestTestVersionUnknownVersion(t *testing.T) {
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusActive},
	}}
	records := &fakeRecords{}
	svc := newTestService(apps, &fakeVersions{byID: map[string]*models.PromptVersion{}}, records, &fakeClient{})

	_, err := svc.TestVersion(context.Background(), "app-1", "pv-missing", json.RawMessage(`{}`), nil)
	require.ErrorIs(t, err, ErrVersionNotFound)
	assert.Empty(t, records.inserted)
}

func TestTestDirectErrorInBand(t *testing.T) {
	records := &fakeRecords{}
	client := &fakeClient{err: errors.New("connection refused")}
	svc := newTestService(&fakeApps{}, &fakeVersions{}, records, client)

	rec, err := svc.TestDirect(context.Background(), DirectRequest{
		SystemPrompt: "You classify things.",
		Model:        "gpt-4o",
		Input:        json.RawMessage(`"hello"`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionError, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	assert.Empty(t, records.inserted)
}

func TestTestDirectDefaultModel(t *testing.T) {
	client := &fakeClient{resp: &llm.Response{Content: `{"a":1}`}}
	svc := newTestService(&fakeApps{}, &fakeVersions{}, &fakeRecords{}, client)

	_, err := svc.TestDirect(context.Background(), DirectRequest{
		SystemPrompt: "You classify things.",
		Input:        json.RawMessage(`"hello"`),
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-5.2", client.lastCfg.Model)
}

func TestTestDirectRecordsWhenTaggedWithApp(t *testing.T) {
	records := &fakeRecords{}
	client := &fakeClient{resp: &llm.Response{Content: `{"a":1}`}}
	svc := newTestService(&fakeApps{}, &fakeVersions{}, records, client)

	rec, err := svc.TestDirect(context.Background(), DirectRequest{
		AppID:        "app-1",
		SystemPrompt: "You classify things.",
		Input:        json.RawMessage(`"hello"`),
	})
	require.NoError(t, err)
	require.Len(t, records.inserted, 1)
	require.NotNil(t, rec.CallerService)
	assert.Equal(t, "test_success", *rec.CallerService)
	assert.Nil(t, rec.VersionID)
}

func TestTestDirectErrorTagWhenTaggedWithApp(t *testing.T) {
	records := &fakeRecords{}
	client := &fakeClient{err: errors.New("boom")}
	svc := newTestService(&fakeApps{}, &fakeVersions{}, records, client)

	rec, err := svc.TestDirect(context.Background(), DirectRequest{
		AppID:        "app-1",
		SystemPrompt: "You classify things.",
		Input:        json.RawMessage(`"hello"`),
	})
	require.NoError(t, err)
	require.Len(t, records.inserted, 1)
	require.NotNil(t, rec.CallerService)
	assert.Equal(t, "test_error", *rec.CallerService)
}

func TestLogFailure(t *testing.T) {
	records := &fakeRecords{}
	svc := newTestService(&fakeApps{}, &fakeVersions{}, records, &fakeClient{})

	rec := svc.LogFailure(context.Background(), "app-1", json.RawMessage(`{}`), nil, "[auth_error] missing API key")
	assert.Equal(t, models.ExecutionError, rec.Status)
	assert.Zero(t, rec.LatencyMs)
	assert.Nil(t, rec.VersionID)
	require.Len(t, records.inserted, 1)
	assert.Equal(t, "[auth_error] missing API key", *records.inserted[0].ErrorMessage)
}

func TestGlobalStatsEmpty(t *testing.T) {
	svc := newTestService(&fakeApps{apps: map[string]*models.App{}}, &fakeVersions{}, &fakeRecords{}, &fakeClient{})

	stats, err := svc.GlobalStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalExecutions)
	assert.Zero(t, stats.SuccessRate)
}

func TestGlobalStatsRate(t *testing.T) {
	records := &fakeRecords{inserted: []models.ExecutionRecord{
		{Status: models.ExecutionSuccess},
		{Status: models.ExecutionSuccess},
		{Status: models.ExecutionSuccess},
		{Status: models.ExecutionError},
	}}
	apps := &fakeApps{apps: map[string]*models.App{
		"app-1": {ID: "app-1", Status: models.AppStatusActive},
	}}
	svc := newTestService(apps, &fakeVersions{}, records, &fakeClient{})

	stats, err := svc.GlobalStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalExecutions)
	assert.InDelta(t, 75.0, stats.SuccessRate, 0.001)
	assert.Equal(t, 1, stats.TotalApps)
	assert.Equal(t, 1, stats.ActiveApps)
}

func TestListForAppPagination(t *testing.T) {
	records := &fakeRecords{}
	svc := newTestService(&fakeApps{}, &fakeVersions{}, records, &fakeClient{})

	_, err := svc.ListForApp(context.Background(), "app-1", 25, 50)
	require.NoError(t, err)
	assert.Equal(t, 25, records.lastLimit)
	assert.Equal(t, 50, records.lastOffset)

	// Out-of-range values normalize instead of erroring.
	_, err = svc.ListForApp(context.Background(), "app-1", 0, -3)
	require.NoError(t, err)
	assert.Equal(t, 100, records.lastLimit)
	assert.Zero(t, records.lastOffset)
}

func TestPromptInputFlattensJSONString(t *testing.T) {
	assert.Equal(t, "hello", promptInput(json.RawMessage(`"hello"`)))
	assert.Equal(t, `{"x":1}`, promptInput(json.RawMessage(`{"x":1}`)))
}
