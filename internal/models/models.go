package models

import (
	"encoding/json"
	"time"
)

type AppStatus string

const (
	AppStatusDraft      AppStatus = "draft"
	AppStatusActive     AppStatus = "active"
	AppStatusDeprecated AppStatus = "deprecated"
)

type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
)

type ResponseFormat string

const (
	FormatJSON ResponseFormat = "json"
	FormatText ResponseFormat = "text"
)

// App is a named, independently lifecycled unit exposing one callable
// endpoint backed by a prompt configuration.
type App struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Description     *string   `json:"description,omitempty" db:"description"`
	Status          AppStatus `json:"status" db:"status"`
	ActiveVersionID *string   `json:"active_version_id,omitempty" db:"active_version_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// PromptVersion is an immutable, numbered snapshot of an app's
// vendor/model/prompt/parameter configuration. Version numbers are
// assigned max+1 within the app and never reused.
type PromptVersion struct {
	ID             string         `json:"id" db:"id"`
	AppID          string         `json:"app_id" db:"app_id"`
	Version        int            `json:"version" db:"version"`
	SystemPrompt   string         `json:"system_prompt" db:"system_prompt"`
	Vendor         string         `json:"vendor" db:"vendor"`
	Model          string         `json:"model" db:"model"`
	Temperature    float64        `json:"temperature" db:"temperature"`
	MaxTokens      int            `json:"max_tokens" db:"max_tokens"`
	ResponseFormat ResponseFormat `json:"response_format" db:"response_format"`
	PublishedAt    *time.Time     `json:"published_at,omitempty" db:"published_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	CreatedBy      string         `json:"created_by" db:"created_by"`
}

type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// ExecutionRecord is an immutable audit entry for one attempted call,
// success or failure. VersionID is nil for pre-auth failures and for
// records whose version has since been deleted.
type ExecutionRecord struct {
	ID            string          `json:"id" db:"id"`
	AppID         string          `json:"app_id" db:"app_id"`
	VersionID     *string         `json:"version_id,omitempty" db:"version_id"`
	Input         json.RawMessage `json:"input" db:"input"`
	Output        json.RawMessage `json:"output,omitempty" db:"output"`
	RawResponse   *string         `json:"raw_response,omitempty" db:"raw_response"`
	LatencyMs     int             `json:"latency_ms" db:"latency_ms"`
	TokenUsage    *TokenUsage     `json:"token_usage,omitempty" db:"token_usage"`
	Status        ExecutionStatus `json:"status" db:"status"`
	ErrorMessage  *string         `json:"error_message,omitempty" db:"error_message"`
	CallerService *string         `json:"caller_service,omitempty" db:"caller_service"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// APIKey stores only the SHA-256 digest of the caller secret. A nil
// AppID means the key is global.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	KeyHash    string     `json:"-" db:"key_hash"`
	AppID      *string    `json:"app_id,omitempty" db:"app_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// VendorAPIKey holds the operator-stored secret for one vendor,
// base64-encoded at rest. At most one row per vendor.
type VendorAPIKey struct {
	ID         string    `json:"id" db:"id"`
	Vendor     string    `json:"vendor" db:"vendor"`
	EncodedKey string    `json:"-" db:"encoded_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type AppStats struct {
	TotalExecutions int `json:"total_executions"`
	SuccessCount    int `json:"success_count"`
	ErrorCount      int `json:"error_count"`
	AvgLatencyMs    int `json:"avg_latency_ms"`
	TotalTokens     int `json:"total_tokens"`
}

type GlobalStats struct {
	TotalApps       int     `json:"total_apps"`
	ActiveApps      int     `json:"active_apps"`
	TotalExecutions int     `json:"total_executions"`
	SuccessRate     float64 `json:"success_rate"`
	AvgLatencyMs    int     `json:"avg_latency_ms"`
	TotalTokens     int     `json:"total_tokens"`
}
