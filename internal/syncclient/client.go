// Package syncclient is the uniform request wrapper around the backend HTTP
// API. Every call returns either a typed value or a *SyncError; transient
// failures (network errors and 5xx) get exactly one retry, 4xx none.
package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/go-resty/resty/v2"
)

// Client talks to the BrandGuard backend.
type Client struct {
	http *resty.Client
}

// New creates a client for the given base URL. The timeout bounds every
// call; an unbounded hang is a defect, not a policy.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", "BrandGuard-Bot/1.0").
			SetRetryCount(1).
			SetRetryWaitTime(250 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				// A cancelled or expired caller context is not transient.
				if r.Request.Context().Err() != nil {
					return false
				}
				if err != nil {
					return true
				}
				return r.StatusCode() >= 500
			}),
	}
}

// errorBody is the backend's error envelope. An empty or missing body falls
// back to the generic status text.
type errorBody struct {
	Detail string `json:"detail"`
}

// call performs one request and decodes the response into out (when out is
// non-nil). All failure paths are normalized into *SyncError.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &SyncError{Kind: NetworkFailure, Err: err}
	}

	if resp.StatusCode() >= 400 {
		detail := http.StatusText(resp.StatusCode())
		var eb errorBody
		if json.Unmarshal(resp.Body(), &eb) == nil && eb.Detail != "" {
			detail = eb.Detail
		}
		return &SyncError{Kind: HTTPStatus, StatusCode: resp.StatusCode(), Detail: detail}
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &SyncError{Kind: MalformedResponse, Err: err}
		}
	}
	return nil
}

// callDocument fetches a rendered-ready JSON document without imposing a
// schema beyond well-formedness.
func (c *Client) callDocument(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, &SyncError{Kind: MalformedResponse, Err: fmt.Errorf("invalid JSON document at %s", path)}
	}
	return raw, nil
}

// --- Read endpoints ---

type mentionsEnvelope struct {
	Mentions []models.Alert `json:"mentions"`
}

type threatsEnvelope struct {
	Threats []models.Alert `json:"threats"`
}

type scoutsEnvelope struct {
	Scouts []models.Scout `json:"scouts"`
}

// Mentions lists the alerts detected for a brand.
func (c *Client) Mentions(ctx context.Context, brandID string) ([]models.Alert, error) {
	var env mentionsEnvelope
	if err := c.call(ctx, http.MethodGet, "/graph/brand/"+brandID+"/mentions", nil, &env); err != nil {
		return nil, err
	}
	return env.Mentions, nil
}

// Threats is the alternate threats listing for a brand.
func (c *Client) Threats(ctx context.Context, brandID string) ([]models.Alert, error) {
	var env threatsEnvelope
	if err := c.call(ctx, http.MethodGet, "/graph/brand/"+brandID+"/threats", nil, &env); err != nil {
		return nil, err
	}
	return env.Threats, nil
}

// ListScouts lists all monitoring scouts.
func (c *Client) ListScouts(ctx context.Context) ([]models.Scout, error) {
	var env scoutsEnvelope
	if err := c.call(ctx, http.MethodGet, "/monitoring/status", nil, &env); err != nil {
		return nil, err
	}
	return env.Scouts, nil
}

// BrandHealth returns aggregate accuracy/mentions by platform.
func (c *Client) BrandHealth(ctx context.Context, brandID string) (json.RawMessage, error) {
	return c.callDocument(ctx, "/graph/brand/"+brandID+"/health")
}

// Trend returns the time series of per-platform accuracy.
func (c *Client) Trend(ctx context.Context, brandID string) (json.RawMessage, error) {
	return c.callDocument(ctx, "/graph/brand/"+brandID+"/trend")
}

// Network returns the graph nodes/edges around a brand.
func (c *Client) Network(ctx context.Context, brandID string) (json.RawMessage, error) {
	return c.callDocument(ctx, "/graph/brand/"+brandID+"/network")
}

// Sources returns the recent source list for a brand.
func (c *Client) Sources(ctx context.Context, brandID string) (json.RawMessage, error) {
	return c.callDocument(ctx, "/graph/brand/"+brandID+"/sources")
}

// --- Write endpoints ---

// MentionCreate is the payload for recording a new mention/alert.
type MentionCreate struct {
	BrandID   string  `json:"brand_id"`
	Platform  string  `json:"platform"`
	Claim     string  `json:"claim"`
	Context   string  `json:"context,omitempty"`
	SourceURL string  `json:"source_url"`
	Accuracy  float64 `json:"accuracy_score"`
}

// CreateMention records a mention/alert on the backend.
func (c *Client) CreateMention(ctx context.Context, m MentionCreate) (*models.Alert, error) {
	var alert models.Alert
	if err := c.call(ctx, http.MethodPost, "/graph/mentions", m, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// CorrectionCreate is the payload for creating or publishing a correction.
type CorrectionCreate struct {
	ID         string `json:"id,omitempty"`
	BrandID    string `json:"brand_id"`
	Type       string `json:"type"`
	Platform   string `json:"platform"`
	Claim      string `json:"claim"`
	Correction string `json:"correction"`
	Publish    bool   `json:"publish"`
}

// CreateCorrection creates or publishes a correction.
func (c *Client) CreateCorrection(ctx context.Context, cc CorrectionCreate) (*models.Correction, error) {
	var correction models.Correction
	if err := c.call(ctx, http.MethodPost, "/graph/corrections", cc, &correction); err != nil {
		return nil, err
	}
	return &correction, nil
}

// ScoutCreate is the payload for creating a monitoring scout.
type ScoutCreate struct {
	Query          string `json:"query"`
	BrandID        string `json:"brand_id"`
	DisplayName    string `json:"display_name,omitempty"`
	OutputInterval int    `json:"output_interval,omitempty"`
	UserTimezone   string `json:"user_timezone,omitempty"`
}

// CreateScout creates a monitoring scout.
func (c *Client) CreateScout(ctx context.Context, sc ScoutCreate) (*models.Scout, error) {
	var scout models.Scout
	if err := c.call(ctx, http.MethodPost, "/monitoring/scouts", sc, &scout); err != nil {
		return nil, err
	}
	return &scout, nil
}

// UpdateScoutStatus pauses or resumes a scout.
func (c *Client) UpdateScoutStatus(ctx context.Context, scoutID, status string) (*models.Scout, error) {
	var scout models.Scout
	body := map[string]string{"status": status}
	if err := c.call(ctx, http.MethodPost, "/monitoring/scouts/"+scoutID, body, &scout); err != nil {
		return nil, err
	}
	return &scout, nil
}

// DeleteScout removes a scout.
func (c *Client) DeleteScout(ctx context.Context, scoutID string) error {
	return c.call(ctx, http.MethodDelete, "/monitoring/scouts/"+scoutID, nil, nil)
}

// InvestigateRequest triggers research on a claim.
type InvestigateRequest struct {
	BrandID string `json:"brand_id"`
	AlertID string `json:"alert_id"`
	Claim   string `json:"claim"`
	Context string `json:"context,omitempty"`
}

// InvestigateResult carries the authoritative status for the investigated
// alert, when the backend reports one.
type InvestigateResult struct {
	Status   string `json:"status,omitempty"`
	Findings string `json:"findings,omitempty"`
}

// Investigate triggers an investigation on a claim.
func (c *Client) Investigate(ctx context.Context, req InvestigateRequest) (*InvestigateResult, error) {
	var result InvestigateResult
	if err := c.call(ctx, http.MethodPost, "/investigate/research", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemediateRequest triggers auto-correction for a mention.
type RemediateRequest struct {
	BrandID string `json:"brand_id"`
	AlertID string `json:"alert_id"`
	Claim   string `json:"claim"`
}

// RemediateResult carries the outcome of an auto-correction run.
type RemediateResult struct {
	Status              string `json:"status,omitempty"`
	SuggestedCorrection string `json:"suggested_correction,omitempty"`
}

// Remediate triggers auto-correction for a mention.
func (c *Client) Remediate(ctx context.Context, req RemediateRequest) (*RemediateResult, error) {
	var result RemediateResult
	if err := c.call(ctx, http.MethodPost, "/remediate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OnboardRequest carries the brand onboarding side effects.
type OnboardRequest struct {
	BrandID  string   `json:"brand_id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
	Domains  []string `json:"domains,omitempty"`
}

// IngestContent pushes brand reference content during onboarding.
func (c *Client) IngestContent(ctx context.Context, req OnboardRequest) error {
	return c.call(ctx, http.MethodPost, "/content/ingest", req, nil)
}

// SetupRules installs monitoring rules during onboarding.
func (c *Client) SetupRules(ctx context.Context, req OnboardRequest) error {
	return c.call(ctx, http.MethodPost, "/rules/setup", req, nil)
}
