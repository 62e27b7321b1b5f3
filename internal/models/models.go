package models

import (
	"sort"
	"time"
)

// Kind identifies an entity collection managed by the store.
type Kind string

const (
	KindAlert      Kind = "alert"
	KindScout      Kind = "scout"
	KindCorrection Kind = "correction"
)

// Entity is implemented by every domain object kept in the entity store.
type Entity interface {
	EntityID() string
}

// Normalizer lets an entity sanitize itself on ingest (clamping, defaults).
type Normalizer interface {
	Normalize() Entity
}

// Severity classifies how damaging an alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities worst-first: critical(0) < high(1) < medium(2) < low(3).
// Unknown severities sort after low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Alert statuses.
const (
	AlertOpen          = "open"
	AlertInvestigating = "investigating"
	AlertCorrected     = "corrected"
	AlertDismissed     = "dismissed"
)

// Scout statuses.
const (
	ScoutActive = "active"
	ScoutPaused = "paused"
	ScoutDone   = "done"
)

// Correction statuses.
const (
	CorrectionDraft     = "draft"
	CorrectionPublished = "published"
)

// Correction types.
const (
	CorrectionTypeBlog   = "blog"
	CorrectionTypeFAQ    = "faq"
	CorrectionTypeSocial = "social"
	CorrectionTypePress  = "press"
)

// Alert is a detected instance of an AI platform misrepresenting the brand.
type Alert struct {
	ID                  string    `json:"id"`
	BrandID             string    `json:"brand_id"`
	Severity            Severity  `json:"severity"`
	Platform            string    `json:"platform"` // source AI system, free text
	Claim               string    `json:"claim"`
	Context             string    `json:"context,omitempty"`
	AccuracyScore       float64   `json:"accuracy_score"` // 0-100, lower is worse
	Status              string    `json:"status"`
	DetectedAt          time.Time `json:"detected_at"`
	SourceURL           string    `json:"source_url"`
	SuggestedCorrection string    `json:"suggested_correction,omitempty"`
}

func (a Alert) EntityID() string { return a.ID }

// Normalize clamps the accuracy score into [0,100] and defaults the status.
func (a Alert) Normalize() Entity {
	a.AccuracyScore = ClampAccuracy(a.AccuracyScore)
	if a.Status == "" {
		a.Status = AlertOpen
	}
	return a
}

// Correction is authored content intended to counteract a false claim.
// Claim is a denormalized copy of the alert claim it corrects; the two are
// not linked by a foreign key.
type Correction struct {
	ID          string     `json:"id"`
	BrandID     string     `json:"brand_id"`
	Type        string     `json:"type"` // blog, faq, social, press
	Status      string     `json:"status"`
	Platform    string     `json:"platform"`
	Claim       string     `json:"claim"`
	Correction  string     `json:"correction"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"` // set iff published
}

func (c Correction) EntityID() string { return c.ID }

// Scout is a standing monitoring job that periodically searches for new
// brand mentions.
type Scout struct {
	ID             string     `json:"id"`
	BrandID        string     `json:"brand_id"`
	Query          string     `json:"query"`
	DisplayName    string     `json:"display_name"`
	Status         string     `json:"status"`
	OutputInterval int        `json:"output_interval"` // seconds between runs, > 0
	CreatedAt      time.Time  `json:"created_at"`
	NextRun        *time.Time `json:"next_run,omitempty"`
}

func (s Scout) EntityID() string { return s.ID }

// Normalize enforces a positive output interval and defaults the status.
func (s Scout) Normalize() Entity {
	if s.OutputInterval <= 0 {
		s.OutputInterval = 86400
	}
	if s.Status == "" {
		s.Status = ScoutActive
	}
	return s
}

// Brand is a monitored brand profile.
type Brand struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Keywords        []string `json:"keywords"`
	Domains         []string `json:"domains"`
	ReputationScore float64  `json:"reputation_score"`
	ActiveScouts    int      `json:"active_scouts"`
	TotalMentions   int      `json:"total_mentions"`
}

// ClampAccuracy forces an accuracy score into [0,100].
func ClampAccuracy(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SortAlerts orders alerts worst-first: severity rank ascending, ties broken
// by detection time descending (most recent first). The sort is stable and
// idempotent; several read paths depend on this ordering.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return alerts[i].DetectedAt.After(alerts[j].DetectedAt)
	})
}

// SortAlertEntities applies the alert ordering to an entity slice. Non-alert
// entities keep their original relative order.
func SortAlertEntities(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		ai, iok := entities[i].(Alert)
		aj, jok := entities[j].(Alert)
		if !iok || !jok {
			return false
		}
		ri, rj := ai.Severity.Rank(), aj.Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return ai.DetectedAt.After(aj.DetectedAt)
	})
}

// Digest is a periodic summary of alert activity sent to notification
// channels.
type Digest struct {
	GeneratedAt       time.Time      `json:"generated_at"`
	BrandID           string         `json:"brand_id"`
	Period            string         `json:"period"`
	TotalAlerts       int            `json:"total_alerts"`
	Alerts            []Alert        `json:"alerts"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
	PlatformBreakdown map[string]int `json:"platform_breakdown"`
}
