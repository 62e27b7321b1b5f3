// Package monitoring runs the background scouts: periodic sweeps that pull
// fresh mentions from the backend, score them for accuracy, and turn the
// relevant ones into open alerts in the entity store.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brandguard/brandguard-bot/internal/activebrand"
	"github.com/brandguard/brandguard-bot/internal/config"
	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/notifications"
	"github.com/brandguard/brandguard-bot/internal/storage"
	"github.com/brandguard/brandguard-bot/internal/store"
	"github.com/sirupsen/logrus"
)

// MentionReader is the slice of the sync client a sweep needs.
type MentionReader interface {
	Mentions(ctx context.Context, brandID string) ([]models.Alert, error)
}

// Service coordinates scout sweeps for the active brand
type Service struct {
	config   *config.Config
	reader   MentionReader
	store    *store.Store
	brands   *activebrand.Store
	archive  storage.Interface
	notifier notifications.NotificationInterface
	metrics  *Metrics
	mu       sync.RWMutex
}

// Metrics holds sweep metrics
type Metrics struct {
	TotalAlerts       int            `json:"total_alerts"`
	LastSweep         time.Time      `json:"last_sweep"`
	LastSweepDuration string         `json:"last_sweep_duration"`
	ScoutsRun         int            `json:"scouts_run"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
	ErrorCount        int            `json:"error_count"`
}

// NewService creates a new monitoring service
func NewService(cfg *config.Config, reader MentionReader, entityStore *store.Store, brands *activebrand.Store, archive storage.Interface, notifier notifications.NotificationInterface) *Service {
	return &Service{
		config:   cfg,
		reader:   reader,
		store:    entityStore,
		brands:   brands,
		archive:  archive,
		notifier: notifier,
		metrics: &Metrics{
			SeverityBreakdown: make(map[string]int),
		},
	}
}

// RunSweep runs every due scout for the active brand
func (s *Service) RunSweep() error {
	start := time.Now()
	brandID := s.brands.Get()
	logrus.Infof("Starting scout sweep for brand %s", brandID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	scouts := s.dueScouts(brandID, start)
	if len(scouts) == 0 {
		logrus.Info("No scouts due; skipping sweep")
		return nil
	}

	mentions, err := s.reader.Mentions(ctx, brandID)
	if err != nil {
		s.recordError()
		logrus.Errorf("Sweep fetch failed for brand %s: %v", brandID, err)
		return fmt.Errorf("sweep fetch failed: %w", err)
	}

	var newAlerts []models.Alert
	for _, scout := range scouts {
		matched := 0
		for _, mention := range mentions {
			if !s.isRelevantMention(scout, mention) {
				continue
			}
			alert := s.buildAlert(brandID, scout, mention)
			if _, exists := s.store.Get(brandID, models.KindAlert, alert.ID); exists {
				// Already ingested; the operator may have moved it through
				// the workflow, so never overwrite it.
				continue
			}
			newAlerts = append(newAlerts, alert)
			matched++
		}
		logrus.Infof("Scout %s matched %d mentions", scout.DisplayName, matched)
		s.advanceScout(brandID, scout, start)
	}

	if len(newAlerts) > 0 {
		entities := make([]models.Entity, len(newAlerts))
		for i, a := range newAlerts {
			entities[i] = a
		}
		s.store.Merge(brandID, models.KindAlert, entities)
	}

	if err := s.archiveSweep(brandID, newAlerts); err != nil {
		logrus.Errorf("Failed to archive sweep: %v", err)
	}

	s.updateMetrics(newAlerts, len(scouts), time.Since(start))

	if critical := filterBySeverity(newAlerts, models.SeverityCritical); len(critical) > 0 {
		digest := s.generateDigest(brandID, critical)
		if err := s.notifier.SendDigest(digest); err != nil {
			logrus.Errorf("Failed to send critical digest: %v", err)
		}
	}

	logrus.Infof("Sweep completed in %v: %d new alerts", time.Since(start), len(newAlerts))
	return nil
}

// RunCriticalCheck notifies about open critical alerts detected recently.
// Runs more often than the full sweep.
func (s *Service) RunCriticalCheck() error {
	brandID := s.brands.Get()
	cutoff := time.Now().Add(-4 * time.Hour)

	var urgent []models.Alert
	for _, e := range s.store.List(brandID, models.KindAlert) {
		alert, ok := e.(models.Alert)
		if !ok {
			continue
		}
		if alert.Severity == models.SeverityCritical && alert.Status == models.AlertOpen && alert.DetectedAt.After(cutoff) {
			urgent = append(urgent, alert)
		}
	}

	if len(urgent) == 0 {
		logrus.Info("No urgent alerts found")
		return nil
	}

	logrus.Infof("Found %d urgent alerts requiring immediate notification", len(urgent))
	for i := range urgent {
		if err := s.notifier.SendAlert(&urgent[i]); err != nil {
			return fmt.Errorf("failed to send urgent alert: %w", err)
		}
	}
	return nil
}

// dueScouts returns the active scouts whose next run is due.
func (s *Service) dueScouts(brandID string, now time.Time) []models.Scout {
	var due []models.Scout
	for _, e := range s.store.List(brandID, models.KindScout) {
		scout, ok := e.(models.Scout)
		if !ok || scout.Status != models.ScoutActive {
			continue
		}
		if scout.NextRun == nil || !scout.NextRun.After(now) {
			due = append(due, scout)
		}
	}
	return due
}

// advanceScout pushes a scout's next run forward by its output interval.
func (s *Service) advanceScout(brandID string, scout models.Scout, now time.Time) {
	next := now.Add(time.Duration(scout.OutputInterval) * time.Second).UTC()
	scout.NextRun = &next
	s.store.Merge(brandID, models.KindScout, []models.Entity{scout})
}

// isRelevantMention checks a mention against the scout's query terms. Every
// mention must match at least one term in the claim or context.
func (s *Service) isRelevantMention(scout models.Scout, mention models.Alert) bool {
	content := strings.ToLower(mention.Claim + " " + mention.Context)
	if strings.TrimSpace(content) == "" {
		return false
	}

	for _, term := range queryTerms(scout.Query) {
		if strings.Contains(content, term) {
			return true
		}
	}
	return false
}

// queryTerms splits a scout query into lowercase match terms, dropping
// connective words so "acme recall OR lawsuit" matches on the content words.
func queryTerms(query string) []string {
	stopwords := map[string]bool{
		"or": true, "and": true, "the": true, "a": true, "an": true,
		"of": true, "for": true, "about": true, "new": true,
	}

	var terms []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		field = strings.Trim(field, `"'()`)
		if len(field) < 3 || stopwords[field] {
			continue
		}
		terms = append(terms, field)
	}
	return terms
}

// buildAlert turns a raw mention into an open alert with a scored severity.
func (s *Service) buildAlert(brandID string, scout models.Scout, mention models.Alert) models.Alert {
	alert := mention
	alert.BrandID = brandID
	if alert.ID == "" {
		alert.ID = fmt.Sprintf("%s-%d", scout.ID, mention.DetectedAt.Unix())
	}
	if alert.DetectedAt.IsZero() {
		alert.DetectedAt = time.Now().UTC()
	}

	if alert.AccuracyScore <= 0 {
		alert.AccuracyScore = scoreAccuracy(alert.Claim + " " + alert.Context)
	}
	alert.AccuracyScore = models.ClampAccuracy(alert.AccuracyScore)
	alert.Severity = deriveSeverity(alert.AccuracyScore)
	alert.Status = models.AlertOpen
	return alert
}

// scoreAccuracy estimates how factually damaging a claim is. Harm markers
// pull the score down; hedging markers pull it down less. The result is the
// claim's accuracy estimate on the 0-100 scale, lower meaning worse.
func scoreAccuracy(content string) float64 {
	content = strings.ToLower(content)

	harmMarkers := []string{
		"recall", "lawsuit", "sued", "scam", "fraud", "banned",
		"bankrupt", "shutting down", "shut down", "data breach", "hacked",
		"unsafe", "toxic", "fire hazard", "defective", "discontinued",
	}
	hedgeMarkers := []string{
		"allegedly", "rumor", "unconfirmed", "reportedly",
		"some users say", "it is said",
	}

	score := 70.0
	for _, marker := range harmMarkers {
		if strings.Contains(content, marker) {
			score -= 15
		}
	}
	for _, marker := range hedgeMarkers {
		if strings.Contains(content, marker) {
			score -= 5
		}
	}

	return models.ClampAccuracy(score)
}

// deriveSeverity maps an accuracy score onto a severity band.
func deriveSeverity(accuracy float64) models.Severity {
	switch {
	case accuracy < 25:
		return models.SeverityCritical
	case accuracy < 50:
		return models.SeverityHigh
	case accuracy < 75:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func filterBySeverity(alerts []models.Alert, severity models.Severity) []models.Alert {
	var out []models.Alert
	for _, a := range alerts {
		if a.Severity == severity {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) archiveSweep(brandID string, alerts []models.Alert) error {
	if len(alerts) == 0 || s.archive == nil {
		return nil
	}

	data, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep alerts: %w", err)
	}

	name := fmt.Sprintf("sweep-%s-%s.json", brandID, time.Now().Format("2006-01-02-15-04-05"))
	return s.archive.Store(name, data)
}

// generateDigest summarizes a batch of alerts for notification channels.
func (s *Service) generateDigest(brandID string, alerts []models.Alert) *models.Digest {
	digest := &models.Digest{
		GeneratedAt:       time.Now().UTC(),
		BrandID:           brandID,
		Period:            s.config.SweepSchedule,
		TotalAlerts:       len(alerts),
		Alerts:            alerts,
		SeverityBreakdown: make(map[string]int),
		PlatformBreakdown: make(map[string]int),
	}

	for _, alert := range alerts {
		digest.SeverityBreakdown[string(alert.Severity)]++
		digest.PlatformBreakdown[alert.Platform]++
	}

	return digest
}

// GenerateTestDigest builds a digest without running a sweep. Used by the
// test-digest command.
func (s *Service) GenerateTestDigest(brandID string, alerts []models.Alert) *models.Digest {
	return s.generateDigest(brandID, alerts)
}

func (s *Service) updateMetrics(alerts []models.Alert, scoutsRun int, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalAlerts = len(alerts)
	s.metrics.LastSweep = time.Now()
	s.metrics.LastSweepDuration = duration.String()
	s.metrics.ScoutsRun = scoutsRun

	s.metrics.SeverityBreakdown = make(map[string]int)
	for _, alert := range alerts {
		s.metrics.SeverityBreakdown[string(alert.Severity)]++
	}
}

func (s *Service) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ErrorCount++
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
