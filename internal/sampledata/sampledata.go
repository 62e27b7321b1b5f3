// Package sampledata provides the built-in datasets served when the backend
// is disabled or unreachable and no cached snapshot exists. The fixtures are
// deterministic: every call returns the same data, so demo mode and tests
// behave identically from run to run.
package sampledata

import (
	"encoding/json"
	"time"

	"github.com/brandguard/brandguard-bot/internal/models"
)

var fixtureTime = time.Date(2025, 5, 12, 9, 30, 0, 0, time.UTC)

// Alerts returns the sample alert set for a brand: one alert per severity,
// all open, scores already in range.
func Alerts(brandID string) []models.Alert {
	return []models.Alert{
		{
			ID:                  "sample-alert-1",
			BrandID:             brandID,
			Severity:            models.SeverityCritical,
			Platform:            "ChatGPT",
			Claim:               "The company recalled its flagship product across all markets last quarter.",
			Context:             "Answer to a product-safety question",
			AccuracyScore:       12,
			Status:              models.AlertOpen,
			DetectedAt:          fixtureTime.Add(-2 * time.Hour),
			SourceURL:           "https://chat.example.com/share/sample-1",
			SuggestedCorrection: "No recall has been issued; the product remains on sale in all markets.",
		},
		{
			ID:            "sample-alert-2",
			BrandID:       brandID,
			Severity:      models.SeverityHigh,
			Platform:      "Gemini",
			Claim:         "The brand's subscription plan doubled in price this year.",
			AccuracyScore: 34,
			Status:        models.AlertOpen,
			DetectedAt:    fixtureTime.Add(-26 * time.Hour),
			SourceURL:     "https://gemini.example.com/share/sample-2",
		},
		{
			ID:            "sample-alert-3",
			BrandID:       brandID,
			Severity:      models.SeverityMedium,
			Platform:      "Perplexity",
			Claim:         "Customer support is only available by postal mail.",
			AccuracyScore: 55,
			Status:        models.AlertOpen,
			DetectedAt:    fixtureTime.Add(-3 * 24 * time.Hour),
			SourceURL:     "https://perplexity.example.com/share/sample-3",
		},
		{
			ID:            "sample-alert-4",
			BrandID:       brandID,
			Severity:      models.SeverityLow,
			Platform:      "Claude",
			Claim:         "The company was founded in 1996.",
			Context:       "Founding year is 1998",
			AccuracyScore: 81,
			Status:        models.AlertOpen,
			DetectedAt:    fixtureTime.Add(-6 * 24 * time.Hour),
			SourceURL:     "https://claude.example.com/share/sample-4",
		},
	}
}

// Scouts returns the sample scout set: two active, one paused.
func Scouts(brandID string) []models.Scout {
	nextRun := fixtureTime.Add(12 * time.Hour)
	return []models.Scout{
		{
			ID:             "sample-scout-1",
			BrandID:        brandID,
			Query:          "brand product recall OR lawsuit",
			DisplayName:    "Recall & legal watch",
			Status:         models.ScoutActive,
			OutputInterval: 86400,
			CreatedAt:      fixtureTime.Add(-30 * 24 * time.Hour),
			NextRun:        &nextRun,
		},
		{
			ID:             "sample-scout-2",
			BrandID:        brandID,
			Query:          "brand pricing subscription cost",
			DisplayName:    "Pricing mentions",
			Status:         models.ScoutActive,
			OutputInterval: 43200,
			CreatedAt:      fixtureTime.Add(-14 * 24 * time.Hour),
			NextRun:        &nextRun,
		},
		{
			ID:             "sample-scout-3",
			BrandID:        brandID,
			Query:          "brand customer support complaints",
			DisplayName:    "Support sentiment",
			Status:         models.ScoutPaused,
			OutputInterval: 86400,
			CreatedAt:      fixtureTime.Add(-7 * 24 * time.Hour),
		},
	}
}

// Corrections returns the sample correction set: one draft, one published.
func Corrections(brandID string) []models.Correction {
	publishedAt := fixtureTime.Add(-20 * time.Hour)
	return []models.Correction{
		{
			ID:         "sample-correction-1",
			BrandID:    brandID,
			Type:       models.CorrectionTypeFAQ,
			Status:     models.CorrectionDraft,
			Platform:   "ChatGPT",
			Claim:      "The company recalled its flagship product across all markets last quarter.",
			Correction: "No recall has been issued. The flagship product remains available in all markets.",
			CreatedAt:  fixtureTime.Add(-90 * time.Minute),
		},
		{
			ID:          "sample-correction-2",
			BrandID:     brandID,
			Type:        models.CorrectionTypeBlog,
			Status:      models.CorrectionPublished,
			Platform:    "Gemini",
			Claim:       "The brand's subscription plan doubled in price this year.",
			Correction:  "Subscription pricing has been unchanged since January 2024.",
			CreatedAt:   fixtureTime.Add(-2 * 24 * time.Hour),
			PublishedAt: &publishedAt,
		},
	}
}

// Entities returns the sample dataset for a kind as store entities.
func Entities(kind models.Kind, brandID string) []models.Entity {
	switch kind {
	case models.KindAlert:
		alerts := Alerts(brandID)
		out := make([]models.Entity, len(alerts))
		for i, a := range alerts {
			out[i] = a
		}
		return out
	case models.KindScout:
		scouts := Scouts(brandID)
		out := make([]models.Entity, len(scouts))
		for i, s := range scouts {
			out[i] = s
		}
		return out
	case models.KindCorrection:
		corrections := Corrections(brandID)
		out := make([]models.Entity, len(corrections))
		for i, c := range corrections {
			out[i] = c
		}
		return out
	}
	return nil
}

// Document returns a rendered-ready sample payload for the named read-only
// view (health, trend, network, sources).
func Document(name, brandID string) json.RawMessage {
	switch name {
	case "health":
		return mustJSON(map[string]interface{}{
			"brand_id": brandID,
			"platforms": []map[string]interface{}{
				{"platform": "ChatGPT", "accuracy": 72.5, "mentions": 48},
				{"platform": "Gemini", "accuracy": 81.0, "mentions": 31},
				{"platform": "Perplexity", "accuracy": 64.2, "mentions": 19},
			},
		})
	case "trend":
		return mustJSON(map[string]interface{}{
			"brand_id": brandID,
			"points": []map[string]interface{}{
				{"date": "2025-05-05", "platform": "ChatGPT", "accuracy": 70.1},
				{"date": "2025-05-12", "platform": "ChatGPT", "accuracy": 72.5},
				{"date": "2025-05-05", "platform": "Gemini", "accuracy": 79.4},
				{"date": "2025-05-12", "platform": "Gemini", "accuracy": 81.0},
			},
		})
	case "network":
		return mustJSON(map[string]interface{}{
			"brand_id": brandID,
			"nodes": []map[string]interface{}{
				{"id": brandID, "type": "brand"},
				{"id": "ChatGPT", "type": "platform"},
				{"id": "sample-alert-1", "type": "threat"},
			},
			"edges": []map[string]interface{}{
				{"source": "ChatGPT", "target": brandID, "type": "mentions"},
				{"source": "sample-alert-1", "target": brandID, "type": "threatens"},
			},
		})
	case "sources":
		return mustJSON(map[string]interface{}{
			"brand_id": brandID,
			"sources": []map[string]interface{}{
				{"url": "https://chat.example.com/share/sample-1", "platform": "ChatGPT", "seen_at": "2025-05-12T07:30:00Z"},
				{"url": "https://gemini.example.com/share/sample-2", "platform": "Gemini", "seen_at": "2025-05-11T07:30:00Z"},
			},
		})
	}
	return mustJSON(map[string]string{"brand_id": brandID})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
