package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Greater(t, Severity("bogus").Rank(), SeverityLow.Rank())
}

func TestClampAccuracy(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"negative clamps to zero", -12.5, 0},
		{"above range clamps to hundred", 240, 100},
		{"in range passes through", 61.3, 61.3},
		{"boundary low", 0, 0},
		{"boundary high", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClampAccuracy(tt.input))
		})
	}
}

func TestAlert_Normalize(t *testing.T) {
	a := Alert{ID: "a1", AccuracyScore: -4}
	n := a.Normalize().(Alert)
	assert.Equal(t, float64(0), n.AccuracyScore)
	assert.Equal(t, AlertOpen, n.Status)

	a = Alert{ID: "a2", AccuracyScore: 130, Status: AlertInvestigating}
	n = a.Normalize().(Alert)
	assert.Equal(t, float64(100), n.AccuracyScore)
	assert.Equal(t, AlertInvestigating, n.Status)
}

func TestSortAlerts(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	alerts := []Alert{
		{ID: "low-old", Severity: SeverityLow, DetectedAt: base},
		{ID: "crit-old", Severity: SeverityCritical, DetectedAt: base},
		{ID: "high", Severity: SeverityHigh, DetectedAt: base.Add(time.Hour)},
		{ID: "crit-new", Severity: SeverityCritical, DetectedAt: base.Add(2 * time.Hour)},
		{ID: "medium", Severity: SeverityMedium, DetectedAt: base},
	}

	SortAlerts(alerts)

	ids := func() []string {
		out := make([]string, len(alerts))
		for i, a := range alerts {
			out[i] = a.ID
		}
		return out
	}

	expected := []string{"crit-new", "crit-old", "high", "medium", "low-old"}
	assert.Equal(t, expected, ids())

	// Sorting again must not reorder anything.
	SortAlerts(alerts)
	assert.Equal(t, expected, ids())
}

func TestSortAlerts_StableOnEqualKeys(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alerts := []Alert{
		{ID: "first", Severity: SeverityHigh, DetectedAt: ts},
		{ID: "second", Severity: SeverityHigh, DetectedAt: ts},
		{ID: "third", Severity: SeverityHigh, DetectedAt: ts},
	}

	SortAlerts(alerts)

	assert.Equal(t, "first", alerts[0].ID)
	assert.Equal(t, "second", alerts[1].ID)
	assert.Equal(t, "third", alerts[2].ID)
}
