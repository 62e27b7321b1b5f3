package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brandguard/brandguard-bot/internal/activebrand"
	"github.com/brandguard/brandguard-bot/internal/config"
	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReader is a mock implementation of the mention reader
type MockReader struct {
	mock.Mock
}

func (m *MockReader) Mentions(ctx context.Context, brandID string) ([]models.Alert, error) {
	args := m.Called(ctx, brandID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Alert), args.Error(1)
}

// MockStorage is a mock implementation of the storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(filename string, data []byte) error {
	args := m.Called(filename, data)
	return args.Error(0)
}

func (m *MockStorage) Retrieve(filename string) ([]byte, error) {
	args := m.Called(filename)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) List(prefix string) ([]string, error) {
	args := m.Called(prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) Delete(filename string) error {
	args := m.Called(filename)
	return args.Error(0)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendDigest(digest *models.Digest) error {
	args := m.Called(digest)
	return args.Error(0)
}

func (m *MockNotificationService) SendAlert(alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

func newTestService(reader MentionReader) (*Service, *store.Store, *MockStorage, *MockNotificationService) {
	cfg := &config.Config{SweepSchedule: "hourly"}
	entityStore := store.New()
	brands := activebrand.New(nil, "brand-a")
	mockStorage := &MockStorage{}
	mockNotifications := &MockNotificationService{}
	svc := NewService(cfg, reader, entityStore, brands, mockStorage, mockNotifications)
	return svc, entityStore, mockStorage, mockNotifications
}

func activeScout(id, query string) models.Scout {
	return models.Scout{
		ID:             id,
		BrandID:        "brand-a",
		Query:          query,
		DisplayName:    id,
		Status:         models.ScoutActive,
		OutputInterval: 3600,
	}
}

func TestRunSweep_CreatesOpenAlertsFromRelevantMentions(t *testing.T) {
	reader := &MockReader{}
	svc, entityStore, mockStorage, _ := newTestService(reader)

	entityStore.Merge("brand-a", models.KindScout, []models.Entity{activeScout("scout-1", "acme recall")})

	reader.On("Mentions", mock.Anything, "brand-a").Return([]models.Alert{
		{
			ID:         "m1",
			Claim:      "Acme products were recalled nationwide",
			Platform:   "chatgpt",
			DetectedAt: time.Now().UTC(),
		},
		{
			ID:         "m2",
			Claim:      "Unrelated gardening tips",
			Platform:   "gemini",
			DetectedAt: time.Now().UTC(),
		},
	}, nil)
	mockStorage.On("Store", mock.Anything, mock.Anything).Return(nil)

	err := svc.RunSweep()
	require.NoError(t, err)

	alerts := entityStore.List("brand-a", models.KindAlert)
	require.Len(t, alerts, 1)
	alert := alerts[0].(models.Alert)
	assert.Equal(t, "m1", alert.ID)
	assert.Equal(t, models.AlertOpen, alert.Status)
	assert.NotEmpty(t, alert.Severity)
	mockStorage.AssertCalled(t, "Store", mock.Anything, mock.Anything)
}

func TestRunSweep_DoesNotOverwriteWorkflowState(t *testing.T) {
	reader := &MockReader{}
	svc, entityStore, _, _ := newTestService(reader)

	entityStore.Merge("brand-a", models.KindScout, []models.Entity{activeScout("scout-1", "acme recall")})
	entityStore.Merge("brand-a", models.KindAlert, []models.Entity{models.Alert{
		ID:            "m1",
		BrandID:       "brand-a",
		Claim:         "Acme products were recalled nationwide",
		Severity:      models.SeverityHigh,
		Status:        models.AlertInvestigating,
		AccuracyScore: 30,
		DetectedAt:    time.Now().UTC(),
	}})

	reader.On("Mentions", mock.Anything, "brand-a").Return([]models.Alert{
		{ID: "m1", Claim: "Acme products were recalled nationwide", DetectedAt: time.Now().UTC()},
	}, nil)

	err := svc.RunSweep()
	require.NoError(t, err)

	stored, ok := entityStore.Get("brand-a", models.KindAlert, "m1")
	require.True(t, ok)
	assert.Equal(t, models.AlertInvestigating, stored.(models.Alert).Status)
}

func TestRunSweep_SkipsPausedAndNotDueScouts(t *testing.T) {
	reader := &MockReader{}
	svc, entityStore, _, _ := newTestService(reader)

	paused := activeScout("scout-paused", "acme")
	paused.Status = models.ScoutPaused
	future := time.Now().Add(2 * time.Hour)
	notDue := activeScout("scout-later", "acme")
	notDue.NextRun = &future
	entityStore.Merge("brand-a", models.KindScout, []models.Entity{paused, notDue})

	err := svc.RunSweep()
	require.NoError(t, err)
	reader.AssertNotCalled(t, "Mentions", mock.Anything, mock.Anything)
}

func TestRunSweep_AdvancesScoutNextRun(t *testing.T) {
	reader := &MockReader{}
	svc, entityStore, _, _ := newTestService(reader)

	entityStore.Merge("brand-a", models.KindScout, []models.Entity{activeScout("scout-1", "acme")})
	reader.On("Mentions", mock.Anything, "brand-a").Return([]models.Alert{}, nil)

	err := svc.RunSweep()
	require.NoError(t, err)

	stored, ok := entityStore.Get("brand-a", models.KindScout, "scout-1")
	require.True(t, ok)
	scout := stored.(models.Scout)
	require.NotNil(t, scout.NextRun)
	assert.True(t, scout.NextRun.After(time.Now()))
}

func TestRunSweep_FetchFailureRecordsError(t *testing.T) {
	reader := &MockReader{}
	svc, entityStore, _, _ := newTestService(reader)

	entityStore.Merge("brand-a", models.KindScout, []models.Entity{activeScout("scout-1", "acme")})
	reader.On("Mentions", mock.Anything, "brand-a").Return(nil, errors.New("backend down"))

	err := svc.RunSweep()
	require.Error(t, err)
	assert.Contains(t, svc.GetMetrics(), `"error_count": 1`)
	assert.Empty(t, entityStore.List("brand-a", models.KindAlert))
}

func TestRunSweep_CriticalAlertsTriggerDigest(t *testing.T) {
	reader := &MockReader{}
	svc, entityStore, mockStorage, mockNotifications := newTestService(reader)

	entityStore.Merge("brand-a", models.KindScout, []models.Entity{activeScout("scout-1", "acme")})
	reader.On("Mentions", mock.Anything, "brand-a").Return([]models.Alert{
		{
			ID:         "m1",
			Claim:      "Acme declared bankrupt after massive fraud lawsuit and recall",
			Platform:   "chatgpt",
			DetectedAt: time.Now().UTC(),
		},
	}, nil)
	mockStorage.On("Store", mock.Anything, mock.Anything).Return(nil)
	mockNotifications.On("SendDigest", mock.Anything).Return(nil)

	err := svc.RunSweep()
	require.NoError(t, err)

	mockNotifications.AssertCalled(t, "SendDigest", mock.MatchedBy(func(d *models.Digest) bool {
		return d.BrandID == "brand-a" && d.TotalAlerts == 1 && d.SeverityBreakdown["critical"] == 1
	}))
}

func TestRunCriticalCheck(t *testing.T) {
	reader := &MockReader{}
	svc, entityStore, _, mockNotifications := newTestService(reader)

	now := time.Now().UTC()
	entityStore.Merge("brand-a", models.KindAlert, []models.Entity{
		models.Alert{ID: "recent-critical", BrandID: "brand-a", Severity: models.SeverityCritical, Status: models.AlertOpen, AccuracyScore: 10, DetectedAt: now.Add(-1 * time.Hour)},
		models.Alert{ID: "old-critical", BrandID: "brand-a", Severity: models.SeverityCritical, Status: models.AlertOpen, AccuracyScore: 10, DetectedAt: now.Add(-48 * time.Hour)},
		models.Alert{ID: "recent-low", BrandID: "brand-a", Severity: models.SeverityLow, Status: models.AlertOpen, AccuracyScore: 90, DetectedAt: now.Add(-1 * time.Hour)},
		models.Alert{ID: "handled-critical", BrandID: "brand-a", Severity: models.SeverityCritical, Status: models.AlertCorrected, AccuracyScore: 10, DetectedAt: now.Add(-1 * time.Hour)},
	})

	mockNotifications.On("SendAlert", mock.Anything).Return(nil)

	err := svc.RunCriticalCheck()
	require.NoError(t, err)

	mockNotifications.AssertNumberOfCalls(t, "SendAlert", 1)
	mockNotifications.AssertCalled(t, "SendAlert", mock.MatchedBy(func(a *models.Alert) bool {
		return a.ID == "recent-critical"
	}))
}

func TestService_generateDigest(t *testing.T) {
	svc, _, _, _ := newTestService(&MockReader{})

	alerts := []models.Alert{
		{ID: "1", Platform: "chatgpt", Severity: models.SeverityCritical},
		{ID: "2", Platform: "gemini", Severity: models.SeverityHigh},
		{ID: "3", Platform: "chatgpt", Severity: models.SeverityCritical},
	}

	digest := svc.generateDigest("brand-a", alerts)

	assert.Equal(t, "hourly", digest.Period)
	assert.Equal(t, "brand-a", digest.BrandID)
	assert.Equal(t, 3, digest.TotalAlerts)
	assert.Equal(t, alerts, digest.Alerts)
	assert.Equal(t, 2, digest.SeverityBreakdown["critical"])
	assert.Equal(t, 1, digest.SeverityBreakdown["high"])
	assert.Equal(t, 2, digest.PlatformBreakdown["chatgpt"])
	assert.Equal(t, 1, digest.PlatformBreakdown["gemini"])
}
