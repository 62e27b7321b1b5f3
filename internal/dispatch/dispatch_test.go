package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/store"
	"github.com/brandguard/brandguard-bot/internal/syncclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const brand = "brand-acme"

// MockRemote is a mock implementation of the remote API.
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) Investigate(ctx context.Context, req syncclient.InvestigateRequest) (*syncclient.InvestigateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncclient.InvestigateResult), args.Error(1)
}

func (m *MockRemote) Remediate(ctx context.Context, req syncclient.RemediateRequest) (*syncclient.RemediateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncclient.RemediateResult), args.Error(1)
}

func (m *MockRemote) CreateCorrection(ctx context.Context, cc syncclient.CorrectionCreate) (*models.Correction, error) {
	args := m.Called(ctx, cc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Correction), args.Error(1)
}

func (m *MockRemote) CreateScout(ctx context.Context, sc syncclient.ScoutCreate) (*models.Scout, error) {
	args := m.Called(ctx, sc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Scout), args.Error(1)
}

func (m *MockRemote) UpdateScoutStatus(ctx context.Context, scoutID, status string) (*models.Scout, error) {
	args := m.Called(ctx, scoutID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Scout), args.Error(1)
}

func (m *MockRemote) DeleteScout(ctx context.Context, scoutID string) error {
	args := m.Called(ctx, scoutID)
	return args.Error(0)
}

func (m *MockRemote) IngestContent(ctx context.Context, req syncclient.OnboardRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRemote) SetupRules(ctx context.Context, req syncclient.OnboardRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func serverError() *syncclient.SyncError {
	return &syncclient.SyncError{Kind: syncclient.HTTPStatus, StatusCode: 500, Detail: "Internal Server Error"}
}

func seedAlert(s *store.Store, id, status string) models.Alert {
	a := models.Alert{
		ID:            id,
		BrandID:       brand,
		Severity:      models.SeverityCritical,
		Platform:      "ChatGPT",
		Claim:         "Acme ovens catch fire",
		AccuracyScore: 15,
		Status:        status,
		DetectedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	rev := s.BeginFetch(brand, models.KindAlert)
	s.UpsertFromRemote(brand, models.KindAlert, rev, []models.Entity{a})
	return a
}

func seedCorrection(s *store.Store, id, status string) models.Correction {
	c := models.Correction{
		ID:        id,
		BrandID:   brand,
		Type:      models.CorrectionTypeFAQ,
		Status:    status,
		Platform:  "ChatGPT",
		Claim:     "Acme ovens catch fire",
		CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	rev := s.BeginFetch(brand, models.KindCorrection)
	s.UpsertFromRemote(brand, models.KindCorrection, rev, []models.Entity{c})
	return c
}

func seedScouts(s *store.Store, ids ...string) {
	entities := make([]models.Entity, len(ids))
	for i, id := range ids {
		entities[i] = models.Scout{
			ID: id, BrandID: brand, Query: "acme", Status: models.ScoutActive,
			OutputInterval: 3600, CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		}
	}
	rev := s.BeginFetch(brand, models.KindScout)
	s.UpsertFromRemote(brand, models.KindScout, rev, entities)
}

func TestInvestigate_SuccessConfirmsTransition(t *testing.T) {
	s := store.New()
	seedAlert(s, "a1", models.AlertOpen)

	remote := &MockRemote{}
	remote.On("Investigate", mock.Anything, mock.MatchedBy(func(req syncclient.InvestigateRequest) bool {
		return req.AlertID == "a1" && req.BrandID == brand
	})).Return(&syncclient.InvestigateResult{}, nil)

	d := New(s, remote)
	got, err := d.Investigate(context.Background(), brand, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertInvestigating, got.Status)

	stored, _ := s.Get(brand, models.KindAlert, "a1")
	assert.Equal(t, models.AlertInvestigating, stored.(models.Alert).Status)
	remote.AssertExpectations(t)
}

func TestInvestigate_RemoteFailureRollsBack(t *testing.T) {
	s := store.New()
	original := seedAlert(s, "a1", models.AlertOpen)

	remote := &MockRemote{}
	remote.On("Investigate", mock.Anything, mock.Anything).Return(nil, serverError())

	d := New(s, remote)
	_, err := d.Investigate(context.Background(), brand, "a1")
	require.Error(t, err)

	se, ok := syncclient.AsSyncError(err)
	require.True(t, ok)
	assert.Equal(t, 500, se.StatusCode)

	// The store is exactly as it was before the action.
	stored, _ := s.Get(brand, models.KindAlert, "a1")
	assert.Equal(t, original, stored.(models.Alert))
}

func TestInvestigate_ReconcilesToAuthoritativeStatus(t *testing.T) {
	s := store.New()
	seedAlert(s, "a1", models.AlertOpen)

	remote := &MockRemote{}
	remote.On("Investigate", mock.Anything, mock.Anything).
		Return(&syncclient.InvestigateResult{Status: models.AlertDismissed, Findings: "claim already retracted"}, nil)

	d := New(s, remote)
	got, err := d.Investigate(context.Background(), brand, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertDismissed, got.Status)
}

func TestInvestigate_TerminalAlertRejected(t *testing.T) {
	s := store.New()
	seedAlert(s, "a1", models.AlertCorrected)

	remote := &MockRemote{}
	d := New(s, remote)

	_, err := d.Investigate(context.Background(), brand, "a1")
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, models.AlertCorrected, pe.From)

	// No remote call was made.
	remote.AssertNotCalled(t, "Investigate", mock.Anything, mock.Anything)
}

func TestAutoCorrect_FromOpenAndFromInvestigating(t *testing.T) {
	for _, from := range []string{models.AlertOpen, models.AlertInvestigating} {
		t.Run(from, func(t *testing.T) {
			s := store.New()
			seedAlert(s, "a1", from)

			remote := &MockRemote{}
			remote.On("Remediate", mock.Anything, mock.Anything).
				Return(&syncclient.RemediateResult{Status: "corrected", SuggestedCorrection: "Ovens do not catch fire."}, nil)

			d := New(s, remote)
			got, err := d.AutoCorrect(context.Background(), brand, "a1")
			require.NoError(t, err)
			assert.Equal(t, models.AlertCorrected, got.Status)
			assert.Equal(t, "Ovens do not catch fire.", got.SuggestedCorrection)
		})
	}
}

func TestAutoCorrect_AlreadyCorrectedRejected(t *testing.T) {
	s := store.New()
	seedAlert(s, "a1", models.AlertCorrected)

	remote := &MockRemote{}
	d := New(s, remote)

	_, err := d.AutoCorrect(context.Background(), brand, "a1")
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	remote.AssertNotCalled(t, "Remediate", mock.Anything, mock.Anything)
}

func TestAutoCorrect_FailureNeverUpgradedToSuccess(t *testing.T) {
	s := store.New()
	seedAlert(s, "a1", models.AlertOpen)

	remote := &MockRemote{}
	remote.On("Remediate", mock.Anything, mock.Anything).Return(nil, &syncclient.SyncError{Kind: syncclient.NetworkFailure})

	d := New(s, remote)
	_, err := d.AutoCorrect(context.Background(), brand, "a1")
	require.Error(t, err)

	stored, _ := s.Get(brand, models.KindAlert, "a1")
	assert.Equal(t, models.AlertOpen, stored.(models.Alert).Status)
}

func TestPublishCorrection_SetsPublishedAtExactlyOnce(t *testing.T) {
	s := store.New()
	seedCorrection(s, "c1", models.CorrectionDraft)

	remote := &MockRemote{}
	remote.On("CreateCorrection", mock.Anything, mock.MatchedBy(func(cc syncclient.CorrectionCreate) bool {
		return cc.ID == "c1" && cc.Publish
	})).Return(&models.Correction{ID: "c1", Status: models.CorrectionPublished}, nil).Once()

	d := New(s, remote)
	fixed := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	got, err := d.PublishCorrection(context.Background(), brand, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CorrectionPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, fixed, *got.PublishedAt)

	// Second publish is a no-op rejected before any remote call.
	d.now = func() time.Time { return fixed.Add(time.Hour) }
	_, err = d.PublishCorrection(context.Background(), brand, "c1")
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)

	stored, _ := s.Get(brand, models.KindCorrection, "c1")
	assert.Equal(t, fixed, *stored.(models.Correction).PublishedAt)
	remote.AssertExpectations(t)
}

func TestPublishCorrection_FailureLeavesDraft(t *testing.T) {
	s := store.New()
	seedCorrection(s, "c1", models.CorrectionDraft)

	remote := &MockRemote{}
	remote.On("CreateCorrection", mock.Anything, mock.Anything).Return(nil, serverError())

	d := New(s, remote)
	_, err := d.PublishCorrection(context.Background(), brand, "c1")
	require.Error(t, err)

	stored, _ := s.Get(brand, models.KindCorrection, "c1")
	c := stored.(models.Correction)
	assert.Equal(t, models.CorrectionDraft, c.Status)
	assert.Nil(t, c.PublishedAt)
}

func TestCreateScout_ReconcilesToServerRecord(t *testing.T) {
	s := store.New()

	remote := &MockRemote{}
	remote.On("CreateScout", mock.Anything, mock.MatchedBy(func(sc syncclient.ScoutCreate) bool {
		return sc.Query == "acme recall" && sc.BrandID == brand
	})).Return(&models.Scout{
		ID: "srv-1", BrandID: brand, Query: "acme recall",
		Status: models.ScoutActive, OutputInterval: 86400,
		CreatedAt: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
	}, nil)

	d := New(s, remote)
	got, err := d.CreateScout(context.Background(), brand, ScoutDraft{Query: "acme recall", OutputInterval: 86400})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", got.ID)

	list := s.List(brand, models.KindScout)
	require.Len(t, list, 1)
	assert.Equal(t, "srv-1", list[0].EntityID())
}

func TestCreateScout_FailureRemovesPlaceholder(t *testing.T) {
	s := store.New()

	remote := &MockRemote{}
	remote.On("CreateScout", mock.Anything, mock.Anything).Return(nil, serverError())

	d := New(s, remote)
	_, err := d.CreateScout(context.Background(), brand, ScoutDraft{Query: "acme recall"})
	require.Error(t, err)
	assert.Empty(t, s.List(brand, models.KindScout))
}

func TestPauseAndResumeScout(t *testing.T) {
	s := store.New()
	seedScouts(s, "s1")

	remote := &MockRemote{}
	remote.On("UpdateScoutStatus", mock.Anything, "s1", models.ScoutPaused).
		Return(&models.Scout{ID: "s1", Status: models.ScoutPaused}, nil)
	remote.On("UpdateScoutStatus", mock.Anything, "s1", models.ScoutActive).
		Return(&models.Scout{ID: "s1", Status: models.ScoutActive}, nil)

	d := New(s, remote)

	got, err := d.PauseScout(context.Background(), brand, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ScoutPaused, got.Status)

	got, err = d.ResumeScout(context.Background(), brand, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ScoutActive, got.Status)

	// Pausing a done scout is rejected.
	rev := s.BeginFetch(brand, models.KindScout)
	s.UpsertFromRemote(brand, models.KindScout, rev, []models.Entity{
		models.Scout{ID: "s1", BrandID: brand, Status: models.ScoutDone, OutputInterval: 3600},
	})
	_, err = d.PauseScout(context.Background(), brand, "s1")
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
}

func TestDeleteScout_KeepsRemainingInOrder(t *testing.T) {
	s := store.New()
	seedScouts(s, "s1", "s2", "s3")

	remote := &MockRemote{}
	remote.On("DeleteScout", mock.Anything, "s2").Return(nil)

	d := New(s, remote)
	require.NoError(t, d.DeleteScout(context.Background(), brand, "s2"))

	list := s.List(brand, models.KindScout)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].EntityID())
	assert.Equal(t, "s3", list[1].EntityID())
}

func TestDeleteScout_FailureRestoresScout(t *testing.T) {
	s := store.New()
	seedScouts(s, "s1", "s2", "s3")

	remote := &MockRemote{}
	remote.On("DeleteScout", mock.Anything, "s2").Return(serverError())

	d := New(s, remote)
	require.Error(t, d.DeleteScout(context.Background(), brand, "s2"))

	list := s.List(brand, models.KindScout)
	require.Len(t, list, 3)
	assert.Equal(t, "s2", list[1].EntityID())
}

func TestOnboardBrand_RunsBothSideEffects(t *testing.T) {
	remote := &MockRemote{}
	remote.On("IngestContent", mock.Anything, mock.Anything).Return(nil)
	remote.On("SetupRules", mock.Anything, mock.Anything).Return(nil)

	d := New(store.New(), remote)
	err := d.OnboardBrand(context.Background(), models.Brand{ID: brand, Name: "Acme", Keywords: []string{"acme"}})
	require.NoError(t, err)
	remote.AssertExpectations(t)
}
