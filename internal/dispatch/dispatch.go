// Package dispatch orchestrates user-triggered actions: precondition check
// against the lifecycle state machine, optimistic state transition, remote
// call, then confirm-or-rollback. A failed remote call is never upgraded to
// success; the optimistic transition is rolled back and the error surfaced.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/brandguard/brandguard-bot/internal/lifecycle"
	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/store"
	"github.com/brandguard/brandguard-bot/internal/syncclient"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PreconditionError reports an action rejected before any remote call was
// made. The entity is untouched.
type PreconditionError struct {
	Kind     models.Kind
	EntityID string
	From     string
	To       string
	Reason   string
}

func (e *PreconditionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("precondition failed for %s %s: %s", e.Kind, e.EntityID, e.Reason)
	}
	return fmt.Sprintf("precondition failed for %s %s: transition %s -> %s not allowed", e.Kind, e.EntityID, e.From, e.To)
}

// RemoteAPI is the slice of the sync client the dispatcher drives.
type RemoteAPI interface {
	Investigate(ctx context.Context, req syncclient.InvestigateRequest) (*syncclient.InvestigateResult, error)
	Remediate(ctx context.Context, req syncclient.RemediateRequest) (*syncclient.RemediateResult, error)
	CreateCorrection(ctx context.Context, cc syncclient.CorrectionCreate) (*models.Correction, error)
	CreateScout(ctx context.Context, sc syncclient.ScoutCreate) (*models.Scout, error)
	UpdateScoutStatus(ctx context.Context, scoutID, status string) (*models.Scout, error)
	DeleteScout(ctx context.Context, scoutID string) error
	IngestContent(ctx context.Context, req syncclient.OnboardRequest) error
	SetupRules(ctx context.Context, req syncclient.OnboardRequest) error
}

// Dispatcher wires the store, the lifecycle rules, and the remote API.
type Dispatcher struct {
	store  *store.Store
	remote RemoteAPI
	now    func() time.Time
	newID  func() string
}

// New creates a dispatcher.
func New(entityStore *store.Store, remote RemoteAPI) *Dispatcher {
	return &Dispatcher{
		store:  entityStore,
		remote: remote,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// getAlert loads an alert or returns a PreconditionError.
func (d *Dispatcher) getAlert(brandID, alertID string) (models.Alert, error) {
	e, ok := d.store.Get(brandID, models.KindAlert, alertID)
	if !ok {
		return models.Alert{}, &PreconditionError{Kind: models.KindAlert, EntityID: alertID, Reason: "alert not found"}
	}
	return e.(models.Alert), nil
}

// Investigate moves an open alert to investigating via the research
// endpoint.
func (d *Dispatcher) Investigate(ctx context.Context, brandID, alertID string) (models.Alert, error) {
	alert, err := d.getAlert(brandID, alertID)
	if err != nil {
		return models.Alert{}, err
	}
	if !lifecycle.Validate(models.KindAlert, alert.Status, models.AlertInvestigating) {
		return models.Alert{}, &PreconditionError{
			Kind: models.KindAlert, EntityID: alertID,
			From: alert.Status, To: models.AlertInvestigating,
		}
	}

	token := d.store.ApplyOptimistic(brandID, models.KindAlert, alertID, func(cur models.Entity) models.Entity {
		a := cur.(models.Alert)
		a.Status = models.AlertInvestigating
		return a
	})

	result, err := d.remote.Investigate(ctx, syncclient.InvestigateRequest{
		BrandID: brandID,
		AlertID: alertID,
		Claim:   alert.Claim,
		Context: alert.Context,
	})
	if err != nil {
		d.rollback(token, "investigate", alertID)
		return models.Alert{}, err
	}

	// Prefer the backend's authoritative status over the optimistic guess,
	// as long as it is a status the state machine allows from here.
	if result.Status != "" && result.Status != models.AlertInvestigating &&
		lifecycle.Validate(models.KindAlert, alert.Status, result.Status) {
		reconciled := alert
		reconciled.Status = result.Status
		if err := d.store.ConfirmReconciled(token, reconciled); err != nil {
			return models.Alert{}, err
		}
	} else if err := d.store.Confirm(token); err != nil {
		return models.Alert{}, err
	}

	return d.getAlert(brandID, alertID)
}

// AutoCorrect moves an alert (open or investigating) to corrected via the
// remediation endpoint.
func (d *Dispatcher) AutoCorrect(ctx context.Context, brandID, alertID string) (models.Alert, error) {
	alert, err := d.getAlert(brandID, alertID)
	if err != nil {
		return models.Alert{}, err
	}
	if !lifecycle.Validate(models.KindAlert, alert.Status, models.AlertCorrected) {
		return models.Alert{}, &PreconditionError{
			Kind: models.KindAlert, EntityID: alertID,
			From: alert.Status, To: models.AlertCorrected,
		}
	}

	token := d.store.ApplyOptimistic(brandID, models.KindAlert, alertID, func(cur models.Entity) models.Entity {
		a := cur.(models.Alert)
		a.Status = models.AlertCorrected
		return a
	})

	result, err := d.remote.Remediate(ctx, syncclient.RemediateRequest{
		BrandID: brandID,
		AlertID: alertID,
		Claim:   alert.Claim,
	})
	if err != nil {
		d.rollback(token, "auto-correct", alertID)
		return models.Alert{}, err
	}

	reconciled := alert
	reconciled.Status = models.AlertCorrected
	if result.SuggestedCorrection != "" {
		reconciled.SuggestedCorrection = result.SuggestedCorrection
	}
	if err := d.store.ConfirmReconciled(token, reconciled); err != nil {
		return models.Alert{}, err
	}
	return d.getAlert(brandID, alertID)
}

// PublishCorrection publishes a draft correction. The published_at stamp is
// set exactly once; a second publish is rejected before any remote call.
func (d *Dispatcher) PublishCorrection(ctx context.Context, brandID, correctionID string) (models.Correction, error) {
	e, ok := d.store.Get(brandID, models.KindCorrection, correctionID)
	if !ok {
		return models.Correction{}, &PreconditionError{Kind: models.KindCorrection, EntityID: correctionID, Reason: "correction not found"}
	}
	correction := e.(models.Correction)
	if !lifecycle.Validate(models.KindCorrection, correction.Status, models.CorrectionPublished) {
		return models.Correction{}, &PreconditionError{
			Kind: models.KindCorrection, EntityID: correctionID,
			From: correction.Status, To: models.CorrectionPublished,
		}
	}

	publishedAt := d.now().UTC()
	token := d.store.ApplyOptimistic(brandID, models.KindCorrection, correctionID, func(cur models.Entity) models.Entity {
		c := cur.(models.Correction)
		c.Status = models.CorrectionPublished
		c.PublishedAt = &publishedAt
		return c
	})

	_, err := d.remote.CreateCorrection(ctx, syncclient.CorrectionCreate{
		ID:         correctionID,
		BrandID:    brandID,
		Type:       correction.Type,
		Platform:   correction.Platform,
		Claim:      correction.Claim,
		Correction: correction.Correction,
		Publish:    true,
	})
	if err != nil {
		d.rollback(token, "publish-correction", correctionID)
		return models.Correction{}, err
	}

	if err := d.store.Confirm(token); err != nil {
		return models.Correction{}, err
	}
	got, _ := d.store.Get(brandID, models.KindCorrection, correctionID)
	return got.(models.Correction), nil
}

// ScoutDraft is the user's input for a new scout.
type ScoutDraft struct {
	Query          string
	DisplayName    string
	OutputInterval int
}

// CreateScout creates a scout optimistically under a placeholder id, then
// reconciles to the backend's authoritative record.
func (d *Dispatcher) CreateScout(ctx context.Context, brandID string, draft ScoutDraft) (models.Scout, error) {
	if draft.Query == "" {
		return models.Scout{}, &PreconditionError{Kind: models.KindScout, Reason: "query is required"}
	}

	placeholder := models.Scout{
		ID:             "pending-" + d.newID(),
		BrandID:        brandID,
		Query:          draft.Query,
		DisplayName:    draft.DisplayName,
		Status:         models.ScoutActive,
		OutputInterval: draft.OutputInterval,
		CreatedAt:      d.now().UTC(),
	}

	token := d.store.ApplyOptimistic(brandID, models.KindScout, placeholder.ID, func(models.Entity) models.Entity {
		return placeholder
	})

	created, err := d.remote.CreateScout(ctx, syncclient.ScoutCreate{
		Query:          draft.Query,
		BrandID:        brandID,
		DisplayName:    draft.DisplayName,
		OutputInterval: draft.OutputInterval,
	})
	if err != nil {
		d.rollback(token, "create-scout", placeholder.ID)
		return models.Scout{}, err
	}

	authoritative := *created
	if authoritative.ID == "" {
		authoritative.ID = placeholder.ID
	}
	if authoritative.BrandID == "" {
		authoritative.BrandID = brandID
	}
	if err := d.store.ConfirmReconciled(token, authoritative); err != nil {
		return models.Scout{}, err
	}
	got, _ := d.store.Get(brandID, models.KindScout, authoritative.ID)
	return got.(models.Scout), nil
}

// PauseScout pauses an active scout.
func (d *Dispatcher) PauseScout(ctx context.Context, brandID, scoutID string) (models.Scout, error) {
	return d.setScoutStatus(ctx, brandID, scoutID, models.ScoutPaused)
}

// ResumeScout resumes a paused scout.
func (d *Dispatcher) ResumeScout(ctx context.Context, brandID, scoutID string) (models.Scout, error) {
	return d.setScoutStatus(ctx, brandID, scoutID, models.ScoutActive)
}

func (d *Dispatcher) setScoutStatus(ctx context.Context, brandID, scoutID, target string) (models.Scout, error) {
	e, ok := d.store.Get(brandID, models.KindScout, scoutID)
	if !ok {
		return models.Scout{}, &PreconditionError{Kind: models.KindScout, EntityID: scoutID, Reason: "scout not found"}
	}
	scout := e.(models.Scout)
	if !lifecycle.Validate(models.KindScout, scout.Status, target) {
		return models.Scout{}, &PreconditionError{
			Kind: models.KindScout, EntityID: scoutID,
			From: scout.Status, To: target,
		}
	}

	token := d.store.ApplyOptimistic(brandID, models.KindScout, scoutID, func(cur models.Entity) models.Entity {
		s := cur.(models.Scout)
		s.Status = target
		return s
	})

	updated, err := d.remote.UpdateScoutStatus(ctx, scoutID, target)
	if err != nil {
		d.rollback(token, "set-scout-status", scoutID)
		return models.Scout{}, err
	}

	if updated != nil && updated.Status != "" && updated.Status != target &&
		lifecycle.Validate(models.KindScout, scout.Status, updated.Status) {
		reconciled := scout
		reconciled.Status = updated.Status
		if err := d.store.ConfirmReconciled(token, reconciled); err != nil {
			return models.Scout{}, err
		}
	} else if err := d.store.Confirm(token); err != nil {
		return models.Scout{}, err
	}

	got, _ := d.store.Get(brandID, models.KindScout, scoutID)
	return got.(models.Scout), nil
}

// DeleteScout removes a scout. The entity is hidden optimistically and the
// removal is committed only after the backend confirms.
func (d *Dispatcher) DeleteScout(ctx context.Context, brandID, scoutID string) error {
	if _, ok := d.store.Get(brandID, models.KindScout, scoutID); !ok {
		return &PreconditionError{Kind: models.KindScout, EntityID: scoutID, Reason: "scout not found"}
	}

	token := d.store.ApplyOptimistic(brandID, models.KindScout, scoutID, func(models.Entity) models.Entity {
		return nil
	})

	if err := d.remote.DeleteScout(ctx, scoutID); err != nil {
		d.rollback(token, "delete-scout", scoutID)
		return err
	}
	return d.store.Confirm(token)
}

// OnboardBrand runs the content-ingest and rules-setup side effects for a
// new brand. There is no local entity to mutate; failures surface directly.
func (d *Dispatcher) OnboardBrand(ctx context.Context, brand models.Brand) error {
	req := syncclient.OnboardRequest{
		BrandID:  brand.ID,
		Name:     brand.Name,
		Keywords: brand.Keywords,
		Domains:  brand.Domains,
	}
	if err := d.remote.IngestContent(ctx, req); err != nil {
		return fmt.Errorf("content ingest failed: %w", err)
	}
	if err := d.remote.SetupRules(ctx, req); err != nil {
		return fmt.Errorf("rules setup failed: %w", err)
	}
	return nil
}

func (d *Dispatcher) rollback(token *store.Token, action, entityID string) {
	if err := d.store.Rollback(token); err != nil {
		logrus.Errorf("Rollback after failed %s on %s did not resolve: %v", action, entityID, err)
	}
}
