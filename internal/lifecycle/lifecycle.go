// Package lifecycle declares the allowed status transitions for each entity
// kind. Validation is a pure function over status values; callers that need
// to mutate state go through the dispatcher, which consults this package
// before touching the store.
package lifecycle

import (
	"fmt"

	"github.com/brandguard/brandguard-bot/internal/models"
)

// transitions maps kind -> from-status -> allowed to-statuses.
var transitions = map[models.Kind]map[string][]string{
	models.KindAlert: {
		models.AlertOpen:          {models.AlertInvestigating, models.AlertDismissed, models.AlertCorrected},
		models.AlertInvestigating: {models.AlertDismissed, models.AlertCorrected},
		// corrected and dismissed are terminal
	},
	models.KindScout: {
		models.ScoutActive: {models.ScoutPaused, models.ScoutDone},
		models.ScoutPaused: {models.ScoutActive, models.ScoutDone},
		// done is terminal
	},
	models.KindCorrection: {
		models.CorrectionDraft: {models.CorrectionPublished},
		// published is terminal
	},
}

// InvalidTransitionError reports a transition the state machine forbids.
type InvalidTransitionError struct {
	Kind models.Kind
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Kind, e.From, e.To)
}

// Validate reports whether a transition from one status to another is
// allowed for the given entity kind.
func Validate(kind models.Kind, from, to string) bool {
	for _, allowed := range transitions[kind][from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Apply returns the target status if the transition is allowed, or an
// InvalidTransitionError otherwise.
func Apply(kind models.Kind, from, to string) (string, error) {
	if !Validate(kind, from, to) {
		return "", &InvalidTransitionError{Kind: kind, From: from, To: to}
	}
	return to, nil
}

// Terminal reports whether a status has no outgoing transitions.
func Terminal(kind models.Kind, status string) bool {
	return len(transitions[kind][status]) == 0
}
