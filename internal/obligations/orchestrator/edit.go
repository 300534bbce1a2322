package orchestrator

import (
	"fmt"
	"time"

	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/sentinel"
)

// EditField sets one field of one obligation in the selected year. The edit
// stays local until the next save.
func (o *Orchestrator) EditField(key models.ObligationKey, field string, value any) error {
	return o.edit(func(rec *models.ClientFiscalRecord, year models.Year) error {
		set := rec.ObligationsByYear[year]
		if err := set.Apply(key, field, value); err != nil {
			return err
		}
		rec.ObligationsByYear[year] = set
		return nil
	})
}

// SetAttestationCreationDate sets or clears the attestation creation date.
// The validity end date follows automatically.
func (o *Orchestrator) SetAttestationCreationDate(creation *time.Time) error {
	return o.edit(func(rec *models.ClientFiscalRecord, _ models.Year) error {
		rec.Attestation.SetCreationDate(creation)
		return nil
	})
}

// ToggleAttestationAlert controls whether the attestation shows in alert feeds.
func (o *Orchestrator) ToggleAttestationAlert(show bool) error {
	return o.edit(func(rec *models.ClientFiscalRecord, _ models.Year) error {
		rec.Attestation.ShowInAlert = show
		return nil
	})
}

// ToggleDashboardVisibility hides or shows the client on the dashboard.
func (o *Orchestrator) ToggleDashboardVisibility(hidden bool) error {
	return o.edit(func(rec *models.ClientFiscalRecord, _ models.Year) error {
		rec.HiddenFromDashboard = hidden
		return nil
	})
}

func (o *Orchestrator) edit(apply func(rec *models.ClientFiscalRecord, year models.Year) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return sentinel.ErrNotLoaded
	}
	if o.phase == PhaseLoading {
		return fmt.Errorf("%w: load in progress", sentinel.ErrNotLoaded)
	}
	if err := apply(&o.record, o.year); err != nil {
		return err
	}
	o.dirty = true
	o.editSeq++
	o.confirmed = false
	if o.phase != PhaseSaving && o.phase != PhaseVerifyPending {
		o.phase = PhaseDirty
	}
	o.startAutosaveLocked()
	return nil
}
