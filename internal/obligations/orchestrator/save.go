package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fiscus/internal/obligations/models"
	"fiscus/pkg/platform/audit"
	"fiscus/pkg/platform/sentinel"
)

// Save outcomes reported to metrics.
const (
	SaveConfirmed = "confirmed"
	SaveFailed    = "failed"
	SaveAbandoned = "abandoned"
)

// Save writes the working copy and confirms it by reading it back. It
// returns true only once the remote copy matches, and then the phase is
// PhaseReady with LastSaveConfirmed set. On failure the phase is PhaseFailed,
// LastError carries the cause and every local edit is kept. A copy without
// unsaved changes is not written.
func (o *Orchestrator) Save(ctx context.Context) bool {
	o.saveMu.Lock()
	defer o.saveMu.Unlock()

	o.mu.Lock()
	if !o.loaded {
		o.lastErr = sentinel.ErrNotLoaded
		o.mu.Unlock()
		return false
	}
	// A stale copy shown while the load retries must not overwrite the remote.
	if o.phase == PhaseLoading {
		o.lastErr = fmt.Errorf("%w: load in progress", sentinel.ErrNotLoaded)
		o.mu.Unlock()
		return false
	}
	if !o.dirty {
		clientID := o.clientID
		o.mu.Unlock()
		o.logger.DebugContext(ctx, "save skipped, nothing to write", "client_id", clientID)
		return true
	}
	token := o.token
	clientID := o.clientID
	year := o.year
	startSeq := o.editSeq
	selCtx := o.selCtx
	snapshot := o.record.Clone()
	snapshot.SelectedYear = year
	snapshot.UpdatedAt = o.clock.Now().UTC()
	o.phase = PhaseSaving
	o.confirmed = false
	o.mu.Unlock()

	saveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(selCtx, cancel)
	defer stop()

	saveID := uuid.NewString()
	log := o.logger.With("client_id", clientID, "year", string(year), "save_id", saveID)
	log.InfoContext(ctx, "save started")

	var lastErr error
	for cycle := 0; cycle <= MaxExtraWriteCycles; cycle++ {
		if cycle > 0 {
			log.WarnContext(ctx, "re-issuing write after failed verification", "cycle", cycle+1, "error", lastErr)
		}
		if !o.setPhase(token, PhaseSaving) {
			return o.abandonSave(ctx, log)
		}
		if err := o.gateway.Persist(saveCtx, clientID, snapshot); err != nil {
			return o.failSave(ctx, log, token, saveID, snapshot, fmt.Errorf("%w: %w", sentinel.ErrWriteNotConfirmed, err))
		}

		if !o.setPhase(token, PhaseVerifyPending) {
			return o.abandonSave(ctx, log)
		}
		err := o.gateway.Confirm(saveCtx, clientID, snapshot)
		if err == nil {
			return o.confirmSave(ctx, log, token, startSeq, saveID, snapshot)
		}
		if saveCtx.Err() != nil {
			return o.failSave(ctx, log, token, saveID, snapshot, err)
		}

		log.WarnContext(ctx, "verification failed, checking again", "delay", VerifyRetryDelay, "error", err)
		if err := o.clock.Sleep(saveCtx, VerifyRetryDelay); err != nil {
			return o.failSave(ctx, log, token, saveID, snapshot, err)
		}
		err = o.gateway.Confirm(saveCtx, clientID, snapshot)
		if err == nil {
			return o.confirmSave(ctx, log, token, startSeq, saveID, snapshot)
		}
		if saveCtx.Err() != nil {
			return o.failSave(ctx, log, token, saveID, snapshot, err)
		}
		lastErr = err
	}

	if !errors.Is(lastErr, sentinel.ErrVerificationMismatch) {
		lastErr = fmt.Errorf("%w: %w", sentinel.ErrVerificationMismatch, lastErr)
	}
	return o.failSave(ctx, log, token, saveID, snapshot, lastErr)
}

// setPhase moves to phase if the selection is still current.
func (o *Orchestrator) setPhase(token uint64, phase Phase) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if token != o.token {
		return false
	}
	o.phase = phase
	return true
}

func (o *Orchestrator) confirmSave(ctx context.Context, log *slog.Logger, token, startSeq uint64, saveID string, snapshot models.ClientFiscalRecord) bool {
	o.cache.Put(snapshot.ClientID, snapshot)

	o.mu.Lock()
	if token != o.token {
		o.mu.Unlock()
		log.InfoContext(ctx, "save confirmed for abandoned selection")
		o.metrics.RecordSave(SaveAbandoned)
		return true
	}
	o.confirmed = true
	o.lastErr = nil
	o.stale = false
	if o.editSeq == startSeq {
		o.dirty = false
		o.phase = PhaseReady
		o.stopAutosaveLocked()
	} else {
		o.phase = PhaseDirty
	}
	o.mu.Unlock()

	log.InfoContext(ctx, "save confirmed")
	o.metrics.RecordSave(SaveConfirmed)
	o.emit(ctx, audit.ActionRecordSaved, saveID, snapshot, "")
	return true
}

func (o *Orchestrator) failSave(ctx context.Context, log *slog.Logger, token uint64, saveID string, snapshot models.ClientFiscalRecord, cause error) bool {
	o.mu.Lock()
	if token != o.token {
		o.mu.Unlock()
		return o.abandonSave(ctx, log)
	}
	o.phase = PhaseFailed
	o.confirmed = false
	o.lastErr = cause
	o.mu.Unlock()

	log.ErrorContext(ctx, "save failed", "error", cause)
	o.metrics.RecordSave(SaveFailed)
	o.emit(ctx, audit.ActionRecordSaveFailed, saveID, snapshot, cause.Error())
	return false
}

func (o *Orchestrator) abandonSave(ctx context.Context, log *slog.Logger) bool {
	log.InfoContext(ctx, "save abandoned, selection changed")
	o.metrics.RecordSave(SaveAbandoned)
	return false
}

func (o *Orchestrator) emit(ctx context.Context, action audit.Action, saveID string, snapshot models.ClientFiscalRecord, reason string) {
	if o.audit == nil {
		return
	}
	// Autosave cancels its own context once the session is clean.
	err := o.audit.Emit(context.WithoutCancel(ctx), audit.Event{
		Action:    action,
		Timestamp: o.clock.Now().UTC(),
		ClientID:  snapshot.ClientID,
		Year:      string(snapshot.SelectedYear),
		SaveID:    saveID,
		Reason:    reason,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "audit publish failed", "client_id", snapshot.ClientID, "save_id", saveID, "error", err)
	}
}
