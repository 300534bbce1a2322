package orchestrator

import (
	"context"
	"time"
)

// startAutosaveLocked starts the autosave loop if it is not running.
// Callers hold o.mu.
func (o *Orchestrator) startAutosaveLocked() {
	if o.autosave <= 0 || o.autosaveOff != nil || o.baseCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.autosaveOff = cancel
	o.wg.Add(1)
	go o.autosaveLoop(ctx, o.autosave)
}

// stopAutosaveLocked cancels the autosave loop. Callers hold o.mu.
func (o *Orchestrator) stopAutosaveLocked() {
	if o.autosaveOff != nil {
		o.autosaveOff()
		o.autosaveOff = nil
	}
}

func (o *Orchestrator) autosaveLoop(ctx context.Context, interval time.Duration) {
	defer o.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.mu.Lock()
			due := o.dirty && o.phase != PhaseSaving && o.phase != PhaseVerifyPending
			o.mu.Unlock()
			if !due {
				continue
			}
			o.logger.DebugContext(ctx, "autosave")
			o.Save(ctx)
		}
	}
}
