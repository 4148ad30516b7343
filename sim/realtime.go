package sim

import (
	"context"
	"fmt"
	"time"
)

// RunRealtime executes the scenario paced against the wall clock. At speed 2 simulated time
// passes twice as fast as real time. Cancelling ctx stops the run and returns its cause.
func (h *Harness) RunRealtime(ctx context.Context, speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", speed)
	}
	if h.stopped {
		return ErrStopped
	}
	h.Start()
	err := h.ScheduleDumps()
	if err != nil {
		h.Stop()
		return err
	}
	defer h.Stop()

	wallStart := time.Now()
	simStart := h.Engine.Elapsed()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next, ok := h.Engine.NextAt()
		if !ok || next > h.Cfg.Duration {
			break
		}
		deadline := wallStart.Add(time.Duration(float64(next-simStart) / speed))
		if wait := time.Until(deadline); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return context.Cause(ctx)
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if err := h.Engine.Step(); err != nil {
			return err
		}
	}
	h.Engine.AdvanceTo(h.Cfg.Duration)
	return nil
}
