package ingestion

import (
	"context"
	"time"

	"docvault-backend/internal/shared/telemetry"
)

// scheduleRun chains the two simulated processing steps for a new job:
// advance to running after RunningDelay, then to completed after a further
// CompleteDelay. The second step is scheduled only once the first fires,
// so running is always observed before completed on this path.
func (s *Service) scheduleRun(jobID string) {
	s.Scheduler.Schedule(jobID, s.RunningDelay, func() {
		s.advanceSimulated(jobID, StatusRunning, nil)
		s.Scheduler.Schedule(jobID, s.CompleteDelay, func() {
			s.advanceSimulated(jobID, StatusCompleted, simulatedResult())
		})
	})
}

// advanceSimulated force-advances a job on behalf of the simulated
// processor. It bypasses actor checks but re-reads the job immediately
// before writing and no-ops if the job went terminal in the meantime, so
// a cancellation that raced the timer is never overwritten. Errors have
// no caller to report to and go to the log only.
func (s *Service) advanceSimulated(jobID string, next Status, result map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		telemetry.Warn("ingestion.simulated_advance_skipped", map[string]any{
			"job_id": jobID,
			"error":  err.Error(),
		})
		return
	}
	if job.Status.Terminal() {
		return
	}

	in := UpdateInput{Status: &next}
	if result != nil {
		in.Result = &result
	}
	if _, err := s.applyUpdate(ctx, job, in); err != nil {
		telemetry.Error("ingestion.simulated_advance_failed", map[string]any{
			"job_id": jobID,
			"status": string(next),
			"error":  err.Error(),
		})
	}
}

// simulatedResult is the canned payload attached on simulated completion.
func simulatedResult() map[string]any {
	return map[string]any{
		"engine":     "simulated",
		"summary":    "document processed successfully",
		"pages":      1,
		"confidence": 1.0,
	}
}
