package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/pilotwatch/internal/poller"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

// Run is one report generation being polled.
type Run struct {
	svc        *Service
	id         string
	analysisID string
	async      bool
	taskID     string
	done       chan struct{}

	mu       sync.Mutex
	job      models.AnalysisJob
	pending  probeResult
	cancel   poller.CancelFunc
	finished bool
	err      error
}

type probeResult struct {
	result *models.AnalysisResults
	reason string
}

// Job returns a snapshot of the job.
func (r *Run) Job() models.AnalysisJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job
}

// TaskID is the gateway task id of an async run.
func (r *Run) TaskID() string { return r.taskID }

// Done is closed when the run ends for any reason.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends or ctx is done. It returns nil for a
// completed report, ErrReportFailed, ErrReportTimeout or ErrCancelled.
func (r *Run) Wait(ctx context.Context) (models.AnalysisJob, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.job, r.err
	case <-ctx.Done():
		return r.Job(), ctx.Err()
	}
}

// Cancel stops polling without a notification. It is a no-op once the run
// has ended.
func (r *Run) Cancel() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.err = ErrCancelled
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.svc.release(r)
	r.svc.notifier.Dismiss(r.id)
	close(r.done)
}

func (r *Run) setCancel(cancel poller.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	cancelled := r.finished && r.err == ErrCancelled
	r.mu.Unlock()

	if cancelled {
		cancel()
	}
}

// probe runs one status check. Every call is one attempt, failed or not.
func (r *Run) probe(ctx context.Context) (models.ReportStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.job.RecordAttempt()
	r.mu.Unlock()

	var (
		status models.ReportStatus
		res    probeResult
	)
	if r.async {
		st, err := r.svc.gw.GetReportStatus(ctx, r.analysisID, r.taskID)
		if err != nil {
			return "", err
		}
		status = st.Status
		res.reason = st.ErrorMessage
		if status == models.ReportStatusCompleted {
			results, err := r.svc.gw.GetAnalysisResults(ctx, r.analysisID)
			if err != nil {
				return "", fmt.Errorf("fetching completed report: %w", err)
			}
			res.result = results
		}
	} else {
		results, err := r.svc.gw.GetAnalysisResults(ctx, r.analysisID)
		if err != nil {
			return "", err
		}
		status = results.Status
		res.result = results
	}

	r.mu.Lock()
	r.pending = res
	r.mu.Unlock()
	return status, nil
}

func (r *Run) onUpdate(status models.ReportStatus) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	p := r.pending
	r.pending = probeResult{}
	reason := p.reason
	if status == models.ReportStatusFailed && reason == "" {
		reason = ErrReportFailed.Error()
	}
	r.job.Apply(status, p.result, reason, r.svc.now().UTC())
	job := r.job
	r.mu.Unlock()

	r.svc.logger.Debug("report status", "analysis_id", r.analysisID, "job_id", r.id, "status", status, "attempt", job.Attempts)
	r.svc.notifier.Progress(job)
}

func (r *Run) onTerminal(status models.ReportStatus) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	if status == models.ReportStatusTimeout {
		reason := fmt.Sprintf("no terminal status after %d attempts", r.job.Attempts)
		r.job.Apply(status, nil, reason, r.svc.now().UTC())
	}
	r.finished = true
	switch status {
	case models.ReportStatusFailed:
		r.err = ErrReportFailed
	case models.ReportStatusTimeout:
		r.err = ErrReportTimeout
	}
	job := r.job
	r.mu.Unlock()

	r.svc.release(r)
	r.svc.logger.Info("report run finished", "analysis_id", r.analysisID, "job_id", r.id, "status", job.Status, "attempts", job.Attempts)
	if status == models.ReportStatusTimeout {
		r.svc.notifier.Progress(job)
	}
	r.svc.notifyOutcome(job)
	close(r.done)
}
