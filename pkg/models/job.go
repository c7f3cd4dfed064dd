package models

import "time"

// ReportStatus is the state of a remote report-generation job as seen by the client.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "queued"
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"

	// ReportStatusTimeout never comes from the server. The client reports it
	// when the poll budget runs out before the job reaches a terminal state.
	ReportStatusTimeout ReportStatus = "timeout"

	// Probe answers for an analysis with no report record yet.
	ReportStatusNoReport ReportStatus = "no_report"
	ReportStatusNotFound ReportStatus = "not_found"

	// Trigger answer when force is false and a report already exists.
	ReportStatusAlreadyExists ReportStatus = "already_exists"
)

// IsTerminal reports whether polling stops at s.
func (s ReportStatus) IsTerminal() bool {
	switch s {
	case ReportStatusCompleted, ReportStatusFailed, ReportStatusTimeout:
		return true
	}
	return false
}

// AnalysisJob tracks one report generation. The client triggers generation,
// then polls the analysis until status is completed or failed, or gives up
// after MaxAttempts status checks.
type AnalysisJob struct {
	ID          string           `json:"id"`
	AnalysisID  string           `json:"analysis_id"`
	Status      ReportStatus     `json:"status"`
	Attempts    int              `json:"attempts"`
	MaxAttempts int              `json:"max_attempts"`
	Result      *AnalysisResults `json:"result,omitempty"`
	ErrorReason *string          `json:"error_reason,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// RecordAttempt counts one status check. Attempts never exceed MaxAttempts
// when a budget is set.
func (j *AnalysisJob) RecordAttempt() {
	if j.MaxAttempts > 0 && j.Attempts >= j.MaxAttempts {
		return
	}
	j.Attempts++
}

// Apply records a status observation and reports whether the job changed.
// A terminal job is frozen. Result is kept only for completed jobs and reason
// only for failed or timed-out ones.
func (j *AnalysisJob) Apply(status ReportStatus, result *AnalysisResults, reason string, at time.Time) bool {
	if j.Status.IsTerminal() {
		return false
	}

	j.Status = status
	j.Result = nil
	j.ErrorReason = nil

	switch status {
	case ReportStatusCompleted:
		j.Result = result
	case ReportStatusFailed, ReportStatusTimeout:
		j.ErrorReason = &reason
	default:
		return true
	}

	done := at.UTC()
	j.CompletedAt = &done
	return true
}

// Terminal reports whether the job has stopped polling.
func (j *AnalysisJob) Terminal() bool {
	return j.Status.IsTerminal()
}
