// Package notify delivers user-facing notifications and progress for report
// jobs.
package notify

import (
	"sync"

	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one toast shown to the user.
type Notification struct {
	Level Level
	Title string
	Body  string
}

// Notifier shows notifications and job progress. Implementations must be
// safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
	Progress(job models.AnalysisJob)
	// Dismiss drops the progress indicator of a job that stopped without
	// reaching a terminal state.
	Dismiss(jobID string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(Notification)         {}
func (Nop) Progress(models.AnalysisJob) {}
func (Nop) Dismiss(string)              {}

// Recorder keeps every notification and progress update in memory.
type Recorder struct {
	mu       sync.Mutex
	notes     []Notification
	progress  []models.AnalysisJob
	dismissed []string
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *Recorder) Progress(job models.AnalysisJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, job)
}

func (r *Recorder) Dismiss(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismissed = append(r.dismissed, jobID)
}

// Dismissed returns the ids of dismissed jobs in call order.
func (r *Recorder) Dismissed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dismissed...)
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

// ProgressUpdates returns a copy of the recorded progress snapshots.
func (r *Recorder) ProgressUpdates() []models.AnalysisJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AnalysisJob(nil), r.progress...)
}

var (
	_ Notifier = Nop{}
	_ Notifier = (*Recorder)(nil)
	_ Notifier = (*Terminal)(nil)
)
