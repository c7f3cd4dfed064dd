package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"github.com/schollz/progressbar/v3"
)

var (
	colorSuccess = lipgloss.Color("#8BC34A")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#e53935")
	colorInfo    = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.Color("#8a94a6")
)

// Terminal renders notifications as styled lines and keeps one progress bar
// per running job.
type Terminal struct {
	out   io.Writer
	title lipgloss.Style
	body  lipgloss.Style

	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

// NewTerminal creates a Terminal writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:   out,
		title: lipgloss.NewStyle().Bold(true),
		body:  lipgloss.NewStyle().Foreground(colorMuted),
		bars:  make(map[string]*progressbar.ProgressBar),
	}
}

func (t *Terminal) Notify(n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := badge(n.Level) + " " + t.title.Render(n.Title)
	if n.Body != "" {
		line += "\n  " + t.body.Render(n.Body)
	}
	fmt.Fprintln(t.out, line)
}

// Progress advances the job's bar to its attempt count. Terminal jobs close
// their bar.
func (t *Terminal) Progress(job models.AnalysisJob) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bar, ok := t.bars[job.ID]
	if !ok {
		if job.Terminal() {
			return
		}
		max := job.MaxAttempts
		if max <= 0 {
			max = -1
		}
		bar = progressbar.NewOptions(max,
			progressbar.OptionSetWriter(t.out),
			progressbar.OptionSetWidth(24),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription(describe(job)),
		)
		t.bars[job.ID] = bar
	}

	bar.Describe(describe(job))
	_ = bar.Set(job.Attempts)

	if job.Terminal() {
		_ = bar.Finish()
		fmt.Fprintln(t.out)
		delete(t.bars, job.ID)
	}
}

// Dismiss closes the job's bar where it stands. Unknown ids are ignored.
func (t *Terminal) Dismiss(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bar, ok := t.bars[jobID]
	if !ok {
		return
	}
	_ = bar.Exit()
	fmt.Fprintln(t.out)
	delete(t.bars, jobID)
}

func describe(job models.AnalysisJob) string {
	return fmt.Sprintf("report %s: %s", job.AnalysisID, job.Status)
}

func badge(level Level) string {
	color := colorInfo
	switch level {
	case LevelSuccess:
		color = colorSuccess
	case LevelWarning:
		color = colorWarning
	case LevelError:
		color = colorError
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprintf("[%s]", level))
}
