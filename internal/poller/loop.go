package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

type loopState int

const (
	stateRunning loopState = iota
	stateCancelled
	stateFinished
)

// loop is one polling goroutine and its ticker.
type loop struct {
	jobID       string
	probe       ProbeFunc
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
	onUpdate    StatusFunc
	onTerminal  StatusFunc

	ctx     context.Context
	stop    context.CancelFunc
	release func()

	mu    sync.Mutex
	state loopState
}

func newLoop(jobID string, probe ProbeFunc, opts Options, onUpdate, onTerminal StatusFunc) *loop {
	ctx, stop := context.WithCancel(context.Background())
	return &loop{
		jobID:       jobID,
		probe:       probe,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger.With("job_id", jobID),
		onUpdate:    onUpdate,
		onTerminal:  onTerminal,
		ctx:         ctx,
		stop:        stop,
	}
}

func (l *loop) run() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.stop()
	defer func() {
		if l.release != nil {
			l.release()
		}
	}()

	attempts := 0
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
		}
		if !l.running() {
			return
		}

		attempts++
		status, err := l.probe(l.ctx, l.jobID)
		if l.ctx.Err() != nil {
			return
		}

		if err != nil {
			l.logger.Warn("poll attempt failed", "attempt", attempts, "max_attempts", l.maxAttempts, "error", err)
		} else {
			l.logger.Debug("poll attempt", "attempt", attempts, "status", status)
			if !l.update(status) {
				return
			}
			if status.IsTerminal() {
				l.finish(status)
				return
			}
		}

		if attempts >= l.maxAttempts {
			l.logger.Info("poll budget exhausted", "attempts", attempts)
			l.finish(models.ReportStatusTimeout)
			return
		}
	}
}

func (l *loop) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == stateRunning
}

// update delivers status unless the loop was cancelled meanwhile.
func (l *loop) update(status models.ReportStatus) bool {
	if !l.running() {
		return false
	}
	if l.onUpdate != nil {
		l.onUpdate(status)
	}
	return l.running()
}

// finish moves the loop to its final state and reports it. A loop that was
// already cancelled stays silent.
func (l *loop) finish(status models.ReportStatus) {
	l.mu.Lock()
	if l.state != stateRunning {
		l.mu.Unlock()
		return
	}
	l.state = stateFinished
	l.mu.Unlock()

	if l.onTerminal != nil {
		l.onTerminal(status)
	}
}

func (l *loop) cancel() {
	l.mu.Lock()
	if l.state == stateRunning {
		l.state = stateCancelled
	}
	l.mu.Unlock()
	l.stop()
}
