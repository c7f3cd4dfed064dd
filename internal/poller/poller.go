// Package poller runs bounded, cancellable status-polling loops for remote
// report jobs.
//
// A loop probes its job once per interval. It ends when the probe reports a
// terminal status, when the attempt budget runs out (reported as the
// synthetic timeout status), or when it is cancelled. onTerminal fires
// exactly once for loops that end on their own and never for cancelled ones.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 24
)

// ErrEmptyJobID is returned by Start when no job id is given.
var ErrEmptyJobID = errors.New("job id is required")

// ProbeFunc fetches the current status of a job. It is called at most once
// per tick and never concurrently for the same loop.
type ProbeFunc func(ctx context.Context, jobID string) (models.ReportStatus, error)

// StatusFunc receives a status from a loop.
type StatusFunc func(status models.ReportStatus)

// CancelFunc stops a loop. It does not block and is safe to call more than
// once, from any goroutine, including from inside the loop's callbacks.
type CancelFunc func()

// Options configures polling cadence and budget. Zero values take the defaults.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Poller polls a single subject: starting a new loop stops the previous one.
type Poller struct {
	mu    sync.Mutex
	group *Group
}

// New creates a Poller that checks jobs with probe.
func New(probe ProbeFunc, opts Options) *Poller {
	return &Poller{group: NewGroup(probe, opts)}
}

// Start stops any loop this Poller is running and starts polling jobID.
// onUpdate is called after every successful probe, in probe order.
// onTerminal is called once with completed, failed or timeout unless the
// loop is cancelled first. Either callback may be nil.
func (p *Poller) Start(jobID string, onUpdate, onTerminal StatusFunc) (CancelFunc, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.group.StopAll()
	return p.group.Start(jobID, onUpdate, onTerminal)
}

// Stop cancels the current loop, if any.
func (p *Poller) Stop() {
	p.group.StopAll()
}

// Active reports the job currently being polled.
func (p *Poller) Active() (string, bool) {
	ids := p.group.Active()
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// Group runs one independent loop per job id.
type Group struct {
	probe ProbeFunc
	opts  Options

	mu    sync.Mutex
	loops map[string]*loop
}

// NewGroup creates a Group that checks jobs with probe.
func NewGroup(probe ProbeFunc, opts Options) *Group {
	return &Group{
		probe: probe,
		opts:  opts.withDefaults(),
		loops: make(map[string]*loop),
	}
}

// Start begins polling jobID. A live loop for the same job is cancelled
// first, so its onTerminal never fires.
func (g *Group) Start(jobID string, onUpdate, onTerminal StatusFunc) (CancelFunc, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	l := newLoop(jobID, g.probe, g.opts, onUpdate, onTerminal)
	l.release = func() { g.remove(jobID, l) }

	g.mu.Lock()
	if prev, ok := g.loops[jobID]; ok {
		prev.cancel()
		g.opts.Logger.Debug("replaced poll loop", "job_id", jobID)
	}
	g.loops[jobID] = l
	g.mu.Unlock()

	go l.run()
	return l.cancel, nil
}

// Stop cancels the loop for jobID. It reports whether a loop was running.
func (g *Group) Stop(jobID string) bool {
	g.mu.Lock()
	l, ok := g.loops[jobID]
	if ok {
		delete(g.loops, jobID)
	}
	g.mu.Unlock()

	if ok {
		l.cancel()
	}
	return ok
}

// StopAll cancels every loop.
func (g *Group) StopAll() {
	g.mu.Lock()
	loops := g.loops
	g.loops = make(map[string]*loop)
	g.mu.Unlock()

	for _, l := range loops {
		l.cancel()
	}
}

// Active returns the ids of jobs with a live loop, sorted.
func (g *Group) Active() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.loops))
	for id := range g.loops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Group) remove(jobID string, l *loop) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loops[jobID] == l {
		delete(g.loops, jobID)
	}
}
