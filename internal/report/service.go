// Package report orchestrates competitive positioning reports: it triggers
// generation on the gateway, polls the job to a terminal state and tells the
// user about the outcome exactly once.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pilotwatch/internal/apierr"
	"github.com/kiranshivaraju/pilotwatch/internal/notify"
	"github.com/kiranshivaraju/pilotwatch/internal/poller"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"golang.org/x/sync/singleflight"
)

const triggerFallback = "Failed to generate competitive positioning report"

var (
	ErrEmptyAnalysisID = errors.New("analysis id is required")
	ErrCancelled       = errors.New("report run cancelled")
	ErrReportFailed    = errors.New("report generation failed")
	ErrReportTimeout   = errors.New("report generation timed out")

	errUnknownJob = errors.New("no run for job")
)

// Gateway is the part of the gateway client the service needs.
type Gateway interface {
	GenerateReport(ctx context.Context, analysisID string, req models.GenerateReportRequest) (*models.GenerateReportResponse, error)
	GenerateReportAsync(ctx context.Context, analysisID string, req models.GenerateReportRequest) (*models.GenerateReportAsyncResponse, error)
	GetAnalysisResults(ctx context.Context, analysisID string) (*models.AnalysisResults, error)
	GetReportStatus(ctx context.Context, analysisID, taskID string) (*models.ReportStatusResponse, error)
}

type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      *slog.Logger
	Now         func() time.Time
}

// GenerateOptions selects how a report is requested. Force regenerates an
// existing report and replaces any run in progress for the same analysis.
// Async uses the task-based endpoints.
type GenerateOptions struct {
	Force bool
	Async bool
}

// Service runs at most one report poll per analysis.
type Service struct {
	gw       Gateway
	notifier notify.Notifier
	group    *poller.Group
	logger   *slog.Logger
	now      func() time.Time
	budget   int

	flight singleflight.Group

	mu    sync.Mutex
	runs  map[string]*Run // by analysis id
	byJob map[string]*Run
}

// NewService creates a Service.
func NewService(gw Gateway, n notify.Notifier, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = poller.DefaultMaxAttempts
	}
	if n == nil {
		n = notify.Nop{}
	}

	s := &Service{
		gw:       gw,
		notifier: n,
		logger:   opts.Logger,
		now:      opts.Now,
		budget:   opts.MaxAttempts,
		runs:     make(map[string]*Run),
		byJob:    make(map[string]*Run),
	}
	s.group = poller.NewGroup(s.probe, poller.Options{
		Interval:    opts.Interval,
		MaxAttempts: opts.MaxAttempts,
		Logger:      opts.Logger,
	})
	return s
}

// Generate requests a report for analysisID and polls it in the background.
//
// Concurrent calls for the same analysis share one trigger request, and a
// call made while a run is active joins that run. With Force the active run
// is cancelled (its Wait returns ErrCancelled) and a fresh one starts.
// A trigger failure is reported to the user and returned; no poll starts.
func (s *Service) Generate(ctx context.Context, analysisID string, opts GenerateOptions) (*Run, error) {
	if analysisID == "" {
		return nil, ErrEmptyAnalysisID
	}

	if !opts.Force {
		if r := s.active(analysisID); r != nil {
			s.logger.Info("joining active report run", "analysis_id", analysisID, "job_id", r.id)
			return r, nil
		}
	}

	key := analysisID
	if opts.Force {
		key += "#force"
	}
	v, err, shared := s.flight.Do(key, func() (any, error) {
		return s.start(ctx, analysisID, opts)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("shared report trigger", "analysis_id", analysisID)
	}
	return v.(*Run), nil
}

func (s *Service) start(ctx context.Context, analysisID string, opts GenerateOptions) (*Run, error) {
	if prev := s.active(analysisID); prev != nil {
		if !opts.Force {
			return prev, nil
		}
		s.logger.Info("restarting report run", "analysis_id", analysisID, "replaced_job_id", prev.id)
		prev.Cancel()
	}

	r := &Run{
		svc:        s,
		id:         uuid.NewString(),
		analysisID: analysisID,
		async:      opts.Async,
		done:       make(chan struct{}),
	}
	status, err := s.trigger(ctx, r, opts)
	if err != nil {
		s.notifier.Notify(notify.Notification{
			Level: notify.LevelError,
			Title: "Report generation failed",
			Body:  apierr.UserMessage(err, triggerFallback),
		})
		return nil, fmt.Errorf("triggering report for %s: %w", analysisID, err)
	}

	r.job = models.AnalysisJob{
		ID:          r.id,
		AnalysisID:  analysisID,
		Status:      status,
		MaxAttempts: s.budget,
		StartedAt:   s.now().UTC(),
	}

	// Another start for this analysis may have registered while the trigger
	// was in flight. A plain request joins it, a forced one replaces it.
	s.mu.Lock()
	prev := s.runs[analysisID]
	if prev != nil && !opts.Force {
		s.mu.Unlock()
		s.logger.Info("joining report run registered during trigger", "analysis_id", analysisID, "job_id", prev.id)
		return prev, nil
	}
	s.runs[analysisID] = r
	s.byJob[r.id] = r
	s.mu.Unlock()

	if prev != nil {
		s.logger.Info("restarting report run", "analysis_id", analysisID, "replaced_job_id", prev.id)
		prev.Cancel()
	}

	cancel, err := s.group.Start(r.id, r.onUpdate, r.onTerminal)
	if err != nil {
		s.release(r)
		return nil, fmt.Errorf("starting poll: %w", err)
	}
	r.setCancel(cancel)

	s.logger.Info("report run started", "analysis_id", analysisID, "job_id", r.id, "async", opts.Async, "force", opts.Force)
	s.notifier.Progress(r.Job())
	return r, nil
}

// trigger sends the generate request and returns the job's initial status.
func (s *Service) trigger(ctx context.Context, r *Run, opts GenerateOptions) (models.ReportStatus, error) {
	req := models.GenerateReportRequest{Force: opts.Force}

	if opts.Async {
		resp, err := s.gw.GenerateReportAsync(ctx, r.analysisID, req)
		if err != nil {
			return "", err
		}
		r.taskID = resp.TaskID
		return initialStatus(resp.Status, models.ReportStatusQueued), nil
	}

	resp, err := s.gw.GenerateReport(ctx, r.analysisID, req)
	if err != nil {
		return "", err
	}
	if resp.Status == models.ReportStatusAlreadyExists {
		s.logger.Info("report already exists", "analysis_id", r.analysisID, "report_id", resp.ReportID)
	}
	return initialStatus(resp.Status, models.ReportStatusProcessing), nil
}

// initialStatus keeps the trigger's answer unless it is terminal or only
// says the report exists; the first probe settles those.
func initialStatus(s, def models.ReportStatus) models.ReportStatus {
	if s == "" || s.IsTerminal() || s == models.ReportStatusAlreadyExists {
		return def
	}
	return s
}

// Status performs one probe without polling. With a task id it asks the
// task endpoint; otherwise it reads the analysis.
func (s *Service) Status(ctx context.Context, analysisID, taskID string) (*models.ReportStatusResponse, error) {
	if analysisID == "" {
		return nil, ErrEmptyAnalysisID
	}
	if taskID != "" {
		return s.gw.GetReportStatus(ctx, analysisID, taskID)
	}
	res, err := s.gw.GetAnalysisResults(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	return &models.ReportStatusResponse{Status: res.Status, CompletedAt: completedAt(res)}, nil
}

func completedAt(res *models.AnalysisResults) string {
	if res.Status == models.ReportStatusCompleted {
		return res.LastUpdated
	}
	return ""
}

// Active returns the analysis ids with a run in progress, sorted.
func (s *Service) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close cancels every run.
func (s *Service) Close() {
	s.mu.Lock()
	runs := make([]*Run, 0, len(s.byJob))
	for _, r := range s.byJob {
		runs = append(runs, r)
	}
	s.mu.Unlock()

	for _, r := range runs {
		r.Cancel()
	}
	s.group.StopAll()
}

func (s *Service) active(analysisID string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[analysisID]
}

func (s *Service) release(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[r.analysisID] == r {
		delete(s.runs, r.analysisID)
	}
	delete(s.byJob, r.id)
}

func (s *Service) probe(ctx context.Context, jobID string) (models.ReportStatus, error) {
	s.mu.Lock()
	r := s.byJob[jobID]
	s.mu.Unlock()
	if r == nil {
		return "", errUnknownJob
	}
	return r.probe(ctx)
}

func (s *Service) notifyOutcome(job models.AnalysisJob) {
	n := notify.Notification{}
	switch job.Status {
	case models.ReportStatusCompleted:
		n.Level = notify.LevelSuccess
		n.Title = "Competitive positioning report ready"
		n.Body = fmt.Sprintf("Analysis %s", job.AnalysisID)
		if job.Result != nil {
			n.Body = fmt.Sprintf("%s: %d recommendations", job.Result.Name, len(job.Result.Recommendations))
		}
	case models.ReportStatusFailed:
		n.Level = notify.LevelError
		n.Title = "Report generation failed"
		n.Body = triggerFallback
		if job.ErrorReason != nil && *job.ErrorReason != "" {
			n.Body = *job.ErrorReason
		}
	case models.ReportStatusTimeout:
		n.Level = notify.LevelWarning
		n.Title = "Report generation timed out"
		n.Body = fmt.Sprintf("No result after %d status checks. The report may still finish; check again later.", job.Attempts)
	default:
		return
	}
	s.notifier.Notify(n)
}
