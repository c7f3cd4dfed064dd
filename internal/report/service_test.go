package report_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/pilotwatch/internal/gateway"
	"github.com/kiranshivaraju/pilotwatch/internal/notify"
	"github.com/kiranshivaraju/pilotwatch/internal/report"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/store"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

const tick = 10 * time.Millisecond

// ─── fixtures ────────────────────────────────────────────────────────────────

type staticToken string

func (t staticToken) Token() string                    { return string(t) }
func (t staticToken) Teardown(_ context.Context) error { return nil }

type env struct {
	store      *store.MemoryStore
	analysisID string
	recorder   *notify.Recorder
	svc        *report.Service
	triggers   atomic.Int32
	gw         *gateway.HTTPClient
}

func newEnv(t *testing.T, maxAttempts int) *env {
	t.Helper()
	ctx := context.Background()

	ms := store.NewMemoryStore(store.MemoryOptions{BcryptCost: bcrypt.MinCost})
	demo, err := sandbox.SeedDemo(ctx, ms)
	require.NoError(t, err)
	login, err := ms.Authenticate(ctx, demo.Email, demo.Password)
	require.NoError(t, err)

	e := &env{store: ms, analysisID: demo.AnalysisID, recorder: &notify.Recorder{}}

	h := sandbox.NewHandler(ms, sandbox.Options{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/generate-report") {
			e.triggers.Add(1)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	e.gw = gateway.NewHTTPClient(srv.URL+"/api", srv.URL, staticToken(login.AccessToken), 5*time.Second)
	e.svc = report.NewService(e.gw, e.recorder, report.Options{Interval: tick, MaxAttempts: maxAttempts})
	t.Cleanup(e.svc.Close)
	return e
}

func wait(t *testing.T, r *report.Run) (models.AnalysisJob, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	job, err := r.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return job, err
}

// ─── outcomes ────────────────────────────────────────────────────────────────

func TestGenerate_Completes(t *testing.T) {
	e := newEnv(t, 5)

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{e.analysisID}, e.svc.Active())

	job, err := wait(t, run)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Attempts)
	require.NotNil(t, job.Result)
	assert.NotEmpty(t, job.Result.Recommendations)
	assert.Nil(t, job.ErrorReason)
	assert.NotNil(t, job.CompletedAt)

	notes := e.recorder.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelSuccess, notes[0].Level)
	assert.Contains(t, notes[0].Body, "Wireless earbuds")

	progress := e.recorder.ProgressUpdates()
	require.NotEmpty(t, progress)
	assert.Equal(t, models.ReportStatusCompleted, progress[len(progress)-1].Status)
	assert.Empty(t, e.svc.Active())
}

func TestGenerate_Failed(t *testing.T) {
	e := newEnv(t, 5)
	e.store.SetScript(e.analysisID, models.ReportStatusProcessing, models.ReportStatusFailed)

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)

	job, err := wait(t, run)
	assert.ErrorIs(t, err, report.ErrReportFailed)
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorReason)
	assert.Nil(t, job.Result)

	notes := e.recorder.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)
	assert.Equal(t, "Report generation failed", notes[0].Title)
}

func TestGenerate_TimeoutIsDistinctFromFailure(t *testing.T) {
	e := newEnv(t, 3)
	e.store.SetScript(e.analysisID, models.ReportStatusProcessing)

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)

	job, err := wait(t, run)
	assert.ErrorIs(t, err, report.ErrReportTimeout)
	assert.Equal(t, models.ReportStatusTimeout, job.Status)
	assert.Equal(t, 3, job.Attempts)
	require.NotNil(t, job.ErrorReason)

	time.Sleep(5 * tick)
	notes := e.recorder.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelWarning, notes[0].Level)
	assert.Equal(t, "Report generation timed out", notes[0].Title)
}

func TestGenerate_Async(t *testing.T) {
	e := newEnv(t, 5)

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{Async: true})
	require.NoError(t, err)
	assert.NotEmpty(t, run.TaskID())

	job, err := wait(t, run)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, e.analysisID, job.Result.ID)
}

// ─── trigger errors ──────────────────────────────────────────────────────────

func TestGenerate_TriggerRejectedNotifiesServerMessage(t *testing.T) {
	e := newEnv(t, 5)
	e.store.RejectReports(e.analysisID, "OpenAI API key not configured")

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.Error(t, err)
	assert.Nil(t, run)
	assert.Empty(t, e.svc.Active())

	notes := e.recorder.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)
	assert.Equal(t, "OpenAI API key not configured", notes[0].Body)
	assert.Empty(t, e.recorder.ProgressUpdates())
}

func TestGenerate_TriggerErrorWithoutMessageUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	rec := &notify.Recorder{}
	gw := gateway.NewHTTPClient(srv.URL+"/api", srv.URL, nil, time.Second)
	svc := report.NewService(gw, rec, report.Options{Interval: tick, MaxAttempts: 3})
	t.Cleanup(svc.Close)

	_, err := svc.Generate(context.Background(), "abc", report.GenerateOptions{})
	require.Error(t, err)

	notes := rec.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Failed to generate competitive positioning report", notes[0].Body)
}

func TestGenerate_EmptyID(t *testing.T) {
	e := newEnv(t, 3)
	_, err := e.svc.Generate(context.Background(), "", report.GenerateOptions{})
	assert.ErrorIs(t, err, report.ErrEmptyAnalysisID)
	assert.Zero(t, e.triggers.Load())
}

// ─── in-flight policy ────────────────────────────────────────────────────────

func TestGenerate_JoinsActiveRun(t *testing.T) {
	e := newEnv(t, 50)
	e.store.SetScript(e.analysisID, models.ReportStatusProcessing)

	first, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)
	second, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), e.triggers.Load())
	first.Cancel()
}

func TestGenerate_ConcurrentTriggersShareOneRequest(t *testing.T) {
	e := newEnv(t, 50)
	e.store.SetScript(e.analysisID, models.ReportStatusProcessing)

	var wg sync.WaitGroup
	runs := make([]*report.Run, 8)
	for i := range runs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
			assert.NoError(t, err)
			runs[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range runs[1:] {
		assert.Same(t, runs[0], r)
	}
	assert.Equal(t, int32(1), e.triggers.Load())
	runs[0].Cancel()
}

func TestGenerate_ForceRestarts(t *testing.T) {
	e := newEnv(t, 50)
	e.store.SetScript(e.analysisID, models.ReportStatusProcessing)

	first, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)

	e.store.SetScript(e.analysisID, models.ReportStatusCompleted)
	second, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{Force: true})
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	_, err = wait(t, first)
	assert.ErrorIs(t, err, report.ErrCancelled)

	job, err := wait(t, second)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, job.Status)

	notes := e.recorder.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelSuccess, notes[0].Level)
	assert.Equal(t, int32(2), e.triggers.Load())
}

func TestGenerate_CompletedReportNeedsForce(t *testing.T) {
	e := newEnv(t, 5)

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)
	_, err = wait(t, run)
	require.NoError(t, err)

	// the gateway answers already_exists and the first probe settles it
	again, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)
	job, err := wait(t, again)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Attempts)
}

// ─── cancellation ────────────────────────────────────────────────────────────

func TestRun_CancelIsSilent(t *testing.T) {
	e := newEnv(t, 50)
	e.store.SetScript(e.analysisID, models.ReportStatusProcessing)

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return run.Job().Attempts >= 2 }, time.Second, tick)

	run.Cancel()
	run.Cancel()

	job, err := wait(t, run)
	assert.ErrorIs(t, err, report.ErrCancelled)
	assert.False(t, job.Terminal())
	assert.Empty(t, e.svc.Active())

	time.Sleep(2 * tick)
	attempts := run.Job().Attempts
	time.Sleep(5 * tick)
	assert.Equal(t, attempts, run.Job().Attempts)
	assert.Empty(t, e.recorder.Notifications())
	assert.Equal(t, []string{job.ID}, e.recorder.Dismissed())

	select {
	case <-run.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestRun_WaitHonoursContext(t *testing.T) {
	e := newEnv(t, 50)
	e.store.SetScript(e.analysisID, models.ReportStatusProcessing)

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)
	defer run.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*tick)
	defer cancel()
	_, err = run.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestService_CloseCancelsEverything(t *testing.T) {
	e := newEnv(t, 50)
	e.store.SetScript(e.analysisID, models.ReportStatusProcessing)

	run, err := e.svc.Generate(context.Background(), e.analysisID, report.GenerateOptions{})
	require.NoError(t, err)

	e.svc.Close()
	_, err = wait(t, run)
	assert.ErrorIs(t, err, report.ErrCancelled)
	assert.Empty(t, e.svc.Active())
}

// ─── single probe ────────────────────────────────────────────────────────────

func TestStatus(t *testing.T) {
	e := newEnv(t, 5)
	ctx := context.Background()

	st, err := e.svc.Status(ctx, e.analysisID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusNoReport, st.Status)

	gen, err := e.gw.GenerateReportAsync(ctx, e.analysisID, models.GenerateReportRequest{})
	require.NoError(t, err)
	st, err = e.svc.Status(ctx, e.analysisID, gen.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, st.Status)
	assert.Equal(t, gen.TaskID, st.TaskID)

	_, err = e.svc.Status(ctx, "", "")
	assert.ErrorIs(t, err, report.ErrEmptyAnalysisID)
	assert.Empty(t, e.svc.Active())
}
