package sandbox_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiranshivaraju/pilotwatch/internal/apierr"
	"github.com/kiranshivaraju/pilotwatch/internal/gateway"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/store"
	"github.com/kiranshivaraju/pilotwatch/internal/session"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ─── fixtures ────────────────────────────────────────────────────────────────

type testEnv struct {
	store   *store.MemoryStore
	demo    *sandbox.Demo
	session *session.Session
	client  *gateway.HTTPClient
}

func newTestEnv(t *testing.T, opts sandbox.Options) *testEnv {
	t.Helper()
	ctx := context.Background()

	ms := store.NewMemoryStore(store.MemoryOptions{BcryptCost: bcrypt.MinCost})
	demo, err := sandbox.SeedDemo(ctx, ms)
	require.NoError(t, err)

	srv := httptest.NewServer(sandbox.NewHandler(ms, opts))
	t.Cleanup(srv.Close)

	sess := session.New(session.NewFileStore(filepath.Join(t.TempDir(), "session.json")))
	require.NoError(t, sess.Init(ctx))

	return &testEnv{
		store:   ms,
		demo:    demo,
		session: sess,
		client:  gateway.NewHTTPClient(srv.URL+"/api", srv.URL, sess, 5*time.Second),
	}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	resp, err := e.client.Login(ctx, models.LoginRequest{Email: e.demo.Email, Password: e.demo.Password})
	require.NoError(t, err)
	require.NoError(t, e.session.Establish(ctx, *resp))
}

// ─── contract tests ──────────────────────────────────────────────────────────

func TestContract_Health(t *testing.T) {
	env := newTestEnv(t, sandbox.Options{})
	assert.NoError(t, env.client.Health(context.Background()))
}

func TestContract_LoginAndProfile(t *testing.T) {
	env := newTestEnv(t, sandbox.Options{})
	env.login(t)

	p, err := env.client.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sandbox.DemoEmail, p.User.Email)
	assert.Equal(t, "Amazon Pilot Demo", p.User.CompanyName)
}

func TestContract_WrongPassword(t *testing.T) {
	env := newTestEnv(t, sandbox.Options{})

	_, err := env.client.Login(context.Background(), models.LoginRequest{Email: sandbox.DemoEmail, Password: "wrong-pass"})
	require.Error(t, err)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CREDENTIALS", e.Code)
	assert.NotEmpty(t, e.RequestID)
}

func TestContract_UnauthenticatedTearsDown(t *testing.T) {
	env := newTestEnv(t, sandbox.Options{})
	ctx := context.Background()
	require.NoError(t, env.session.Establish(ctx, models.LoginResponse{
		AccessToken: "forged",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}))

	torn := make(chan struct{}, 1)
	env.session.OnTeardown(func() { torn <- struct{}{} })

	_, err := env.client.Profile(ctx)
	assert.True(t, errors.Is(err, apierr.ErrUnauthorized))
	assert.False(t, env.session.LoggedIn())
	select {
	case <-torn:
	default:
		t.Fatal("teardown hook did not run")
	}
}

func TestContract_GroupsLifecycle(t *testing.T) {
	env := newTestEnv(t, sandbox.Options{})
	env.login(t)
	ctx := context.Background()

	created, err := env.client.CreateAnalysisGroup(ctx, models.CreateAnalysisRequest{
		Name:                 "Chargers",
		MainProductID:        "B0ABCDEF12",
		CompetitorProductIDs: []string{"B0ABCDEF13"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Chargers", created.Name)

	list, err := env.client.ListAnalysisGroups(ctx, models.ListAnalysisGroupsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Pagination.Total)
	assert.Len(t, list.Groups, 2)

	res, err := env.client.GetAnalysisResults(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusNoReport, res.Status)
	assert.Len(t, res.Competitors, 1)

	_, err = env.client.GetAnalysisResults(ctx, "missing")
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, 404, e.Status)
}

func TestContract_ReportScript(t *testing.T) {
	env := newTestEnv(t, sandbox.Options{})
	env.login(t)
	ctx := context.Background()
	id := env.demo.AnalysisID

	gen, err := env.client.GenerateReport(ctx, id, models.GenerateReportRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, gen.Status)

	var seen []models.ReportStatus
	for i := 0; i < 3; i++ {
		res, err := env.client.GetAnalysisResults(ctx, id)
		require.NoError(t, err)
		seen = append(seen, res.Status)
	}
	assert.Equal(t, []models.ReportStatus{
		models.ReportStatusProcessing,
		models.ReportStatusProcessing,
		models.ReportStatusCompleted,
	}, seen)

	again, err := env.client.GenerateReport(ctx, id, models.GenerateReportRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusAlreadyExists, again.Status)
}

func TestContract_AsyncReport(t *testing.T) {
	env := newTestEnv(t, sandbox.Options{})
	env.login(t)
	ctx := context.Background()
	id := env.demo.AnalysisID
	env.store.SetScript(id, models.ReportStatusFailed)

	gen, err := env.client.GenerateReportAsync(ctx, id, models.GenerateReportRequest{Force: true})
	require.NoError(t, err)
	require.NotEmpty(t, gen.TaskID)

	st, err := env.client.GetReportStatus(ctx, id, gen.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, st.Status)
	assert.NotEmpty(t, st.ErrorMessage)
}

func TestContract_RateLimited(t *testing.T) {
	env := newTestEnv(t, sandbox.Options{Counter: store.NewMemoryCounter(), RequestsPerMinute: 2})
	env.login(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.client.Profile(ctx)
		require.NoError(t, err)
	}
	_, err := env.client.Profile(ctx)
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, 429, e.Status)
	require.NotNil(t, e.RetryAfter)
	assert.Equal(t, 60, *e.RetryAfter)
	assert.True(t, env.session.LoggedIn())
}
