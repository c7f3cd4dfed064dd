package sandbox

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/handler"
	mw "github.com/kiranshivaraju/pilotwatch/internal/sandbox/middleware"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/store"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

const (
	DemoEmail    = "demo@amazon-pilot.local"
	DemoPassword = "demo123"
)

// Options configures the sandbox handler. A nil Counter disables rate limiting.
type Options struct {
	Counter           store.Counter
	RequestsPerMinute int
	Health            map[string]handler.Pinger
}

// NewHandler wires every route against s.
func NewHandler(s store.Store, opts Options) http.Handler {
	deps := Dependencies{
		Auth: mw.NewAuth(s),

		HealthHandler:         handler.NewHealthHandler(healthChecks(s, opts.Health)),
		LoginHandler:          handler.NewLoginHandler(s),
		ProfileHandler:        handler.NewProfileHandler(s),
		ListGroupsHandler:     handler.NewListGroupsHandler(s),
		CreateGroupHandler:    handler.NewCreateGroupHandler(s),
		GetAnalysisHandler:    handler.NewGetAnalysisHandler(s),
		GenerateReportHandler: handler.NewGenerateReportHandler(s),
		GenerateAsyncHandler:  handler.NewGenerateReportAsyncHandler(s),
		ReportStatusHandler:   handler.NewReportStatusHandler(s),
	}
	if opts.Counter != nil {
		deps.RateLimit = mw.NewRateLimit(opts.Counter, opts.RequestsPerMinute)
	}
	return NewRouter(deps)
}

func healthChecks(s store.Store, extra map[string]handler.Pinger) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"store": s}
	for name, p := range extra {
		checks[name] = p
	}
	return checks
}

// Demo describes the seeded demo account.
type Demo struct {
	User       *models.User
	Email      string
	Password   string
	AnalysisID string
}

// SeedDemo adds the demo user and one analysis group.
func SeedDemo(ctx context.Context, s *store.MemoryStore) (*Demo, error) {
	u, err := s.AddUser(DemoEmail, DemoPassword, "Amazon Pilot Demo")
	if err != nil {
		return nil, fmt.Errorf("seed demo user: %w", err)
	}
	g, err := s.CreateGroup(ctx, u.ID, models.CreateAnalysisRequest{
		Name:                 "Wireless earbuds",
		Description:          "Main listing against the top sellers in the category",
		MainProductID:        "B08N5WRWNW",
		CompetitorProductIDs: []string{"B07FZ8S74R", "B09JQMJHXY", "B0863TXGM3"},
		AnalysisMetrics:      []string{"price", "bsr", "rating", "review_count"},
	})
	if err != nil {
		return nil, fmt.Errorf("seed demo analysis: %w", err)
	}
	return &Demo{User: u, Email: DemoEmail, Password: DemoPassword, AnalysisID: g.ID}, nil
}
