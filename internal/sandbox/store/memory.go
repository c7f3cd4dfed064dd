package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pilotwatch/internal/validate"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 24 * time.Hour
	timeLayout      = time.RFC3339
)

// DefaultScript is the status sequence a new report job reports to
// successive probes. The last entry repeats.
var DefaultScript = []models.ReportStatus{
	models.ReportStatusProcessing,
	models.ReportStatusProcessing,
	models.ReportStatusCompleted,
}

type MemoryOptions struct {
	Script     []models.ReportStatus
	TokenTTL   time.Duration
	BcryptCost int
	Now        func() time.Time
}

type account struct {
	user         models.User
	passwordHash []byte
	settings     models.UserSettings
}

type session struct {
	userID    string
	expiresAt time.Time
}

type group struct {
	userID      string
	id          string
	name        string
	description string
	main        models.CompetitorProduct
	competitors []models.CompetitorProduct
	createdAt   time.Time
	updatedAt   time.Time
	reports     []*report
}

type report struct {
	id           string
	taskID       string
	script       []models.ReportStatus
	probes       int
	status       models.ReportStatus
	startedAt    time.Time
	completedAt  time.Time
	errorMessage string
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	opts MemoryOptions

	mu       sync.Mutex
	accounts map[string]*account // by email
	sessions map[string]session  // by token
	groups   map[string]*group
	scripts  map[string][]models.ReportStatus
	rejects  map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if len(opts.Script) == 0 {
		opts.Script = DefaultScript
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MemoryStore{
		opts:     opts,
		accounts: make(map[string]*account),
		sessions: make(map[string]session),
		groups:   make(map[string]*group),
		scripts:  make(map[string][]models.ReportStatus),
		rejects:  make(map[string]string),
	}
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// AddUser registers a user with a bcrypt-hashed password.
func (s *MemoryStore) AddUser(email, password, company string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.accounts[key]; ok {
		return nil, ErrDuplicateUser
	}
	a := &account{
		user: models.User{
			ID:          uuid.NewString(),
			Email:       email,
			CompanyName: company,
			Plan:        "basic",
			IsActive:    true,
			CreatedAt:   s.opts.Now().UTC().Format(timeLayout),
		},
		passwordHash: hash,
		settings: models.UserSettings{
			NotificationEmail: true,
			Timezone:          "UTC",
			Currency:          "USD",
			TrackingFrequency: "daily",
		},
	}
	s.accounts[key] = a
	u := a.user
	return &u, nil
}

// SetScript overrides the status sequence for the next reports of analysisID.
func (s *MemoryStore) SetScript(analysisID string, statuses ...models.ReportStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[analysisID] = append([]models.ReportStatus(nil), statuses...)
}

// RejectReports makes every trigger for analysisID fail with reason. An
// empty reason clears the rejection.
func (s *MemoryStore) RejectReports(analysisID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason == "" {
		delete(s.rejects, analysisID)
		return
	}
	s.rejects[analysisID] = reason
}

func (s *MemoryStore) Authenticate(_ context.Context, email, password string) (*models.LoginResponse, error) {
	s.mu.Lock()
	a, ok := s.accounts[strings.ToLower(email)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = session{userID: a.user.ID, expiresAt: s.opts.Now().Add(s.opts.TokenTTL)}
	s.mu.Unlock()

	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.opts.TokenTTL / time.Second),
		User:        a.user,
	}, nil
}

func (s *MemoryStore) UserByToken(_ context.Context, token string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	if !s.opts.Now().Before(sess.expiresAt) {
		delete(s.sessions, token)
		return nil, ErrInvalidToken
	}
	a := s.accountByID(sess.userID)
	if a == nil {
		return nil, ErrInvalidToken
	}
	u := a.user
	return &u, nil
}

func (s *MemoryStore) Profile(_ context.Context, userID string) (*models.ProfileResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accountByID(userID)
	if a == nil {
		return nil, ErrNotFound
	}
	return &models.ProfileResponse{User: a.user, Settings: a.settings}, nil
}

func (s *MemoryStore) accountByID(userID string) *account {
	for _, a := range s.accounts {
		if a.user.ID == userID {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) ListGroups(_ context.Context, filter GroupFilter) ([]models.AnalysisGroup, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.AnalysisGroup
	for _, g := range s.groups {
		if g.userID != filter.UserID {
			continue
		}
		summary := g.summary()
		if filter.Status != "" && summary.Status != filter.Status {
			continue
		}
		all = append(all, summary)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= total {
		return []models.AnalysisGroup{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *MemoryStore) CreateGroup(_ context.Context, userID string, req models.CreateAnalysisRequest) (*models.CreateAnalysisResponse, error) {
	if err := validate.CreateAnalysis(req); err != nil {
		return nil, err
	}

	now := s.opts.Now().UTC()
	g := &group{
		userID:      userID,
		id:          uuid.NewString(),
		name:        req.Name,
		description: req.Description,
		main:        product(req.MainProductID),
		createdAt:   now,
		updatedAt:   now,
	}
	for _, asin := range req.CompetitorProductIDs {
		g.competitors = append(g.competitors, product(asin))
	}

	s.mu.Lock()
	s.groups[g.id] = g
	s.mu.Unlock()

	return &models.CreateAnalysisResponse{
		ID:            g.id,
		Name:          g.name,
		MainProductID: req.MainProductID,
		Status:        "active",
		CreatedAt:     now.Format(timeLayout),
	}, nil
}

func (s *MemoryStore) GetAnalysis(_ context.Context, userID, analysisID string) (*models.AnalysisResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.ownedGroup(userID, analysisID)
	if err != nil {
		return nil, err
	}

	res := &models.AnalysisResults{
		ID:          g.id,
		Name:        g.name,
		Description: g.description,
		MainProduct: g.main,
		Competitors: append([]models.CompetitorProduct(nil), g.competitors...),
		Status:      models.ReportStatusNoReport,
		LastUpdated: g.updatedAt.Format(timeLayout),
	}

	r := g.latest()
	if r == nil {
		return res, nil
	}
	r.advance(s.opts.Now())
	res.Status = r.status
	if r.status == models.ReportStatusCompleted {
		res.Recommendations = recommendations(g)
		res.LastUpdated = r.completedAt.UTC().Format(timeLayout)
	}
	return res, nil
}

func (s *MemoryStore) StartReport(_ context.Context, userID, analysisID string, opts ReportOptions) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.ownedGroup(userID, analysisID)
	if err != nil {
		return nil, err
	}
	if reason, ok := s.rejects[analysisID]; ok {
		return nil, &RejectedError{Reason: reason}
	}

	if !opts.Force {
		if done := g.latestCompleted(); done != nil {
			return &Report{
				ID:        done.id,
				TaskID:    done.taskID,
				Status:    models.ReportStatusAlreadyExists,
				Message:   "Analysis report already exists, use force=true to regenerate",
				StartedAt: done.startedAt.UTC().Format(timeLayout),
			}, nil
		}
	}

	script := s.scripts[analysisID]
	if len(script) == 0 {
		script = s.opts.Script
	}
	r := &report{
		id:        uuid.NewString(),
		script:    script,
		status:    models.ReportStatusProcessing,
		startedAt: s.opts.Now(),
	}
	msg := "Generating competitive positioning report"
	if opts.Async {
		r.taskID = uuid.NewString()
		r.status = models.ReportStatusQueued
		msg = "Report generation task queued"
	}
	g.reports = append(g.reports, r)

	return &Report{
		ID:        r.id,
		TaskID:    r.taskID,
		Status:    r.status,
		Message:   msg,
		StartedAt: r.startedAt.UTC().Format(timeLayout),
	}, nil
}

func (s *MemoryStore) ReportStatus(_ context.Context, userID, analysisID, taskID string) (*models.ReportStatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.ownedGroup(userID, analysisID)
	if err != nil {
		return nil, err
	}

	var r *report
	if taskID == "" {
		r = g.latest()
	} else {
		for _, c := range g.reports {
			if c.taskID == taskID {
				r = c
			}
		}
	}
	if r == nil {
		return &models.ReportStatusResponse{
			Status:  models.ReportStatusNotFound,
			Message: "No report generation record found",
		}, nil
	}

	r.advance(s.opts.Now())
	resp := &models.ReportStatusResponse{
		TaskID:    r.taskID,
		ReportID:  r.id,
		Status:    r.status,
		StartedAt: r.startedAt.UTC().Format(timeLayout),
	}
	switch r.status {
	case models.ReportStatusQueued:
		resp.Message = "Report generation task is queued"
	case models.ReportStatusProcessing:
		resp.Message = "Generating competitive positioning report"
		resp.Progress = 50
	case models.ReportStatusCompleted:
		resp.Message = "Competitive positioning report completed"
		resp.Progress = 100
		resp.CompletedAt = r.completedAt.UTC().Format(timeLayout)
	case models.ReportStatusFailed:
		resp.Message = "Report generation failed"
		resp.ErrorMessage = r.errorMessage
	default:
		resp.Message = "Unknown status"
	}
	return resp, nil
}

func (s *MemoryStore) ownedGroup(userID, analysisID string) (*group, error) {
	g, ok := s.groups[analysisID]
	if !ok || g.userID != userID {
		return nil, ErrNotFound
	}
	return g, nil
}

func (g *group) latest() *report {
	if len(g.reports) == 0 {
		return nil
	}
	return g.reports[len(g.reports)-1]
}

func (g *group) latestCompleted() *report {
	for i := len(g.reports) - 1; i >= 0; i-- {
		if g.reports[i].status == models.ReportStatusCompleted {
			return g.reports[i]
		}
	}
	return nil
}

func (g *group) summary() models.AnalysisGroup {
	out := models.AnalysisGroup{
		ID:              g.id,
		Name:            g.name,
		Description:     g.description,
		MainProductASIN: g.main.ASIN,
		CompetitorCount: len(g.competitors),
		Status:          "active",
		CreatedAt:       g.createdAt.Format(timeLayout),
	}
	if done := g.latestCompleted(); done != nil {
		out.Status = "completed"
		out.LastAnalysis = done.completedAt.UTC().Format(timeLayout)
	}
	return out
}

// advance moves a running report one step along its script.
func (r *report) advance(now time.Time) {
	if r.status.IsTerminal() {
		return
	}
	i := r.probes
	if i >= len(r.script) {
		i = len(r.script) - 1
	}
	r.probes++
	r.status = r.script[i]
	if r.status.IsTerminal() {
		r.completedAt = now
	}
	if r.status == models.ReportStatusFailed {
		r.errorMessage = "LLM analysis returned no result"
	}
}

// product fabricates stable catalogue data for an ASIN.
func product(asin string) models.CompetitorProduct {
	h := fnv.New32a()
	_, _ = h.Write([]byte(asin))
	n := h.Sum32()
	return models.CompetitorProduct{
		ID:          "prod-" + strings.ToLower(asin),
		ASIN:        asin,
		Title:       "Product " + asin,
		Brand:       []string{"Anker", "Soundcore", "JLab", "Sony", "Bose"}[n%5],
		Price:       float64(1999+n%8000) / 100,
		BSR:         int(100 + n%50000),
		Rating:      3.5 + float64(n%15)/10,
		ReviewCount: int(n % 20000),
	}
}

func recommendations(g *group) []models.Recommendation {
	cheapest := g.main
	for _, c := range g.competitors {
		if c.Price < cheapest.Price {
			cheapest = c
		}
	}
	recs := []models.Recommendation{{
		Type:        "listing",
		Priority:    "medium",
		Title:       "Refresh main product listing",
		Description: fmt.Sprintf("Compare %s's title and bullet points against %d competitors.", g.main.ASIN, len(g.competitors)),
		Impact:      "Improved conversion rate",
	}}
	if cheapest.ASIN != g.main.ASIN {
		recs = append([]models.Recommendation{{
			Type:        "pricing",
			Priority:    "high",
			Title:       "Review pricing position",
			Description: fmt.Sprintf("%s undercuts the main product at $%.2f.", cheapest.ASIN, cheapest.Price),
			Impact:      "Protect buy box share",
		}}, recs...)
	}
	return recs
}

var _ Store = (*MemoryStore)(nil)
