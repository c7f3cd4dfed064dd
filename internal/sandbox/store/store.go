// Package store holds the sandbox gateway's state: demo users, analysis
// groups and scripted report jobs.
package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrDuplicateUser      = errors.New("user already exists")
)

// RejectedError is returned when a report trigger is refused.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "report rejected: " + e.Reason }

// Store is the sandbox data access interface. Implementations must be safe
// for concurrent use.
type Store interface {
	Ping(ctx context.Context) error

	Authenticate(ctx context.Context, email, password string) (*models.LoginResponse, error)
	UserByToken(ctx context.Context, token string) (*models.User, error)
	Profile(ctx context.Context, userID string) (*models.ProfileResponse, error)

	ListGroups(ctx context.Context, filter GroupFilter) ([]models.AnalysisGroup, int, error)
	CreateGroup(ctx context.Context, userID string, req models.CreateAnalysisRequest) (*models.CreateAnalysisResponse, error)
	// GetAnalysis returns the group with its latest report status. Each call
	// while a report is running counts as one probe and advances its script.
	GetAnalysis(ctx context.Context, userID, analysisID string) (*models.AnalysisResults, error)

	StartReport(ctx context.Context, userID, analysisID string, opts ReportOptions) (*Report, error)
	// ReportStatus is the task-oriented probe; it advances the script like GetAnalysis.
	ReportStatus(ctx context.Context, userID, analysisID, taskID string) (*models.ReportStatusResponse, error)
}

type GroupFilter struct {
	UserID string
	Status string
	Page   int
	Limit  int
}

type ReportOptions struct {
	Force bool
	Async bool
}

// Report is a snapshot of a report job as returned by StartReport.
type Report struct {
	ID        string
	TaskID    string
	Status    models.ReportStatus
	Message   string
	StartedAt string
}
