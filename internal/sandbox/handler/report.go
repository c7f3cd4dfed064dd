package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/response"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/store"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

type ReportStore interface {
	StartReport(ctx context.Context, userID, analysisID string, opts store.ReportOptions) (*store.Report, error)
	ReportStatus(ctx context.Context, userID, analysisID, taskID string) (*models.ReportStatusResponse, error)
}

// NewGenerateReportHandler returns an http.HandlerFunc for
// POST /api/competitor/analysis/{analysisID}/generate-report.
func NewGenerateReportHandler(s ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := startReport(w, r, s, false)
		if !ok {
			return
		}
		writeReport(w, rep, models.GenerateReportResponse{
			ReportID:  rep.ID,
			Status:    rep.Status,
			Message:   rep.Message,
			StartedAt: rep.StartedAt,
		})
	}
}

// NewGenerateReportAsyncHandler returns an http.HandlerFunc for
// POST /api/competitor/analysis/{analysisID}/generate-report-async.
func NewGenerateReportAsyncHandler(s ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := startReport(w, r, s, true)
		if !ok {
			return
		}
		writeReport(w, rep, models.GenerateReportAsyncResponse{
			TaskID:    rep.TaskID,
			Status:    rep.Status,
			Message:   rep.Message,
			StartedAt: rep.StartedAt,
		})
	}
}

// NewReportStatusHandler returns an http.HandlerFunc for
// GET /api/competitor/analysis/{analysisID}/report-status.
func NewReportStatusHandler(s ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r)
		if !ok {
			return
		}

		resp, err := s.ReportStatus(r.Context(), user.ID, chi.URLParam(r, "analysisID"), r.URL.Query().Get("task_id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, resp)
	}
}

func startReport(w http.ResponseWriter, r *http.Request, s ReportStore, async bool) (*store.Report, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return nil, false
	}

	var req models.GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		invalidBody(w)
		return nil, false
	}

	rep, err := s.StartReport(r.Context(), user.ID, chi.URLParam(r, "analysisID"), store.ReportOptions{
		Force: req.Force,
		Async: async,
	})
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return rep, true
}

// writeReport answers 200 for an existing report and 202 for a new job.
func writeReport(w http.ResponseWriter, rep *store.Report, body any) {
	if rep.Status == models.ReportStatusAlreadyExists {
		response.JSON(w, body)
		return
	}
	response.Accepted(w, body)
}
