package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/pilotwatch/internal/sandbox/middleware"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/response"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/store"
	"github.com/kiranshivaraju/pilotwatch/internal/validate"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

type AnalysisStore interface {
	ListGroups(ctx context.Context, filter store.GroupFilter) ([]models.AnalysisGroup, int, error)
	CreateGroup(ctx context.Context, userID string, req models.CreateAnalysisRequest) (*models.CreateAnalysisResponse, error)
	GetAnalysis(ctx context.Context, userID, analysisID string) (*models.AnalysisResults, error)
}

// NewListGroupsHandler returns an http.HandlerFunc for GET /api/competitor/analysis.
func NewListGroupsHandler(s AnalysisStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		page, err := intParam(q.Get("page"), 1)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be an integer", nil)
			return
		}
		limit, err := intParam(q.Get("limit"), 20)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer", nil)
			return
		}
		if err := validate.Pagination(page, limit); err != nil {
			writeError(w, r, err)
			return
		}

		groups, total, err := s.ListGroups(r.Context(), store.GroupFilter{
			UserID: user.ID,
			Status: q.Get("status"),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		response.JSON(w, models.ListAnalysisGroupsResponse{
			Groups: groups,
			Pagination: models.Pagination{
				Page:       page,
				Limit:      limit,
				Total:      total,
				TotalPages: (total + limit - 1) / limit,
			},
		})
	}
}

// NewCreateGroupHandler returns an http.HandlerFunc for POST /api/competitor/analysis.
func NewCreateGroupHandler(s AnalysisStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req models.CreateAnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			invalidBody(w)
			return
		}

		resp, err := s.CreateGroup(r.Context(), user.ID, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, resp)
	}
}

// NewGetAnalysisHandler returns an http.HandlerFunc for
// GET /api/competitor/analysis/{analysisID}. It doubles as the report probe.
func NewGetAnalysisHandler(s AnalysisStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r)
		if !ok {
			return
		}

		res, err := s.GetAnalysis(r.Context(), user.ID, chi.URLParam(r, "analysisID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, res)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := mw.GetUser(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user", nil)
	}
	return user, ok
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
