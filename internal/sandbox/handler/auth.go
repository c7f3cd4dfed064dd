package handler

import (
	"context"
	"encoding/json"
	"net/http"

	mw "github.com/kiranshivaraju/pilotwatch/internal/sandbox/middleware"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/response"
	"github.com/kiranshivaraju/pilotwatch/internal/validate"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.LoginResponse, error)
}

type ProfileReader interface {
	Profile(ctx context.Context, userID string) (*models.ProfileResponse, error)
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/auth/login.
func NewLoginHandler(auth Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			invalidBody(w)
			return
		}
		if err := validate.Login(req); err != nil {
			writeError(w, r, err)
			return
		}

		resp, err := auth.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, resp)
	}
}

// NewProfileHandler returns an http.HandlerFunc for GET /api/auth/users/profile.
func NewProfileHandler(p ProfileReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user", nil)
			return
		}
		resp, err := p.Profile(r.Context(), user.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, resp)
	}
}
