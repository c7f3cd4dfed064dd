package middleware

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

type contextKey string

const (
	userKey    contextKey = "user"
	requestKey contextKey = "request"
)

// requestInfo is filled in by inner middleware and read back by Logger once
// the handler returns.
type requestInfo struct {
	userID string
}

// SetUser stores u in ctx and records its id for the request log line.
func SetUser(ctx context.Context, u *models.User) context.Context {
	if info, ok := ctx.Value(requestKey).(*requestInfo); ok && u != nil {
		info.userID = u.ID
	}
	return context.WithValue(ctx, userKey, u)
}

func GetUser(r *http.Request) (*models.User, bool) {
	u, ok := r.Context().Value(userKey).(*models.User)
	return u, ok && u != nil
}
