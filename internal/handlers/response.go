package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sbilibin2017/watertemp-auth/internal/logger"
	"github.com/sbilibin2017/watertemp-auth/internal/middlewares"
	"github.com/sbilibin2017/watertemp-auth/internal/models"
)

const (
	msgInvalidBody    = "Invalid request body"
	msgInternalError  = "Internal server error"
	msgUnauthorized   = "Authentication required"
	msgAccountMissing = "Account not found"
)

// ErrorResponse is the body of every failed request
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	// default: Invalid request body
	Error string `json:"error"`
}

// ProfileResponse is the public projection of the account
// swagger:model ProfileResponse
type ProfileResponse struct {
	ID                int64     `json:"id"`
	UserName          string    `json:"userName"`
	Email             *string   `json:"email,omitempty"`
	FirstName         *string   `json:"firstName,omitempty"`
	LastName          *string   `json:"lastName,omitempty"`
	HasProfilePicture bool      `json:"hasProfilePicture"`
	ProfilePicture    *string   `json:"profilePicture,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func newProfileResponse(a *models.Account) *ProfileResponse {
	return &ProfileResponse{
		ID:                a.ID,
		UserName:          a.Username,
		Email:             a.Email,
		FirstName:         a.FirstName,
		LastName:          a.LastName,
		HasProfilePicture: a.ProfilePicture != nil,
		ProfilePicture:    a.ProfilePicture,
		CreatedAt:         a.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorw("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeInternalError(w http.ResponseWriter, err error) {
	logger.Log.Errorw("internal server error", "err", err)
	writeError(w, http.StatusInternalServerError, msgInternalError)
}

// accountIDFromRequest reads the account id from the claims stored by the auth middleware.
// It writes a 401 and returns false when there is none.
func accountIDFromRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims := middlewares.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return 0, false
	}
	id, err := claims.AccountID()
	if err != nil {
		logger.Log.Infow("token without usable subject", "err", err)
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return 0, false
	}
	return id, true
}

// nonBlank maps blank values to nil and keeps others as sent.
func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// optional trims s and maps blank values to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
