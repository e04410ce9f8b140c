package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/watertemp-auth/internal/models"
	"github.com/sbilibin2017/watertemp-auth/internal/services"
)

//go:generate mockgen -source=profile.go -destination=profile_mock.go -package=handlers

// ProfileGetter loads the profile of an account.
type ProfileGetter interface {
	GetProfile(ctx context.Context, id int64) (*models.Account, error)
}

// ProfileUpdater replaces the optional profile fields of an account.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, id int64, upd models.ProfileUpdate) (*models.Account, error)
}

// UpdateProfileRequest represents the JSON body for a profile update.
// Absent or blank fields clear the stored value.
// swagger:model UpdateProfileRequest
type UpdateProfileRequest struct {
	// default: alice@example.com
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	// Opaque picture reference or data URI
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

// NewGetProfileHandler returns an HTTP handler for the authenticated account's profile.
// @Summary Get profile
// @Description Returns the profile of the authenticated account
// @Tags profile
// @Produce json
// @Success 200 {object} handlers.ProfileResponse
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Account not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /auth/profile [get]
// @Security BearerAuth
func NewGetProfileHandler(svc ProfileGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountIDFromRequest(w, r)
		if !ok {
			return
		}

		account, err := svc.GetProfile(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrAccountNotFound):
				writeError(w, http.StatusNotFound, msgAccountMissing)
			default:
				writeInternalError(w, err)
			}
			return
		}

		writeJSON(w, http.StatusOK, newProfileResponse(account))
	}
}

// NewUpdateProfileHandler returns an HTTP handler replacing the profile fields of the authenticated account.
// @Summary Update profile
// @Description Replaces email, names and profile picture. Blank or absent fields are cleared.
// @Tags profile
// @Accept json
// @Produce json
// @Param updateProfileRequest body handlers.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} handlers.ProfileResponse
// @Failure 400 {object} handlers.ErrorResponse "Invalid request or validation failure"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Account not found"
// @Failure 409 {object} handlers.ErrorResponse "Email already in use"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /auth/profile [put]
// @Security BearerAuth
func NewUpdateProfileHandler(svc ProfileUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountIDFromRequest(w, r)
		if !ok {
			return
		}

		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		account, err := svc.UpdateProfile(r.Context(), id, models.ProfileUpdate{
			Email:          optional(req.Email),
			FirstName:      optional(req.FirstName),
			LastName:       optional(req.LastName),
			ProfilePicture: nonBlank(req.ProfilePicture),
		})
		if err != nil {
			var verr *services.ValidationError
			switch {
			case errors.As(err, &verr):
				writeError(w, http.StatusBadRequest, verr.Message)
			case errors.Is(err, services.ErrAccountNotFound):
				writeError(w, http.StatusNotFound, msgAccountMissing)
			case errors.Is(err, services.ErrEmailAlreadyInUse):
				writeError(w, http.StatusConflict, "Email already in use")
			default:
				writeInternalError(w, err)
			}
			return
		}

		writeJSON(w, http.StatusOK, newProfileResponse(account))
	}
}
