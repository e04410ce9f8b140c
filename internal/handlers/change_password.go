package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/watertemp-auth/internal/services"
)

//go:generate mockgen -source=change_password.go -destination=change_password_mock.go -package=handlers

// PasswordChanger replaces the password of an account.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, id int64, currentPassword, newPassword string) error
}

// ChangePasswordRequest represents the JSON body for a password change
// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	// required: true
	CurrentPassword string `json:"currentPassword"`
	// required: true
	NewPassword string `json:"newPassword"`
}

// MessageResponse carries a confirmation message
// swagger:model MessageResponse
type MessageResponse struct {
	// default: Password changed successfully
	Message string `json:"message"`
}

// NewChangePasswordHandler returns an HTTP handler for changing the password of the authenticated account.
// @Summary Change password
// @Description Re-verifies the current password and stores the new one
// @Tags profile
// @Accept json
// @Produce json
// @Param changePasswordRequest body handlers.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} handlers.MessageResponse
// @Failure 400 {object} handlers.ErrorResponse "Invalid request or weak new password"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized or wrong current password"
// @Failure 404 {object} handlers.ErrorResponse "Account not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /auth/profile/change-password [post]
// @Security BearerAuth
func NewChangePasswordHandler(svc PasswordChanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountIDFromRequest(w, r)
		if !ok {
			return
		}

		var req ChangePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		err := svc.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword)
		if err != nil {
			var verr *services.ValidationError
			switch {
			case errors.As(err, &verr):
				writeError(w, http.StatusBadRequest, verr.Message)
			case errors.Is(err, services.ErrWrongCurrentPassword):
				writeError(w, http.StatusUnauthorized, "Current password is incorrect")
			case errors.Is(err, services.ErrAccountNotFound):
				writeError(w, http.StatusNotFound, msgAccountMissing)
			default:
				writeInternalError(w, err)
			}
			return
		}

		writeJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
	}
}
