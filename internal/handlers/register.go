package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sbilibin2017/watertemp-auth/internal/models"
	"github.com/sbilibin2017/watertemp-auth/internal/services"
)

//go:generate mockgen -source=register.go -destination=register_mock.go -package=handlers

// Registerer defines the interface that the service must implement.
type Registerer interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.Account, error)
}

// RegisterRequest represents the JSON body for account registration
// swagger:model RegisterRequest
type RegisterRequest struct {
	// Username
	// required: true
	// default: alice
	UserName string `json:"userName"`

	// Password
	// required: true
	// default: Secret123!
	Password string `json:"password"`

	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// RegisterResponse represents a successful registration response
// swagger:model RegisterResponse
type RegisterResponse struct {
	// default: 1
	ID int64 `json:"id"`
	// default: alice
	UserName string `json:"userName"`
}

// NewRegisterHandler returns an HTTP handler for account registration.
// @Summary Register the account
// @Description Creates the single account of this installation. Fails once an account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param registerRequest body handlers.RegisterRequest true "Registration request"
// @Success 201 {object} handlers.RegisterResponse "Account registered"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request or validation failure"
// @Failure 409 {object} handlers.ErrorResponse "An account already exists"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /auth/register [post]
func NewRegisterHandler(svc Registerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		account, err := svc.Register(r.Context(), models.RegisterInput{
			Username:  req.UserName,
			Password:  req.Password,
			Email:     optional(req.Email),
			FirstName: optional(req.FirstName),
			LastName:  optional(req.LastName),
		})
		if err != nil {
			var verr *services.ValidationError
			switch {
			case errors.As(err, &verr):
				writeError(w, http.StatusBadRequest, verr.Message)
			case errors.Is(err, services.ErrAccountAlreadyExists):
				writeError(w, http.StatusConflict, "An account already exists")
			case errors.Is(err, services.ErrEmailAlreadyInUse):
				writeError(w, http.StatusConflict, "Email already in use")
			default:
				writeInternalError(w, err)
			}
			return
		}

		writeJSON(w, http.StatusCreated, RegisterResponse{
			ID:       account.ID,
			UserName: account.Username,
		})
	}
}
