package handlers

import (
	"context"
	"net/http"
)

//go:generate mockgen -source=exists.go -destination=exists_mock.go -package=handlers

// AccountsExistChecker reports whether the account has been registered.
type AccountsExistChecker interface {
	AccountsExist(ctx context.Context) (bool, error)
}

// AccountsExistResponse tells clients whether to show registration or login
// swagger:model AccountsExistResponse
type AccountsExistResponse struct {
	// default: false
	Exists bool `json:"exists"`
}

// NewAccountsExistHandler returns an HTTP handler reporting whether an account exists.
// @Summary Check whether an account exists
// @Description Lets a client decide between first-run registration and login
// @Tags auth
// @Produce json
// @Success 200 {object} handlers.AccountsExistResponse
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /auth/users/exists [get]
func NewAccountsExistHandler(svc AccountsExistChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exists, err := svc.AccountsExist(r.Context())
		if err != nil {
			writeInternalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AccountsExistResponse{Exists: exists})
	}
}
