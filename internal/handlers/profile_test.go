package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/watertemp-auth/internal/models"
	"github.com/sbilibin2017/watertemp-auth/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestGetProfileHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockProfileGetter(ctrl)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		mockSetup    func()
		expectedCode int
		expectedBody string
	}{
		{
			name: "success",
			mockSetup: func() {
				mockSvc.EXPECT().GetProfile(gomock.Any(), int64(1)).Return(&models.Account{
					ID:           1,
					Username:     "alice",
					PasswordHash: "$2a$10$hash",
					Email:        strPtr("alice@example.com"),
					CreatedAt:    created,
				}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"id":1,"userName":"alice","email":"alice@example.com","hasProfilePicture":false,"createdAt":"2024-05-01T12:00:00Z"}`,
		},
		{
			name: "account gone",
			mockSetup: func() {
				mockSvc.EXPECT().GetProfile(gomock.Any(), int64(1)).Return(nil, services.ErrAccountNotFound)
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"Account not found"}`,
		},
		{
			name: "internal error",
			mockSetup: func() {
				mockSvc.EXPECT().GetProfile(gomock.Any(), int64(1)).Return(nil, errors.New("db down"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := serveAuthenticated(t, NewGetProfileHandler(mockSvc), http.MethodGet, "/api/auth/profile", nil, 1)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestGetProfileHandler_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSvc := NewMockProfileGetter(ctrl)

	rr := httptest.NewRecorder()
	NewGetProfileHandler(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateProfileHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockProfileUpdater(ctrl)

	tests := []struct {
		name         string
		inputBody    any
		mockSetup    func()
		expectedCode int
		expectedBody string
	}{
		{
			name: "success with cleared fields",
			inputBody: UpdateProfileRequest{
				Email:          strPtr("new@example.com"),
				FirstName:      strPtr(""),
				LastName:       strPtr(" Smith "),
				ProfilePicture: strPtr("data:image/png;base64,AAAA"),
			},
			mockSetup: func() {
				mockSvc.EXPECT().
					UpdateProfile(gomock.Any(), int64(1), models.ProfileUpdate{
						Email:          strPtr("new@example.com"),
						LastName:       strPtr("Smith"),
						ProfilePicture: strPtr("data:image/png;base64,AAAA"),
					}).
					Return(&models.Account{
						ID:             1,
						Username:       "alice",
						Email:          strPtr("new@example.com"),
						LastName:       strPtr("Smith"),
						ProfilePicture: strPtr("data:image/png;base64,AAAA"),
						CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"id":1,"userName":"alice","email":"new@example.com","lastName":"Smith","hasProfilePicture":true,"profilePicture":"data:image/png;base64,AAAA","createdAt":"2024-05-01T12:00:00Z"}`,
		},
		{
			name: "picture kept untrimmed",
			inputBody: UpdateProfileRequest{
				FirstName:      strPtr(" Alice "),
				ProfilePicture: strPtr(" pic-ref "),
			},
			mockSetup: func() {
				mockSvc.EXPECT().
					UpdateProfile(gomock.Any(), int64(1), models.ProfileUpdate{
						FirstName:      strPtr("Alice"),
						ProfilePicture: strPtr(" pic-ref "),
					}).
					Return(&models.Account{
						ID:             1,
						Username:       "alice",
						FirstName:      strPtr("Alice"),
						ProfilePicture: strPtr(" pic-ref "),
						CreatedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"id":1,"userName":"alice","firstName":"Alice","hasProfilePicture":true,"profilePicture":" pic-ref ","createdAt":"2024-05-01T12:00:00Z"}`,
		},
		{
			name:      "blank picture cleared",
			inputBody: UpdateProfileRequest{ProfilePicture: strPtr("   ")},
			mockSetup: func() {
				mockSvc.EXPECT().
					UpdateProfile(gomock.Any(), int64(1), models.ProfileUpdate{}).
					Return(&models.Account{
						ID:        1,
						Username:  "alice",
						CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"id":1,"userName":"alice","hasProfilePicture":false,"createdAt":"2024-05-01T12:00:00Z"}`,
		},
		{
			name:         "invalid JSON",
			inputBody:    "{",
			mockSetup:    func() {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid request body"}`,
		},
		{
			name:      "invalid email",
			inputBody: UpdateProfileRequest{Email: strPtr("broken@")},
			mockSetup: func() {
				mockSvc.EXPECT().
					UpdateProfile(gomock.Any(), int64(1), gomock.Any()).
					Return(nil, &services.ValidationError{Message: "Invalid email format"})
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Invalid email format"}`,
		},
		{
			name:      "email taken",
			inputBody: UpdateProfileRequest{Email: strPtr("taken@example.com")},
			mockSetup: func() {
				mockSvc.EXPECT().
					UpdateProfile(gomock.Any(), int64(1), gomock.Any()).
					Return(nil, services.ErrEmailAlreadyInUse)
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"error":"Email already in use"}`,
		},
		{
			name:      "account gone",
			inputBody: UpdateProfileRequest{},
			mockSetup: func() {
				mockSvc.EXPECT().
					UpdateProfile(gomock.Any(), int64(1), gomock.Any()).
					Return(nil, services.ErrAccountNotFound)
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"Account not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			rr := serveAuthenticated(t, NewUpdateProfileHandler(mockSvc), http.MethodPut, "/api/auth/profile", tt.inputBody, 1)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
		})
	}
}
