package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sbilibin2017/watertemp-auth/internal/jwt"
	"github.com/sbilibin2017/watertemp-auth/internal/middlewares"
	"github.com/sbilibin2017/watertemp-auth/internal/models"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func strPtr(s string) *string { return &s }

// serveAuthenticated runs h behind the auth middleware with a token issued for account id.
func serveAuthenticated(t *testing.T, h http.Handler, method, target string, body any, id int64) *httptest.ResponseRecorder {
	t.Helper()

	tokens, err := jwt.New(jwt.WithSecretKey(testSecret))
	require.NoError(t, err)
	token, err := tokens.Generate(context.Background(), &models.Account{ID: id, Username: "alice"})
	require.NoError(t, err)

	req := newJSONRequest(t, method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	middlewares.AuthMiddleware(tokens)(h).ServeHTTP(rr, req)
	return rr
}

func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	return httptest.NewRequest(method, target, &buf)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}
