package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/partner-server-go/internal/auth"
	"github.com/prepwise/partner-server-go/internal/model"
)

type mockVerifier struct {
	verifyFunc func(token string) (*auth.Principal, error)
}

func (m *mockVerifier) Verify(token string) (*auth.Principal, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(token)
	}
	return nil, auth.ErrInvalidToken
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Code
}

func TestAuthMiddleware(t *testing.T) {
	partner := &auth.Principal{UserID: "partner-1", AccountType: model.AccountTypePartner}
	verifier := &mockVerifier{
		verifyFunc: func(token string) (*auth.Principal, error) {
			switch token {
			case "good":
				return partner, nil
			case "old":
				return nil, auth.ErrExpiredToken
			}
			return nil, errors.Join(auth.ErrInvalidToken, errors.New("bad signature"))
		},
	}
	mw := NewAuthMiddleware(verifier)

	var seen *auth.Principal
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("rejects missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeErrorCode(t, rec))
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "INVALID_TOKEN", decodeErrorCode(t, rec))
	})

	t.Run("reports expired token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
		req.Header.Set("Authorization", "Bearer old")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_EXPIRED", decodeErrorCode(t, rec))
	})

	t.Run("attaches principal from bearer header", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/v1/candidates", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, partner, seen)
	})

	t.Run("accepts query token on GET only", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/v1/notifications/events?access_token=good", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, partner, seen)

		req = httptest.NewRequest(http.MethodPost, "/v1/candidates?access_token=good", nil)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAccountType(t *testing.T) {
	handler := RequireAccountType(model.AccountTypePartner, model.AccountTypeAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	tests := []struct {
		name      string
		principal *auth.Principal
		want      int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"candidate forbidden", &auth.Principal{UserID: "c1", AccountType: model.AccountTypeCandidate}, http.StatusForbidden},
		{"partner allowed", &auth.Principal{UserID: "p1", AccountType: model.AccountTypePartner}, http.StatusNoContent},
		{"admin allowed", &auth.Principal{UserID: "a1", AccountType: model.AccountTypeAdmin}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
