package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rit-atlas/atlas/internal/auth"
)

// stubVerifier accepts exactly one token string.
type stubVerifier struct {
	token     string
	principal *auth.Principal
}

func (v *stubVerifier) VerifyAccessToken(token string) (*auth.Principal, error) {
	if token == v.token {
		return v.principal, nil
	}
	return nil, errors.New("bad token")
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{
		token: "good-token",
		principal: &auth.Principal{
			ID:    "user-1",
			Perms: auth.NewPermissionSet(auth.PermApproveSpots),
		},
	}
}

func principalEcho(captured **auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func assertAuthFailed(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body %q: %v", rec.Body.String(), err)
	}
	if body.Error.Code != "auth_failed" {
		t.Errorf("error code = %q", body.Error.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	verifier := newStubVerifier()

	t.Run("valid token", func(t *testing.T) {
		var captured *auth.Principal
		handler := RequireAuth(verifier)(principalEcho(&captured))

		req := httptest.NewRequest(http.MethodPost, "/spots", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if captured == nil || captured.ID != "user-1" {
			t.Errorf("principal = %+v", captured)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		var captured *auth.Principal
		handler := RequireAuth(verifier)(principalEcho(&captured))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/spots", nil))
		assertAuthFailed(t, rec)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		var captured *auth.Principal
		handler := RequireAuth(verifier)(principalEcho(&captured))

		req := httptest.NewRequest(http.MethodPost, "/spots", nil)
		req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assertAuthFailed(t, rec)
	})

	t.Run("invalid token", func(t *testing.T) {
		var captured *auth.Principal
		handler := RequireAuth(verifier)(principalEcho(&captured))

		req := httptest.NewRequest(http.MethodPost, "/spots", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assertAuthFailed(t, rec)
	})
}

func TestOptionalAuth(t *testing.T) {
	verifier := newStubVerifier()

	t.Run("absent token proceeds anonymously", func(t *testing.T) {
		var captured *auth.Principal
		handler := OptionalAuth(verifier)(principalEcho(&captured))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spots", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if captured != nil {
			t.Errorf("principal = %+v, want nil", captured)
		}
	})

	t.Run("valid token attaches principal", func(t *testing.T) {
		var captured *auth.Principal
		handler := OptionalAuth(verifier)(principalEcho(&captured))

		req := httptest.NewRequest(http.MethodGet, "/spots", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if captured == nil || captured.ID != "user-1" {
			t.Errorf("principal = %+v", captured)
		}
	})

	t.Run("invalid token is rejected, not downgraded", func(t *testing.T) {
		var captured *auth.Principal
		handler := OptionalAuth(verifier)(principalEcho(&captured))

		req := httptest.NewRequest(http.MethodGet, "/spots", nil)
		req.Header.Set("Authorization", "Bearer expired")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assertAuthFailed(t, rec)
	})
}

func TestGetPrincipalMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/spots", nil)
	if p := GetPrincipal(req.Context()); p != nil {
		t.Errorf("principal = %+v, want nil", p)
	}
}
