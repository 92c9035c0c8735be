package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parkhive/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-auth-tests"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func authHandler() (http.Handler, *Identity) {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFrom(r.Context()); ok {
			seen = identity
		}
		w.WriteHeader(http.StatusOK)
	})
	return Auth(testSecret, log)(next), &seen
}

func TestAuthPassesAnonymousRequests(t *testing.T) {
	h, seen := authHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous request must pass through, got %d", rec.Code)
	}
	if seen.UserID != "" {
		t.Errorf("no identity expected, got %+v", seen)
	}
}

func TestAuthAcceptsCookieToken(t *testing.T) {
	h, seen := authHandler()

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"id":      "65f000000000000000000001",
		"isAdmin": true,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen.UserID != "65f000000000000000000001" || !seen.IsAdmin {
		t.Errorf("unexpected identity: %+v", seen)
	}
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	h, seen := authHandler()

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "65f000000000000000000002",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen.UserID != "65f000000000000000000002" || seen.IsAdmin {
		t.Errorf("unexpected identity: %+v", seen)
	}
}

func TestAuthRejectsBadSignature(t *testing.T) {
	h, _ := authHandler()

	token := signToken(t, "a-different-secret", jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "65f000000000000000000001",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	h, _ := authHandler()

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "65f000000000000000000001",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestAuthRejectsTokenWithoutSubject(t *testing.T) {
	h, _ := authHandler()

	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token without id claim, got %d", rec.Code)
	}
}
