package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func okHandler(called *bool, subject *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if subject != nil {
			*subject, _ = SubjectFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_PassThroughWhenUnconfigured(t *testing.T) {
	called := false
	handler := Middleware(NewJWTValidator("", ""), zap.NewNop())(okHandler(&called, nil))

	req := httptest.NewRequest(http.MethodPut, "/fees/treasury", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMiddleware_MissingToken(t *testing.T) {
	called := false
	validator := NewJWTValidator("http://localhost/jwks", "")
	handler := Middleware(validator, zap.NewNop())(okHandler(&called, nil))

	req := httptest.NewRequest(http.MethodPut, "/fees/treasury", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Fatal("next handler called without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	var got struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Error != "missing bearer token" {
		t.Errorf("error = %q, want missing bearer token", got.Error)
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	key := testKey(t)
	server := newJWKSServer(t, key, "test-key")
	validator := NewJWTValidator(server.URL, "test-issuer")

	called := false
	handler := Middleware(validator, zap.NewNop())(okHandler(&called, nil))

	req := httptest.NewRequest(http.MethodPut, "/fees/treasury", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Fatal("next handler called with an invalid token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestMiddleware_ValidTokenSetsSubject(t *testing.T) {
	key := testKey(t)
	server := newJWKSServer(t, key, "test-key")
	validator := NewJWTValidator(server.URL, "test-issuer")

	signed := signToken(t, key, "test-key", jwt.MapClaims{
		"iss": "test-issuer",
		"sub": "ops@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	called := false
	var subject string
	handler := Middleware(validator, zap.NewNop())(okHandler(&called, &subject))

	req := httptest.NewRequest(http.MethodPut, "/fees/treasury", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("next handler not called: %s", rec.Body.String())
	}
	if subject != "ops@example.com" {
		t.Errorf("subject = %q, want ops@example.com", subject)
	}
}
