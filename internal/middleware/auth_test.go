package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/souschef/internal/logging"
)

func testLogger() *logging.Logger {
	l := logging.New("test", "debug", "json")
	l.SetOutput(io.Discard)
	return l
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", GetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", "", time.Hour)
	token, expires, err := issuer.Issue("acct-1", "cook@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expiry should be in the future: %v", expires)
	}
	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "acct-1" || claims.Email != "cook@example.com" || claims.Issuer != "souschef" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenIssuerRejectsWrongSecretAndExpired(t *testing.T) {
	good := NewTokenIssuer("secret", "souschef", time.Hour)
	other := NewTokenIssuer("other", "souschef", time.Hour)

	token, _, _ := other.Issue("acct-1", "")
	if _, err := good.Parse(token); err == nil {
		t.Fatalf("expected signature failure")
	}

	expired := NewTokenIssuer("secret", "souschef", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, _ = expired.Issue("acct-1", "")
	if _, err := good.Parse(token); err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestTokenIssuerRejectsOtherAlgorithms(t *testing.T) {
	issuer := NewTokenIssuer("secret", "souschef", time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Parse(signed); err == nil {
		t.Fatalf("expected none algorithm to be rejected")
	}
}

func TestAuthMiddlewareSkipPaths(t *testing.T) {
	m := NewAuthMiddleware(NewTokenIssuer("s", "", 0), testLogger(), []string{"/healthz"})
	rec := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthMiddlewareRejectsMissingAndMalformedHeaders(t *testing.T) {
	m := NewAuthMiddleware(NewTokenIssuer("s", "", 0), testLogger(), nil)
	handler := m.Handler(okHandler())

	cases := map[string]string{
		"missing":   "",
		"no bearer": "Token abc",
		"empty":     "Bearer ",
		"garbage":   "Bearer not-a-jwt",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/recipes", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestAuthMiddlewareSetsUserID(t *testing.T) {
	issuer := NewTokenIssuer("s", "", 0)
	token, _, _ := issuer.Issue("acct-7", "")
	handler := NewAuthMiddleware(issuer, testLogger(), nil).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/recipes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Header().Get("X-User") != "acct-7" {
		t.Fatalf("status=%d user=%q", rec.Code, rec.Header().Get("X-User"))
	}
}

func TestAuthMiddlewareAcceptsQueryTokenForWebsocket(t *testing.T) {
	issuer := NewTokenIssuer("s", "", 0)
	token, _, _ := issuer.Issue("acct-8", "")
	handler := NewAuthMiddleware(issuer, testLogger(), nil).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/live?access_token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("query token without upgrade should be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/live?access_token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-User") != "acct-8" {
		t.Fatalf("status=%d user=%q", rec.Code, rec.Header().Get("X-User"))
	}
}

func TestRequireUserID(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireUserID(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
