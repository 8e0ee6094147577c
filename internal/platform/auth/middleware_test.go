package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 15*time.Minute, 24*time.Hour)
	pair, err := issuer.Issue(42, RoleClinician)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Principal
	h := JWTMiddleware(testSecret)(func(c echo.Context) error {
		got = PrincipalFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected principal in context")
	}
	if got.ID != 42 || got.Role != RoleClinician {
		t.Errorf("unexpected principal: %+v", got)
	}
}

func TestTokenIssuer_ParseRefresh(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 15*time.Minute, 24*time.Hour)
	pair, err := issuer.Issue(7, RoleWorker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	uid, err := issuer.ParseRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != 7 {
		t.Errorf("expected user 7, got %d", uid)
	}
}

func TestJWTMiddleware_NoHeaderLeavesUnauthenticated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTMiddleware(testSecret)(func(c echo.Context) error {
		if PrincipalFromContext(c.Request().Context()) != nil {
			t.Error("expected no principal without a token")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_RejectsGarbageToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTMiddleware(testSecret)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("another-secret-another-secret-xx", 15*time.Minute, time.Hour)
	pair, _ := issuer.Issue(1, RoleWorker)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTMiddleware(testSecret)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestDevAuthMiddleware_DefaultsToAdmin(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := DevAuthMiddleware()(func(c echo.Context) error {
		p := PrincipalFromContext(c.Request().Context())
		if p == nil || p.Role != RoleAdmin {
			t.Errorf("expected admin principal, got %+v", p)
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDevAuthMiddleware_RoleOverride(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-Role", "worker")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := DevAuthMiddleware()(func(c echo.Context) error {
		p := PrincipalFromContext(c.Request().Context())
		if p == nil || p.Role != RoleWorker {
			t.Errorf("expected worker principal, got %+v", p)
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
