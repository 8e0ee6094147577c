package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAllow_NilPrincipalDeniesEverything(t *testing.T) {
	actions := []Action{
		ActionCreateCase, ActionReadCase, ActionSubmitReview,
		ActionCloseReopenCase, ActionUpdateCase, ActionDeleteCase,
		ActionManageUsers, ActionManageSettings,
	}
	for _, a := range actions {
		if Allow(nil, a) {
			t.Errorf("nil principal should be denied %s", a)
		}
	}
}

func TestAllow_RoleTable(t *testing.T) {
	worker := &Principal{ID: 1, Role: RoleWorker}
	clinician := &Principal{ID: 2, Role: RoleClinician}
	admin := &Principal{ID: 3, Role: RoleAdmin}

	tests := []struct {
		action    Action
		worker    bool
		clinician bool
		admin     bool
	}{
		{ActionCreateCase, true, false, false},
		{ActionReadCase, true, true, true},
		{ActionSubmitReview, false, true, false},
		{ActionCloseReopenCase, true, true, false},
		{ActionDeleteCase, true, false, false},
		{ActionManageUsers, false, false, true},
		{ActionManageSettings, false, false, true},
	}

	for _, tc := range tests {
		if got := Allow(worker, tc.action); got != tc.worker {
			t.Errorf("worker %s: expected %v, got %v", tc.action, tc.worker, got)
		}
		if got := Allow(clinician, tc.action); got != tc.clinician {
			t.Errorf("clinician %s: expected %v, got %v", tc.action, tc.clinician, got)
		}
		if got := Allow(admin, tc.action); got != tc.admin {
			t.Errorf("admin %s: expected %v, got %v", tc.action, tc.admin, got)
		}
	}
}

func callWithRole(t *testing.T, mw echo.MiddlewareFunc, p *Principal) (int, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	err := h(c)
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return he.Code, err
		}
	}
	return rec.Code, err
}

func TestRequireRole_AllowsMatching(t *testing.T) {
	code, err := callWithRole(t, RequireRole(RoleClinician), &Principal{ID: 1, Role: RoleClinician})
	if err != nil || code != http.StatusOK {
		t.Errorf("expected 200, got %d (%v)", code, err)
	}
}

func TestRequireRole_RejectsOther(t *testing.T) {
	code, _ := callWithRole(t, RequireRole(RoleClinician), &Principal{ID: 1, Role: RoleWorker})
	if code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestRequireRole_NoAdminOverrideForCaseWork(t *testing.T) {
	code, _ := callWithRole(t, RequireRole(RoleWorker, RoleClinician), &Principal{ID: 1, Role: RoleAdmin})
	if code != http.StatusForbidden {
		t.Errorf("expected 403 for admin on case routes, got %d", code)
	}
}

func TestRequireRole_Unauthenticated(t *testing.T) {
	code, _ := callWithRole(t, RequireRole(RoleWorker), nil)
	if code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}
