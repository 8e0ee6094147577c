package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Action names an operation subject to role gating.
type Action string

const (
	ActionCreateCase      Action = "create_case"
	ActionReadCase        Action = "read_case"
	ActionSubmitReview    Action = "submit_clinician_review"
	ActionCloseReopenCase Action = "close_reopen_case"
	ActionUpdateCase      Action = "update_case"
	ActionDeleteCase      Action = "delete_case"
	ActionManageUsers     Action = "manage_users"
	ActionManageSettings  Action = "manage_settings"
)

// permissions is the fixed role→action table. Admin manages users and
// settings but does not touch cases; workers own intake and closure;
// clinicians own review. There is no resource-level ownership check: review
// queues are shared pools, not per-clinician assignments.
var permissions = map[Action]map[Role]bool{
	ActionCreateCase:      {RoleWorker: true},
	ActionReadCase:        {RoleWorker: true, RoleClinician: true, RoleAdmin: true},
	ActionSubmitReview:    {RoleClinician: true},
	ActionCloseReopenCase: {RoleWorker: true, RoleClinician: true},
	ActionUpdateCase:      {RoleWorker: true, RoleClinician: true},
	ActionDeleteCase:      {RoleWorker: true},
	ActionManageUsers:     {RoleAdmin: true},
	ActionManageSettings:  {RoleAdmin: true},
}

// Allow reports whether the principal may perform the action. A nil principal
// denies everything.
func Allow(p *Principal, action Action) bool {
	if p == nil {
		return false
	}
	return permissions[action][p.Role]
}

// RequireRole returns middleware that rejects requests whose principal does
// not hold one of the given roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
