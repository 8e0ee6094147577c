package screening

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pneumo/pneumo/internal/domain/classify"
	"github.com/pneumo/pneumo/internal/platform/auth"
	"github.com/pneumo/pneumo/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleWorker, auth.RoleClinician, auth.RoleAdmin))
	read.GET("/cases", h.ListCases)
	read.GET("/cases/pending-review", h.ListPendingReview)
	read.GET("/cases/reviewed", h.ListReviewed)
	read.GET("/cases/confirmed", h.ListConfirmed)
	read.GET("/cases/ai-suspected", h.ListAISuspected)
	read.GET("/cases/closed", h.ListClosed)
	read.GET("/cases/:id", h.GetCase)
	read.GET("/cases/:id/image", h.GetImage)

	worker := api.Group("", auth.RequireRole(auth.RoleWorker))
	worker.POST("/cases", h.CreateCase)
	worker.GET("/cases/follow-ups", h.ListFollowUps)
	worker.DELETE("/cases/:id", h.DeleteCase)

	edit := api.Group("", auth.RequireRole(auth.RoleWorker, auth.RoleClinician))
	edit.PATCH("/cases/:id", h.UpdateCase)
	edit.POST("/cases/:id/image", h.AttachImage)
	edit.POST("/cases/:id/close", h.CloseCase)
	edit.POST("/cases/:id/reopen", h.ReopenCase)

	clinician := api.Group("", auth.RequireRole(auth.RoleClinician))
	clinician.POST("/cases/:id/review", h.SubmitReview)
}

// httpError maps domain errors onto HTTP status codes. Internal failure
// detail stays out of responses.
func httpError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var ae *AuthorizationError
	if errors.As(err, &ae) {
		return echo.NewHTTPError(http.StatusForbidden, ae.Error())
	}
	var se *InvalidStateError
	if errors.As(err, &se) {
		return echo.NewHTTPError(http.StatusConflict, se.Error())
	}
	if errors.Is(err, ErrCaseNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	}
	var ce *classify.Error
	if errors.As(err, &ce) {
		return echo.NewHTTPError(http.StatusBadGateway, "classification unavailable, try again later")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func caseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	return id, nil
}

func principal(c echo.Context) *auth.Principal {
	return auth.PrincipalFromContext(c.Request().Context())
}

func query(c echo.Context) Query {
	pg := pagination.FromContext(c)
	workerID, _ := strconv.ParseInt(c.QueryParam("worker_id"), 10, 64)
	return Query{
		Search:   c.QueryParam("search"),
		WorkerID: workerID,
		Limit:    pg.Limit,
		Offset:   pg.Offset,
	}
}

func (h *Handler) CreateCase(c echo.Context) error {
	var in CreateCaseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateCase(c.Request().Context(), principal(c), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	cs, err := h.svc.GetCase(c.Request().Context(), principal(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) UpdateCase(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var patch CasePatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, err := h.svc.UpdateCase(c.Request().Context(), principal(c), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) AttachImage(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	cs, err := h.svc.AttachImage(c.Request().Context(), principal(c), id, file.Filename, src)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) GetImage(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	rc, meta, err := h.svc.OpenImage(c.Request().Context(), principal(c), id)
	if err != nil {
		return httpError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", `inline; filename="`+meta.FileName+`"`)
	return c.Stream(http.StatusOK, "image/jpeg", rc)
}

type reviewRequest struct {
	Confirmed *bool   `json:"confirmed"`
	Note      *string `json:"note,omitempty"`
}

func (h *Handler) SubmitReview(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Confirmed == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "confirmed is required")
	}
	cs, err := h.svc.SubmitClinicianReview(c.Request().Context(), principal(c), id, *req.Confirmed, req.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) CloseCase(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	cs, err := h.svc.CloseCase(c.Request().Context(), principal(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) ReopenCase(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	cs, err := h.svc.ReopenCase(c.Request().Context(), principal(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) DeleteCase(c echo.Context) error {
	id, err := caseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCase(c.Request().Context(), principal(c), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCases(c echo.Context) error {
	return h.list(c, h.svc.ListCases)
}

func (h *Handler) ListPendingReview(c echo.Context) error {
	return h.list(c, h.svc.ListPendingReview)
}

func (h *Handler) ListReviewed(c echo.Context) error {
	return h.list(c, h.svc.ListReviewed)
}

func (h *Handler) ListConfirmed(c echo.Context) error {
	return h.list(c, h.svc.ListConfirmed)
}

func (h *Handler) ListAISuspected(c echo.Context) error {
	return h.list(c, h.svc.ListAISuspected)
}

func (h *Handler) ListClosed(c echo.Context) error {
	return h.list(c, h.svc.ListClosed)
}

func (h *Handler) ListFollowUps(c echo.Context) error {
	return h.list(c, h.svc.ListFollowUps)
}

func (h *Handler) list(c echo.Context, fn func(ctx context.Context, p *auth.Principal, q Query) ([]*Case, int, error)) error {
	q := query(c)
	items, total, err := fn(c.Request().Context(), principal(c), q)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Case{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, q.Limit, q.Offset))
}
