package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/pneumo/pneumo/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

// ctxWith builds an echo context whose request carries the given principal.
func ctxWith(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, p *auth.Principal) echo.Context {
	req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	return e.NewContext(req, rec)
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

const createBody = `{"first_name":"Ada","surname":"Okafor","address":"1 Elm St","city":"Springfield","state":"IL","zip":"62704","dob":"1984-03-12","sex":"F","height":168,"weight":64,"blood_type":"O+","smoker_status":"never","alcohol_consumption":"rare","fever":true,"cough":true}`

func TestHandler_CreateCase(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(createBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := ctxWith(e, req, rec, worker)
	if err := h.CreateCase(c); err != nil { t.Fatalf("unexpected error: %v", err) }
	if rec.Code != http.StatusCreated { t.Errorf("expected 201, got %d", rec.Code) }

	var created Case
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.WorkerID != worker.ID { t.Errorf("worker_id = %d, want %d", created.WorkerID, worker.ID) }
}

func TestHandler_CreateCase_ForbiddenForClinician(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(createBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := ctxWith(e, req, httptest.NewRecorder(), clinician)
	err := h.CreateCase(c)
	if got := httpStatus(t, err); got != http.StatusForbidden { t.Errorf("expected 403, got %d", got) }
}

func TestHandler_CreateCase_MissingField(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"first_name":"Ada"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := ctxWith(e, req, httptest.NewRecorder(), worker)
	err := h.CreateCase(c)
	if got := httpStatus(t, err); got != http.StatusBadRequest { t.Errorf("expected 400, got %d", got) }
}

func seedCase(t *testing.T, h *Handler) *Case {
	t.Helper()
	c, err := h.svc.CreateCase(context.Background(), worker, validInput())
	if err != nil { t.Fatalf("seed: %v", err) }
	return c
}

func TestHandler_GetCase(t *testing.T) {
	h, e := newTestHandler()
	cs := seedCase(t, h)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := ctxWith(e, req, rec, clinician)
	c.SetParamNames("id"); c.SetParamValues(strconv.FormatInt(cs.ID, 10))
	if err := h.GetCase(c); err != nil { t.Fatalf("unexpected error: %v", err) }
	if rec.Code != http.StatusOK { t.Errorf("expected 200, got %d", rec.Code) }
}

func TestHandler_GetCase_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := ctxWith(e, req, httptest.NewRecorder(), worker)
	c.SetParamNames("id"); c.SetParamValues("999")
	err := h.GetCase(c)
	if got := httpStatus(t, err); got != http.StatusNotFound { t.Errorf("expected 404, got %d", got) }
}

func TestHandler_GetCase_BadID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := ctxWith(e, req, httptest.NewRecorder(), worker)
	c.SetParamNames("id"); c.SetParamValues("abc")
	err := h.GetCase(c)
	if got := httpStatus(t, err); got != http.StatusBadRequest { t.Errorf("expected 400, got %d", got) }
}

func TestHandler_SubmitReview(t *testing.T) {
	h, e := newTestHandler()
	cs := seedCase(t, h)
	h.svc.RecordClassification(context.Background(), cs.ID, true)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"confirmed":true,"note":"rll consolidation"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := ctxWith(e, req, rec, clinician)
	c.SetParamNames("id"); c.SetParamValues(strconv.FormatInt(cs.ID, 10))
	if err := h.SubmitReview(c); err != nil { t.Fatalf("unexpected error: %v", err) }
	if rec.Code != http.StatusOK { t.Errorf("expected 200, got %d", rec.Code) }

	var got Case
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ConditionConfirmed == nil || !*got.ConditionConfirmed { t.Error("expected confirmed verdict in response") }
}

func TestHandler_SubmitReview_ConfirmedRequired(t *testing.T) {
	h, e := newTestHandler()
	cs := seedCase(t, h)
	h.svc.RecordClassification(context.Background(), cs.ID, true)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"no verdict"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := ctxWith(e, req, httptest.NewRecorder(), clinician)
	c.SetParamNames("id"); c.SetParamValues(strconv.FormatInt(cs.ID, 10))
	err := h.SubmitReview(c)
	if got := httpStatus(t, err); got != http.StatusBadRequest { t.Errorf("expected 400, got %d", got) }
}

func TestHandler_SubmitReview_ConflictWhenNotQueued(t *testing.T) {
	h, e := newTestHandler()
	cs := seedCase(t, h)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"confirmed":false}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := ctxWith(e, req, httptest.NewRecorder(), clinician)
	c.SetParamNames("id"); c.SetParamValues(strconv.FormatInt(cs.ID, 10))
	err := h.SubmitReview(c)
	if got := httpStatus(t, err); got != http.StatusConflict { t.Errorf("expected 409, got %d", got) }
}

func TestHandler_CloseCase(t *testing.T) {
	h, e := newTestHandler()
	cs := seedCase(t, h)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := ctxWith(e, req, rec, worker)
	c.SetParamNames("id"); c.SetParamValues(strconv.FormatInt(cs.ID, 10))
	if err := h.CloseCase(c); err != nil { t.Fatalf("unexpected error: %v", err) }
	var got Case
	json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.CaseClosed { t.Error("expected closed case in response") }
}

func TestHandler_DeleteCase(t *testing.T) {
	h, e := newTestHandler()
	cs := seedCase(t, h)
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := ctxWith(e, req, rec, worker)
	c.SetParamNames("id"); c.SetParamValues(strconv.FormatInt(cs.ID, 10))
	if err := h.DeleteCase(c); err != nil { t.Fatalf("unexpected error: %v", err) }
	if rec.Code != http.StatusNoContent { t.Errorf("expected 204, got %d", rec.Code) }
}

func multipartUpload(t *testing.T, fileName string, content []byte) (io.Reader, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil { t.Fatalf("multipart: %v", err) }
	part.Write(content)
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestHandler_AttachImage(t *testing.T) {
	h, e := newTestHandler()
	cs := seedCase(t, h)
	body, contentType := multipartUpload(t, "xray.jpg", []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := ctxWith(e, req, rec, worker)
	c.SetParamNames("id"); c.SetParamValues(strconv.FormatInt(cs.ID, 10))
	if err := h.AttachImage(c); err != nil { t.Fatalf("unexpected error: %v", err) }
	var got Case
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ImageRef == nil { t.Error("expected image ref in response") }
}

func TestHandler_AttachImage_RejectsPNG(t *testing.T) {
	h, e := newTestHandler()
	cs := seedCase(t, h)
	body, contentType := multipartUpload(t, "scan.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	c := ctxWith(e, req, httptest.NewRecorder(), worker)
	c.SetParamNames("id"); c.SetParamValues(strconv.FormatInt(cs.ID, 10))
	err := h.AttachImage(c)
	if got := httpStatus(t, err); got != http.StatusBadRequest { t.Errorf("expected 400, got %d", got) }
}

func TestHandler_ListCases_Envelope(t *testing.T) {
	h, e := newTestHandler()
	seedCase(t, h)
	req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	rec := httptest.NewRecorder()
	c := ctxWith(e, req, rec, worker)
	if err := h.ListCases(c); err != nil { t.Fatalf("unexpected error: %v", err) }
	if rec.Code != http.StatusOK { t.Errorf("expected 200, got %d", rec.Code) }

	var resp struct {
		Data  []Case `json:"data"`
		Total int    `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 { t.Errorf("envelope = %+v", resp) }
}
