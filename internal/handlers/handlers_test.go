package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/services"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

const testSecret = "s3cret"

type testApp struct {
	app    *fiber.App
	tenant *models.Tenant
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, models.EmailModeDraft)
	_, job := testutil.CreateJob(t, db)
	testutil.CreateApplication(t, db, tenant.ID, job.ID, true)

	auth := services.NewAuthGate(testSecret, repositories.NewTenantRepository(db))
	router := services.NewRouter().
		Register(models.ActionAnalyzeJob, func(ctx context.Context, exec *services.Execution, data json.RawMessage) (models.Outcome, error) {
			return models.NewOutcome("draft_saved", models.ModuleJobAnalysis).With("execution_id", exec.ID.String()), nil
		}).
		Register(models.ActionDispatchEmail, func(ctx context.Context, exec *services.Execution, data json.RawMessage) (models.Outcome, error) {
			return nil, errors.New("connection reset by peer")
		})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app.Group("/api/v1"),
		NewWebhookHandler(auth, router, time.Minute),
		NewExportHandler(auth, services.NewExportService(repositories.NewApplicationRepository(db))),
	)
	return &testApp{app: app, tenant: tenant}
}

func (a *testApp) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (a *testApp) webhook(secret, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(HeaderAutomationSecret, secret)
	req.Header.Set(HeaderTenantID, a.tenant.ID.String())
	return req
}

func decodeError(t *testing.T, body []byte) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	resp, body := a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestWebhookRoutesAction(t *testing.T) {
	a := newTestApp(t)
	resp, body := a.do(t, a.webhook(testSecret, `{"action":" analyze_job ","data":{"job_url":"https://jobs.example.com/1"}}`))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var outcome map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &outcome))
	assert.Equal(t, "draft_saved", outcome["status"])
	assert.NotEmpty(t, outcome["execution_id"])
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	a := newTestApp(t)
	resp, body := a.do(t, a.webhook("wrong", `{"action":"analyze_job","data":{}}`))

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errResp := decodeError(t, body)
	assert.Equal(t, http.StatusUnauthorized, errResp.StatusCode)
	assert.Equal(t, "error", errResp.Status)
	assert.Equal(t, "AuthError", errResp.ErrorType)
	assert.Equal(t, "Unauthorized", errResp.Reason)
}

func TestWebhookUnknownAction(t *testing.T) {
	a := newTestApp(t)
	resp, body := a.do(t, a.webhook(testSecret, `{"action":"launch_rockets","data":{}}`))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decodeError(t, body)
	assert.Equal(t, "ValidationError", errResp.ErrorType)
	assert.Equal(t, "UnknownAction", errResp.Reason)
}

func TestWebhookMalformedBody(t *testing.T) {
	a := newTestApp(t)
	resp, body := a.do(t, a.webhook(testSecret, `{"action":`))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidPayload", decodeError(t, body).Reason)
}

func TestWebhookHidesUntypedErrors(t *testing.T) {
	a := newTestApp(t)
	resp, body := a.do(t, a.webhook(testSecret, `{"action":"dispatch_email","data":{}}`))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	errResp := decodeError(t, body)
	assert.Equal(t, "internal server error", errResp.Message)
	assert.NotContains(t, string(body), "connection reset")
}

func TestExportReturnsWorkbook(t *testing.T) {
	a := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications/export", nil)
	req.Header.Set(HeaderAutomationSecret, testSecret)
	req.Header.Set(HeaderTenantID, a.tenant.ID.String())

	resp, body := a.do(t, req)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment; filename=")
	// xlsx is a zip archive
	assert.True(t, strings.HasPrefix(string(body), "PK"))
}

func TestExportRequiresTenant(t *testing.T) {
	a := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications/export", nil)
	req.Header.Set(HeaderAutomationSecret, testSecret)
	req.Header.Set(HeaderTenantID, "not-a-uuid")

	resp, body := a.do(t, req)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "TenantNotFound", decodeError(t, body).Reason)
}
