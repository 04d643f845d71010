package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"torno/internal/logging"
	"torno/internal/repository"
	"torno/internal/services"
	"torno/pkg/models"
)

func newTestAPI(t *testing.T) (*echo.Echo, *services.EnrichmentService) {
	return newTestAPIWithExecutor(t, nil)
}

func newTestAPIWithExecutor(t *testing.T, executor services.ModelClient) (*echo.Echo, *services.EnrichmentService) {
	t.Helper()
	svc := services.NewEnrichmentService(repository.NewMemoryRepository(), executor, logging.NewLogger())

	e := echo.New()
	server := NewServer(svc, logging.NewLogger())
	e.GET("/health", server.HandleHealth)
	RegisterHandlers(e.Group("/api/v1"), server)
	return e, svc
}

// stubExecutor returns a canned result or error without any network.
type stubExecutor struct {
	result map[string]any
	err    error
}

func (s *stubExecutor) Run(ctx context.Context, version *models.EnrichmentVersion, input map[string]any) (map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seedSummarizer(t *testing.T, svc *services.EnrichmentService) *models.EnrichmentVersion {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Register(ctx, "summarizer", "summarizes text", nil)
	require.NoError(t, err)

	version, err := svc.CreateVersion(ctx, "summarizer", models.VersionConfig{
		Prompt: "Summarize: {text}",
		Model:  "gpt-4",
		InputSchema: models.MustSchema(
			map[string]models.FieldType{"text": models.FieldText}, []string{"text"}, nil),
		OutputSchema: models.MustSchema(
			map[string]models.FieldType{"summary": models.FieldText}, []string{"summary"}, nil),
	})
	require.NoError(t, err)
	return version
}

func TestHandleHealth(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "torno", status.Service)
}

func TestRegisterEnrichment(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/enrichments",
		`{"name":"summarizer","description":"summarizes text"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var def models.EnrichmentDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))
	assert.Equal(t, "summarizer", def.Name)
	assert.Equal(t, models.EnrichmentDraft, def.Status)
}

func TestRegisterEnrichmentDuplicate(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/enrichments", `{"name":"summarizer"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/enrichments", `{"name":"summarizer"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/problem+json")
}

func TestRegisterEnrichmentMissingName(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/enrichments", `{"description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateVersionAndGet(t *testing.T) {
	e, svc := newTestAPI(t)
	seedSummarizer(t, svc)

	rec := doJSON(e, http.MethodPost, "/api/v1/enrichments/summarizer/versions", `{
		"prompt": "Summarize briefly: {text}",
		"model": "gpt-4",
		"input_schema": {"fields": {"text": "Text"}, "required": ["text"]},
		"output_schema": {"fields": {"summary": "Text"}, "required": ["summary"]}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var version models.EnrichmentVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
	assert.Len(t, version.VersionID, 12)

	rec = doJSON(e, http.MethodGet, "/api/v1/enrichments/summarizer/versions/"+version.VersionID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/enrichments/summarizer/versions/ffffffffffff", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateVersionBadSchema(t *testing.T) {
	e, svc := newTestAPI(t)
	seedSummarizer(t, svc)

	rec := doJSON(e, http.MethodPost, "/api/v1/enrichments/summarizer/versions", `{
		"prompt": "x",
		"model": "gpt-4",
		"input_schema": {"fields": {"text": "Str"}},
		"output_schema": {"fields": {}}
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueJob(t *testing.T) {
	e, svc := newTestAPI(t)
	version := seedSummarizer(t, svc)

	rec := doJSON(e, http.MethodPost, "/api/v1/jobs",
		`{"dataset_id":"ds-1","enrichment":"summarizer","input":{"text":"hello"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var job models.EnrichmentJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, version.VersionID, job.EnrichmentVersion)
}

func TestQueueJobInvalidInput(t *testing.T) {
	e, svc := newTestAPI(t)
	seedSummarizer(t, svc)

	rec := doJSON(e, http.MethodPost, "/api/v1/jobs",
		`{"dataset_id":"ds-1","enrichment":"summarizer","input":{"text":42}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []models.EnrichmentJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Empty(t, jobs, "invalid input must not create a job record")
}

func TestQueueJobUnknownEnrichment(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/jobs",
		`{"dataset_id":"ds-1","enrichment":"nope","input":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateJobIllegalTransition(t *testing.T) {
	e, svc := newTestAPI(t)
	seedSummarizer(t, svc)

	job, err := svc.QueueJob(context.Background(), "ds-1", "summarizer", map[string]any{"text": "hi"}, "")
	require.NoError(t, err)

	rec := doJSON(e, http.MethodPatch, "/api/v1/jobs/"+job.JobID, `{"status":"completed"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestJobLifecycleViaAPI(t *testing.T) {
	e, svc := newTestAPI(t)
	seedSummarizer(t, svc)

	job, err := svc.QueueJob(context.Background(), "ds-1", "summarizer", map[string]any{"text": "hi"}, "")
	require.NoError(t, err)

	rec := doJSON(e, http.MethodPatch, "/api/v1/jobs/"+job.JobID, `{"status":"running"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPatch, "/api/v1/jobs/"+job.JobID,
		`{"status":"completed","result":{"summary":"done"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.EnrichmentJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, models.JobCompleted, updated.Status)
	assert.Equal(t, "done", updated.Result["summary"])
	assert.NotNil(t, updated.CompletedAt)
}

func TestUpdateJobInvalidOutput(t *testing.T) {
	e, svc := newTestAPI(t)
	seedSummarizer(t, svc)
	ctx := context.Background()

	job, err := svc.QueueJob(ctx, "ds-1", "summarizer", map[string]any{"text": "hi"}, "")
	require.NoError(t, err)
	running := models.JobRunning
	_, err = svc.UpdateJob(ctx, job.JobID, &running, nil, nil)
	require.NoError(t, err)

	rec := doJSON(e, http.MethodPatch, "/api/v1/jobs/"+job.JobID,
		`{"status":"completed","result":{"summary":7}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCancelJob(t *testing.T) {
	e, svc := newTestAPI(t)
	seedSummarizer(t, svc)

	job, err := svc.QueueJob(context.Background(), "ds-1", "summarizer", map[string]any{"text": "hi"}, "")
	require.NoError(t, err)

	rec := doJSON(e, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecuteJobReturnsFailedRecord(t *testing.T) {
	e, svc := newTestAPIWithExecutor(t, &stubExecutor{err: errors.New("model unavailable")})
	seedSummarizer(t, svc)

	job, err := svc.QueueJob(context.Background(), "ds-1", "summarizer", map[string]any{"text": "hi"}, "")
	require.NoError(t, err)

	// The run happened and failed, so the handler serves the FAILED
	// record with 200 rather than a problem response.
	rec := doJSON(e, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var failed models.EnrichmentJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, models.JobFailed, failed.Status)
	assert.Contains(t, failed.Error, "model unavailable")
}

func TestExecuteJobTerminalJobConflicts(t *testing.T) {
	e, svc := newTestAPIWithExecutor(t, &stubExecutor{result: map[string]any{"summary": "short"}})
	seedSummarizer(t, svc)

	job, err := svc.QueueJob(context.Background(), "ds-1", "summarizer", map[string]any{"text": "hi"}, "")
	require.NoError(t, err)

	rec := doJSON(e, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Executing a job already in a terminal state never runs; that is a
	// lifecycle violation, not a failed run.
	rec = doJSON(e, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/execute", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecuteJobNotFound(t *testing.T) {
	e, _ := newTestAPIWithExecutor(t, &stubExecutor{})

	rec := doJSON(e, http.MethodPost, "/api/v1/jobs/missing/execute", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/jobs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, http.StatusNotFound, problem.Status)
}

func TestFeatureEndpoints(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(e, http.MethodPut, "/api/v1/features/ds-1/summarizer", `{"summary":"v1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(e, http.MethodPut, "/api/v1/features/ds-1/summarizer", `{"summary":"v2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/features/ds-1/summarizer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "v2", payload["summary"])

	rec = doJSON(e, http.MethodGet, "/api/v1/features/ds-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/features/ds-unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
