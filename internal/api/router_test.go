package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/topiclab/mastery/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	topics, err := store.NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return NewApp(topics, nil, zap.NewNop())
}

func doJSON(t *testing.T, app *App, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func ingestBody(statement string) map[string]any {
	return map[string]any{
		"stage":     1,
		"criterion": "can explain forward P/E",
		"summary":   "Notes on forward multiples.",
		"claims": []map[string]any{
			{
				"statement":      statement,
				"confidence":     0.9,
				"source_label":   "Damodaran",
				"source_kind":    "book",
				"predicate_tags": []string{"explain"},
			},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	rec := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestIngestAndGetTopic(t *testing.T) {
	app := newTestApp(t)

	rec := doJSON(t, app, http.MethodPost, "/v1/topics/forward_pe_ratio/ingest",
		ingestBody("forward pe divides price by expected earnings"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		State          string `json:"state"`
		ClaimsAccepted int    `json:"claims_accepted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 1, result.ClaimsAccepted)
	require.Equal(t, "can_explain", result.State)

	rec = doJSON(t, app, http.MethodGet, "/v1/topics/forward_pe_ratio/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var topic struct {
		Record struct {
			TopicID string  `json:"topic_id"`
			Score   float64 `json:"score"`
		} `json:"record"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topic))
	require.Equal(t, "forward_pe_ratio", topic.Record.TopicID)
	require.Equal(t, "can_explain", topic.State)
}

func TestGetMissingTopicReturns404(t *testing.T) {
	app := newTestApp(t)
	rec := doJSON(t, app, http.MethodGet, "/v1/topics/never_written/", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestWithoutClaimsReturns400(t *testing.T) {
	app := newTestApp(t)
	rec := doJSON(t, app, http.MethodPost, "/v1/topics/forward_pe_ratio/ingest",
		map[string]any{"stage": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBearerAuthGuardsV1Routes(t *testing.T) {
	t.Setenv("API_TOKEN", "sekret")
	app := newTestApp(t)

	rec := doJSON(t, app, http.MethodGet, "/v1/curriculum/progress", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/curriculum/progress", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/curriculum/progress", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCurriculumEndpoints(t *testing.T) {
	app := newTestApp(t)

	rec := doJSON(t, app, http.MethodPost, "/v1/topics/forward_pe_ratio/ingest",
		ingestBody("forward pe divides price by expected earnings"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, app, http.MethodGet, "/v1/curriculum/stages/1/gaps", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gaps struct {
		Stage int                 `json:"stage"`
		Gaps  map[string][]string `json:"gaps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gaps))
	require.Equal(t, 1, gaps.Stage)
	require.Contains(t, gaps.Gaps, "forward_pe_ratio")

	rec = doJSON(t, app, http.MethodGet, "/v1/curriculum/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var progress map[string]struct {
		Topics int `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	require.Equal(t, 1, progress["1"].Topics)
}
