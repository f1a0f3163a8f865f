package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/config"
	"meridian/internal/db"
	"meridian/internal/engine"
	"meridian/internal/metrics"
	"meridian/internal/migrate"
	"meridian/internal/publish"
)

const testSecret = "test-secret"

var legacyActor = map[string]string{"X-Actor-Id": "tester"}

type testServer struct {
	*httptest.Server
	Engine    engine.Engine
	Published *publish.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	_, err := db.EnsureWorkspace(workspace)
	require.NoError(t, err)
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)

	clock := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	mem := &publish.Memory{}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return clock }
	e.Publisher = mem
	e.Metrics = metrics.New()

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowLegacyActorHeader: true},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return &testServer{Server: srv, Engine: e, Published: mem}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func profileBody() map[string]any {
	return map[string]any{
		"work_type":        "delivery",
		"deadline_nature":  "business_driven",
		"deliverable_type": "built_solution",
		"budget_exposure":  "approved_internal",
		"dependency_level": "self_contained",
		"risk_level":       "low",
		"phase":            "in_flight",
		"update_frequency": "weekly",
		"audience":         "my_team",
	}
}

func createWorkstream(t *testing.T, srv *testServer, name string, withProfile bool) WorkstreamResponse {
	t.Helper()
	body := map[string]any{
		"name":           name,
		"start_date":     "2025-01-01",
		"end_date":       "2025-01-31",
		"planned_budget": 10000,
	}
	if withProfile {
		body["profile"] = profileBody()
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/workstreams", body, legacyActor)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var w WorkstreamResponse
	require.NoError(t, json.Unmarshal(data, &w))
	return w
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env.Error
}

func TestHealthWithoutAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), `"ok"`)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/portfolio", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, data).Code)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/portfolio", nil, map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", decodeError(t, data).Code)
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/workstreams", map[string]any{
		"name":       "Billing revamp",
		"start_date": "2025-01-01",
		"end_date":   "2025-01-31",
	}, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var w WorkstreamResponse
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Equal(t, "alice", w.OwnerID)
}

func TestWorkstreamScoringFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	w := createWorkstream(t, srv, "Data platform", true)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/workstreams/"+w.ID+"/score", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var score ScoreResponse
	require.NoError(t, json.Unmarshal(data, &score))
	assert.Equal(t, 100.0, score.CompositeScore)
	assert.Equal(t, "green", score.RAGStatus)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workstreams/"+w.ID+"/blockers", map[string]any{
		"description": "Vendor contract unsigned",
		"date_raised": "2025-01-06",
	}, legacyActor)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var blocker BlockerResponse
	require.NoError(t, json.Unmarshal(data, &blocker))
	assert.Equal(t, "open", blocker.Status)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workstreams/"+w.ID+"/score", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(data, &score))
	assert.Less(t, score.BlockerScore, 100.0)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/blockers/"+blocker.ID+"/resolve", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/blockers/"+blocker.ID+"/resolve", nil, legacyActor)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workstreams/"+w.ID+"/history", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var history []SnapshotResponse
	require.NoError(t, json.Unmarshal(data, &history))
	require.Len(t, history, 3)
	assert.Equal(t, 100.0, history[0].CompositeScore)
	assert.Equal(t, 100.0, history[2].CompositeScore)

	assert.Len(t, srv.Published.Snapshots(), 3)
}

func TestUnconfiguredWorkstream(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	w := createWorkstream(t, srv, "Research", false)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workstreams/"+w.ID+"/score/recalculate", nil, legacyActor)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	errBody := decodeError(t, data)
	assert.Equal(t, "not_configured", errBody.Code)
	assert.Equal(t, "profile", errBody.Details["field"])

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workstreams/"+w.ID+"/score", nil, legacyActor)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	bad := profileBody()
	bad["risk_level"] = "extreme"
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/workstreams/"+w.ID+"/profile", bad, legacyActor)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	errBody = decodeError(t, data)
	assert.Equal(t, "not_configured", errBody.Code)
	assert.Equal(t, "risk_level", errBody.Details["field"])
	assert.Equal(t, "extreme", errBody.Details["value"])

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/workstreams/"+w.ID+"/profile", profileBody(), legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var profile ProfileResponse
	require.NoError(t, json.Unmarshal(data, &profile))
	assert.Equal(t, "in_flight", profile.Answers["phase"])

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workstreams/"+w.ID+"/score", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workstreams", map[string]any{
		"name":       "Backwards",
		"start_date": "2025-02-01",
		"end_date":   "2025-01-01",
	}, legacyActor)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "bad_request", decodeError(t, data).Code)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workstreams/missing", nil, legacyActor)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	assert.Equal(t, "not_found", decodeError(t, data).Code)

	w := createWorkstream(t, srv, "History", true)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workstreams/"+w.ID+"/history?since=yesterday", nil, legacyActor)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestPortfolioAndOverdue(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	healthy := createWorkstream(t, srv, "Healthy", true)
	late := createWorkstream(t, srv, "Late", true)
	createWorkstream(t, srv, "Unscored", false)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workstreams/"+late.ID+"/milestones", map[string]any{
		"name":     "Design sign-off",
		"due_date": "2025-01-10",
	}, legacyActor)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/milestones/overdue", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var overdue []OverdueMilestoneResponse
	require.NoError(t, json.Unmarshal(data, &overdue))
	require.Len(t, overdue, 1)
	assert.Equal(t, "Late", overdue[0].WorkstreamName)
	assert.Equal(t, 6, overdue[0].DaysOverdue)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/portfolio", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var portfolio PortfolioResponse
	require.NoError(t, json.Unmarshal(data, &portfolio))
	require.Len(t, portfolio.Items, 3)
	assert.Equal(t, 3, portfolio.Summary.Total)
	assert.Equal(t, 1, portfolio.Summary.Unscored)
	assert.Equal(t, late.ID, portfolio.Items[0].Workstream.ID)
	assert.Equal(t, healthy.ID, portfolio.Items[1].Workstream.ID)
	assert.Nil(t, portfolio.Items[2].Score)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/sweep", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var sweep engine.SweepResult
	require.NoError(t, json.Unmarshal(data, &sweep))
	assert.Equal(t, 2, sweep.Evaluated)
	assert.Equal(t, 1, sweep.NotConfigured)
}

func TestEventsAndWizard(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	w := createWorkstream(t, srv, "Audit", true)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?workstream_id="+w.ID+"&type=workstream.create", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var evts []EventResponse
	require.NoError(t, json.Unmarshal(data, &evts))
	require.Len(t, evts, 1)
	assert.Equal(t, "Audit", evts[0].Payload["name"])
	assert.Equal(t, "tester", evts[0].ActorID)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/wizard", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var questions []QuestionResponse
	require.NoError(t, json.Unmarshal(data, &questions))
	require.Len(t, questions, 9)
	assert.Equal(t, "work_type", questions[0].Field)
}

func TestMetricsAndOpenAPI(t *testing.T) {
	srv := newTestServer(t)
	createWorkstream(t, srv, "Observed", true)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "meridian_http_requests_total")
	assert.Contains(t, string(data), "meridian_evaluations_total")

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, legacyActor)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.Contains(string(data), "bearerAuth"))
	assert.Contains(t, string(data), "/v0/workstreams/{workstream_id}/score")
}

func TestHandleErrorPassthrough(t *testing.T) {
	se := handleError(context.DeadlineExceeded)
	assert.Equal(t, http.StatusServiceUnavailable, se.GetStatus())
	assert.Nil(t, handleError(nil))
}
