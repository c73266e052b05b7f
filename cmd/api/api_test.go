package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.uber.org/zap"

	"staffops/internal/app"
	"staffops/internal/assistant"
	"staffops/internal/config"
	"staffops/internal/modal"
	"staffops/internal/store"
	"staffops/internal/workflows"
)

func newTestRouter(t *testing.T, rv *reviews) (http.Handler, *store.FileStore) {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	doc := modal.NewCompanyRecords("acme")
	doc.Clients = []modal.Client{{ID: "1", Name: "ABC Storage", WeeklyHours: 40, HourlyRate: 20, Status: modal.ClientActive}}
	require.NoError(t, s.Save(context.Background(), doc))

	p := app.NewPipeline(config.Default(), s, nil, zap.NewNop())
	h := &handlers{assistant: p.Assistant, proposals: p.Proposals, store: s, logger: zap.NewNop()}
	return newRouter(h, rv), s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestProposeAndConfirmOverHTTP(t *testing.T) {
	h, s := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/actions", map[string]any{
		"companyId":  "acme",
		"ownerId":    "u1",
		"actionType": "add_module",
		"payload":    map[string]any{"module": map[string]any{"name": "Patrol Log"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proposed assistant.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proposed))
	require.Equal(t, assistant.ReplyProposed, proposed.Kind)
	require.NotNil(t, proposed.Action)

	rec = do(t, h, http.MethodGet, "/actions?ownerId=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []modal.PendingAction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)

	rec = do(t, h, http.MethodPost, "/messages", map[string]any{"ownerId": "u1", "text": "yes"})
	require.Equal(t, http.StatusOK, rec.Code)
	var executed assistant.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executed))
	assert.Equal(t, assistant.ReplyExecuted, executed.Kind)

	doc, err := s.Load(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, doc.PlatformModules, 1)
	assert.Equal(t, "Patrol Log", doc.PlatformModules[0].Name)

	rec = do(t, h, http.MethodGet, "/actions/"+proposed.Action.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view actionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, modal.StatusExecuted, view.Action.Status)
	assert.Len(t, view.Audit, 3)
}

func TestBadRequests(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/actions", map[string]any{"companyId": "acme", "actionType": "launch_rocket"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/actions", map[string]any{
		"companyId":  "acme",
		"actionType": "add_module",
		"payload":    "not an object",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/messages", map[string]any{"ownerId": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/entities/vehicles/resolve?companyId=acme&q=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteUnapprovedIsConflict(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(t, h, http.MethodPost, "/actions", map[string]any{
		"companyId":  "acme",
		"ownerId":    "u1",
		"actionType": "add_module",
		"payload":    map[string]any{"module": map[string]any{"name": "Patrol Log"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var proposed assistant.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proposed))

	rec = do(t, h, http.MethodPost, "/actions/"+proposed.Action.ID+"/execute", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResolveEntityOverHTTP(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := do(t, h, http.MethodGet, "/entities/clients/resolve?companyId=acme&q=abc%20storage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"1"`)

	rec = do(t, h, http.MethodGet, "/entities/clients/resolve?companyId=acme&q=Zebra%20Yards", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateChangeProposesReprice(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(t, h, http.MethodPost, "/rate-changes", map[string]any{"companyId": "acme", "ownerId": "u1", "client": "ABC Storage", "rate": 25})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var r assistant.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	require.NotNil(t, r.Action)
	require.NotNil(t, r.Action.Derived)
	assert.InDelta(t, 4330.0, r.Action.Derived.Revenue.MonthlyRevenue, 0.001)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(modal.ErrEntityNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(modal.ErrNotApproved))
	assert.Equal(t, http.StatusConflict, statusFor(store.ErrConflict))
	assert.Equal(t, http.StatusBadRequest, statusFor(modal.ErrInvalidPayload))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.DeadlineExceeded))
}

func TestStartReviewUsesActionScopedWorkflowID(t *testing.T) {
	tc := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("review-x")
	run.On("GetRunID").Return("run-1")

	var started workflows.ReviewRequest
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			opts := args.Get(1).(client.StartWorkflowOptions)
			assert.Equal(t, workflows.TaskQueue, opts.TaskQueue)
			started = args.Get(3).(workflows.ReviewRequest)
			assert.Equal(t, "review-"+started.Action.ID, opts.ID)
		}).
		Return(run, nil)

	h, _ := newTestRouter(t, &reviews{tc: tc, taskQueue: workflows.TaskQueue})
	rec := do(t, h, http.MethodPost, "/reviews/start", map[string]any{
		"companyId":  "acme",
		"ownerId":    "u1",
		"actionType": "delete_client",
		"payload":    map[string]any{"clientId": "1", "clientName": "ABC Storage"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp startResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, started.Action.ID, resp.ActionID)
	assert.Equal(t, modal.ActionDeleteClient, started.Action.Type)
	tc.AssertExpectations(t)
}

func TestReviewDecisionSignalsWorkflow(t *testing.T) {
	tc := &mocks.Client{}
	tc.On("SignalWorkflow", mock.Anything, "review-a1", "", workflows.ActionDecisionSignal, mock.MatchedBy(func(d modal.ActionDecision) bool {
		return d.ActionID == "a1" && d.Outcome == modal.OutcomeApproved && d.Decider == "back-office" && !d.DecidedAt.IsZero()
	})).Return(nil)

	h, _ := newTestRouter(t, &reviews{tc: tc, taskQueue: workflows.TaskQueue})
	rec := do(t, h, http.MethodPost, "/reviews/review-a1/decision", map[string]any{"actionId": "a1", "outcome": "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/reviews/review-a1/decision", map[string]any{"actionId": "a1", "outcome": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	tc.AssertExpectations(t)
}
