package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"staffops/internal/modal"
	"staffops/internal/workflows"
)

// reviews exposes the durable back-office review path backed by the
// ReviewAction workflow.
type reviews struct {
	tc        client.Client
	taskQueue string
	maxAge    time.Duration
}

type startReviewReq struct {
	CompanyID  string           `json:"companyId"`
	OwnerID    string           `json:"ownerId"`
	ActionType modal.ActionType `json:"actionType"`
	Payload    json.RawMessage  `json:"payload"`
}

type startResp struct {
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId"`
	ActionID   string `json:"actionId"`
}

type reviewRow struct {
	WorkflowID string               `json:"workflowId"`
	RunID      string               `json:"runId"`
	Action     *modal.PendingAction `json:"action,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func (s *reviews) register(r chi.Router) {
	r.Post("/reviews/start", s.start)
	r.Get("/reviews", s.list)
	r.Get("/reviews/{workflowId}/action", s.action)
	r.Get("/reviews/{workflowId}/audit", s.audit)
	r.Post("/reviews/{workflowId}/decision", s.decide)
}

func (s *reviews) start(w http.ResponseWriter, r *http.Request) {
	var req startReviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CompanyID == "" || req.ActionType == "" {
		http.Error(w, "invalid body: {\"companyId\":\"...\",\"actionType\":\"...\",\"payload\":{...}}", http.StatusBadRequest)
		return
	}
	payload, err := modal.DecodePayload(req.ActionType, req.Payload)
	if err == nil {
		err = payload.Validate()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	action := modal.PendingAction{
		ID:        uuid.NewString(),
		Type:      payload.ActionType(),
		Payload:   payload,
		Status:    modal.StatusPending,
		CompanyID: req.CompanyID,
		OwnerID:   req.OwnerID,
		CreatedAt: time.Now().UTC(),
	}
	// One review per action; a duplicate start is rejected by Temporal.
	opts := client.StartWorkflowOptions{
		ID:                                       "review-" + action.ID,
		TaskQueue:                                s.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	we, err := s.tc.ExecuteWorkflow(ctx, opts, workflows.ReviewAction, workflows.ReviewRequest{Action: action, MaxAge: s.maxAge})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, startResp{WorkflowID: we.GetID(), RunID: we.GetRunID(), ActionID: action.ID})
}

// list returns running reviews with their pending action. A failed query is
// reported on its row instead of failing the whole listing.
func (s *reviews) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	resp, err := s.tc.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
		Query:    `WorkflowType = "ReviewAction" AND ExecutionStatus = "Running"`,
		PageSize: 200,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rows := make([]reviewRow, 0, len(resp.Executions))
	for _, ex := range resp.Executions {
		if ex.Execution == nil {
			continue
		}
		row := reviewRow{WorkflowID: ex.Execution.WorkflowId, RunID: ex.Execution.RunId}
		a, err := s.queryAction(ctx, row.WorkflowID, row.RunID)
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Action = &a
		}
		rows = append(rows, row)
	}
	writeJSON(w, rows)
}

func (s *reviews) action(w http.ResponseWriter, r *http.Request) {
	a, err := s.queryAction(r.Context(), chi.URLParam(r, "workflowId"), r.URL.Query().Get("runId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, a)
}

func (s *reviews) audit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	qr, err := s.tc.QueryWorkflow(ctx, chi.URLParam(r, "workflowId"), r.URL.Query().Get("runId"), workflows.QueryAuditLog)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var events []modal.AuditEvent
	if err := qr.Get(&events); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (s *reviews) decide(w http.ResponseWriter, r *http.Request) {
	var d modal.ActionDecision
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d.ActionID == "" || !d.Outcome.Valid() {
		http.Error(w, "invalid body: {\"actionId\":\"...\",\"outcome\":\"approved|rejected\",\"notes\":\"...\",\"decider\":\"...\"}", http.StatusBadRequest)
		return
	}
	if d.Decider == "" {
		d.Decider = "back-office"
	}
	d.DecidedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.tc.SignalWorkflow(ctx, chi.URLParam(r, "workflowId"), r.URL.Query().Get("runId"), workflows.ActionDecisionSignal, d); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *reviews) queryAction(ctx context.Context, wid, rid string) (modal.PendingAction, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	qr, err := s.tc.QueryWorkflow(cctx, wid, rid, workflows.QueryPendingAction)
	if err != nil {
		return modal.PendingAction{}, err
	}
	var a modal.PendingAction
	return a, qr.Get(&a)
}
