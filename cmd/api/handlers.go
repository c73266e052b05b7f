package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"staffops/internal/assistant"
	"staffops/internal/modal"
	"staffops/internal/proposals"
	"staffops/internal/resolver"
	"staffops/internal/store"
)

type handlers struct {
	assistant *assistant.Assistant
	proposals *proposals.Manager
	store     store.Store
	logger    *zap.Logger
}

type proposeReq struct {
	CompanyID  string           `json:"companyId"`
	OwnerID    string           `json:"ownerId"`
	ActionType modal.ActionType `json:"actionType"`
	Payload    json.RawMessage  `json:"payload"`
}

type messageReq struct {
	OwnerID string `json:"ownerId"`
	Text    string `json:"text"`
}

type correctionReq struct {
	OwnerID  string `json:"ownerId"`
	Text     string `json:"text"`
	ActionID string `json:"actionId,omitempty"`
}

type deletionReq struct {
	CompanyID  string `json:"companyId"`
	OwnerID    string `json:"ownerId"`
	Collection string `json:"collection"`
	Message    string `json:"message"`
	Identifier string `json:"identifier,omitempty"`
}

type rateChangeReq struct {
	CompanyID string  `json:"companyId"`
	OwnerID   string  `json:"ownerId"`
	Client    string  `json:"client"`
	Rate      float64 `json:"rate"`
}

type statusChangeReq struct {
	CompanyID string `json:"companyId"`
	OwnerID   string `json:"ownerId"`
	Employee  string `json:"employee"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

type actionView struct {
	Action modal.PendingAction `json:"action"`
	Audit  []modal.AuditEvent  `json:"audit"`
}

func newRouter(h *handlers, rv *reviews) http.Handler {
	r := chi.NewRouter()

	r.Post("/actions", h.propose)
	r.Get("/actions", h.listPending)
	r.Get("/actions/{actionId}", h.getAction)
	r.Post("/actions/{actionId}/execute", h.execute)
	r.Post("/messages", h.message)
	r.Post("/corrections", h.correct)
	r.Post("/deletions", h.requestDeletion)
	r.Post("/rate-changes", h.requestRateChange)
	r.Post("/status-changes", h.requestStatusChange)
	r.Get("/entities/{collection}/resolve", h.resolveEntity)
	r.Get("/companies/{companyId}/backups", h.listBackups)

	if rv != nil {
		rv.register(r)
	}
	return r
}

func (h *handlers) propose(w http.ResponseWriter, r *http.Request) {
	var req proposeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CompanyID == "" || req.ActionType == "" {
		http.Error(w, "invalid body: {\"companyId\":\"...\",\"ownerId\":\"...\",\"actionType\":\"...\",\"payload\":{...}}", http.StatusBadRequest)
		return
	}
	payload, err := modal.DecodePayload(req.ActionType, req.Payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	reply, err := h.assistant.ProposeAction(r.Context(), req.CompanyID, req.OwnerID, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, reply)
}

func (h *handlers) listPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.proposals.Pending(r.URL.Query().Get("ownerId")))
}

func (h *handlers) getAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "actionId")
	a, ok := h.proposals.Get(id)
	if !ok {
		http.Error(w, "action not found", http.StatusNotFound)
		return
	}
	writeJSON(w, actionView{Action: a, Audit: h.proposals.Audit(id)})
}

func (h *handlers) execute(w http.ResponseWriter, r *http.Request) {
	res, err := h.assistant.ExecuteApproved(r.Context(), chi.URLParam(r, "actionId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *handlers) message(w http.ResponseWriter, r *http.Request) {
	var req messageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "invalid body: {\"ownerId\":\"...\",\"text\":\"...\"}", http.StatusBadRequest)
		return
	}
	reply, err := h.assistant.ResolveMessage(r.Context(), req.OwnerID, req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, reply)
}

func (h *handlers) correct(w http.ResponseWriter, r *http.Request) {
	var req correctionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "invalid body: {\"ownerId\":\"...\",\"text\":\"...\",\"actionId\":\"...\"}", http.StatusBadRequest)
		return
	}
	reply, err := h.assistant.ApplyCorrection(r.Context(), req.OwnerID, req.Text, req.ActionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, reply)
}

func (h *handlers) requestDeletion(w http.ResponseWriter, r *http.Request) {
	var req deletionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CompanyID == "" {
		http.Error(w, "invalid body: {\"companyId\":\"...\",\"collection\":\"modules\",\"message\":\"...\"}", http.StatusBadRequest)
		return
	}
	collection, ok := modal.ParseCollection(req.Collection)
	if !ok {
		http.Error(w, "unknown collection "+req.Collection, http.StatusBadRequest)
		return
	}
	reply, err := h.assistant.RequestDeletion(r.Context(), req.CompanyID, req.OwnerID, collection, req.Message, req.Identifier)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, reply)
}

func (h *handlers) requestRateChange(w http.ResponseWriter, r *http.Request) {
	var req rateChangeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CompanyID == "" || req.Client == "" {
		http.Error(w, "invalid body: {\"companyId\":\"...\",\"client\":\"...\",\"rate\":25}", http.StatusBadRequest)
		return
	}
	reply, err := h.assistant.RequestRateChange(r.Context(), req.CompanyID, req.OwnerID, req.Client, req.Rate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, reply)
}

func (h *handlers) requestStatusChange(w http.ResponseWriter, r *http.Request) {
	var req statusChangeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CompanyID == "" || req.Employee == "" {
		http.Error(w, "invalid body: {\"companyId\":\"...\",\"employee\":\"...\",\"status\":\"terminated\"}", http.StatusBadRequest)
		return
	}
	reply, err := h.assistant.RequestStatusChange(r.Context(), req.CompanyID, req.OwnerID, req.Employee, req.Status, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, reply)
}

func (h *handlers) resolveEntity(w http.ResponseWriter, r *http.Request) {
	collection, ok := modal.ParseCollection(chi.URLParam(r, "collection"))
	if !ok {
		http.Error(w, "unknown collection", http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	if q.Get("companyId") == "" || q.Get("q") == "" {
		http.Error(w, "companyId and q are required", http.StatusBadRequest)
		return
	}
	m, err := h.assistant.ResolveEntity(r.Context(), q.Get("companyId"), collection, q.Get("q"))
	if err != nil {
		var nf *resolver.NotFoundError
		if errors.As(err, &nf) {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"error": nf.Error(), "suggestions": nf.Suggestions})
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, m)
}

func (h *handlers) listBackups(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")
	if err := store.ValidateCompanyID(companyID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.store.ListBackups(r.Context(), companyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	type backupView struct {
		modal.Backup
		Verified bool `json:"verified"`
	}
	out := make([]backupView, 0, len(list))
	for _, b := range list {
		out = append(out, backupView{Backup: b, Verified: store.VerifyBackup(b) == nil})
	}
	writeJSON(w, out)
}

func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, modal.ErrEntityNotFound), errors.Is(err, modal.ErrNoPendingAction):
		return http.StatusNotFound
	case errors.Is(err, modal.ErrNotPending), errors.Is(err, modal.ErrNotApproved), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, modal.ErrInvalidPayload), errors.Is(err, modal.ErrUnsupportedActionType),
		errors.Is(err, modal.ErrNoChanges), errors.Is(err, modal.ErrAmbiguousIntent):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
