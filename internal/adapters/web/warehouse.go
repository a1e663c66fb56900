package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"warehouse-ops/internal/app"
	"warehouse-ops/internal/core"
)

// actor is safe to call behind RequireAuth.
func actor(r *http.Request) core.Actor {
	a, _ := actorFromContext(r.Context())
	return a
}

// ── Bins ──────────────────────────────────────────────────────────────────────

func (h *Handler) listBins(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListBins(r.Context(), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) validateBin(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.ValidateBin(r.Context(), actor(r), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

func (h *Handler) binContents(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.BinContents(r.Context(), actor(r), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Scans ─────────────────────────────────────────────────────────────────────

func (h *Handler) putaway(w http.ResponseWriter, r *http.Request) {
	var req app.PutawayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Putaway(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) pickup(w http.ResponseWriter, r *http.Request) {
	var req app.ScanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Pickup(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req app.DispatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Dispatch(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) dispatchSingle(w http.ResponseWriter, r *http.Request) {
	var req app.ScanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.DispatchSingle(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Batches ───────────────────────────────────────────────────────────────────

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req app.AssignRequest
	file, ok := h.decodeBodyOrUpload(w, r, &req)
	if !ok {
		return
	}
	if file != nil {
		req.File = file
		req.Target = r.FormValue("target")
	}
	res, err := h.svc.Assign(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// reconcile accepts {tracking_ids, mode, intent} or a multipart "file" with
// mode and intent as form fields.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var req app.ReconcileRequest
	file, ok := h.decodeBodyOrUpload(w, r, &req)
	if !ok {
		return
	}
	if file != nil {
		req.File = file
		req.Mode = r.FormValue("mode")
		req.Intent = r.FormValue("intent")
	}
	res, err := h.svc.Reconcile(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListManifestReports(r.Context(), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) picklist(w http.ResponseWriter, r *http.Request) {
	var req app.PicklistRequest
	file, ok := h.decodeBodyOrUpload(w, r, &req)
	if !ok {
		return
	}
	req.File = file
	res, err := h.svc.LookupPicklist(r.Context(), actor(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (h *Handler) searchShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := h.svc.SearchShipment(r.Context(), actor(r), strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sh)
}

func (h *Handler) listOperators(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListOperators(r.Context(), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.WarehouseStats(r.Context(), actor(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
