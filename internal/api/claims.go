package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/lostfound"
)

// ClaimsHandler handles claim endpoints.
type ClaimsHandler struct {
	Registry *lostfound.Registry
}

type decisionRequest struct {
	Action string `json:"action"`
	Note   string `json:"note"`
}

// Create handles POST /api/claims.
func (h *ClaimsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req lostfound.ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Student = GetClaims(r.Context()).Username

	claim, err := h.Registry.FileClaim(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, claim)
}

// List handles GET /api/claims.
func (h *ClaimsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Registry.ListClaims(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, claims)
}

// Get handles GET /api/claims/{id}.
func (h *ClaimsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "claim")
	if err != nil {
		writeError(w, r, err)
		return
	}

	claim, err := h.Registry.GetClaim(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}

// Decide handles POST /api/claims/{id}/decision.
func (h *ClaimsHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "claim")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	admin := GetClaims(r.Context()).Username
	claim, err := h.Registry.DecideClaim(r.Context(), id, req.Action, admin, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}
