package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/api/respond"
	"github.com/zym9863/Dream-s-Exit/internal/model"
	"github.com/zym9863/Dream-s-Exit/internal/services"
)

const (
	// OwnerHeader carries the caller's local identity on memory writes.
	OwnerHeader = "X-Dreams-Owner"
	// RowsAffectedHeader reports how many rows a delete removed.
	RowsAffectedHeader = "X-Rows-Affected"

	maxBodyBytes = 64 << 10
)

type MemoryHandler struct {
	svc *services.MemoryService
	log zerolog.Logger
}

func NewMemoryHandler(svc *services.MemoryService, log zerolog.Logger) *MemoryHandler {
	return &MemoryHandler{svc: svc, log: log}
}

// ListMemories GET /api/memories
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"memories": out, "count": len(out)})
}

// CreateMemory POST /api/memories
func (h *MemoryHandler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var in model.MemoryFields
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := h.svc.Create(r.Context(), r.Header.Get(OwnerHeader), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// GetMemory GET /api/memories/{id}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UpdateMemory PUT /api/memories/{id}
func (h *MemoryHandler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	var in model.MemoryFields
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeleteMemory DELETE /api/memories/{id}
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set(RowsAffectedHeader, strconv.FormatInt(n, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemoryHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(h.log, r, err)
	respond.WriteServiceError(w, err)
}

// decodeBody reads a bounded JSON body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return false
	}
	return true
}

// logFailure keeps client mistakes at debug and backend failures at error.
func logFailure(log zerolog.Logger, r *http.Request, err error) {
	status := respond.StatusFor(err)
	ev := log.Error()
	if status < http.StatusInternalServerError {
		ev = log.Debug()
	}
	ev.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
}
