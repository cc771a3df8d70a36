package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/api/respond"
	"github.com/zym9863/Dream-s-Exit/internal/services"
)

// EchoView is a listed echo with its remaining-time text.
type EchoView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Remaining string    `json:"remaining"`
}

type EchoHandler struct {
	svc *services.EchoService
	log zerolog.Logger
}

func NewEchoHandler(svc *services.EchoService, log zerolog.Logger) *EchoHandler {
	return &EchoHandler{svc: svc, log: log}
}

// ListEchoes GET /api/echoes
func (h *EchoHandler) ListEchoes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		logFailure(h.log, r, err)
		respond.WriteServiceError(w, err)
		return
	}
	now := h.svc.Now()
	out := make([]EchoView, 0, len(list))
	for _, e := range list {
		out = append(out, EchoView{
			ID:        e.ID,
			Content:   e.Content,
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
			Remaining: services.Remaining(now, e.ExpiresAt),
		})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"echoes": out, "count": len(out)})
}

// CreateEcho POST /api/echoes
func (h *EchoHandler) CreateEcho(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := h.svc.Create(r.Context(), in.Content)
	if err != nil {
		logFailure(h.log, r, err)
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}
