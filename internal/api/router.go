package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/api/recovery"
	"github.com/zym9863/Dream-s-Exit/internal/services"
)

// Deps are the collaborators the router wires to handlers.
type Deps struct {
	Memories  *services.MemoryService
	Echoes    *services.EchoService
	IsHealthy func() bool
	Log       zerolog.Logger
}

// NewRouter wires HTTP routes to handlers.
func NewRouter(d Deps) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware(d.Log))
	root.Use(Metrics)

	memory := NewMemoryHandler(d.Memories, d.Log)
	root.HandleFunc("/api/memories", memory.ListMemories).Methods("GET")
	root.HandleFunc("/api/memories", memory.CreateMemory).Methods("POST")
	root.HandleFunc("/api/memories/{id}", memory.GetMemory).Methods("GET")
	root.HandleFunc("/api/memories/{id}", memory.UpdateMemory).Methods("PUT")
	root.HandleFunc("/api/memories/{id}", memory.DeleteMemory).Methods("DELETE")

	echo := NewEchoHandler(d.Echoes, d.Log)
	root.HandleFunc("/api/echoes", echo.ListEchoes).Methods("GET")
	root.HandleFunc("/api/echoes", echo.CreateEcho).Methods("POST")

	// Health
	healthHandler := NewHealthHandler(d.IsHealthy)
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	root.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return root
}
