// Package api exposes the running session to operators: gRPC health checks
// and an HTTP admin surface that also accepts WebSocket players.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/beka-birhanu/keymaze/logging"
	"github.com/beka-birhanu/keymaze/service"
	"github.com/beka-birhanu/keymaze/service/i"
	general_i "github.com/beka-birhanu/vinom-common/interfaces/general"
)

type admin struct {
	session i.SessionServer
	logger  general_i.Logger
}

// NewHandler returns the admin mux. ws, when not nil, is mounted on /ws.
//
//	GET  /healthz      liveness
//	GET  /metrics      session counters
//	GET  /admin/keys   players, keys and win state
//	POST /admin/keys   {"row":r,"col":c} toggles a key
func NewHandler(session i.SessionServer, ws http.Handler, logger general_i.Logger) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	a := &admin{session: session, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.healthz)
	mux.HandleFunc("/metrics", a.metrics)
	mux.HandleFunc("/admin/keys", a.keys)
	if ws != nil {
		mux.Handle("/ws", ws)
	}
	return mux
}

func (a *admin) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *admin) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.session.Metrics())
}

func (a *admin) keys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		st, err := a.session.Status(r.Context())
		if err != nil {
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodPost:
		var body struct {
			Row *int `json:"row"`
			Col *int `json:"col"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Row == nil || body.Col == nil {
			http.Error(w, "invalid json, want {\"row\":r,\"col\":c}", http.StatusBadRequest)
			return
		}
		added, err := a.session.ToggleKey(r.Context(), *body.Row, *body.Col)
		if err != nil {
			a.fail(w, err)
			return
		}
		a.logger.Info(fmt.Sprintf("key toggled at (%d, %d), added=%v", *body.Row, *body.Col, added))
		writeJSON(w, http.StatusOK, map[string]any{"added": added})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *admin) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCellOutOfMaze):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrSessionOver):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		a.logger.Error(fmt.Sprintf("admin request: %v", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
