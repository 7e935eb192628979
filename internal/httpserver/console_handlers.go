package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"chatd/internal/service"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type consoleRequest struct {
	Command string `json:"command"`
}

type consoleResponse struct {
	Output []string `json:"output"`
}

func handleOnline(console Console) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := console.Online()
		writeJSON(w, http.StatusOK, map[string]any{"count": len(users), "users": users})
	}
}

func handleConsole(console Console, audit *service.AuditService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req consoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Command = strings.TrimSpace(req.Command)
		if req.Command == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "command is required"})
			return
		}

		audit.Record(r.Context(), CurrentOperator(r), "console", req.Command)
		out := console.ExecuteConsole(r.Context(), req.Command)
		if out == nil {
			out = []string{}
		}
		writeJSON(w, http.StatusOK, consoleResponse{Output: out})
	}
}

func handleAudit(audit *service.AuditService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultAuditLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = min(n, maxAuditLimit)
		}

		events, err := audit.Recent(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if events == nil {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}
