package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"rocinante/internal/alert"
)

type frontendLogRequest struct {
	Level      string `json:"level"`
	Message    string `json:"message"`
	MethodName string `json:"methodName"`
	Date       string `json:"date"`
}

// FrontendLogHandler lets the frontend push its errors into the backend
// log stream. Critical entries also go to the alert notifier.
func FrontendLogHandler(notifier alert.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req frontendLogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Message == "" {
			respondMessage(w, http.StatusBadRequest, "message required")
			return
		}

		if strings.EqualFold(req.Level, "critical") {
			slog.Error("frontend critical", "message", req.Message, "method", req.MethodName, "date", req.Date)
			notifier.Notify(r.Context(), alert.Event{
				Subject: "frontend critical error",
				Message: req.Message,
			})
		} else {
			slog.Error("frontend error", "message", req.Message, "method", req.MethodName, "date", req.Date)
		}

		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
