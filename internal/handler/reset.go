package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"rocinante/internal/service"
)

type resetRequestBody struct {
	Email string `json:"email"`
}

type resetConfirmBody struct {
	Code        string `json:"verificationCode"`
	NewPassword string `json:"newPassword"`
}

func RequestResetHandler(resetSvc *service.ResetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Email == "" {
			respondMessage(w, http.StatusBadRequest, "email required")
			return
		}

		if err := resetSvc.RequestReset(r.Context(), req.Email); err != nil {
			switch {
			case errors.Is(err, service.ErrUserNotFound):
				respondMessage(w, http.StatusNotFound, "email not found")
			default:
				slog.Error("password reset request failed", "error", err)
				respondMessage(w, http.StatusInternalServerError, "failed to send reset email")
			}
			return
		}

		respondMessage(w, http.StatusOK, "password reset email sent")
	}
}

func ConfirmResetHandler(resetSvc *service.ResetService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetConfirmBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Code == "" || req.NewPassword == "" {
			respondMessage(w, http.StatusBadRequest, "verificationCode and newPassword required")
			return
		}

		if err := resetSvc.ConfirmReset(r.Context(), req.Code, req.NewPassword); err != nil {
			switch {
			case errors.Is(err, service.ErrTokenInvalid):
				respondMessage(w, http.StatusBadRequest, "verification code invalid or expired")
			default:
				slog.Error("password reset failed", "error", err)
				respondMessage(w, http.StatusInternalServerError, "failed to reset password")
			}
			return
		}

		respondMessage(w, http.StatusOK, "password reset successfully")
	}
}
