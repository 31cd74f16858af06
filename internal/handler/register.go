package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"rocinante/internal/service"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func RegisterHandler(authSvc *service.AuthService, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid json")
			return
		}

		if req.Username == "" || req.Email == "" || req.Password == "" {
			respondMessage(w, http.StatusBadRequest, "username, email and password required")
			return
		}

		user, err := authSvc.Register(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrEmailTaken):
				respondMessage(w, http.StatusConflict, "email already in use")
			default:
				slog.Error("register failed", "error", err)
				respondMessage(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		token, err := issueToken(user.ID, secret)
		if err != nil {
			respondMessage(w, http.StatusInternalServerError, "token generation failed")
			return
		}

		w.Header().Set("Authorization", "Bearer "+token)
		respondJSON(w, http.StatusCreated, loginResponse{Message: "registered successfully", Token: token})
	}
}
