package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rocinante/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

func LoginHandler(authSvc *service.AuthService, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(w, http.StatusBadRequest, "invalid json")
			return
		}

		user, err := authSvc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidCredentials):
				respondMessage(w, http.StatusUnauthorized, "invalid email or password")
			default:
				slog.Error("login failed", "error", err)
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
		respondJSON(w, http.StatusOK, loginResponse{Message: "logged in successfully", Token: token})
	}
}

// LogoutHandler exists for the frontend's sake: tokens are stateless, so
// logging out is discarding the token client-side.
func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusOK, "logged out successfully")
	}
}

func issueToken(userID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	return token.SignedString([]byte(secret))
}
