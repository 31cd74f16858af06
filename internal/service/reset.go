package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rocinante/internal/mail"
	"rocinante/internal/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrTokenInvalid = errors.New("verification code invalid or expired")
)

// ResetService issues and consumes single-use password reset codes.
type ResetService struct {
	db        *sql.DB
	mailer    *mail.Mailer
	resetLink string
}

func NewResetService(db *sql.DB, mailer *mail.Mailer, resetLink string) *ResetService {
	return &ResetService{db: db, mailer: mailer, resetLink: resetLink}
}

// RequestReset issues a reset code for the account behind the given email
// and mails it. A delivery failure is logged but does not invalidate the
// issued code.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, code) VALUES ($1, $2, $3)`,
		uuid.NewString(), userID, code,
	)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	body := fmt.Sprintf("Clique no link para redefinir sua senha: %s. Seu código de verificação é: %s", s.resetLink, code)
	if err := s.mailer.Send(email, "Redefinição de Senha", body); err != nil {
		slog.Error("failed to send reset email", "email", email, "error", err)
	}

	return nil
}

// ConfirmReset consumes a verification code and sets the new password.
func (s *ResetService) ConfirmReset(ctx context.Context, code, newPassword string) error {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, code, used, created_at
		FROM password_reset_tokens
		WHERE code = $1 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, code)

	var token model.PasswordResetToken
	if err := row.Scan(&token.ID, &token.UserID, &token.Code, &token.Used, &token.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("get reset token: %w", err)
	}

	if !token.IsValid(time.Now()) {
		return ErrTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, token.UserID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE WHERE id = $1`, token.ID); err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}

	return tx.Commit()
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
