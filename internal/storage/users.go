package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

// AuthSession is the signed-in user of this install.
type AuthSession struct {
	Email       string
	Provider    string
	AccessToken string
	SignedInAt  time.Time
}

// CreateUser stores a local account. A taken email yields
// core.ErrConstraintViolation.
func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, core.FormatTimestamp(r.now()))
	if err != nil {
		return classify("create user", err)
	}
	storageLog(ctx).InfoContext(ctx, "User saved to SQLite", log.FieldOperation, log.OpCreate, log.FieldUserID, email)
	return nil
}

// PasswordHash returns the stored hash for email or core.ErrNotFound.
func (r *SQLiteRepository) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE email = ?`, email).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get user %q: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return "", classify("get user", err)
	}
	return hash, nil
}

// SaveSession replaces the stored session.
func (r *SQLiteRepository) SaveSession(ctx context.Context, s AuthSession) error {
	if s.SignedInAt.IsZero() {
		s.SignedInAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_session (id, email, provider, access_token, signed_in_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   email = excluded.email,
		   provider = excluded.provider,
		   access_token = excluded.access_token,
		   signed_in_at = excluded.signed_in_at`,
		s.Email, s.Provider, s.AccessToken, core.FormatTimestamp(s.SignedInAt))
	if err != nil {
		return classify("save session", err)
	}
	return nil
}

// LoadSession returns the stored session, or nil when nobody is signed in.
func (r *SQLiteRepository) LoadSession(ctx context.Context) (*AuthSession, error) {
	var (
		s          AuthSession
		signedInAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT email, provider, access_token, signed_in_at FROM auth_session WHERE id = 1`).
		Scan(&s.Email, &s.Provider, &s.AccessToken, &signedInAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("load session", err)
	}
	if s.SignedInAt, err = core.ParseTimestamp(signedInAt); err != nil {
		return nil, fmt.Errorf("parse session signed_in_at: %w", err)
	}
	return &s, nil
}

func (r *SQLiteRepository) ClearSession(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM auth_session`); err != nil {
		return classify("clear session", err)
	}
	return nil
}
