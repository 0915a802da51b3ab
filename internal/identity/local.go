package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

const ProviderLocal = "local"

// UserStore keeps local accounts.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) error
	PasswordHash(ctx context.Context, email string) (string, error)
}

// LocalStore is what the local provider persists to. *storage.SQLiteRepository
// satisfies it.
type LocalStore interface {
	UserStore
	SessionStore
}

// Local keeps accounts in the ledger database with bcrypt password hashes.
type Local struct {
	store LocalStore
	cost  int
	now   func() time.Time
	notifier
}

func NewLocal(store LocalStore) *Local {
	return &Local{
		store: store,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
}

func (l *Local) CurrentUser(ctx context.Context) (*User, error) {
	s, err := l.store.LoadSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil || s.Provider != ProviderLocal {
		return nil, nil
	}
	return sessionUser(s), nil
}

func (l *Local) SignUp(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := l.store.CreateUser(ctx, email, string(hash)); err != nil {
		return nil, fmt.Errorf("sign up %s: %w", email, err)
	}

	identityLog(ctx).InfoContext(ctx, "User signed up", log.FieldOperation, log.OpSignUp, log.FieldUserID, email, "provider", ProviderLocal)
	return l.startSession(ctx, email)
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	hash, err := l.store.PasswordHash(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("sign in %s: %w", email, core.ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("sign in %s: %w", email, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("sign in %s: %w", email, core.ErrUnauthenticated)
	}

	return l.startSession(ctx, email)
}

func (l *Local) startSession(ctx context.Context, email string) (*User, error) {
	err := l.store.SaveSession(ctx, storage.AuthSession{
		Email:      email,
		Provider:   ProviderLocal,
		SignedInAt: l.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	identityLog(ctx).InfoContext(ctx, "User signed in", log.FieldOperation, log.OpSignIn, log.FieldUserID, email, "provider", ProviderLocal)
	u := &User{Email: email, Provider: ProviderLocal}
	l.notify(u)
	return u, nil
}

func (l *Local) SignOut(ctx context.Context) error {
	if err := l.store.ClearSession(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	identityLog(ctx).DebugContext(ctx, "Local session cleared", log.FieldOperation, log.OpSignOut)
	l.notify(nil)
	return nil
}

func (l *Local) Subscribe(fn func(*User)) func() {
	return l.subscribe(fn)
}
