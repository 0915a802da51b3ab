// Package identity signs users in and tells the rest of the program who the
// current user is. Ledger rows are scoped by the user's email.
package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// MinPasswordLen is the shortest password accepted at sign-up.
const MinPasswordLen = 6

// User is the signed-in principal. Email is the ledger scope key.
type User struct {
	Email    string
	Provider string
}

// Provider is an identity backend.
type Provider interface {
	// CurrentUser returns the signed-in user or nil.
	CurrentUser(ctx context.Context) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	// SignUp creates the account and signs it in.
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
	// Subscribe registers fn for auth-state changes. fn receives nil on sign-out.
	Subscribe(fn func(*User)) (unsubscribe func())
}

// SessionStore persists the single signed-in session of this install.
type SessionStore interface {
	SaveSession(ctx context.Context, s storage.AuthSession) error
	LoadSession(ctx context.Context) (*storage.AuthSession, error)
	ClearSession(ctx context.Context) error
}

// RequireUser returns the current user or core.ErrUnauthenticated.
func RequireUser(ctx context.Context, p Provider) (*User, error) {
	u, err := p.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no signed-in user: %w", core.ErrUnauthenticated)
	}
	return u, nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: invalid email %q", core.ErrInvalidInput, email)
	}
	return strings.ToLower(addr.Address), nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", core.ErrInvalidInput, MinPasswordLen)
	}
	return nil
}

type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(*User)
}

func (n *notifier) subscribe(fn func(*User)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(*User))
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) notify(u *User) {
	n.mu.Lock()
	fns := make([]func(*User), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

func sessionUser(s *storage.AuthSession) *User {
	if s == nil {
		return nil
	}
	return &User{Email: s.Email, Provider: s.Provider}
}

func identityLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentIdentity)
}
