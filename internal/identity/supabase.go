package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

const ProviderSupabase = "supabase"

// Supabase authenticates against a Supabase project. The access token of the
// signed-in user is kept in the local session row.
type Supabase struct {
	client   *supabase.Client
	sessions SessionStore
	now      func() time.Time
	notifier
}

func NewSupabase(url, key string, sessions SessionStore) (*Supabase, error) {
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{
		client:   client,
		sessions: sessions,
		now:      time.Now,
	}, nil
}

func (s *Supabase) CurrentUser(ctx context.Context) (*User, error) {
	sess, err := s.sessions.LoadSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || sess.Provider != ProviderSupabase {
		return nil, nil
	}
	return sessionUser(sess), nil
}

func (s *Supabase) SignUp(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	if _, err := s.client.Auth.Signup(types.SignupRequest{Email: email, Password: password}); err != nil {
		return nil, signUpError(email, err)
	}
	identityLog(ctx).InfoContext(ctx, "User signed up", log.FieldOperation, log.OpSignUp, log.FieldUserID, email, "provider", ProviderSupabase)

	return s.SignIn(ctx, email, password)
}

func (s *Supabase) SignIn(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	session, err := s.client.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, signInError(email, err)
	}

	err = s.sessions.SaveSession(ctx, storage.AuthSession{
		Email:       email,
		Provider:    ProviderSupabase,
		AccessToken: session.AccessToken,
		SignedInAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	identityLog(ctx).InfoContext(ctx, "User signed in", log.FieldOperation, log.OpSignIn, log.FieldUserID, email, "provider", ProviderSupabase)
	u := &User{Email: email, Provider: ProviderSupabase}
	s.notify(u)
	return u, nil
}

// SignOut revokes the remote session when a token is known and always clears
// the local one.
func (s *Supabase) SignOut(ctx context.Context) error {
	sess, err := s.sessions.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess != nil && sess.AccessToken != "" {
		if err := s.client.Auth.WithToken(sess.AccessToken).Logout(); err != nil {
			identityLog(ctx).WarnContext(ctx, "Remote sign-out failed", log.FieldOperation, log.OpSignOut, log.FieldUserID, sess.Email, log.FieldError, err)
		}
	}
	if err := s.sessions.ClearSession(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.notify(nil)
	return nil
}

func (s *Supabase) Subscribe(fn func(*User)) func() {
	return s.subscribe(fn)
}

// gotrue reports HTTP failures as "response status code <n>: <body>".
var authStatusPattern = regexp.MustCompile(`^response status code (\d+)(?::\s*([\s\S]*))?$`)

type authErrorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// authFailure is a rejection returned by the auth server.
type authFailure struct {
	status int
	code   string
	msg    string
}

func parseAuthError(err error) (authFailure, bool) {
	m := authStatusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return authFailure{}, false
	}
	status, _ := strconv.Atoi(m[1])
	f := authFailure{status: status, msg: strings.TrimSpace(m[2])}

	var body authErrorBody
	if json.Unmarshal([]byte(m[2]), &body) == nil {
		f.code = body.ErrorCode
		if f.code == "" {
			f.code = body.Error
		}
		for _, msg := range []string{body.Msg, body.Message, body.ErrorDescription} {
			if msg != "" {
				f.msg = msg
				break
			}
		}
	}
	return f, true
}

func (f authFailure) unavailable() bool {
	return f.status >= http.StatusInternalServerError || f.status == http.StatusTooManyRequests
}

func (f authFailure) duplicateUser() bool {
	if f.code == "user_already_exists" || f.code == "email_exists" {
		return true
	}
	msg := strings.ToLower(f.msg)
	return strings.Contains(msg, "already registered") || strings.Contains(msg, "already exists")
}

func signUpError(email string, err error) error {
	f, ok := parseAuthError(err)
	switch {
	case !ok || f.unavailable():
		return fmt.Errorf("sign up %s: %w: %w", email, core.ErrProviderUnavailable, err)
	case f.duplicateUser():
		return fmt.Errorf("sign up %s: %w", email, core.ErrConstraintViolation)
	default:
		return fmt.Errorf("sign up %s: %w: %s", email, core.ErrInvalidInput, f.msg)
	}
}

func signInError(email string, err error) error {
	if errors.Is(err, types.ErrInvalidTokenRequest) {
		return fmt.Errorf("sign in %s: %w", email, core.ErrUnauthenticated)
	}
	f, ok := parseAuthError(err)
	switch {
	case !ok || f.unavailable():
		return fmt.Errorf("sign in %s: %w: %w", email, core.ErrProviderUnavailable, err)
	case f.status == http.StatusBadRequest, f.status == http.StatusUnauthorized, f.status == http.StatusForbidden:
		return fmt.Errorf("sign in %s: %w", email, core.ErrUnauthenticated)
	default:
		return fmt.Errorf("sign in %s: %w: %s", email, core.ErrInvalidInput, f.msg)
	}
}
