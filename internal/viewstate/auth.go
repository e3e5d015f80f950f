package viewstate

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"daybook/internal/log"
)

// Phase is a step of the login and signup machines:
// Idle -> Loading -> Succeeded | Failed, and back to Idle on Reset.
type Phase int

const (
	Idle Phase = iota
	Loading
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Succeeded:
		return "success"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// AuthState is one machine's current phase; Message is set when Failed.
type AuthState struct {
	Phase   Phase
	Message string
}

// LoginStatus is the tri-state "is someone logged in" answer. It stays
// LoginUnknown until the session store has replied.
type LoginStatus int

const (
	LoginUnknown LoginStatus = iota
	LoggedIn
	LoggedOut
)

func (s LoginStatus) String() string {
	switch s {
	case LoggedIn:
		return "logged_in"
	case LoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgUserExists         = "User already exists"
	MsgMissingCredentials = "Please enter username and password"
	MsgTryAgain           = "An error occurred. Please try again."
)

// Sessions is what the auth screen needs from the session repository.
type Sessions interface {
	Login(ctx context.Context, username, password string) (bool, error)
	Signup(ctx context.Context, username, password string) (bool, error)
	IsLoggedIn(ctx context.Context) (bool, error)
	SetProfile(ctx context.Context, username string) error
}

type AuthHolder struct {
	*scope
	sessions Sessions

	mu     sync.RWMutex
	login  AuthState
	signup AuthState
	status LoginStatus
}

// NewAuthHolder starts the asynchronous logged-in check.
func NewAuthHolder(ctx context.Context, sessions Sessions) *AuthHolder {
	h := &AuthHolder{scope: newScope(ctx), sessions: sessions}
	h.launch(h.checkStatus)
	return h
}

func (h *AuthHolder) checkStatus(ctx context.Context) error {
	in, err := h.sessions.IsLoggedIn(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Session check failed", log.FieldComponent, log.ComponentViewState, log.FieldError, err)
		in = false
	}
	h.mu.Lock()
	if h.status == LoginUnknown {
		h.status = LoggedOut
		if in {
			h.status = LoggedIn
		}
	}
	h.mu.Unlock()
	h.changed()
	return nil
}

func (h *AuthHolder) LoginState() AuthState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.login
}

func (h *AuthHolder) SignupState() AuthState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.signup
}

func (h *AuthHolder) Status() LoginStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Login submits credentials. A submit while a login is already in flight
// is ignored. On success the profile is persisted and the status becomes
// LoggedIn.
func (h *AuthHolder) Login(username, password string) {
	username = strings.TrimSpace(username)
	if !h.begin(&h.login, username, password) {
		return
	}
	launched := h.launch(func(ctx context.Context) error {
		ok, err := h.sessions.Login(ctx, username, password)
		switch {
		case err != nil:
			h.fail(ctx, &h.login, log.OpLogin, MsgTryAgain, err)
		case !ok:
			h.set(&h.login, AuthState{Phase: Failed, Message: MsgInvalidCredentials})
		default:
			if err := h.sessions.SetProfile(ctx, username); err != nil {
				h.fail(ctx, &h.login, log.OpLogin, MsgTryAgain, err)
				return nil
			}
			h.mu.Lock()
			h.login = AuthState{Phase: Succeeded}
			h.status = LoggedIn
			h.mu.Unlock()
			h.changed()
		}
		return nil
	})
	if !launched {
		h.set(&h.login, AuthState{})
	}
}

// Signup registers a new user. It does not log them in.
func (h *AuthHolder) Signup(username, password string) {
	username = strings.TrimSpace(username)
	if !h.begin(&h.signup, username, password) {
		return
	}
	launched := h.launch(func(ctx context.Context) error {
		ok, err := h.sessions.Signup(ctx, username, password)
		switch {
		case err != nil:
			h.fail(ctx, &h.signup, log.OpSignup, MsgTryAgain, err)
		case !ok:
			h.set(&h.signup, AuthState{Phase: Failed, Message: MsgUserExists})
		default:
			h.set(&h.signup, AuthState{Phase: Succeeded})
		}
		return nil
	})
	if !launched {
		h.set(&h.signup, AuthState{})
	}
}

// Reset returns both machines to Idle.
func (h *AuthHolder) Reset() {
	h.mu.Lock()
	h.login = AuthState{}
	h.signup = AuthState{}
	h.mu.Unlock()
	h.changed()
}

// begin validates input and moves the machine to Loading. It returns false
// when the submit must not reach the repository, including after Close.
func (h *AuthHolder) begin(state *AuthState, username, password string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if state.Phase == Loading || h.closed() {
		return false
	}
	if username == "" || password == "" {
		*state = AuthState{Phase: Failed, Message: MsgMissingCredentials}
		h.changed()
		return false
	}
	*state = AuthState{Phase: Loading}
	h.changed()
	return true
}

func (h *AuthHolder) set(state *AuthState, s AuthState) {
	h.mu.Lock()
	*state = s
	h.mu.Unlock()
	h.changed()
}

func (h *AuthHolder) fail(ctx context.Context, state *AuthState, op, msg string, err error) {
	slog.ErrorContext(ctx, "Auth request failed",
		log.FieldComponent, log.ComponentViewState,
		log.FieldOperation, op,
		log.FieldError, err)
	h.set(state, AuthState{Phase: Failed, Message: msg})
}
