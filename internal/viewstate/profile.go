package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"daybook/internal/log"
)

type (
	// Clearer wipes every row a repository owns.
	Clearer interface {
		ClearAll(ctx context.Context) error
	}

	ProfileSession interface {
		ProfileReader
		ClearProfile(ctx context.Context) error
	}
)

type ProfileSnapshot struct {
	Loaded   bool
	Username string
}

type ProfileHolder struct {
	*scope
	transactions Clearer
	users        Clearer
	session      ProfileSession

	mu   sync.RWMutex
	snap ProfileSnapshot
}

// NewProfileHolder loads the profile once. users may be nil when the caller
// never offers ResetAccount.
func NewProfileHolder(ctx context.Context, session ProfileSession, transactions, users Clearer) *ProfileHolder {
	h := &ProfileHolder{scope: newScope(ctx), session: session, transactions: transactions, users: users}
	h.launch(func(ctx context.Context) error {
		p, err := session.Profile(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Profile load failed",
				log.FieldComponent, log.ComponentViewState,
				log.FieldError, err)
		}
		h.mu.Lock()
		h.snap = ProfileSnapshot{Loaded: true, Username: p.Username}
		h.mu.Unlock()
		h.changed()
		return nil
	})
	return h
}

func (h *ProfileHolder) Snapshot() ProfileSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Logout deletes every transaction, then the session profile. Registered
// users stay so the same credentials can log in again.
func (h *ProfileHolder) Logout(ctx context.Context) error {
	if err := h.transactions.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	if err := h.session.ClearProfile(ctx); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	h.mu.Lock()
	h.snap.Username = ""
	h.mu.Unlock()
	h.changed()
	slog.InfoContext(ctx, "Logged out",
		log.FieldComponent, log.ComponentSession,
		log.FieldOperation, log.OpLogout)
	return nil
}

// ResetAccount logs out and also purges the credential rows.
func (h *ProfileHolder) ResetAccount(ctx context.Context) error {
	if err := h.Logout(ctx); err != nil {
		return err
	}
	if h.users == nil {
		return nil
	}
	if err := h.users.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	return nil
}
