package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"daybook/internal/core"
	"daybook/internal/log"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore holds usernames and password hashes.
type UserStore interface {
	PasswordHash(ctx context.Context, username string) (string, bool, error)
	CreateUser(ctx context.Context, username, passwordHash string) (bool, error)
	DeleteAllUsers(ctx context.Context) (int64, error)
}

// ProfileStore holds the logged-in flag and the current profile.
type ProfileStore interface {
	IsLoggedIn(ctx context.Context) (bool, error)
	SetProfile(ctx context.Context, p core.Profile) error
	Profile(ctx context.Context) (core.Profile, error)
	ClearProfile(ctx context.Context) error
}

// SessionService checks credentials and keeps track of who is logged in.
type SessionService struct {
	users   UserStore
	profile ProfileStore
	cost    int
}

func NewSessionService(users UserStore, profile ProfileStore) *SessionService {
	return &SessionService{users: users, profile: profile, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *SessionService) WithHashCost(cost int) *SessionService {
	s.cost = cost
	return s
}

// Login reports whether username exists and password matches. An unknown
// user and a wrong password are indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	hash, found, err := s.users.PasswordHash(ctx, username)
	if err != nil {
		return false, storageError("login", err)
	}
	if !found {
		slog.InfoContext(ctx, "Login rejected", log.FieldUsername, username)
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		slog.InfoContext(ctx, "Login rejected", log.FieldUsername, username)
		return false, nil
	}
	slog.InfoContext(ctx, "Login accepted", log.FieldUsername, username)
	return true, nil
}

// Signup creates the user unless the username is taken, in which case it
// returns false without touching the existing record.
func (s *SessionService) Signup(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return false, storageError("signup", err)
	}
	if !created {
		slog.InfoContext(ctx, "Signup rejected, user exists", log.FieldUsername, username)
	}
	return created, nil
}

func (s *SessionService) IsLoggedIn(ctx context.Context) (bool, error) {
	in, err := s.profile.IsLoggedIn(ctx)
	if err != nil {
		return false, storageError("read session", err)
	}
	return in, nil
}

// SetProfile records username as the logged-in user.
func (s *SessionService) SetProfile(ctx context.Context, username string) error {
	if err := s.profile.SetProfile(ctx, core.Profile{Username: strings.TrimSpace(username)}); err != nil {
		return storageError("save profile", err)
	}
	return nil
}

// Profile returns the logged-in profile, empty when nobody is logged in.
func (s *SessionService) Profile(ctx context.Context) (core.Profile, error) {
	p, err := s.profile.Profile(ctx)
	if err != nil {
		return core.Profile{}, storageError("read profile", err)
	}
	return p, nil
}

func (s *SessionService) ClearProfile(ctx context.Context) error {
	if err := s.profile.ClearProfile(ctx); err != nil {
		return storageError("clear profile", err)
	}
	return nil
}

// ClearAll removes every registered user.
func (s *SessionService) ClearAll(ctx context.Context) error {
	n, err := s.users.DeleteAllUsers(ctx)
	if err != nil {
		return storageError("clear users", err)
	}
	slog.InfoContext(ctx, "Users cleared", log.FieldCount, n)
	return nil
}
