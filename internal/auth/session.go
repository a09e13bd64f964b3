// Package auth tracks the signed-in profile and tells listeners when it
// changes.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
)

// ErrSignedOut is returned by CurrentUser when nobody is signed in.
var ErrSignedOut = errors.New("auth: not signed in")

// ProfileLookup resolves a profile by email.
type ProfileLookup interface {
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
}

// Session holds the current user. Listeners are called synchronously
// after every sign-in and sign-out, with nil on sign-out.
type Session struct {
	profiles ProfileLookup
	log      *zap.Logger

	mu        sync.Mutex
	user      *model.Profile
	listeners map[int]func(*model.Profile)
	nextID    int
}

// NewSession creates a signed-out session.
func NewSession(profiles ProfileLookup, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		profiles:  profiles,
		log:       log,
		listeners: make(map[int]func(*model.Profile)),
	}
}

// SignIn makes the profile with email the current user.
func (s *Session) SignIn(ctx context.Context, email string) (*model.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Invalid("email", "is required")
	}
	p, err := s.profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Transient("signing in", err)
	}

	s.mu.Lock()
	s.user = p
	s.mu.Unlock()

	s.log.Info("signed in", zap.String("user_id", p.ID), zap.String("role", string(p.Role)))
	s.broadcast(p)
	return p, nil
}

// SignOut clears the current user.
func (s *Session) SignOut() {
	s.mu.Lock()
	was := s.user
	s.user = nil
	s.mu.Unlock()

	if was == nil {
		return
	}
	s.log.Info("signed out", zap.String("user_id", was.ID))
	s.broadcast(nil)
}

// CurrentUser returns the signed-in profile.
func (s *Session) CurrentUser(ctx context.Context) (*model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, ErrSignedOut
	}
	u := *s.user
	return &u, nil
}

// OnAuthStateChange registers fn and returns a function that removes it.
func (s *Session) OnAuthStateChange(fn func(*model.Profile)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) broadcast(p *model.Profile) {
	s.mu.Lock()
	fns := make([]func(*model.Profile), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		if p == nil {
			fn(nil)
			continue
		}
		u := *p
		fn(&u)
	}
}
