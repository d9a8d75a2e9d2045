// Package auth provides the identity collaborator: an event stream of session
// transitions plus sign-in, sign-up and sign-out calls.
package auth

import (
	"context"
	"errors"
	"time"
)

// EventType names a session transition.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

var (
	// ErrNotConfigured is returned by providers when no identity backend is set up
	ErrNotConfigured = errors.New("authentication is not configured")
	// ErrInvalidCredentials is returned when the identity backend rejects a sign-in
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is the identity handle consumed by the rest of the client.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is an authenticated identity context.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
	User         User      `json:"user"`
}

// Event is one transition on the session stream. Session is nil when signed out.
type Event struct {
	Type    EventType
	Session *Session
}

// Provider is the identity backend contract.
type Provider interface {
	// Subscribe returns the event stream and a function that ends the subscription.
	// The first event delivered is always EventInitialSession. The stop function is
	// safe to call more than once.
	Subscribe() (<-chan Event, func())
	// Session probes the current session directly; nil means signed out.
	Session(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
}

// Disabled is the provider used when no identity backend is configured.
// Its stream reports a signed-out initial session and nothing else.
type Disabled struct{}

var _ Provider = Disabled{}

func (Disabled) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 1)
	ch <- Event{Type: EventInitialSession}
	return ch, func() {}
}

func (Disabled) Session(context.Context) (*Session, error) { return nil, nil }

func (Disabled) SignIn(context.Context, string, string) (*Session, error) {
	return nil, ErrNotConfigured
}

func (Disabled) SignUp(context.Context, string, string) (*Session, error) {
	return nil, ErrNotConfigured
}

func (Disabled) SignOut(context.Context) error { return ErrNotConfigured }
