package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/capture/internal/auth"
)

type fakeProvider struct {
	events      chan auth.Event
	SessionFunc func(ctx context.Context) (*auth.Session, error)

	mu           sync.Mutex
	unsubscribed int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(chan auth.Event, 8)}
}

func (f *fakeProvider) Subscribe() (<-chan auth.Event, func()) {
	return f.events, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribed++
	}
}

func (f *fakeProvider) Session(ctx context.Context) (*auth.Session, error) {
	if f.SessionFunc != nil {
		return f.SessionFunc(ctx)
	}
	return nil, nil
}

func (f *fakeProvider) SignIn(context.Context, string, string) (*auth.Session, error) {
	return nil, nil
}

func (f *fakeProvider) SignUp(context.Context, string, string) (*auth.Session, error) {
	return nil, nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	return nil
}

type fakeLoader struct {
	LoadRemoteFunc func(ctx context.Context, user auth.User) error

	mu          sync.Mutex
	remoteLoads []string
	localLoads  int
	user        *auth.User
}

func (f *fakeLoader) LoadRemote(ctx context.Context, user auth.User) error {
	f.mu.Lock()
	f.remoteLoads = append(f.remoteLoads, user.ID)
	f.mu.Unlock()
	if f.LoadRemoteFunc != nil {
		return f.LoadRemoteFunc(ctx, user)
	}
	return nil
}

func (f *fakeLoader) LoadLocal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localLoads++
}

func (f *fakeLoader) SetUser(user *auth.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = user
}

func (f *fakeLoader) counts() (remote, local int, user *auth.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.remoteLoads), f.localLoads, f.user
}

var (
	_ auth.Provider = (*fakeProvider)(nil)
	_ Loader        = (*fakeLoader)(nil)
)

func sessionFor(id string) *auth.Session {
	return &auth.Session{AccessToken: "tok", User: auth.User{ID: id}}
}

func waitReady(t *testing.T, c *Controller) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := c.WaitReady(ctx)
	if err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	return state
}

// eventually polls cond until it holds or a second passes
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestController_InitialSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		session    *auth.Session
		probe      *auth.Session
		remoteErr  error
		wantState  State
		wantRemote int
		wantLocal  int
		wantUser   bool
	}{
		{
			name:       "signed in user loads remote",
			session:    sessionFor("u1"),
			wantState:  StateAuthenticated,
			wantRemote: 1,
			wantUser:   true,
		},
		{
			name:       "remote failure falls back to local",
			session:    sessionFor("u1"),
			remoteErr:  errors.New("connection refused"),
			wantState:  StateLocal,
			wantRemote: 1,
			wantLocal:  1,
		},
		{
			name:      "no user loads local",
			wantState: StateLocal,
			wantLocal: 1,
		},
		{
			name:       "probe finds a user the event missed",
			probe:      sessionFor("u2"),
			wantState:  StateAuthenticated,
			wantRemote: 1,
			wantUser:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := newFakeProvider()
			provider.SessionFunc = func(ctx context.Context) (*auth.Session, error) { return tt.probe, nil }
			loader := &fakeLoader{LoadRemoteFunc: func(ctx context.Context, user auth.User) error { return tt.remoteErr }}

			c := NewController(provider, loader, Options{Watchdog: time.Minute}, nil)
			c.Start()
			defer c.Teardown()

			provider.events <- auth.Event{Type: auth.EventInitialSession, Session: tt.session}

			if got := waitReady(t, c); got != tt.wantState {
				t.Errorf("state = %q, want %q", got, tt.wantState)
			}
			remote, local, user := loader.counts()
			if remote != tt.wantRemote || local != tt.wantLocal {
				t.Errorf("remote loads = %d, local loads = %d, want %d, %d", remote, local, tt.wantRemote, tt.wantLocal)
			}
			if (user != nil) != tt.wantUser {
				t.Errorf("loader user = %+v, want present=%v", user, tt.wantUser)
			}
		})
	}
}

func TestController_SignedInBeforeInitialSession(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{}
	c := NewController(provider, loader, Options{Watchdog: time.Minute}, nil)
	c.Start()
	defer c.Teardown()

	provider.events <- auth.Event{Type: auth.EventSignedIn, Session: sessionFor("u1")}

	if got := waitReady(t, c); got != StateAuthenticated {
		t.Errorf("state = %q, want authenticated", got)
	}
	if u := c.User(); u == nil || u.ID != "u1" {
		t.Errorf("User() = %+v", u)
	}
}

func TestController_SignedInEchoDoesNotRefetch(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{}
	c := NewController(provider, loader, Options{Watchdog: time.Minute}, nil)
	c.Start()
	defer c.Teardown()

	provider.events <- auth.Event{Type: auth.EventInitialSession, Session: sessionFor("u1")}
	waitReady(t, c)

	refreshed := sessionFor("u1")
	refreshed.User.Email = "new@example.com"
	provider.events <- auth.Event{Type: auth.EventSignedIn, Session: refreshed}
	provider.events <- auth.Event{Type: auth.EventTokenRefreshed, Session: refreshed}

	eventually(t, func() bool {
		u := c.User()
		return u != nil && u.Email == "new@example.com"
	})
	if remote, _, _ := loader.counts(); remote != 1 {
		t.Errorf("remote loads = %d, want 1", remote)
	}
}

func TestController_SignInFromLocalLoadsRemote(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{}
	c := NewController(provider, loader, Options{Watchdog: time.Minute}, nil)
	c.Start()
	defer c.Teardown()

	provider.events <- auth.Event{Type: auth.EventInitialSession}
	if got := waitReady(t, c); got != StateLocal {
		t.Fatalf("state = %q, want local", got)
	}

	provider.events <- auth.Event{Type: auth.EventSignedIn, Session: sessionFor("u1")}
	eventually(t, func() bool { return c.State() == StateAuthenticated })

	if remote, _, user := loader.counts(); remote != 1 || user == nil || user.ID != "u1" {
		t.Errorf("remote loads = %d, user = %+v", remote, user)
	}
}

func TestController_SignedOut(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{}
	c := NewController(provider, loader, Options{Watchdog: time.Minute}, nil)
	c.Start()
	defer c.Teardown()

	provider.events <- auth.Event{Type: auth.EventInitialSession, Session: sessionFor("u1")}
	waitReady(t, c)

	provider.events <- auth.Event{Type: auth.EventSignedOut}
	eventually(t, func() bool { return c.State() == StateLocal })

	if c.User() != nil {
		t.Errorf("User() = %+v, want nil", c.User())
	}
	if _, local, user := loader.counts(); local != 1 || user != nil {
		t.Errorf("local loads = %d, loader user = %+v", local, user)
	}
}

func TestController_WatchdogForcesLocal(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{}
	c := NewController(provider, loader, Options{Watchdog: 20 * time.Millisecond}, nil)
	c.Start()
	defer c.Teardown()

	if got := waitReady(t, c); got != StateLocal {
		t.Errorf("state = %q, want local", got)
	}
	if _, local, _ := loader.counts(); local != 1 {
		t.Errorf("local loads = %d, want 1", local)
	}
}

func TestController_WatchdogAbortsStalledInitialLoad(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{LoadRemoteFunc: func(ctx context.Context, user auth.User) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	c := NewController(provider, loader, Options{Watchdog: 30 * time.Millisecond, LoadTimeout: time.Minute}, nil)
	c.Start()
	defer c.Teardown()

	provider.events <- auth.Event{Type: auth.EventInitialSession, Session: sessionFor("u1")}

	if got := waitReady(t, c); got != StateLocal {
		t.Errorf("state = %q, want local", got)
	}
	if remote, local, user := loader.counts(); remote != 1 || local != 1 || user != nil {
		t.Errorf("remote loads = %d, local loads = %d, loader user = %+v", remote, local, user)
	}
}

func TestController_LoadTimeoutBoundsLaterSignIn(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{LoadRemoteFunc: func(ctx context.Context, user auth.User) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	c := NewController(provider, loader, Options{Watchdog: time.Minute, LoadTimeout: 30 * time.Millisecond}, nil)
	c.Start()
	defer c.Teardown()

	provider.events <- auth.Event{Type: auth.EventInitialSession}
	if got := waitReady(t, c); got != StateLocal {
		t.Fatalf("state = %q, want local", got)
	}

	provider.events <- auth.Event{Type: auth.EventSignedIn, Session: sessionFor("u1")}
	eventually(t, func() bool {
		_, local, _ := loader.counts()
		return local == 2
	})

	if c.State() != StateLocal {
		t.Errorf("state = %q, want local after a timed out load", c.State())
	}
	if remote, _, user := loader.counts(); remote != 1 || user != nil {
		t.Errorf("remote loads = %d, loader user = %+v", remote, user)
	}
}

func TestController_TeardownCancelsInFlightLoad(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{LoadRemoteFunc: func(ctx context.Context, user auth.User) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	c := NewController(provider, loader, Options{Watchdog: time.Minute, LoadTimeout: time.Minute}, nil)
	c.Start()

	provider.events <- auth.Event{Type: auth.EventInitialSession, Session: sessionFor("u1")}
	eventually(t, func() bool {
		remote, _, _ := loader.counts()
		return remote == 1
	})

	c.Teardown()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("event loop blocked on the remote load after teardown")
	}
}

func TestController_TeardownIsIdempotent(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	loader := &fakeLoader{}
	c := NewController(provider, loader, Options{Watchdog: 20 * time.Millisecond}, nil)
	c.Start()

	c.Teardown()
	c.Teardown()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("event loop did not exit")
	}

	time.Sleep(50 * time.Millisecond)
	if _, local, _ := loader.counts(); local != 0 {
		t.Errorf("watchdog mutated state after teardown: local loads = %d", local)
	}
	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.unsubscribed != 1 {
		t.Errorf("unsubscribed = %d, want 1", provider.unsubscribed)
	}
}

func TestController_LateRemoteResultAfterTeardown(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	release := make(chan struct{})
	loader := &fakeLoader{LoadRemoteFunc: func(ctx context.Context, user auth.User) error {
		<-release
		return nil
	}}
	c := NewController(provider, loader, Options{Watchdog: time.Minute}, nil)
	c.Start()

	provider.events <- auth.Event{Type: auth.EventInitialSession, Session: sessionFor("u1")}
	eventually(t, func() bool {
		remote, _, _ := loader.counts()
		return remote == 1
	})

	c.Teardown()
	close(release)

	<-c.Done()
	if c.State() != StateUninitialized {
		t.Errorf("state = %q after teardown, want uninitialized", c.State())
	}
}
