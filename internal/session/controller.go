// Package session drives the client from the identity event stream: it decides whether
// state is loaded from the remote store or from local storage and never leaves the
// client waiting on an event that does not come.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benvon/capture/internal/auth"
	"github.com/benvon/capture/internal/logger"
	"go.uber.org/zap"
)

// DefaultWatchdog is how long the controller waits for an initializing event
const DefaultWatchdog = 5 * time.Second

// DefaultLoadTimeout bounds one remote load, pending replay included
const DefaultLoadTimeout = 20 * time.Second

const probeTimeout = 3 * time.Second

// State is the lifecycle state of the controller.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateAuthenticated State = "authenticated"
	StateLocal         State = "local"
)

// Loader owns the in-memory state the controller fills.
type Loader interface {
	// LoadRemote replaces the state with the user's remote state.
	LoadRemote(ctx context.Context, user auth.User) error
	// LoadLocal replaces the state with the local snapshot.
	LoadLocal()
	// SetUser switches mirroring on (non-nil) or off (nil).
	SetUser(user *auth.User)
}

// Options configures a Controller.
type Options struct {
	Watchdog    time.Duration
	LoadTimeout time.Duration
}

// Controller is the session state machine. All transitions run on one goroutine.
type Controller struct {
	provider    auth.Provider
	loader      Loader
	watchdog    time.Duration
	loadTimeout time.Duration
	logger      *zap.Logger

	// ctx ends on teardown. initCtx also ends when the watchdog fires before ready,
	// which aborts an initial load that is still in flight.
	ctx        context.Context
	cancel     context.CancelFunc
	initCtx    context.Context
	initCancel context.CancelFunc
	fired      chan struct{}

	alive    atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu          sync.Mutex
	state       State
	user        *auth.User
	ready       chan struct{}
	unsubscribe func()
	timer       *time.Timer
}

// NewController creates a controller; Start begins observing the provider.
func NewController(provider auth.Provider, loader Loader, opts Options, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Watchdog <= 0 {
		opts.Watchdog = DefaultWatchdog
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	initCtx, initCancel := context.WithCancel(ctx)
	return &Controller{
		provider:    provider,
		loader:      loader,
		watchdog:    opts.Watchdog,
		loadTimeout: opts.LoadTimeout,
		logger:      log,
		ctx:         ctx,
		cancel:      cancel,
		initCtx:     initCtx,
		initCancel:  initCancel,
		fired:       make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		state:       StateUninitialized,
		ready:       make(chan struct{}),
	}
}

// Start subscribes to the provider and arms the watchdog. It must be called once.
func (c *Controller) Start() {
	c.alive.Store(true)

	events, unsubscribe := c.provider.Subscribe()

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	// The timer runs outside the event loop so it still fires while an event is being handled.
	c.timer = time.AfterFunc(c.watchdog, c.fireWatchdog)
	c.mu.Unlock()

	go c.run(events)
}

func (c *Controller) fireWatchdog() {
	if !c.alive.Load() || c.isReady() {
		return
	}
	c.initCancel()
	select {
	case c.fired <- struct{}{}:
	default:
	}
}

// Teardown unsubscribes and cancels the watchdog. Safe to call repeatedly and concurrently.
func (c *Controller) Teardown() {
	c.stopOnce.Do(func() {
		c.alive.Store(false)
		close(c.stop)
		c.cancel()

		c.mu.Lock()
		unsubscribe, timer := c.unsubscribe, c.timer
		c.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		if timer != nil {
			timer.Stop()
		}
	})
}

// Done is closed once the event loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// WaitReady blocks until the controller is ready or ctx ends.
func (c *Controller) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-c.ready:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the held user, or nil when signed out.
func (c *Controller) User() *auth.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Controller) isReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

func (c *Controller) run(events <-chan auth.Event) {
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		case <-c.fired:
			if !c.alive.Load() || c.isReady() {
				continue
			}
			c.logger.Warn("session_watchdog_fired", zap.Duration("after", c.watchdog))
			c.loader.SetUser(nil)
			c.loader.LoadLocal()
			c.markReady(StateLocal, nil)
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !c.alive.Load() {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev auth.Event) {
	var user *auth.User
	if ev.Session != nil {
		u := ev.Session.User
		user = &u
	}
	c.logger.Debug("auth_event_received",
		zap.String("event", string(ev.Type)),
		zap.Bool("has_user", user != nil))

	switch ev.Type {
	case auth.EventInitialSession, auth.EventSignedIn:
		if !c.isReady() {
			c.initialize(user)
			return
		}
		c.upgradeOrEcho(user)
	case auth.EventTokenRefreshed:
		if c.isReady() {
			c.upgradeOrEcho(user)
		}
	case auth.EventSignedOut:
		if !c.alive.Load() {
			return
		}
		c.loader.SetUser(nil)
		c.loader.LoadLocal()
		c.markReady(StateLocal, nil)
		c.logger.Info("session_signed_out")
	}
}

// initialize handles the first event that carries the session outcome.
func (c *Controller) initialize(user *auth.User) {
	if user == nil {
		// The event may fire before the provider has hydrated; ask once more.
		ctx, cancel := context.WithTimeout(c.initCtx, probeTimeout)
		sess, err := c.provider.Session(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("session_probe_failed", zap.String("error", logger.SanitizeError(err)))
		}
		if sess != nil {
			u := sess.User
			user = &u
		}
	}
	if !c.alive.Load() {
		return
	}

	if user == nil {
		c.loader.SetUser(nil)
		c.loader.LoadLocal()
		c.markReady(StateLocal, nil)
		c.logger.Info("session_ready", zap.String("state", string(StateLocal)))
		return
	}

	c.loadRemote(*user)
}

// upgradeOrEcho handles a session-carrying event after ready. Echoes for the held user
// only refresh the reference; a user appearing while in local mode triggers a remote load.
func (c *Controller) upgradeOrEcho(user *auth.User) {
	if user == nil {
		return
	}

	c.mu.Lock()
	state := c.state
	held := c.user
	c.mu.Unlock()

	if state == StateAuthenticated && held != nil && held.ID == user.ID {
		c.mu.Lock()
		c.user = user
		c.mu.Unlock()
		c.logger.Debug("session_echo_ignored", zap.String("user_id", logger.SanitizeUserID(user.ID)))
		return
	}

	c.loadRemote(*user)
}

func (c *Controller) loadRemote(user auth.User) {
	base := c.ctx
	if !c.isReady() {
		base = c.initCtx
	}
	ctx, cancel := context.WithTimeout(base, c.loadTimeout)
	defer cancel()

	c.loader.SetUser(&user)
	err := c.loader.LoadRemote(ctx, user)
	if !c.alive.Load() {
		return
	}

	if err != nil {
		c.logger.Warn("remote_load_failed_falling_back_to_local",
			zap.String("user_id", logger.SanitizeUserID(user.ID)),
			zap.String("error", logger.SanitizeError(err)))
		c.loader.SetUser(nil)
		c.loader.LoadLocal()
		c.markReady(StateLocal, &user)
		return
	}

	c.markReady(StateAuthenticated, &user)
	c.logger.Info("session_ready",
		zap.String("state", string(StateAuthenticated)),
		zap.String("user_id", logger.SanitizeUserID(user.ID)))
}

func (c *Controller) markReady(state State, user *auth.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = state
	c.user = user
	if c.timer != nil {
		c.timer.Stop()
	}
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
}
