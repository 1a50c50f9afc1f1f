// Package authctx owns one visitor's authentication state: the signed-in
// user, their profile, and whether the first session check has settled.
//
// A single goroutine owns the state. Session results, auth-change events and
// profile results all arrive as messages, so the order they are applied in is
// the order they were produced, and a profile result that belongs to an older
// user or an older request is discarded.
package authctx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ekaai-backend/internal/identity"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/metrics"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/profile"
	"ekaai-backend/internal/services"
)

var ErrClosed = errors.New("authctx: context closed")

// State is an immutable snapshot. Profile is only ever set for User.
type State struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
	Loading bool            `json:"loading"`
}

// ProfileSource is the subset of profile.Fetcher the context needs.
type ProfileSource interface {
	FetchProfile(ctx context.Context, userID string) (*models.Profile, error)
	Refresh(ctx context.Context, userID string) (*models.Profile, error)
	Save(ctx context.Context, userID string, u *models.ProfileUpdate) error
	Delete(ctx context.Context, userID string) error
}

// Personalizer is told about profile changes. Failures never fail the update.
type Personalizer interface {
	NotifyOnboarding(ctx context.Context, accessToken string, n models.OnboardingNotification) error
}

type PersonalizerFunc func(ctx context.Context, accessToken string, n models.OnboardingNotification) error

func (f PersonalizerFunc) NotifyOnboarding(ctx context.Context, accessToken string, n models.OnboardingNotification) error {
	return f(ctx, accessToken, n)
}

type Config struct {
	// SessionTimeout bounds the initial session check.
	SessionTimeout time.Duration
	ProfileTimeout time.Duration
}

func (c *Config) defaults() {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 5 * time.Second
	}
	if c.ProfileTimeout <= 0 {
		c.ProfileTimeout = 10 * time.Second
	}
}

type Context struct {
	store        identity.Store
	profiles     ProfileSource
	personalizer Personalizer
	rec          metrics.Recorder
	log          *zap.Logger
	cfg          Config
	now          func() time.Time

	inbox chan message

	evMu     sync.Mutex
	evQueue  []models.AuthEvent
	evSignal chan struct{}

	snapshot atomic.Pointer[State]
	ready    chan struct{}

	watchMu   sync.Mutex
	watchers  map[int]chan State
	nextWatch int

	baseCtx     context.Context
	cancelBase  context.CancelFunc
	quit        chan struct{}
	done        chan struct{}
	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe func()

	// owned by the loop goroutine
	state          State
	initialized    bool
	settled        bool
	discardInitial bool
	pending        []models.AuthEvent
	replaying      bool
	epoch          uint64
	inflight       bool
	waiters        []waiter
}

type waiter struct {
	epoch   uint64
	ch      chan settleResult
	refresh bool
}

type settleResult struct {
	state State
	err   error
}

type Option func(*Context)

func WithPersonalizer(p Personalizer) Option { return func(c *Context) { c.personalizer = p } }

func WithRecorder(r metrics.Recorder) Option { return func(c *Context) { c.rec = r } }

func WithConfig(cfg Config) Option { return func(c *Context) { c.cfg = cfg } }

func WithLogger(l *zap.Logger) Option { return func(c *Context) { c.log = l } }

func New(store identity.Store, profiles ProfileSource, opts ...Option) *Context {
	c := &Context{
		store:    store,
		profiles: profiles,
		rec:      metrics.Noop{},
		log:      logger.Named("authctx"),
		now:      time.Now,
		inbox:    make(chan message, 16),
		evSignal: make(chan struct{}, 1),
		ready:    make(chan struct{}),
		watchers: make(map[int]chan State),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    State{Loading: true},
	}
	for _, o := range opts {
		o(c)
	}
	c.cfg.defaults()
	c.baseCtx, c.cancelBase = context.WithCancel(context.Background())
	initial := c.state
	c.snapshot.Store(&initial)
	return c
}

// Start subscribes to auth changes and begins the bounded initial session check.
// Events that arrive before the check completes are applied after it, in order.
func (c *Context) Start() {
	c.startOnce.Do(func() {
		c.unsubscribe = c.store.OnAuthStateChange(c.enqueueEvent)
		go c.loop()
		go c.checkSession()
	})
}

// Close stops the loop and releases watchers. Safe to call more than once.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.cancelBase()
		close(c.quit)
		// Never started: nothing will close done.
		c.startOnce.Do(func() { close(c.done) })
		select {
		case <-c.done:
		case <-time.After(time.Second):
		}
	})
}

// State returns the latest snapshot without blocking.
func (c *Context) State() State {
	return *c.snapshot.Load()
}

// Ready is closed once loading has become false.
func (c *Context) Ready() <-chan struct{} {
	return c.ready
}

// WaitReady blocks until the first settle or ctx expires.
func (c *Context) WaitReady(ctx context.Context) (State, error) {
	select {
	case <-c.ready:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	case <-c.done:
		return c.State(), ErrClosed
	}
}

// Watch delivers the current state and every later change. Slow readers only
// see the latest state. The channel is closed by cancel or Close.
func (c *Context) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)
	c.watchMu.Lock()
	select {
	case <-c.done:
		c.watchMu.Unlock()
		ch <- c.State()
		close(ch)
		return ch, func() {}
	default:
	}
	c.nextWatch++
	id := c.nextWatch
	c.watchers[id] = ch
	ch <- c.State()
	c.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.watchMu.Lock()
			defer c.watchMu.Unlock()
			if w, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(w)
			}
		})
	}
}

// AccessToken returns the current bearer token, refreshing it if needed.
func (c *Context) AccessToken(ctx context.Context) (string, error) {
	s, err := c.store.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", services.ErrNoUser
	}
	return s.AccessToken, nil
}

// SignInWithGoogle returns the provider URL to send the browser to. The
// resulting session arrives later through the store's events.
func (c *Context) SignInWithGoogle(ctx context.Context, redirectTo string) (string, error) {
	url, err := c.store.SignInWithGoogle(ctx, identity.SignInOptions{RedirectTo: redirectTo})
	if err != nil {
		c.log.Error("google sign-in", zap.Error(err))
		return "", err
	}
	return url, nil
}

// CompleteSignIn finishes the OAuth round trip and returns once the new user
// and their profile are reflected in State.
func (c *Context) CompleteSignIn(ctx context.Context, cb models.OAuthCallback) (State, error) {
	if _, err := c.store.CompleteSignIn(ctx, cb); err != nil {
		c.log.Warn("complete sign-in", zap.Error(err))
		return c.State(), err
	}
	// Before the first settle a barrier could be released by the initial
	// check ahead of the replayed sign-in event.
	if _, err := c.WaitReady(ctx); err != nil {
		return c.State(), err
	}
	return c.settle(ctx)
}

// SignOut clears local state first, then asks the store to end the session.
// A store failure is returned but local state stays cleared.
func (c *Context) SignOut(ctx context.Context) error {
	done := make(chan State, 1)
	if !c.send(ctx, msgClear{done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.store.SignOut(ctx); err != nil {
		c.log.Warn("remote sign-out failed", zap.Error(err))
		return err
	}
	return nil
}

// UpdateProfile upserts the set fields, notifies personalization (best
// effort), and returns after the refetched profile is in State. A failed
// refetch is returned even though the write went through.
func (c *Context) UpdateProfile(ctx context.Context, u *models.ProfileUpdate) error {
	st := c.State()
	if st.User == nil {
		return services.ErrNoUser
	}
	userID := st.User.ID

	if err := c.profiles.Save(ctx, userID, u); err != nil {
		return err
	}

	if u.FullName != nil {
		c.syncAccountName(ctx, *u.FullName)
	}
	if c.personalizer != nil {
		c.notifyPersonalizer(ctx, userID, u)
	}

	done := make(chan settleResult, 1)
	if !c.send(ctx, msgRefresh{userID: userID, done: done}) {
		return ErrClosed
	}
	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("profile saved but not reloaded: %w", r.err)
		}
		if r.state.User == nil || r.state.User.ID != userID {
			return services.ErrNoUser
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// syncAccountName copies the name onto the identity account when the store
// keeps one. The profile row stays authoritative, so failures are only logged.
func (c *Context) syncAccountName(ctx context.Context, name string) {
	au, ok := c.store.(identity.AccountUpdater)
	if !ok {
		return
	}
	if _, err := au.UpdateAccount(ctx, name); err != nil {
		c.log.Warn("account name sync failed", zap.Error(err))
	}
}

func (c *Context) notifyPersonalizer(ctx context.Context, userID string, u *models.ProfileUpdate) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		c.log.Warn("personalization skipped, no access token", zap.Error(err))
		return
	}
	n := profile.OnboardingNotification(userID, u, c.now())
	if err := c.personalizer.NotifyOnboarding(ctx, token, n); err != nil {
		c.log.Warn("personalization notify failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// DeleteAccount removes the profile row, then the identity record, then signs
// out. Only a profile deletion failure aborts; a missing row does not.
func (c *Context) DeleteAccount(ctx context.Context) error {
	st := c.State()
	if st.User == nil {
		return services.ErrNoUser
	}
	userID := st.User.ID

	switch err := c.profiles.Delete(ctx, userID); {
	case errors.Is(err, services.ErrNotFound):
		// Never onboarded.
		c.log.Info("no profile row to delete", zap.String("user_id", userID))
	case err != nil:
		c.log.Error("delete profile", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if err := c.store.DeleteUser(ctx, userID); err != nil {
		c.log.Warn("delete identity record failed", zap.String("user_id", userID), zap.Error(err))
	}
	return c.SignOut(ctx)
}

// settle waits until every auth event already emitted has been applied and no
// profile fetch is outstanding.
func (c *Context) settle(ctx context.Context) (State, error) {
	done := make(chan settleResult, 1)
	if !c.send(ctx, msgBarrier{done: done}) {
		return c.State(), ErrClosed
	}
	select {
	case r := <-done:
		return r.state, nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

func (c *Context) send(ctx context.Context, m message) bool {
	select {
	case c.inbox <- m:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// enqueueEvent is the store subscription. It never blocks the store.
func (c *Context) enqueueEvent(ev models.AuthEvent) {
	c.evMu.Lock()
	c.evQueue = append(c.evQueue, ev)
	c.evMu.Unlock()
	select {
	case c.evSignal <- struct{}{}:
	default:
	}
}

func (c *Context) drainEvents() []models.AuthEvent {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	evs := c.evQueue
	c.evQueue = nil
	return evs
}

func (c *Context) checkSession() {
	ctx, cancel := context.WithTimeout(c.baseCtx, c.cfg.SessionTimeout)
	defer cancel()

	type result struct {
		session *models.Session
		err     error
	}
	ch := make(chan result, 1)
	start := time.Now()
	go func() {
		s, err := c.store.GetSession(ctx)
		ch <- result{s, err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	outcome := "none"
	switch {
	case errors.Is(r.err, context.DeadlineExceeded):
		outcome = "timeout"
		c.log.Warn("session check timed out", zap.Duration("timeout", c.cfg.SessionTimeout))
	case r.err != nil:
		outcome = "error"
		c.log.Warn("session check failed", zap.Error(r.err))
	case r.session != nil:
		outcome = "session"
	}
	c.rec.RecordSessionCheck(outcome, time.Since(start))

	c.send(context.Background(), msgSessionLoaded{session: r.session, err: r.err})
}
