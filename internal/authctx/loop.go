package authctx

import (
	"context"

	"go.uber.org/zap"

	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

type message interface{ isMessage() }

type msgSessionLoaded struct {
	session *models.Session
	err     error
}

type msgProfileLoaded struct {
	epoch   uint64
	userID  string
	profile *models.Profile
	err     error
}

type msgClear struct{ done chan State }

type msgRefresh struct {
	userID string
	done   chan settleResult
}

type msgBarrier struct{ done chan settleResult }

func (msgSessionLoaded) isMessage() {}
func (msgProfileLoaded) isMessage() {}
func (msgClear) isMessage()         {}
func (msgRefresh) isMessage()       {}
func (msgBarrier) isMessage()       {}

func (c *Context) loop() {
	defer func() {
		close(c.done)
		c.releaseWaiters(ErrClosed)
		c.watchMu.Lock()
		for id, w := range c.watchers {
			delete(c.watchers, id)
			close(w)
		}
		c.watchMu.Unlock()
	}()

	for {
		select {
		case <-c.quit:
			return
		case <-c.evSignal:
			c.applyEvents()
		case m := <-c.inbox:
			// Events emitted before m was sent must be applied before m.
			c.applyEvents()
			c.handle(m)
		}
	}
}

func (c *Context) applyEvents() {
	for _, ev := range c.drainEvents() {
		c.onAuthEvent(ev)
	}
}

func (c *Context) handle(m message) {
	switch m := m.(type) {
	case msgSessionLoaded:
		c.onSessionLoaded(m)
	case msgProfileLoaded:
		c.onProfileLoaded(m)
	case msgClear:
		c.onClear()
		m.done <- c.state
	case msgRefresh:
		if c.state.User == nil || c.state.User.ID != m.userID {
			m.done <- settleResult{state: c.state, err: services.ErrNoUser}
			return
		}
		c.startProfileFetch(m.userID, true)
		c.waiters = append(c.waiters, waiter{epoch: c.epoch, ch: m.done, refresh: true})
	case msgBarrier:
		if c.initialized && !c.inflight {
			m.done <- settleResult{state: c.state}
			return
		}
		c.waiters = append(c.waiters, waiter{epoch: c.epoch, ch: m.done})
	}
}

func (c *Context) onSessionLoaded(m msgSessionLoaded) {
	c.initialized = true
	// Not settled until the queued events are applied too.
	c.replaying = true
	session := m.session
	if c.discardInitial {
		session = nil
	}
	if m.err == nil && session != nil && session.User != nil {
		c.rec.RecordAuthEvent(string(models.EventInitialSession))
		c.setUser(session.User)
	} else {
		c.clearUser()
	}

	pending := c.pending
	c.pending = nil
	for _, ev := range pending {
		c.onAuthEvent(ev)
	}
	c.replaying = false

	c.maybeSettle()
	c.publish()
}

func (c *Context) onAuthEvent(ev models.AuthEvent) {
	if !c.initialized {
		c.pending = append(c.pending, ev)
		return
	}
	c.rec.RecordAuthEvent(string(ev.Kind))

	if ev.Kind == models.EventSignedOut || ev.Kind == models.EventUserDeleted || ev.Session == nil || ev.Session.User == nil {
		if c.state.User == nil && c.state.Profile == nil {
			return
		}
		c.clearUser()
		c.publish()
		return
	}

	u := ev.Session.User
	if ev.Kind == models.EventTokenRefreshed && c.state.User != nil && c.state.User.ID == u.ID {
		return
	}
	c.setUser(u)
	c.publish()
}

func (c *Context) onProfileLoaded(m msgProfileLoaded) {
	if m.epoch != c.epoch {
		c.rec.RecordProfileFetch("stale")
		return
	}
	c.inflight = false

	if c.state.User == nil || c.state.User.ID != m.userID {
		return
	}
	if m.err != nil {
		// Keep what we had for this user; never show another user's profile.
		if c.state.Profile != nil && c.state.Profile.ID != m.userID {
			c.state.Profile = nil
		}
	} else {
		c.state.Profile = m.profile
	}

	c.maybeSettle()
	c.publish()
	c.releaseWaitersUpTo(m.epoch, m.err)
}

func (c *Context) onClear() {
	if !c.initialized {
		c.discardInitial = true
		c.pending = nil
	}
	if c.state.User == nil && c.state.Profile == nil {
		c.epoch++
		return
	}
	c.clearUser()
	c.publish()
}

// setUser switches to u and starts a profile fetch. A different user never
// inherits the previous profile.
func (c *Context) setUser(u *models.User) {
	if c.state.User == nil || c.state.User.ID != u.ID {
		c.state.Profile = nil
	}
	cp := *u
	c.state.User = &cp
	c.startProfileFetch(u.ID, false)
}

func (c *Context) clearUser() {
	c.state.User = nil
	c.state.Profile = nil
	c.epoch++
	c.inflight = false
	c.maybeSettle()
	c.releaseWaiters(services.ErrNoUser)
}

func (c *Context) startProfileFetch(userID string, refresh bool) {
	c.epoch++
	c.inflight = true
	epoch := c.epoch

	go func() {
		ctx, cancel := context.WithTimeout(c.baseCtx, c.cfg.ProfileTimeout)
		defer cancel()

		var p *models.Profile
		var err error
		if refresh {
			p, err = c.profiles.Refresh(ctx, userID)
		} else {
			p, err = c.profiles.FetchProfile(ctx, userID)
		}
		if err != nil {
			c.log.Warn("profile fetch failed", zap.String("user_id", userID), zap.Error(err))
		}
		c.send(context.Background(), msgProfileLoaded{epoch: epoch, userID: userID, profile: p, err: err})
	}()
}

func (c *Context) maybeSettle() {
	if c.settled || !c.initialized || c.inflight || c.replaying {
		return
	}
	c.settled = true
	c.state.Loading = false
	// WaitReady reads the snapshot right after ready closes.
	st := c.state
	c.snapshot.Store(&st)
	close(c.ready)
}

// releaseWaitersUpTo answers waiters registered at or before epoch. Only a
// refresh waiting on exactly this fetch sees its error.
func (c *Context) releaseWaitersUpTo(epoch uint64, fetchErr error) {
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if w.epoch > epoch {
			kept = append(kept, w)
			continue
		}
		r := settleResult{state: c.state}
		if w.refresh && w.epoch == epoch {
			r.err = fetchErr
		}
		w.ch <- r
	}
	c.waiters = kept
}

// releaseWaiters answers every waiter. Pending refreshes fail with err.
func (c *Context) releaseWaiters(err error) {
	for _, w := range c.waiters {
		r := settleResult{state: c.state}
		if w.refresh {
			r.err = err
		}
		w.ch <- r
	}
	c.waiters = nil
}

func (c *Context) publish() {
	st := c.state
	c.snapshot.Store(&st)

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, w := range c.watchers {
		select {
		case <-w:
		default:
		}
		w <- st
	}
}
