package activity

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

type session struct {
	monitor     *Monitor
	tokenExpiry time.Time
}

// Snapshot describes a tracked session at one point in time.
type Snapshot struct {
	State        State         `json:"-"`
	StateName    string        `json:"state"`
	LastActivity time.Time     `json:"last_activity"`
	IdleFor      time.Duration `json:"-"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// Tracker keeps a Monitor per session id (the token id). Ended and expired
// sessions stay known until their token would have expired anyway, so a
// logged out token cannot start a fresh session.
//
// State lives in process memory and is lost on restart.
type Tracker struct {
	idleAfter time.Duration
	timeout   time.Duration
	interval  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewTracker(idleAfter, timeout, interval time.Duration) *Tracker {
	return &Tracker{
		idleAfter: idleAfter,
		timeout:   timeout,
		interval:  interval,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// WithClock replaces the time source. Call it before the tracker is shared.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Timeout is the idle timeout used when a session does not carry its own.
func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}

// CheckInterval is the period between sweeps, and the polling period
// clients are expected to use.
func (t *Tracker) CheckInterval() time.Duration {
	return t.interval
}

// Touch records activity on session id. The first touch starts tracking with
// the given idle timeout; tokenExpiry bounds how long the entry is kept.
func (t *Tracker) Touch(id string, timeout time.Duration, tokenExpiry time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s, ok := t.sessions[id]
	if !ok {
		if timeout <= 0 {
			timeout = t.timeout
		}
		s = &session{
			monitor:     NewMonitor(t.idleAfter, timeout, now),
			tokenExpiry: tokenExpiry,
		}
		t.sessions[id] = s
		return s.monitor.State()
	}

	return s.monitor.Activity(now)
}

// Status reports the state of session id without counting as activity.
func (t *Tracker) Status(id string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		return Snapshot{}, false
	}

	now := t.now()
	state := s.monitor.Observe(now)
	last := s.monitor.LastActivity()

	snap := Snapshot{
		State:        state,
		StateName:    state.String(),
		LastActivity: last,
		IdleFor:      now.Sub(last),
		ExpiresAt:    last.Add(s.monitor.Timeout),
	}
	if s.tokenExpiry.Before(snap.ExpiresAt) {
		snap.ExpiresAt = s.tokenExpiry
	}
	return snap, true
}

// End expires session id, creating the entry when it is not tracked yet.
func (t *Tracker) End(id string, tokenExpiry time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		s = &session{
			monitor:     NewMonitor(t.idleAfter, t.timeout, t.now()),
			tokenExpiry: tokenExpiry,
		}
		t.sessions[id] = s
	}
	s.monitor.Expire()
}

// Sweep evaluates every session and forgets those whose token has expired.
func (t *Tracker) Sweep() (idle, expired, removed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, s := range t.sessions {
		if !now.Before(s.tokenExpiry) {
			delete(t.sessions, id)
			removed++
			continue
		}

		switch s.monitor.Observe(now) {
		case Idle:
			idle++
		case Expired:
			expired++
		}
	}
	return idle, expired, removed
}

// Len returns the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Run sweeps on every check interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle, expired, removed := t.Sweep()
			log.Debugw("session sweep", "idle", idle, "expired", expired, "removed", removed, "tracked", t.Len())
		}
	}
}
