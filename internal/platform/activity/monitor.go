// Package activity enforces the idle timeout of sessions. It works next to
// token expiry: a session that sat idle for too long is expired even when its
// token is still valid.
package activity

import "time"

type State int

const (
	Active State = iota
	Idle
	Expired
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Idle:
		return "idle"
	default:
		return "expired"
	}
}

// Monitor is the state machine of a single session. Expired is terminal.
type Monitor struct {
	IdleAfter time.Duration
	Timeout   time.Duration

	lastActivity time.Time
	state        State
}

func NewMonitor(idleAfter, timeout time.Duration, now time.Time) *Monitor {
	if idleAfter <= 0 || idleAfter > timeout {
		idleAfter = timeout
	}
	return &Monitor{
		IdleAfter:    idleAfter,
		Timeout:      timeout,
		lastActivity: now,
		state:        Active,
	}
}

// Observe moves the session forward to now without counting as activity.
func (m *Monitor) Observe(now time.Time) State {
	if m.state == Expired {
		return m.state
	}

	idle := now.Sub(m.lastActivity)
	switch {
	case idle >= m.Timeout:
		m.state = Expired
	case idle >= m.IdleAfter:
		m.state = Idle
	default:
		m.state = Active
	}
	return m.state
}

// Activity records a user action at now. An action arriving after the
// timeout does not revive the session.
func (m *Monitor) Activity(now time.Time) State {
	if m.Observe(now) == Expired {
		return Expired
	}
	m.lastActivity = now
	m.state = Active
	return m.state
}

// Expire ends the session.
func (m *Monitor) Expire() {
	m.state = Expired
}

func (m *Monitor) State() State {
	return m.state
}

func (m *Monitor) LastActivity() time.Time {
	return m.lastActivity
}
