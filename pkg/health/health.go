// Package health tracks per-tier health for graceful degradation. The engine
// feeds it operation outcomes; consecutive failures move a tier through
// degraded into unavailable, consecutive successes recover it.
package health

import (
	"sync"
	"time"
)

// State represents a tracked component's health state.
type State int

const (
	// StateHealthy indicates the tier is fully operational.
	StateHealthy State = iota

	// StateDegraded indicates recent failures; the tier still takes traffic.
	StateDegraded

	// StateUnavailable indicates sustained failures; callers should expect
	// every operation on the tier to degrade to a miss.
	StateUnavailable
)

// String returns the string representation of a health state.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ComponentHealth is a point-in-time view of one tracked component.
type ComponentHealth struct {
	Name                 string    `json:"name"`
	State                State     `json:"state"`
	LastStateChange      time.Time `json:"last_state_change"`
	LastObservation      time.Time `json:"last_observation"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastErrorMessage     string    `json:"last_error_message,omitempty"`
}

// TrackerConfig configures the state transition thresholds.
type TrackerConfig struct {
	// DegradedThreshold is the number of consecutive failures before a
	// component is marked degraded.
	DegradedThreshold int `yaml:"degraded_threshold"`

	// UnavailableThreshold is the number of consecutive failures before a
	// component is marked unavailable.
	UnavailableThreshold int `yaml:"unavailable_threshold"`

	// RecoveryThreshold is the number of consecutive successes before a
	// non-healthy component returns to healthy.
	RecoveryThreshold int `yaml:"recovery_threshold"`
}

// DefaultConfig returns the default transition thresholds.
func DefaultConfig() TrackerConfig {
	return TrackerConfig{
		DegradedThreshold:    3,
		UnavailableThreshold: 10,
		RecoveryThreshold:    5,
	}
}

type component struct {
	health ComponentHealth
}

// Tracker tracks the health of registered components. All methods are safe
// for concurrent use.
type Tracker struct {
	mu         sync.RWMutex
	components map[string]*component
	config     TrackerConfig
	now        func() time.Time
}

// NewTracker creates a tracker with the given thresholds. Zero or negative
// thresholds fall back to defaults.
func NewTracker(config TrackerConfig) *Tracker {
	defaults := DefaultConfig()
	if config.DegradedThreshold <= 0 {
		config.DegradedThreshold = defaults.DegradedThreshold
	}
	if config.UnavailableThreshold <= 0 {
		config.UnavailableThreshold = defaults.UnavailableThreshold
	}
	if config.RecoveryThreshold <= 0 {
		config.RecoveryThreshold = defaults.RecoveryThreshold
	}

	return &Tracker{
		components: make(map[string]*component),
		config:     config,
		now:        time.Now,
	}
}

// Register adds a component in the healthy state. Registering an existing
// component is a no-op.
func (t *Tracker) Register(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.components[name]; exists {
		return
	}
	now := t.now()
	t.components[name] = &component{
		health: ComponentHealth{
			Name:            name,
			State:           StateHealthy,
			LastStateChange: now,
			LastObservation: now,
		},
	}
}

// RecordSuccess records a successful operation for a component. Unregistered
// components are registered implicitly.
func (t *Tracker) RecordSuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.componentLocked(name)
	c.health.ConsecutiveFailures = 0
	c.health.ConsecutiveSuccesses++
	c.health.LastObservation = t.now()
	c.health.LastErrorMessage = ""

	if c.health.State != StateHealthy && c.health.ConsecutiveSuccesses >= t.config.RecoveryThreshold {
		t.transitionLocked(c, StateHealthy)
	}
}

// RecordFailure records a failed operation for a component.
func (t *Tracker) RecordFailure(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.componentLocked(name)
	c.health.ConsecutiveSuccesses = 0
	c.health.ConsecutiveFailures++
	c.health.LastObservation = t.now()
	if err != nil {
		c.health.LastErrorMessage = err.Error()
	}

	switch {
	case c.health.ConsecutiveFailures >= t.config.UnavailableThreshold:
		t.transitionLocked(c, StateUnavailable)
	case c.health.ConsecutiveFailures >= t.config.DegradedThreshold:
		if c.health.State == StateHealthy {
			t.transitionLocked(c, StateDegraded)
		}
	}
}

// Component returns the health of one component.
func (t *Tracker) Component(name string) (ComponentHealth, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, exists := t.components[name]
	if !exists {
		return ComponentHealth{}, false
	}
	return c.health, true
}

// Report returns the health of every registered component.
func (t *Tracker) Report() map[string]ComponentHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	report := make(map[string]ComponentHealth, len(t.components))
	for name, c := range t.components {
		report[name] = c.health
	}
	return report
}

// Overall returns the worst state across all components; an empty tracker is
// healthy.
func (t *Tracker) Overall() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	worst := StateHealthy
	for _, c := range t.components {
		if c.health.State > worst {
			worst = c.health.State
		}
	}
	return worst
}

func (t *Tracker) componentLocked(name string) *component {
	c, exists := t.components[name]
	if !exists {
		now := t.now()
		c = &component{
			health: ComponentHealth{
				Name:            name,
				State:           StateHealthy,
				LastStateChange: now,
				LastObservation: now,
			},
		}
		t.components[name] = c
	}
	return c
}

func (t *Tracker) transitionLocked(c *component, state State) {
	if c.health.State == state {
		return
	}
	c.health.State = state
	c.health.LastStateChange = t.now()
}
