package component

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tne-lab/LSL-inlet/errors"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateCreated indicates component was created but not initialized
	StateCreated State = iota
	// StateInitialized indicates component was initialized but not started
	StateInitialized
	// StateStarted indicates component is running
	StateStarted
	// StateStopped indicates component was stopped
	StateStopped
	// StateFailed indicates component failed during lifecycle operation
	StateFailed
)

// String returns a string representation of the component state
func (cs State) String() string {
	switch cs {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LifecycleComponent defines components that support full lifecycle management:
//   - Initialize() error                 // Setup/allocate only, NO context
//   - Start(ctx context.Context) error   // Start with context passed through
//   - Stop(timeout time.Duration) error  // Stop with timeout for graceful shutdown
type LifecycleComponent interface {
	Discoverable
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// ManagedComponent tracks a component and its lifecycle state
type ManagedComponent struct {
	Name      string
	Component Discoverable
	State     State

	// Cancel stops the child context handed to Start. The component never
	// stores the context itself.
	Cancel context.CancelFunc

	StartOrder int
	LastError  error
}

// IsLifecycleComponent checks if a component supports lifecycle management
func IsLifecycleComponent(comp Discoverable) bool {
	_, ok := comp.(LifecycleComponent)
	return ok
}

// AsLifecycleComponent safely casts a component to LifecycleComponent
func AsLifecycleComponent(comp Discoverable) (LifecycleComponent, bool) {
	lc, ok := comp.(LifecycleComponent)
	return lc, ok
}

// Manager runs a fixed set of components. Start walks them in the order they
// were added; Stop walks them in reverse.
type Manager struct {
	mu         sync.Mutex
	components []*ManagedComponent
	started    bool
	logger     *slog.Logger
}

// NewManager creates an empty manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger.With("component", "component-manager")}
}

// Add appends a component. Components cannot be added once started.
func (m *Manager) Add(name string, comp Discoverable) error {
	if err := ValidateComponentName(name); err != nil {
		return errors.Wrap(err, "Manager", "Add", "name validation")
	}
	if comp == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Manager", "Add", "component validation")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Manager", "Add", "state check")
	}
	for _, mc := range m.components {
		if mc.Name == name {
			return errors.WrapInvalid(
				fmt.Errorf("component '%s' is already managed", name), "Manager", "Add", "duplicate check")
		}
	}

	m.components = append(m.components, &ManagedComponent{Name: name, Component: comp, State: StateCreated})
	return nil
}

// Start initializes and starts every lifecycle component in order. When one
// fails, the ones already started are stopped in reverse order and the error
// is returned.
func (m *Manager) Start(ctx context.Context, stopTimeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Manager", "Start", "state check")
	}

	order := 0
	for _, mc := range m.components {
		lc, ok := AsLifecycleComponent(mc.Component)
		if !ok {
			continue
		}

		if mc.State == StateCreated || mc.State == StateFailed {
			if err := lc.Initialize(); err != nil {
				mc.State = StateFailed
				mc.LastError = err
				m.stopStarted(stopTimeout)
				return errors.Wrap(err, "Manager", "Start", fmt.Sprintf("initialize %s", mc.Name))
			}
			mc.State = StateInitialized
		}

		m.logger.Info("Starting component", "name", mc.Name, "type", mc.Component.Meta().Type)

		childCtx, cancel := context.WithCancel(ctx)
		if err := lc.Start(childCtx); err != nil {
			cancel()
			mc.State = StateFailed
			mc.LastError = err
			m.logger.Error("Component failed to start", "name", mc.Name, "error", err)
			m.stopStarted(stopTimeout)
			return errors.Wrap(err, "Manager", "Start", fmt.Sprintf("start %s", mc.Name))
		}

		mc.Cancel = cancel
		mc.State = StateStarted
		mc.StartOrder = order
		order++
	}

	m.started = true
	return nil
}

// Stop stops every started component in reverse start order. All components
// are stopped even when some fail; the errors are joined.
func (m *Manager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	err := m.stopStarted(timeout)
	m.started = false
	return err
}

// stopStarted requires m.mu to be held
func (m *Manager) stopStarted(timeout time.Duration) error {
	var errs []error
	for i := len(m.components) - 1; i >= 0; i-- {
		mc := m.components[i]
		if mc.State != StateStarted {
			continue
		}
		lc, _ := AsLifecycleComponent(mc.Component)

		if err := lc.Stop(timeout); err != nil {
			mc.LastError = err
			m.logger.Error("Component failed to stop", "name", mc.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", mc.Name, err))
		}
		if mc.Cancel != nil {
			mc.Cancel()
			mc.Cancel = nil
		}
		mc.State = StateStopped
		m.logger.Info("Component stopped", "name", mc.Name)
	}
	return stderrors.Join(errs...)
}

// Components returns a snapshot of the managed components in start order
func (m *Manager) Components() []ManagedComponent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ManagedComponent, 0, len(m.components))
	for _, mc := range m.components {
		out = append(out, *mc)
	}
	return out
}

// Health returns the health of every managed component keyed by name
func (m *Manager) Health() map[string]HealthStatus {
	m.mu.Lock()
	comps := make([]*ManagedComponent, len(m.components))
	copy(comps, m.components)
	m.mu.Unlock()

	out := make(map[string]HealthStatus, len(comps))
	for _, mc := range comps {
		out[mc.Name] = mc.Component.Health()
	}
	return out
}
