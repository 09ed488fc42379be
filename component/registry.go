package component

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/tne-lab/LSL-inlet/errors"
)

// Info holds metadata about an available component type
type Info struct {
	Type        string `json:"type"`        // "input", "output"
	Protocol    string `json:"protocol"`    // lsl, nats, websocket, memory
	Description string `json:"description"` // Human-readable description
	Version     string `json:"version"`     // Component version
}

// Factory creates a component from its raw JSON configuration. Factories
// parse and validate configuration only; I/O belongs in Start.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (Discoverable, error)

// Registration holds factory and metadata for a component type
type Registration struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Protocol    string  `json:"protocol"`
	Description string  `json:"description"`
	Version     string  `json:"version"`
	Factory     Factory `json:"-"`
}

// RegistrationConfig is the argument to RegisterWithConfig
type RegistrationConfig struct {
	Name        string
	Factory     Factory
	Type        string
	Protocol    string
	Description string
	Version     string
}

// Registry manages component factories and instances.
// All methods are safe for concurrent use.
type Registry struct {
	factories       map[string]*Registration
	instances       map[string]Discoverable
	resourceTracker map[string]string // resource ID -> instance name
	mu              sync.RWMutex
}

// NewRegistry creates a new empty component registry
func NewRegistry() *Registry {
	return &Registry{
		factories:       make(map[string]*Registration),
		instances:       make(map[string]Discoverable),
		resourceTracker: make(map[string]string),
	}
}

// RegisterFactory registers a component factory with the given name
func (r *Registry) RegisterFactory(name string, registration *Registration) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory name validation")
	}
	if registration == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "registration validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory function validation")
	}
	if registration.Type == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "component type validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		msg := fmt.Errorf("factory '%s' is already registered", name)
		return errors.WrapInvalid(msg, "Registry", "RegisterFactory", "duplicate factory check")
	}

	r.factories[name] = registration
	return nil
}

// RegisterWithConfig registers a component using a configuration struct.
//
//	registry.RegisterWithConfig(component.RegistrationConfig{
//	    Name:        "ring-output",
//	    Factory:     ring.CreateSink,
//	    Type:        "output",
//	    Protocol:    "memory",
//	    Description: "Bounded in-process ring of emitted chunks",
//	    Version:     "1.0.0",
//	})
func (r *Registry) RegisterWithConfig(config RegistrationConfig) error {
	return r.RegisterFactory(config.Name, &Registration{
		Name:        config.Name,
		Factory:     config.Factory,
		Type:        config.Type,
		Protocol:    config.Protocol,
		Description: config.Description,
		Version:     config.Version,
	})
}

// CreateComponent builds a component with the named factory and registers it
// under instanceName.
func (r *Registry) CreateComponent(
	instanceName, factoryName string, rawConfig json.RawMessage, deps Dependencies,
) (Discoverable, error) {
	if err := ValidateComponentName(instanceName); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "instance name validation")
	}
	if err := ValidateComponentName(factoryName); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "factory name validation")
	}
	if err := ValidateFactoryConfig(rawConfig); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "config validation")
	}

	r.mu.RLock()
	registration, exists := r.factories[factoryName]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("unknown component factory '%s'", factoryName)
		return nil, errors.WrapInvalid(msg, "Registry", "CreateComponent", "factory lookup")
	}

	comp, err := registration.Factory(rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "factory execution")
	}

	if err := r.RegisterInstance(instanceName, comp); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "instance registration")
	}

	return comp, nil
}

// RegisterInstance registers a component instance with the given name
func (r *Registry) RegisterInstance(name string, comp Discoverable) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterInstance", "instance name validation")
	}
	if comp == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterInstance", "component validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[name]; exists {
		msg := fmt.Errorf("instance '%s' is already registered", name)
		return errors.WrapInvalid(msg, "Registry", "RegisterInstance", "duplicate instance check")
	}

	if err := r.checkResourceConflicts(comp); err != nil {
		return errors.Wrap(err, "Registry", "RegisterInstance", "resource conflict check")
	}

	r.instances[name] = comp
	r.trackComponentResources(name, comp)
	return nil
}

// UnregisterInstance removes a component instance from the registry
func (r *Registry) UnregisterInstance(name string) {
	if name == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if comp, exists := r.instances[name]; exists {
		r.untrackComponentResources(name, comp)
	}
	delete(r.instances, name)
}

// ListComponents returns a copy of all registered instances
func (r *Registry) ListComponents() map[string]Discoverable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Discoverable, len(r.instances))
	maps.Copy(result, r.instances)
	return result
}

// Component retrieves a specific component instance by name, or nil
func (r *Registry) Component(name string) Discoverable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.instances[name]
}

// ListComponentTypes returns the registered factory names, sorted
func (r *Registry) ListComponentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetFactory returns a specific factory by name
func (r *Registry) GetFactory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.factories[name]
	if !exists {
		return nil, false
	}
	return registration.Factory, true
}

// ListAvailable returns information about all available component types
func (r *Registry) ListAvailable() map[string]Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Info, len(r.factories))
	for name, registration := range r.factories {
		result[name] = Info{
			Type:        registration.Type,
			Protocol:    registration.Protocol,
			Description: registration.Description,
			Version:     registration.Version,
		}
	}
	return result
}

func allPorts(comp Discoverable) []Port {
	ports := make([]Port, 0, len(comp.InputPorts())+len(comp.OutputPorts()))
	ports = append(ports, comp.InputPorts()...)
	return append(ports, comp.OutputPorts()...)
}

// checkResourceConflicts requires r.mu to be held
func (r *Registry) checkResourceConflicts(comp Discoverable) error {
	for _, port := range allPorts(comp) {
		if port.Config == nil || !port.Config.IsExclusive() {
			continue
		}

		if networkPort, ok := port.Config.(NetworkPort); ok {
			if err := ValidatePortNumber(networkPort.Port); err != nil {
				return errors.Wrap(err, "Registry", "checkResourceConflicts", "network port validation")
			}
		}

		resourceID := port.Config.ResourceID()
		if existing, exists := r.resourceTracker[resourceID]; exists {
			msg := fmt.Errorf("resource conflict: %s already used by component '%s'", resourceID, existing)
			return errors.WrapInvalid(msg, "Registry", "checkResourceConflicts", "exclusive resource check")
		}
	}
	return nil
}

func (r *Registry) trackComponentResources(instanceName string, comp Discoverable) {
	for _, port := range allPorts(comp) {
		if port.Config != nil && port.Config.IsExclusive() {
			r.resourceTracker[port.Config.ResourceID()] = instanceName
		}
	}
}

func (r *Registry) untrackComponentResources(instanceName string, comp Discoverable) {
	for _, port := range allPorts(comp) {
		if port.Config == nil || !port.Config.IsExclusive() {
			continue
		}
		resourceID := port.Config.ResourceID()
		if owner, exists := r.resourceTracker[resourceID]; exists && owner == instanceName {
			delete(r.resourceTracker, resourceID)
		}
	}
}
