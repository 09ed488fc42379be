// Package component defines the contracts shared by every runtime piece of the
// inlet: discovery metadata, lifecycle, ports, dependencies and the factory
// registry that builds components from raw JSON configuration.
//
// # Registration
//
// Component packages export a Register(*Registry) error function. The command
// entry point creates a Registry, calls each Register explicitly and then
// instantiates components by factory name:
//
//	registry := component.NewRegistry()
//	if err := inlet.Register(registry); err != nil {
//	    return err
//	}
//	comp, err := registry.CreateComponent("lsl-inlet", "lsl-inlet", rawConfig, deps)
//
// Factories parse their own configuration and never perform I/O. Network and
// device work happens in Start.
//
// # Lifecycle
//
// Components that own goroutines implement LifecycleComponent:
//
//	Initialize() error
//	Start(ctx context.Context) error
//	Stop(timeout time.Duration) error
//
// A Manager starts components in registration order and stops them in reverse
// order, each Stop bounded by the shutdown timeout.
//
// # Ports
//
// Ports describe where a component reads or writes data. Exclusive ports
// (network listeners) are tracked by the Registry so two instances cannot bind
// the same address.
package component
