package component

import "fmt"

// NATSPort - NATS pub/sub subject
type NATSPort struct {
	Subject string `json:"subject"`
	Queue   string `json:"queue,omitempty"`
}

// ResourceID returns unique identifier for NATS ports
func (n NATSPort) ResourceID() string {
	return fmt.Sprintf("nats:%s", n.Subject)
}

// IsExclusive returns false as multiple components can subscribe
func (n NATSPort) IsExclusive() bool {
	return false
}

// Type returns the port type identifier
func (n NATSPort) Type() string {
	return "nats"
}

// NetworkPort - TCP/UDP network bindings
type NetworkPort struct {
	Protocol string `json:"protocol"` // "tcp", "udp"
	Host     string `json:"host"`     // "0.0.0.0", "localhost"
	Port     int    `json:"port"`     // 8081
}

// ResourceID returns unique identifier for network ports
func (n NetworkPort) ResourceID() string {
	return fmt.Sprintf("%s:%s:%d", n.Protocol, n.Host, n.Port)
}

// IsExclusive returns true as network ports are exclusive
func (n NetworkPort) IsExclusive() bool {
	return true
}

// Type returns the port type identifier
func (n NetworkPort) Type() string {
	return "network"
}

// StreamPort - a published time-series stream, identified by name and type
type StreamPort struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"` // "EEG", "Markers", ...
	SourceID string `json:"source_id,omitempty"`
}

// ResourceID returns unique identifier for stream ports
func (s StreamPort) ResourceID() string {
	if s.SourceID != "" {
		return fmt.Sprintf("stream:%s", s.SourceID)
	}
	return fmt.Sprintf("stream:%s/%s", s.Name, s.Kind)
}

// IsExclusive returns false as a published stream may have many inlets
func (s StreamPort) IsExclusive() bool {
	return false
}

// Type returns the port type identifier
func (s StreamPort) Type() string {
	return "stream"
}

// MemoryPort - an in-process ring the host reads from
type MemoryPort struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// ResourceID returns unique identifier for memory ports
func (m MemoryPort) ResourceID() string {
	return fmt.Sprintf("memory:%s", m.Name)
}

// IsExclusive returns true as a ring has a single writer
func (m MemoryPort) IsExclusive() bool {
	return true
}

// Type returns the port type identifier
func (m MemoryPort) Type() string {
	return "memory"
}
