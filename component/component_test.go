package component

import (
	"context"
	"errors"
	"sync"
	"time"
)

// mockComponent implements Discoverable for registry tests
type mockComponent struct {
	name        string
	compType    string
	inputPorts  []Port
	outputPorts []Port
}

func newMockComponent(name, compType string) *mockComponent {
	return &mockComponent{
		name:     name,
		compType: compType,
		inputPorts: []Port{{
			Name:      "samples",
			Direction: DirectionInput,
			Required:  true,
			Config:    StreamPort{Name: "EEG-1", Kind: "EEG"},
		}},
		outputPorts: []Port{{
			Name:      "chunks",
			Direction: DirectionOutput,
			Config:    NATSPort{Subject: "lsl.chunks"},
		}},
	}
}

func (m *mockComponent) Meta() Metadata {
	return Metadata{Name: m.name, Type: m.compType, Description: "mock", Version: "1.0.0"}
}
func (m *mockComponent) InputPorts() []Port  { return m.inputPorts }
func (m *mockComponent) OutputPorts() []Port { return m.outputPorts }
func (m *mockComponent) Health() HealthStatus {
	return HealthStatus{Healthy: true, LastCheck: time.Now()}
}
func (m *mockComponent) DataFlow() FlowMetrics { return FlowMetrics{} }

// recorder collects lifecycle calls across components in call order
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// lifecycleMock implements LifecycleComponent and records every call
type lifecycleMock struct {
	mockComponent
	rec      *recorder
	startErr error
	stopErr  error
	ctx      context.Context
}

func newLifecycleMock(name string, rec *recorder) *lifecycleMock {
	return &lifecycleMock{mockComponent: *newMockComponent(name, "input"), rec: rec}
}

func (l *lifecycleMock) Initialize() error {
	l.rec.add("init:" + l.name)
	return nil
}

func (l *lifecycleMock) Start(ctx context.Context) error {
	l.rec.add("start:" + l.name)
	l.ctx = ctx
	return l.startErr
}

func (l *lifecycleMock) Stop(_ time.Duration) error {
	l.rec.add("stop:" + l.name)
	return l.stopErr
}

var errBoom = errors.New("boom")
