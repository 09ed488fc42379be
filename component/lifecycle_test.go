package component

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestManager_StartStopOrder(t *testing.T) {
	rec := &recorder{}
	m := NewManager(nil)

	require.NoError(t, m.Add("sink", newLifecycleMock("sink", rec)))
	require.NoError(t, m.Add("plain", newMockComponent("plain", "output")))
	require.NoError(t, m.Add("inlet", newLifecycleMock("inlet", rec)))

	require.NoError(t, m.Start(context.Background(), time.Second))
	require.NoError(t, m.Stop(time.Second))

	assert.Equal(t, []string{
		"init:sink", "start:sink",
		"init:inlet", "start:inlet",
		"stop:inlet", "stop:sink",
	}, rec.snapshot())

	for _, mc := range m.Components() {
		if mc.Name == "plain" {
			assert.Equal(t, StateCreated, mc.State)
			continue
		}
		assert.Equal(t, StateStopped, mc.State)
	}
}

func TestManager_StartFailureStopsStarted(t *testing.T) {
	rec := &recorder{}
	m := NewManager(nil)

	first := newLifecycleMock("first", rec)
	second := newLifecycleMock("second", rec)
	second.startErr = errBoom

	require.NoError(t, m.Add("first", first))
	require.NoError(t, m.Add("second", second))

	err := m.Start(context.Background(), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, []string{"init:first", "start:first", "init:second", "start:second", "stop:first"}, rec.snapshot())
	require.NotNil(t, first.ctx)
	assert.Error(t, first.ctx.Err(), "child context is cancelled on stop")

	// Nothing left running
	assert.NoError(t, m.Stop(time.Second))
}

func TestManager_StopJoinsErrors(t *testing.T) {
	rec := &recorder{}
	m := NewManager(nil)

	a := newLifecycleMock("a", rec)
	a.stopErr = errBoom
	b := newLifecycleMock("b", rec)

	require.NoError(t, m.Add("a", a))
	require.NoError(t, m.Add("b", b))
	require.NoError(t, m.Start(context.Background(), time.Second))

	err := m.Stop(time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"init:a", "start:a", "init:b", "start:b", "stop:b", "stop:a"}, rec.snapshot())
}

func TestManager_AddValidation(t *testing.T) {
	m := NewManager(nil)
	assert.Error(t, m.Add("", newMockComponent("x", "input")))
	assert.Error(t, m.Add("x", nil))
	require.NoError(t, m.Add("x", newMockComponent("x", "input")))
	assert.Error(t, m.Add("x", newMockComponent("x", "input")))

	require.NoError(t, m.Start(context.Background(), time.Second))
	assert.Error(t, m.Start(context.Background(), time.Second))
	assert.Error(t, m.Add("y", newMockComponent("y", "input")))

	health := m.Health()
	assert.True(t, health["x"].Healthy)
}

func TestAsLifecycleComponent(t *testing.T) {
	assert.False(t, IsLifecycleComponent(newMockComponent("x", "input")))
	assert.True(t, IsLifecycleComponent(newLifecycleMock("y", &recorder{})))

	lc, ok := AsLifecycleComponent(newLifecycleMock("y", &recorder{}))
	assert.True(t, ok)
	assert.NotNil(t, lc)
}
