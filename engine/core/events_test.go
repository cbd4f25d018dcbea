package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventsDeliveredOnDispatch(t *testing.T) {
	es := NewEventSystem(4)
	listener := new(int)

	var got []SystemEventCode
	require.True(t, es.Register(EVENT_CODE_FOCUS_LOST, listener, func(c EventContext) { got = append(got, c.Type) }))
	require.True(t, es.Register(EVENT_CODE_FOCUS_GAINED, listener, func(c EventContext) { got = append(got, c.Type) }))
	require.False(t, es.Register(EVENT_CODE_FOCUS_LOST, listener, func(EventContext) {}))

	require.True(t, es.Fire(EventContext{Type: EVENT_CODE_FOCUS_LOST}))
	require.True(t, es.Fire(EventContext{Type: EVENT_CODE_RESIZED}))
	require.True(t, es.Fire(EventContext{Type: EVENT_CODE_FOCUS_GAINED}))
	require.Empty(t, got)
	require.Equal(t, 3, es.Pending())

	require.Equal(t, 3, es.Dispatch())
	require.Equal(t, []SystemEventCode{EVENT_CODE_FOCUS_LOST, EVENT_CODE_FOCUS_GAINED}, got)
	require.Zero(t, es.Dispatch())
}

func TestEventFireDropsWhenFull(t *testing.T) {
	es := NewEventSystem(2)
	require.True(t, es.Fire(EventContext{Type: EVENT_CODE_RESIZED}))
	require.True(t, es.Fire(EventContext{Type: EVENT_CODE_RESIZED}))
	require.False(t, es.Fire(EventContext{Type: EVENT_CODE_RESIZED}))
	require.Equal(t, 2, es.Dispatch())
}

func TestEventUnregister(t *testing.T) {
	es := NewEventSystem(0)
	a, b := new(int), new(int)
	calls := map[*int]int{}
	es.Register(EVENT_CODE_APPLICATION_QUIT, a, func(EventContext) { calls[a]++ })
	es.Register(EVENT_CODE_APPLICATION_QUIT, b, func(EventContext) { calls[b]++ })

	require.True(t, es.Unregister(EVENT_CODE_APPLICATION_QUIT, a))
	require.False(t, es.Unregister(EVENT_CODE_APPLICATION_QUIT, a))

	es.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	es.Dispatch()
	require.Equal(t, map[*int]int{b: 1}, calls)
}

func TestEventFireAfterShutdown(t *testing.T) {
	es := NewEventSystem(0)
	require.NoError(t, es.Shutdown())
	require.False(t, es.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
}

func TestEventFireFromManyGoroutines(t *testing.T) {
	es := NewEventSystem(100)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				es.Fire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: uint32(j)}})
			}
		}()
	}
	wg.Wait()

	delivered := 0
	es.Register(EVENT_CODE_RESIZED, t, func(EventContext) { delivered++ })
	require.Equal(t, 100, es.Dispatch())
	require.Equal(t, 100, delivered)
}
