package hub_test

import (
	"testing"

	"github.com/nm-morais/go-boxtimer/internal/hub"
	"github.com/nm-morais/go-boxtimer/pkg/event"
	"github.com/nm-morais/go-boxtimer/pkg/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHub() *hub.Hub {
	return hub.New(logs.NewLogger("test"))
}

func TestDispatchPreservesRegistrationOrder(t *testing.T) {
	h := newHub()
	var order []string
	h.Add(func(event.Event) { order = append(order, "first") })
	h.Add(func(event.Event) { order = append(order, "second") })
	h.Add(func(event.Event) { order = append(order, "third") })

	failures := h.Dispatch(event.Event{Type: event.Tick})
	assert.Empty(t, failures)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRemoveStopsDelivery(t *testing.T) {
	h := newHub()
	calls := 0
	token := h.Add(func(event.Event) { calls++ })

	h.Dispatch(event.Event{Type: event.Tick})
	require.True(t, h.Remove(token))
	h.Dispatch(event.Event{Type: event.Tick})

	assert.Equal(t, 1, calls)
	assert.False(t, h.Remove(token))
}

func TestRemoveFromInsideHandlerIsSafe(t *testing.T) {
	h := newHub()
	var firstCalls, secondCalls int
	var firstToken int
	firstToken = h.Add(func(event.Event) {
		firstCalls++
		h.Remove(firstToken)
	})
	h.Add(func(event.Event) { secondCalls++ })

	h.Dispatch(event.Event{Type: event.Tick})
	h.Dispatch(event.Event{Type: event.Tick})

	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 2, secondCalls)
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	h := newHub()
	badToken := h.Add(func(event.Event) { panic("boom") })
	delivered := 0
	h.Add(func(event.Event) { delivered++ })

	failures := h.Dispatch(event.Event{Type: event.Warning})
	assert.Equal(t, 1, delivered)
	require.Len(t, failures, 1)
	assert.Equal(t, badToken, failures[0].Token)
	assert.Contains(t, failures[0].String(), "panicked")
}

func TestClearDropsEveryListener(t *testing.T) {
	h := newHub()
	calls := 0
	h.Add(func(event.Event) { calls++ })
	h.Add(func(event.Event) { calls++ })
	require.Equal(t, 2, h.Len())

	h.Clear()
	assert.Zero(t, h.Len())
	h.Dispatch(event.Event{Type: event.Tick})
	assert.Zero(t, calls)
}
