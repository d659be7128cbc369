package hub

import (
	"fmt"
	"sync"

	"github.com/nm-morais/go-boxtimer/pkg/event"
	"github.com/sirupsen/logrus"
)

// Failure records a listener that panicked while handling an event.
type Failure struct {
	Token int
	Cause interface{}
}

func (f Failure) String() string {
	return fmt.Sprintf("listener %d panicked: %v", f.Token, f.Cause)
}

// Hub fans a single event out to every registered listener in
// registration order. Listeners are identified by the token returned at
// registration; removal is safe from within a running handler because
// dispatch iterates over a copy of the listener list.
type Hub struct {
	listenersMutex *sync.RWMutex
	listeners      []entry
	nextToken      int
	logger         *logrus.Logger
}

type entry struct {
	token   int
	handler event.Handler
}

func New(logger *logrus.Logger) *Hub {
	return &Hub{
		listenersMutex: &sync.RWMutex{},
		listeners:      []entry{},
		logger:         logger,
	}
}

// Add registers a listener and returns its removal token.
func (hub *Hub) Add(handler event.Handler) int {
	hub.listenersMutex.Lock()
	defer hub.listenersMutex.Unlock()
	hub.nextToken++
	hub.listeners = append(hub.listeners, entry{token: hub.nextToken, handler: handler})
	return hub.nextToken
}

// Remove unregisters the listener with the given token. It reports
// whether a listener was removed.
func (hub *Hub) Remove(token int) bool {
	hub.listenersMutex.Lock()
	defer hub.listenersMutex.Unlock()
	for idx, listener := range hub.listeners {
		if listener.token == token {
			hub.listeners = append(hub.listeners[:idx], hub.listeners[idx+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every listener.
func (hub *Hub) Clear() {
	hub.listenersMutex.Lock()
	defer hub.listenersMutex.Unlock()
	hub.listeners = nil
}

// Len returns the number of registered listeners.
func (hub *Hub) Len() int {
	hub.listenersMutex.RLock()
	defer hub.listenersMutex.RUnlock()
	return len(hub.listeners)
}

// Dispatch delivers the event to every listener in registration order.
// A panicking listener does not prevent delivery to the rest; panics are
// logged and returned as failures for the caller to surface.
func (hub *Hub) Dispatch(ev event.Event) []Failure {
	hub.listenersMutex.RLock()
	currListeners := make([]entry, len(hub.listeners))
	copy(currListeners, hub.listeners)
	hub.listenersMutex.RUnlock()

	var failures []Failure
	for _, listener := range currListeners {
		if cause := hub.deliver(listener, ev); cause != nil {
			failures = append(failures, Failure{Token: listener.token, Cause: cause})
		}
	}
	return failures
}

func (hub *Hub) deliver(listener entry, ev event.Event) (cause interface{}) {
	defer func() {
		if x := recover(); x != nil {
			cause = x
			if hub.logger != nil {
				hub.logger.Errorf("listener %d panicked handling %s event: %v", listener.token, ev.Type, x)
			}
		}
	}()
	listener.handler(ev)
	return nil
}
