package town

import (
	"sync"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/metrics"
	"go.uber.org/zap"
)

// TownListener observes town-wide state changes. Implementations include the
// per-socket bridge in the transport package and test doubles; UI hooks can
// subscribe the same way.
//
// Dispatch is synchronous and in registration order. Notifications for one
// mutating operation are delivered before that operation returns, and a
// listener that panics does not prevent later listeners from running.
type TownListener interface {
	OnPlayerJoined(player *Player)
	OnPlayerMoved(player *Player)
	OnPlayerDisconnected(player *Player)
	OnTownDestroyed()
	OnConversationAreaUpdated(area *ConversationArea)
	OnConversationAreaDestroyed(area *ConversationArea)
}

// listenerList is the controller's town-listener registry. It carries its own
// lock, separate from the controller's state lock, so a listener may add or
// remove listeners while a dispatch that holds the state lock is in flight.
type listenerList struct {
	mu        sync.Mutex
	listeners []TownListener
}

// add registers l unless it is already present (idempotent by identity).
func (ll *listenerList) add(l TownListener) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	for _, existing := range ll.listeners {
		if existing == l {
			return
		}
	}
	ll.listeners = append(ll.listeners, l)
}

// remove unregisters l, matching by identity.
func (ll *listenerList) remove(l TownListener) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	for i, existing := range ll.listeners {
		if existing == l {
			ll.listeners = append(ll.listeners[:i], ll.listeners[i+1:]...)
			return
		}
	}
}

// snapshot copies the current registration order. Dispatch iterates the copy,
// so removals during iteration take effect on the next event.
func (ll *listenerList) snapshot() []TownListener {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	out := make([]TownListener, len(ll.listeners))
	copy(out, ll.listeners)
	return out
}

// notify runs fn against every registered listener, recovering from panics so
// one failing listener cannot starve the rest.
func (ll *listenerList) notify(townID string, fn func(TownListener)) {
	for _, l := range ll.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.ListenerFailures.Inc()
					logging.GetLogger().Error("Town listener panicked",
						zap.String("town_id", townID), zap.Any("panic", r))
				}
			}()
			fn(l)
		}()
	}
}
