package town

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/metrics"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

// TownsStore is the process-wide registry of town controllers. Construct one
// per process and inject it into the transport hub and REST handlers; there
// is deliberately no package-level instance so tests can run in parallel.
//
// The store has its own serialization domain. Handing out a controller
// transfers no ownership: all further mutation goes through that
// controller's own lock.
type TownsStore struct {
	mu       sync.Mutex
	towns    []*Controller
	tokens   VideoTokenSource
	capacity int
}

// TownSettings carries the optional fields of a password-gated town update.
type TownSettings struct {
	FriendlyName     *string
	IsPubliclyListed *bool
}

// NewTownsStore creates an empty registry whose towns mint video tokens from
// tokens and admit at most capacity players each (DefaultCapacity when <= 0).
func NewTownsStore(tokens VideoTokenSource, capacity int) *TownsStore {
	return &TownsStore{tokens: tokens, capacity: capacity}
}

// CreateTown registers a new town and returns its controller. The returned
// controller carries the freshly generated townID and update password.
func (s *TownsStore) CreateTown(friendlyName string, isPubliclyListed bool) *Controller {
	ctrl := NewController(friendlyName, isPubliclyListed, s.tokens, s.capacity)

	s.mu.Lock()
	s.towns = append(s.towns, ctrl)
	s.mu.Unlock()

	metrics.ActiveTowns.Inc()
	logging.Info(context.Background(), "Town created",
		zap.String("town_id", string(ctrl.TownID())),
		zap.Bool("public", isPubliclyListed))
	return ctrl
}

// ControllerForTown returns the controller for townID, or nil.
func (s *TownsStore) ControllerForTown(townID types.TownIDType) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ctrl := range s.towns {
		if ctrl.TownID() == townID {
			return ctrl
		}
	}
	return nil
}

// Towns lists the publicly-visible towns in creation order.
func (s *TownsStore) Towns() []types.TownSummary {
	s.mu.Lock()
	snapshot := make([]*Controller, len(s.towns))
	copy(snapshot, s.towns)
	s.mu.Unlock()

	out := make([]types.TownSummary, 0, len(snapshot))
	for _, ctrl := range snapshot {
		if !ctrl.IsPubliclyListed() {
			continue
		}
		out = append(out, types.TownSummary{
			TownID:           ctrl.TownID(),
			FriendlyName:     ctrl.FriendlyName(),
			CurrentOccupancy: ctrl.Occupancy(),
			MaximumOccupancy: ctrl.Capacity(),
		})
	}
	return out
}

// UpdateTown applies settings to the town when the update password matches.
// It reports whether the update happened.
func (s *TownsStore) UpdateTown(townID types.TownIDType, password string, settings TownSettings) bool {
	ctrl := s.ControllerForTown(townID)
	if ctrl == nil || !ctrl.townUpdatePasswordMatches(password) {
		return false
	}
	ctrl.setSettings(settings.FriendlyName, settings.IsPubliclyListed)
	return true
}

// DeleteTown disconnects every player in the town and evicts it from the
// registry when the update password matches. It reports whether the town was
// deleted.
func (s *TownsStore) DeleteTown(townID types.TownIDType, password string) bool {
	s.mu.Lock()
	var ctrl *Controller
	for i, existing := range s.towns {
		if existing.TownID() == townID {
			if !existing.townUpdatePasswordMatches(password) {
				s.mu.Unlock()
				return false
			}
			ctrl = existing
			s.towns = append(s.towns[:i], s.towns[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if ctrl == nil {
		return false
	}

	ctrl.DisconnectAllPlayers()
	metrics.ActiveTowns.Dec()
	logging.Info(context.Background(), "Town deleted",
		zap.String("town_id", string(townID)))
	return true
}

// Shutdown closes every town so connected sockets receive townClosing before
// the process exits.
func (s *TownsStore) Shutdown(ctx context.Context) {
	s.mu.Lock()
	snapshot := s.towns
	s.towns = nil
	s.mu.Unlock()

	for _, ctrl := range snapshot {
		ctrl.DisconnectAllPlayers()
		metrics.ActiveTowns.Dec()
	}
	logging.Info(ctx, "Towns store shut down", zap.Int("towns_closed", len(snapshot)))
}
