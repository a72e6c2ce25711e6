package town

import (
	"context"
	"fmt"
	"sync"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

// mockTokenSource implements VideoTokenSource for testing.
type mockTokenSource struct {
	mu       sync.Mutex
	calls    int
	fail     bool
	blockCh  chan struct{} // When set, GetTokenForTown waits on it before returning
	lastTown types.TownIDType
}

func (m *mockTokenSource) GetTokenForTown(ctx context.Context, townID types.TownIDType, playerID types.PlayerIDType) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastTown = townID
	fail := m.fail
	blockCh := m.blockCh
	m.mu.Unlock()

	if blockCh != nil {
		<-blockCh
	}
	if fail {
		return "", fmt.Errorf("mock token mint error")
	}
	return fmt.Sprintf("video-token-%s-%s", townID, playerID), nil
}

func (m *mockTokenSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockListener implements TownListener and records every notification in
// arrival order.
type mockListener struct {
	mu     sync.Mutex
	events []string

	// Optional hooks, run synchronously inside the callback.
	onTownDestroyed func()
	onPlayerMoved   func(p *Player)
	panicOnJoin     bool
}

func newMockListener() *mockListener {
	return &mockListener{}
}

func (m *mockListener) record(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockListener) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

func (m *mockListener) countOf(prefix string) int {
	count := 0
	for _, e := range m.Events() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			count++
		}
	}
	return count
}

func (m *mockListener) OnPlayerJoined(p *Player) {
	if m.panicOnJoin {
		panic("mock listener failure")
	}
	m.record("playerJoined:" + string(p.ID()))
}

func (m *mockListener) OnPlayerMoved(p *Player) {
	m.record("playerMoved:" + string(p.ID()))
	if m.onPlayerMoved != nil {
		m.onPlayerMoved(p)
	}
}

func (m *mockListener) OnPlayerDisconnected(p *Player) {
	m.record("playerDisconnected:" + string(p.ID()))
}

func (m *mockListener) OnTownDestroyed() {
	m.record("townDestroyed")
	if m.onTownDestroyed != nil {
		m.onTownDestroyed()
	}
}

func (m *mockListener) OnConversationAreaUpdated(a *ConversationArea) {
	m.record("areaUpdated:" + a.Label())
}

func (m *mockListener) OnConversationAreaDestroyed(a *ConversationArea) {
	m.record("areaDestroyed:" + a.Label())
}

// mockAreaListener implements AreaListener and records occupant snapshots;
// nil marks destruction.
type mockAreaListener struct {
	mu      sync.Mutex
	changes [][]types.PlayerIDType
}

func (m *mockAreaListener) OnOccupantsChange(occupants []types.PlayerIDType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, occupants)
}

func (m *mockAreaListener) Changes() [][]types.PlayerIDType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]types.PlayerIDType, len(m.changes))
	copy(out, m.changes)
	return out
}

// newTestController builds a controller with a working token source.
func newTestController() (*Controller, *mockTokenSource) {
	tokens := &mockTokenSource{}
	return NewController("Test Town", true, tokens, 0), tokens
}

// joinPlayer admits a named player and returns it with its session and any
// error from AddPlayer.
func joinPlayer(ctrl *Controller, userName string) (*Player, *PlayerSession, error) {
	player := NewPlayer(userName)
	session, err := ctrl.AddPlayer(context.Background(), player)
	return player, session, err
}
