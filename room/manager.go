// room/manager.go
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/duelserver/game"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/network"
)

// How long an unfilled private room waits for its second player.
const pendingRoomTTL = 10 * time.Minute

// pendingRoom 是等待第二名玩家的私人房间
type pendingRoom struct {
	creator   PlayerSlot
	createdAt time.Time
}

// Manager 是所有活跃对局的注册表
type Manager struct {
	mutex   sync.RWMutex
	ranked  map[string]*Room
	casual  map[string]*Room
	pending map[string]*pendingRoom

	deps        Deps
	cleanupTask int64
}

func NewManager(deps Deps) *Manager {
	m := &Manager{
		ranked:  make(map[string]*Room),
		casual:  make(map[string]*Room),
		pending: make(map[string]*pendingRoom),
		deps:    deps,
	}

	if deps.Timers != nil {
		m.cleanupTask = deps.Timers.Schedule(pendingRoomTTL, pendingRoomTTL, m.cleanupPending)
	}
	return m
}

// CreateSession opens a duel between the two slots, registers it and
// broadcasts the match-found snapshot to both connections.
func (m *Manager) CreateSession(a, b PlayerSlot, mode game.Mode) *Room {
	roomID := uuid.New().String()
	r := NewRoom(roomID, mode, a, b, m.deps, m.Remove)

	m.mutex.Lock()
	if mode == game.ModeRanked {
		m.ranked[roomID] = r
	} else {
		m.casual[roomID] = r
	}
	m.mutex.Unlock()

	logger.Log.Infof("Created %s room %s: %s vs %s", mode, roomID, a.UID, b.UID)
	m.deps.Broadcaster.BroadcastToRoom(roomID, network.MsgTypeMatchFound, r.Snapshot())
	return r
}

// CreateCustomRoom opens a capacity-1 private room and returns its
// shareable identifier. The room joins the active registry only when the
// second player arrives.
func (m *Manager) CreateCustomRoom(creator PlayerSlot) string {
	roomID := uuid.New().String()

	m.mutex.Lock()
	m.pending[roomID] = &pendingRoom{creator: creator, createdAt: time.Now()}
	m.mutex.Unlock()

	logger.Log.Infof("Player %s created private room %s", creator.UID, roomID)
	return roomID
}

// JoinCustomRoom fills the second slot and promotes the room into the
// active registry as a casual duel.
func (m *Manager) JoinCustomRoom(roomID string, joiner PlayerSlot) (*Room, error) {
	m.mutex.Lock()
	p, exists := m.pending[roomID]
	if !exists {
		m.mutex.Unlock()
		return nil, ErrRoomNotFound
	}
	if p.creator.UID == joiner.UID {
		m.mutex.Unlock()
		return nil, ErrRoomFull
	}
	delete(m.pending, roomID)

	r := NewRoom(roomID, game.ModeCasual, p.creator, joiner, m.deps, m.Remove)
	m.casual[roomID] = r
	m.mutex.Unlock()

	logger.Log.Infof("Player %s joined private room %s", joiner.UID, roomID)
	m.deps.Broadcaster.BroadcastToRoom(roomID, network.MsgTypeMatchFound, r.Snapshot())
	return r, nil
}

// Get looks a room up across both active registries.
func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if r, exists := m.ranked[roomID]; exists {
		return r, true
	}
	r, exists := m.casual[roomID]
	return r, exists
}

// Rejoin restores a player into their unfinished duel. A room already
// removed (ended, or forfeited after the grace window) reports not found.
func (m *Manager) Rejoin(roomID, playerID, sessionID string) (models.RoomSnapshot, error) {
	r, exists := m.Get(roomID)
	if !exists {
		return models.RoomSnapshot{}, ErrRoomNotFound
	}
	return r.Rejoin(playerID, sessionID)
}

// FindBySession locates the active room a connection is playing in.
func (m *Manager) FindBySession(sessionID string) (*Room, string, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, pool := range []map[string]*Room{m.ranked, m.casual} {
		for _, r := range pool {
			if uid, ok := r.HasSession(sessionID); ok {
				return r, uid, true
			}
		}
	}
	return nil, "", false
}

// Remove drops the room from every registry and stops its loop.
func (m *Manager) Remove(roomID string) {
	m.mutex.Lock()
	r, exists := m.ranked[roomID]
	if exists {
		delete(m.ranked, roomID)
	} else if r, exists = m.casual[roomID]; exists {
		delete(m.casual, roomID)
	}
	delete(m.pending, roomID)
	m.mutex.Unlock()

	if exists {
		r.Close()
	}
}

// ActiveCount reports the number of live duels for metrics.
func (m *Manager) ActiveCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.ranked) + len(m.casual)
}

// cleanupPending drops private rooms nobody ever joined.
func (m *Manager) cleanupPending() {
	cutoff := time.Now().Add(-pendingRoomTTL)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for roomID, p := range m.pending {
		if p.createdAt.Before(cutoff) {
			delete(m.pending, roomID)
			logger.Log.Infof("Expired unfilled private room %s", roomID)
		}
	}
}
