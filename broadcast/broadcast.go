// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/wfunc/duelserver/room"
	"github.com/wfunc/duelserver/session"
)

// RoomBroadcaster delivers engine events over the live websocket sessions.
// Delivery failures are skipped; the read loop notices the dead connection
// and runs the disconnect path.
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{sessionManager: sessionManager}
}

// BindRoomManager completes the wiring. The room manager needs the
// broadcaster at construction, so the back-reference arrives afterwards.
func (b *RoomBroadcaster) BindRoomManager(roomManager *room.Manager) {
	b.roomManager = roomManager
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, payload interface{}) error {
	if b.roomManager == nil {
		return room.ErrRoomNotFound
	}
	r, exists := b.roomManager.Get(roomID)
	if !exists {
		return room.ErrRoomNotFound
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for _, sessionID := range r.SessionIDs() {
		s, ok := b.sessionManager.Get(sessionID)
		if !ok {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			// 发送失败按隐式断线处理，由读循环负责清理
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) SendToSession(sessionID string, msgID uint16, payload interface{}) error {
	s, ok := b.sessionManager.Get(sessionID)
	if !ok {
		return nil
	}
	return s.SendJSON(msgID, payload)
}
