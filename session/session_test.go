package session

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/duelserver/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error             { return nil }
func (m *MockConnection) SendJSON(msgID uint16, payload interface{}) error { return nil }
func (m *MockConnection) Close() error                                     { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                             { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)              {}
func (m *MockConnection) ReadPacket() (*network.Packet, error)             { return nil, nil }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	// Test Add
	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	// Test Get
	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	// Test Remove
	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByPlayerID(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{})
	sess1.BindPlayer("alice")

	sess2 := NewSession("session2", &MockConnection{})
	sess2.BindPlayer("bob")

	sess3 := NewSession("session3", &MockConnection{})
	sess3.BindPlayer("alice")

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	aliceSessions := manager.GetByPlayerID("alice")
	if len(aliceSessions) != 2 {
		t.Errorf("Expected 2 sessions for alice, got %d", len(aliceSessions))
	}

	bobSessions := manager.GetByPlayerID("bob")
	if len(bobSessions) != 1 {
		t.Errorf("Expected 1 session for bob, got %d", len(bobSessions))
	}

	noSessions := manager.GetByPlayerID("carol")
	if len(noSessions) != 0 {
		t.Errorf("Expected 0 sessions for carol, got %d", len(noSessions))
	}
}

func TestSession_BindPlayer_SetRoom(t *testing.T) {
	sess := NewSession("test_session", &MockConnection{})

	if sess.GetPlayerID() != "" {
		t.Error("A fresh session should have no bound player")
	}

	sess.BindPlayer("alice")
	if sess.GetPlayerID() != "alice" {
		t.Errorf("Expected bound player alice, got %q", sess.GetPlayerID())
	}

	sess.SetRoom("room_1")
	if sess.GetRoom() != "room_1" {
		t.Errorf("Expected room room_1, got %q", sess.GetRoom())
	}
}
