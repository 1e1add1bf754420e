package room

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/duelserver/game"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/network"
	"github.com/wfunc/duelserver/timer"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

// MockBroadcaster is a test double for the Broadcaster interface. It
// records every delivered message by id.
type MockBroadcaster struct {
	mutex    sync.Mutex
	messages []uint16
	payloads map[uint16][]interface{}
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{payloads: make(map[uint16][]interface{})}
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, payload interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.messages = append(m.messages, msgID)
	m.payloads[msgID] = append(m.payloads[msgID], payload)
	return nil
}

func (m *MockBroadcaster) SendToSession(sessionID string, msgID uint16, payload interface{}) error {
	return m.BroadcastToRoom("", msgID, payload)
}

func (m *MockBroadcaster) Count(msgID uint16) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.payloads[msgID])
}

func (m *MockBroadcaster) Last(msgID uint16) interface{} {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	items := m.payloads[msgID]
	if len(items) == 0 {
		return nil
	}
	return items[len(items)-1]
}

// MockRecorder is a test double for the MatchRecorder interface.
type MockRecorder struct {
	mutex     sync.Mutex
	matches   int
	rounds    int
	hands     int
	finalized bool
	winner    string
	reason    string
}

func (m *MockRecorder) CreateMatch(player1, player2 string) (uint, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.matches++
	return uint(m.matches), nil
}

func (m *MockRecorder) AppendRound(matchID uint, roundNumber int, player1Hand, player2Hand, winner string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rounds++
	return nil
}

func (m *MockRecorder) FinalizeMatch(matchID uint, winner, reason string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.finalized = true
	m.winner = winner
	m.reason = reason
	return nil
}

func (m *MockRecorder) RecordHand(uid, hand string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.hands++
	return nil
}

func (m *MockRecorder) Finalized() (bool, string, string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.finalized, m.winner, m.reason
}

// testRules keeps rounds long enough to stay open during assertions while
// the intermission and grace window stay short.
func testRules() game.Rules {
	return game.Rules{
		RoundDuration: 10 * time.Second,
		Intermission:  200 * time.Millisecond,
		WinThreshold:  4,
		GracePeriod:   200 * time.Millisecond,
	}
}

type testRoom struct {
	room        *Room
	broadcaster *MockBroadcaster
	recorder    *MockRecorder
	timers      *timer.Manager
}

func newTestRoom(t *testing.T, rules game.Rules, b PlayerSlot) *testRoom {
	t.Helper()

	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	broadcaster := NewMockBroadcaster()
	recorder := &MockRecorder{}

	a := PlayerSlot{UID: "alice", Username: "alice", Elo: 1000, SessionID: "sess_alice"}
	r := NewRoom("test_room", game.ModeCasual, a, b, Deps{
		Broadcaster: broadcaster,
		Recorder:    recorder,
		Timers:      timers,
		Rules:       rules,
	}, nil)
	t.Cleanup(r.Close)

	return &testRoom{room: r, broadcaster: broadcaster, recorder: recorder, timers: timers}
}

func humanSlot(uid string) PlayerSlot {
	return PlayerSlot{UID: uid, Username: uid, Elo: 1000, SessionID: "sess_" + uid}
}

// waitFor polls until the condition holds or the deadline expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (tr *testRoom) startMatch(t *testing.T) {
	t.Helper()
	if err := tr.room.ReadyUp("alice"); err != nil {
		t.Fatalf("ReadyUp(alice) failed: %v", err)
	}
	if err := tr.room.ReadyUp("bob"); err != nil {
		t.Fatalf("ReadyUp(bob) failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return tr.broadcaster.Count(network.MsgTypeRoundStart) >= 1
	}, "Match did not start after both players readied up")
}

func TestRoom_StartRequiresBothReady(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))

	tr.room.ReadyUp("alice")
	time.Sleep(300 * time.Millisecond)

	if tr.broadcaster.Count(network.MsgTypeRoundStart) != 0 {
		t.Fatal("Round must not start with only one player ready")
	}

	tr.room.ReadyUp("bob")
	waitFor(t, 2*time.Second, func() bool {
		return tr.broadcaster.Count(network.MsgTypeRoundStart) == 1
	}, "Round should start once both players are ready")

	snapshot := tr.room.Snapshot()
	if !snapshot.GameStarted || snapshot.Round != 1 {
		t.Errorf("Expected started match at round 1, got started=%v round=%d",
			snapshot.GameStarted, snapshot.Round)
	}
}

func TestRoom_ReadyUp_UnknownPlayer(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))

	if err := tr.room.ReadyUp("mallory"); err != ErrPlayerNotInRoom {
		t.Errorf("Expected ErrPlayerNotInRoom, got %v", err)
	}
}

func TestRoom_BotOpponentStartsOnSingleReady(t *testing.T) {
	bot := PlayerSlot{UID: "BOT_1", Username: "RockyBot", Elo: 1000, IsBot: true}
	tr := newTestRoom(t, testRules(), bot)

	tr.room.ReadyUp("alice")

	waitFor(t, 2*time.Second, func() bool {
		return tr.broadcaster.Count(network.MsgTypeRoundStart) == 1
	}, "A single human ready should start a bot match")
}

func TestRoom_ResolveRound_ExactlyOnce(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))
	tr.startMatch(t)

	tr.room.SubmitChoice("alice", game.Rock)
	if tr.broadcaster.Count(network.MsgTypeRoundResults) != 0 {
		t.Fatal("Round must not resolve on a single choice")
	}

	// The duplicate must be ignored, not scored twice.
	tr.room.SubmitChoice("alice", game.Paper)
	tr.room.SubmitChoice("bob", game.Scissors)
	tr.room.SubmitChoice("bob", game.Scissors)

	waitFor(t, time.Second, func() bool {
		return tr.broadcaster.Count(network.MsgTypeRoundResults) >= 1
	}, "Round did not resolve after both choices")

	if tr.broadcaster.Count(network.MsgTypeRoundResults) != 1 {
		t.Fatalf("Expected exactly one round result, got %d",
			tr.broadcaster.Count(network.MsgTypeRoundResults))
	}

	results := tr.broadcaster.Last(network.MsgTypeRoundResults).(network.RoundResultsEvent)
	if results.Winner != "bob" {
		t.Errorf("Scissors beats rock, expected bob to win, got %s", results.Winner)
	}
	if results.Choices["alice"] != game.Rock {
		t.Errorf("First choice must stand, got %v", results.Choices["alice"])
	}
	if results.Score["bob"] != 1 || results.Score["alice"] != 0 {
		t.Errorf("Expected score bob=1 alice=0, got %v", results.Score)
	}
}

func TestRoom_DrawScoresNobody(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))
	tr.startMatch(t)

	tr.room.SubmitChoice("alice", game.Paper)
	tr.room.SubmitChoice("bob", game.Paper)

	waitFor(t, time.Second, func() bool {
		return tr.broadcaster.Count(network.MsgTypeRoundResults) >= 1
	}, "Round did not resolve")

	results := tr.broadcaster.Last(network.MsgTypeRoundResults).(network.RoundResultsEvent)
	if results.Winner != WinnerDraw {
		t.Errorf("Expected a draw, got %s", results.Winner)
	}
	if results.Score["alice"] != 0 || results.Score["bob"] != 0 {
		t.Errorf("A draw must not score, got %v", results.Score)
	}
}

func TestRoom_IntermissionStartsNextRound(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))
	tr.startMatch(t)

	tr.room.SubmitChoice("alice", game.Rock)
	tr.room.SubmitChoice("bob", game.Scissors)

	waitFor(t, 2*time.Second, func() bool {
		return tr.broadcaster.Count(network.MsgTypeRoundStart) >= 2
	}, "Next round did not start after the intermission")

	snapshot := tr.room.Snapshot()
	if snapshot.Round != 2 {
		t.Errorf("Expected round 2, got %d", snapshot.Round)
	}
}

func TestRoom_MatchEndsAtThreshold(t *testing.T) {
	rules := testRules()
	rules.WinThreshold = 2
	tr := newTestRoom(t, rules, humanSlot("bob"))
	tr.startMatch(t)

	for round := 1; round <= 2; round++ {
		tr.room.SubmitChoice("alice", game.Paper)
		tr.room.SubmitChoice("bob", game.Rock)
		waitFor(t, 2*time.Second, func() bool {
			return tr.broadcaster.Count(network.MsgTypeRoundResults) >= round
		}, "Round did not resolve")

		if round < rules.WinThreshold {
			waitFor(t, 2*time.Second, func() bool {
				return tr.broadcaster.Count(network.MsgTypeRoundStart) >= round+1
			}, "Next round did not start")
		}
	}

	waitFor(t, time.Second, func() bool {
		return tr.broadcaster.Count(network.MsgTypeMatchEnd) >= 1
	}, "Match did not end at the win threshold")

	end := tr.broadcaster.Last(network.MsgTypeMatchEnd).(network.MatchEndEvent)
	if end.Winner != "alice" {
		t.Errorf("Expected alice to win the match, got %s", end.Winner)
	}
	if end.FinalScore["alice"] != 2 {
		t.Errorf("Expected final score 2, got %v", end.FinalScore)
	}
	if !tr.room.Ended() {
		t.Error("Room should report ended")
	}

	// Late submissions against an ended match are ignored.
	tr.room.SubmitChoice("bob", game.Paper)
	if tr.broadcaster.Count(network.MsgTypeRoundResults) != 2 {
		t.Error("No round may resolve after the match ends")
	}

	waitFor(t, 2*time.Second, func() bool {
		done, _, _ := tr.recorder.Finalized()
		return done
	}, "Match record was never finalized")

	_, winner, reason := tr.recorder.Finalized()
	if winner != "alice" || reason != "" {
		t.Errorf("Expected finalized winner alice with no reason, got %q %q", winner, reason)
	}
}

func TestRoom_PersistsRoundsAndHands(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))
	tr.startMatch(t)

	tr.room.SubmitChoice("alice", game.Rock)
	tr.room.SubmitChoice("bob", game.Scissors)

	waitFor(t, 2*time.Second, func() bool {
		tr.recorder.mutex.Lock()
		defer tr.recorder.mutex.Unlock()
		return tr.recorder.rounds == 1 && tr.recorder.hands == 2
	}, "Round and hand records were never written")

	tr.recorder.mutex.Lock()
	matches := tr.recorder.matches
	tr.recorder.mutex.Unlock()
	if matches != 1 {
		t.Errorf("Expected a single lazily created match record, got %d", matches)
	}
}

func TestRoom_DisconnectForfeitsAfterGrace(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))
	tr.startMatch(t)

	tr.room.HandleDisconnect("bob")

	waitFor(t, 3*time.Second, func() bool {
		return tr.broadcaster.Count(network.MsgTypeMatchEnd) >= 1
	}, "Match did not forfeit after the grace period")

	if !tr.room.Ended() {
		t.Fatal("Room should report ended after the forfeit")
	}

	end := tr.broadcaster.Last(network.MsgTypeMatchEnd).(network.MatchEndEvent)
	if end.Winner != "alice" {
		t.Errorf("Expected the remaining player to win, got %s", end.Winner)
	}
	if end.Reason != ReasonDisconnect {
		t.Errorf("Expected reason %q, got %q", ReasonDisconnect, end.Reason)
	}

	waitFor(t, 2*time.Second, func() bool {
		done, _, _ := tr.recorder.Finalized()
		return done
	}, "Forfeit was never persisted")

	_, winner, reason := tr.recorder.Finalized()
	if winner != "alice" || reason != ReasonDisconnect {
		t.Errorf("Expected persisted forfeit for alice, got %q %q", winner, reason)
	}
}

func TestRoom_RejoinCancelsForfeit(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))
	tr.startMatch(t)

	tr.room.HandleDisconnect("bob")

	snapshot, err := tr.room.Rejoin("bob", "sess_bob_2")
	if err != nil {
		t.Fatalf("Rejoin failed: %v", err)
	}
	if !snapshot.GameStarted || snapshot.Round != 1 {
		t.Errorf("Snapshot should describe the live match, got started=%v round=%d",
			snapshot.GameStarted, snapshot.Round)
	}

	if uid, ok := tr.room.HasSession("sess_bob_2"); !ok || uid != "bob" {
		t.Error("Rejoin should rebind the new session to bob's slot")
	}

	time.Sleep(800 * time.Millisecond)
	if tr.room.Ended() {
		t.Error("Rejoin inside the grace window must cancel the forfeit")
	}
}

func TestRoom_Rejoin_UnknownPlayer(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))

	if _, err := tr.room.Rejoin("mallory", "sess_mallory"); err != ErrPlayerNotInRoom {
		t.Errorf("Expected ErrPlayerNotInRoom, got %v", err)
	}
}

func TestRoom_RelayShownHand(t *testing.T) {
	tr := newTestRoom(t, testRules(), humanSlot("bob"))

	hand := "ROCK"
	tr.room.RelayShownHand("alice", &hand)

	if tr.broadcaster.Count(network.MsgTypeOpponentShownHand) != 1 {
		t.Fatal("Shown hand should reach the opponent")
	}

	event := tr.broadcaster.Last(network.MsgTypeOpponentShownHand).(network.OpponentShownHandEvent)
	if event.Hand == nil || *event.Hand != "ROCK" {
		t.Error("Relayed hand payload mismatch")
	}

	// A nil hand is a valid decoy signal.
	tr.room.RelayShownHand("bob", nil)
	if tr.broadcaster.Count(network.MsgTypeOpponentShownHand) != 2 {
		t.Error("A nil hand should still relay")
	}
}

func TestRoom_RelayShownHand_SkipsBot(t *testing.T) {
	bot := PlayerSlot{UID: "BOT_1", Username: "RockyBot", Elo: 1000, IsBot: true}
	tr := newTestRoom(t, testRules(), bot)

	hand := "PAPER"
	tr.room.RelayShownHand("alice", &hand)

	if tr.broadcaster.Count(network.MsgTypeOpponentShownHand) != 0 {
		t.Error("Decoys aimed at a bot opponent must be dropped")
	}
}

func TestRoom_SnapshotHidesNothingButBots(t *testing.T) {
	bot := PlayerSlot{UID: "BOT_1", Username: "RockyBot", Elo: 1000, IsBot: true}
	tr := newTestRoom(t, testRules(), bot)

	snapshot := tr.room.Snapshot()
	if len(snapshot.Players) != 2 {
		t.Fatalf("Expected both players in the snapshot, got %d", len(snapshot.Players))
	}

	ids := tr.room.SessionIDs()
	if len(ids) != 1 || ids[0] != "sess_alice" {
		t.Errorf("Bots must not contribute delivery sessions, got %v", ids)
	}
}

func TestManager_CustomRoomLifecycle(t *testing.T) {
	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	broadcaster := NewMockBroadcaster()
	m := NewManager(Deps{
		Broadcaster: broadcaster,
		Timers:      timers,
		Rules:       testRules(),
	})

	creator := humanSlot("alice")
	roomID := m.CreateCustomRoom(creator)
	if roomID == "" {
		t.Fatal("CreateCustomRoom should return an identifier")
	}

	// The pending room is not an active duel yet.
	if _, exists := m.Get(roomID); exists {
		t.Fatal("A pending room must not be in the active registry")
	}

	if _, err := m.JoinCustomRoom("no_such_room", humanSlot("bob")); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
	if _, err := m.JoinCustomRoom(roomID, creator); err != ErrRoomFull {
		t.Errorf("Creator joining their own room should report full, got %v", err)
	}

	r, err := m.JoinCustomRoom(roomID, humanSlot("bob"))
	if err != nil {
		t.Fatalf("JoinCustomRoom failed: %v", err)
	}
	t.Cleanup(r.Close)

	if _, exists := m.Get(roomID); !exists {
		t.Fatal("A filled room must join the active registry")
	}
	if broadcaster.Count(network.MsgTypeMatchFound) != 1 {
		t.Error("Filling the room should broadcast the match-found snapshot")
	}

	// A second joiner finds the pending entry gone.
	if _, err := m.JoinCustomRoom(roomID, humanSlot("carol")); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound for a consumed room, got %v", err)
	}
}

func TestManager_FindBySessionAndRemove(t *testing.T) {
	timers := timer.NewManager()
	t.Cleanup(timers.Stop)

	broadcaster := NewMockBroadcaster()
	m := NewManager(Deps{
		Broadcaster: broadcaster,
		Timers:      timers,
		Rules:       testRules(),
	})

	r := m.CreateSession(humanSlot("alice"), humanSlot("bob"), game.ModeRanked)
	if m.ActiveCount() != 1 {
		t.Fatalf("Expected 1 active room, got %d", m.ActiveCount())
	}

	found, uid, ok := m.FindBySession("sess_bob")
	if !ok || found != r || uid != "bob" {
		t.Fatal("FindBySession should locate bob's room")
	}

	if _, _, ok := m.FindBySession("sess_unknown"); ok {
		t.Fatal("FindBySession should miss unknown sessions")
	}

	m.Remove(r.ID)
	if m.ActiveCount() != 0 {
		t.Errorf("Expected no active rooms after removal, got %d", m.ActiveCount())
	}
	if _, exists := m.Get(r.ID); exists {
		t.Error("Removed room should be gone from the registry")
	}
}
