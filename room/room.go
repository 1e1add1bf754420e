// room/room.go
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/duelserver/bot"
	"github.com/wfunc/duelserver/game"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/models"
	"github.com/wfunc/duelserver/network"
	"github.com/wfunc/duelserver/state"
	"github.com/wfunc/duelserver/timer"
)

const updateInterval = 100 * time.Millisecond

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room full")
	ErrPlayerNotInRoom = errors.New("player not in room")
)

// Terminal reasons carried on match-end events and persisted records.
const (
	ReasonDisconnect = "opponent-disconnected"
	WinnerDraw       = "draw"
)

// PlayerSlot is one of the two fixed participants. SessionID is a weak,
// rebindable delivery reference; losing it never destroys room state.
type PlayerSlot struct {
	UID       string
	Username  string
	PhotoURL  string
	Elo       int
	SessionID string
	IsBot     bool
}

// Room 是一场双人对局及其回合状态
type Room struct {
	ID        string
	Mode      game.Mode
	CreatedAt time.Time

	mutex        sync.Mutex
	players      [2]*PlayerSlot
	score        map[string]int
	ready        map[string]bool
	round        int
	choices      map[int]map[string]game.Move
	accepted     map[int]bool
	roundBeganAt time.Time
	roundEndsAt  time.Time
	started      bool
	ended        bool
	winner       string

	graceTimer int64
	botCancel  func()

	// matchID is written lazily on the first persisted round and guarded
	// by persistMutex so asynchronous writes stay ordered.
	persistMutex sync.Mutex
	matchID      uint

	machine     state.Machine
	rules       game.Rules
	broadcaster Broadcaster
	recorder    MatchRecorder
	timers      *timer.Manager
	bots        BotPlayer
	events      Events
	onEnd       func(roomID string)

	ticker    *time.Ticker
	closeChan chan bool
	closeOnce sync.Once
}

// Deps bundles the collaborators every room shares.
type Deps struct {
	Broadcaster Broadcaster
	Recorder    MatchRecorder
	Timers      *timer.Manager
	Bots        BotPlayer
	Rules       game.Rules
	Events      Events
}

// Events are optional observability hooks; nil fields are skipped.
type Events struct {
	RoundResolved func(elapsed time.Duration)
	MatchEnded    func(reason string)
}

// NewRoom 创建一个新对局房间
func NewRoom(id string, mode game.Mode, a, b PlayerSlot, deps Deps, onEnd func(roomID string)) *Room {
	if onEnd == nil {
		onEnd = func(string) {}
	}
	r := &Room{
		ID:          id,
		Mode:        mode,
		CreatedAt:   time.Now(),
		players:     [2]*PlayerSlot{&a, &b},
		score:       map[string]int{a.UID: 0, b.UID: 0},
		ready:       map[string]bool{a.UID: false, b.UID: false},
		choices:     make(map[int]map[string]game.Move),
		accepted:    make(map[int]bool),
		rules:       deps.Rules,
		broadcaster: deps.Broadcaster,
		recorder:    deps.Recorder,
		timers:      deps.Timers,
		bots:        deps.Bots,
		events:      deps.Events,
		onEnd:       onEnd,
		closeChan:   make(chan bool),
	}

	r.machine = state.NewBaseMachine(state.NewAwaitingReadyState(r))

	r.ticker = time.NewTicker(updateInterval)
	go r.loop()

	return r
}

// --- state.RoomContext ---

func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) ChangeState(newState state.State) error {
	return r.machine.ChangeState(newState)
}

// TryStart flips the started flag once both humans are ready. A bot
// opponent is always implicitly ready, so a single human ready suffices.
func (r *Room) TryStart() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.started || r.ended {
		return false
	}

	hasBot := false
	humansReady := true
	anyReady := false
	for _, slot := range r.players {
		if slot.IsBot {
			hasBot = true
			continue
		}
		if r.ready[slot.UID] {
			anyReady = true
		} else {
			humansReady = false
		}
	}

	if humansReady || (hasBot && anyReady) {
		r.started = true
		return true
	}
	return false
}

// BeginRound opens the next choice window and kicks the bot simulator when
// the opponent is synthetic.
func (r *Room) BeginRound() {
	r.mutex.Lock()
	if r.ended {
		r.mutex.Unlock()
		return
	}

	// A stray cancel hook from a previous round must never leak.
	if r.botCancel != nil {
		r.botCancel()
	}
	r.botCancel = nil

	r.round++
	round := r.round
	r.choices[round] = make(map[string]game.Move)
	r.accepted[round] = false
	r.roundBeganAt = time.Now()
	r.roundEndsAt = r.roundBeganAt.Add(r.rules.RoundDuration)
	endsAt := r.roundEndsAt.UnixMilli()

	botSlot, humanSlot := r.botAndHumanLocked()
	r.mutex.Unlock()

	r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeRoundStart, network.RoundStartEvent{
		Round:  round,
		EndsAt: endsAt,
	})

	if botSlot == nil || r.bots == nil {
		return
	}

	botUID := botSlot.UID
	humanSessionID := humanSlot.SessionID
	cancel := r.bots.PlayRound(r.rules.RoundDuration, bot.RoundHooks{
		ShowHand: func(move game.Move) {
			hand := move.String()
			r.broadcaster.SendToSession(humanSessionID, network.MsgTypeOpponentShownHand,
				network.OpponentShownHandEvent{Hand: &hand})
		},
		Commit: func(move game.Move) {
			r.SubmitChoice(botUID, move)
		},
	})

	r.mutex.Lock()
	if r.accepted[round] || r.ended {
		// Resolved or forfeited while the simulator was being set up.
		r.mutex.Unlock()
		cancel()
		return
	}
	r.botCancel = cancel
	r.mutex.Unlock()
}

func (r *Room) RoundDeadlinePassed() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.started && !r.roundEndsAt.IsZero() && time.Now().After(r.roundEndsAt)
}

func (r *Room) CurrentRoundAccepted() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.accepted[r.round]
}

// PromptChoices nudges both players when the deadline expires. It never
// resolves the round; resolution strictly requires both choices.
func (r *Room) PromptChoices() {
	r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeRequestChoices, struct{}{})
}

func (r *Room) IntermissionTicks() int {
	ticks := int(r.rules.Intermission / updateInterval)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// --- player-facing operations ---

// ReadyUp marks the player ready. The state machine starts the match on its
// next tick once the ready conditions hold.
func (r *Room) ReadyUp(playerID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.slotLocked(playerID) == nil {
		return ErrPlayerNotInRoom
	}
	r.ready[playerID] = true
	return nil
}

// SubmitChoice stores a committed move. Exactly once per round per player:
// duplicates are silent no-ops. Triggers resolution when both moves for the
// current round are in.
func (r *Room) SubmitChoice(playerID string, move game.Move) error {
	r.mutex.Lock()

	if r.ended || !r.started {
		r.mutex.Unlock()
		return nil
	}
	if r.slotLocked(playerID) == nil {
		r.mutex.Unlock()
		return ErrPlayerNotInRoom
	}

	round := r.round
	roundChoices := r.choices[round]
	if roundChoices == nil {
		r.mutex.Unlock()
		return nil
	}
	if _, dup := roundChoices[playerID]; dup {
		r.mutex.Unlock()
		return nil
	}

	roundChoices[playerID] = move
	complete := len(roundChoices) == 2 && !r.accepted[round]
	r.mutex.Unlock()

	if complete {
		r.resolveRound()
	}
	return nil
}

// resolveRound seals the current round, scores it, persists it and either
// schedules the intermission or ends the match. The accepted flag makes it
// idempotent: concurrent triggers resolve exactly once.
func (r *Room) resolveRound() {
	r.mutex.Lock()

	round := r.round
	roundChoices := r.choices[round]
	if r.ended || r.accepted[round] || len(roundChoices) < 2 {
		r.mutex.Unlock()
		return
	}
	r.accepted[round] = true
	elapsed := time.Since(r.roundBeganAt)

	cancelBot := r.botCancel
	r.botCancel = nil

	p1, p2 := r.players[0], r.players[1]
	c1, c2 := roundChoices[p1.UID], roundChoices[p2.UID]

	winner := WinnerDraw
	switch game.Judge(c1, c2) {
	case game.FirstWins:
		winner = p1.UID
	case game.SecondWins:
		winner = p2.UID
	}
	if winner != WinnerDraw {
		r.score[winner]++
	}

	results := network.RoundResultsEvent{
		Round:   round,
		Choices: map[string]game.Move{p1.UID: c1, p2.UID: c2},
		Winner:  winner,
		Score:   copyScore(r.score),
	}

	matchOver := r.score[p1.UID] >= r.rules.WinThreshold || r.score[p2.UID] >= r.rules.WinThreshold
	var end network.MatchEndEvent
	if matchOver {
		r.ended = true
		switch {
		case r.score[p1.UID] > r.score[p2.UID]:
			r.winner = p1.UID
		case r.score[p2.UID] > r.score[p1.UID]:
			r.winner = p2.UID
		default:
			r.winner = WinnerDraw
		}
		end = network.MatchEndEvent{FinalScore: copyScore(r.score), Winner: r.winner}
	}
	r.mutex.Unlock()

	if cancelBot != nil {
		cancelBot()
	}

	r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeRoundResults, results)
	go r.persistRound(round, p1, p2, c1, c2, winner)

	if r.events.RoundResolved != nil {
		r.events.RoundResolved(elapsed)
	}

	if matchOver {
		r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeMatchEnd, end)
		go r.persistFinal(p1.UID, p2.UID, end.Winner, "")
		if r.events.MatchEnded != nil {
			r.events.MatchEnded("")
		}
		r.ChangeState(state.NewEndedState(r))
		r.onEnd(r.ID)
		return
	}

	r.ChangeState(state.NewIntermissionState(r))
}

// Rejoin rebinds the reconnecting player's delivery reference, cancels the
// forfeit countdown and returns the full snapshot to resume from.
func (r *Room) Rejoin(playerID, sessionID string) (models.RoomSnapshot, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	slot := r.slotLocked(playerID)
	if slot == nil {
		return models.RoomSnapshot{}, ErrPlayerNotInRoom
	}

	slot.SessionID = sessionID
	if r.graceTimer != 0 {
		r.timers.Cancel(r.graceTimer)
		r.graceTimer = 0
	}

	return r.snapshotLocked(), nil
}

// HandleDisconnect starts the forfeit grace countdown for an unfinished
// match. A rejoin inside the window cancels it.
func (r *Room) HandleDisconnect(playerID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.ended || r.slotLocked(playerID) == nil {
		return
	}

	if r.graceTimer != 0 {
		r.timers.Cancel(r.graceTimer)
	}

	leaver := playerID
	r.graceTimer = r.timers.Schedule(r.rules.GracePeriod, 0, func() {
		r.forfeit(leaver)
	})
	logger.Log.Infof("Player %s disconnected from room %s, grace period started", playerID, r.ID)
}

// forfeit ends the match in favour of the remaining player.
func (r *Room) forfeit(leaverID string) {
	r.mutex.Lock()
	if r.ended {
		r.mutex.Unlock()
		return
	}
	r.ended = true
	r.graceTimer = 0

	opponent := r.opponentLocked(leaverID)
	if opponent != nil {
		r.winner = opponent.UID
	} else {
		r.winner = WinnerDraw
	}

	cancelBot := r.botCancel
	r.botCancel = nil

	end := network.MatchEndEvent{
		FinalScore: copyScore(r.score),
		Winner:     r.winner,
		Reason:     ReasonDisconnect,
	}
	p1, p2 := r.players[0].UID, r.players[1].UID
	r.mutex.Unlock()

	if cancelBot != nil {
		cancelBot()
	}

	logger.Log.Infof("Room %s forfeited by %s", r.ID, leaverID)
	r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeMatchEnd, end)
	go r.persistFinal(p1, p2, end.Winner, ReasonDisconnect)

	if r.events.MatchEnded != nil {
		r.events.MatchEnded(ReasonDisconnect)
	}

	r.ChangeState(state.NewEndedState(r))
	r.onEnd(r.ID)
}

// RelayShownHand forwards a cosmetic hand signal to the opponent only. It
// never touches game state.
func (r *Room) RelayShownHand(fromPlayerID string, hand *string) {
	r.mutex.Lock()
	opponent := r.opponentLocked(fromPlayerID)
	var sessionID string
	if opponent != nil && !opponent.IsBot {
		sessionID = opponent.SessionID
	}
	r.mutex.Unlock()

	if sessionID == "" {
		return
	}
	r.broadcaster.SendToSession(sessionID, network.MsgTypeOpponentShownHand,
		network.OpponentShownHandEvent{Hand: hand})
}

// --- accessors ---

func (r *Room) HasPlayer(playerID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.slotLocked(playerID) != nil
}

// HasSession reports whether the connection currently delivers to one of
// the room's slots.
func (r *Room) HasSession(sessionID string) (string, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, slot := range r.players {
		if !slot.IsBot && slot.SessionID == sessionID {
			return slot.UID, true
		}
	}
	return "", false
}

// SessionIDs lists the live delivery references for broadcasting.
func (r *Room) SessionIDs() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ids := make([]string, 0, 2)
	for _, slot := range r.players {
		if !slot.IsBot && slot.SessionID != "" {
			ids = append(ids, slot.SessionID)
		}
	}
	return ids
}

func (r *Room) Ended() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.ended
}

func (r *Room) Snapshot() models.RoomSnapshot {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.snapshotLocked()
}

// --- internals ---

func (r *Room) slotLocked(playerID string) *PlayerSlot {
	for _, slot := range r.players {
		if slot.UID == playerID {
			return slot
		}
	}
	return nil
}

func (r *Room) opponentLocked(playerID string) *PlayerSlot {
	for _, slot := range r.players {
		if slot.UID != playerID {
			return slot
		}
	}
	return nil
}

func (r *Room) botAndHumanLocked() (botSlot, humanSlot *PlayerSlot) {
	for _, slot := range r.players {
		if slot.IsBot {
			botSlot = slot
		} else {
			humanSlot = slot
		}
	}
	if botSlot == nil {
		humanSlot = nil
	}
	return botSlot, humanSlot
}

func (r *Room) snapshotLocked() models.RoomSnapshot {
	snapshot := models.RoomSnapshot{
		RoomID:      r.ID,
		Mode:        r.Mode,
		Players:     make([]models.PlayerSnapshot, 0, 2),
		Score:       copyScore(r.score),
		ReadyCheck:  make(map[string]bool, len(r.ready)),
		Round:       r.round,
		GameStarted: r.started,
		GameEnded:   r.ended,
		Winner:      r.winner,
	}
	for uid, ready := range r.ready {
		snapshot.ReadyCheck[uid] = ready
	}
	for _, slot := range r.players {
		snapshot.Players = append(snapshot.Players, models.PlayerSnapshot{
			UID:      slot.UID,
			Username: slot.Username,
			PhotoURL: slot.PhotoURL,
			Elo:      slot.Elo,
			IsBot:    slot.IsBot,
		})
	}
	if !r.roundEndsAt.IsZero() && !r.ended {
		snapshot.RoundEndsAt = r.roundEndsAt.UnixMilli()
	}
	return snapshot
}

// persistRound writes the round record off the hot path. persistMutex keeps
// the lazy match creation and round appends ordered.
func (r *Room) persistRound(round int, p1, p2 *PlayerSlot, c1, c2 game.Move, winnerUID string) {
	if r.recorder == nil {
		return
	}

	r.persistMutex.Lock()
	defer r.persistMutex.Unlock()

	if r.matchID == 0 {
		matchID, err := r.recorder.CreateMatch(p1.UID, p2.UID)
		if err != nil {
			logger.Log.Errorf("Failed to create match record for room %s: %v", r.ID, err)
			return
		}
		r.matchID = matchID
	}

	roundWinner := WinnerDraw
	switch winnerUID {
	case p1.UID:
		roundWinner = "player1"
	case p2.UID:
		roundWinner = "player2"
	}

	if err := r.recorder.AppendRound(r.matchID, round, c1.String(), c2.String(), roundWinner); err != nil {
		logger.Log.Errorf("Failed to persist round %d for room %s: %v", round, r.ID, err)
	}

	for _, entry := range []struct {
		slot *PlayerSlot
		hand game.Move
	}{{p1, c1}, {p2, c2}} {
		if entry.slot.IsBot {
			continue
		}
		if err := r.recorder.RecordHand(entry.slot.UID, entry.hand.String()); err != nil {
			logger.Log.Warnf("Failed to record hand stats for %s: %v", entry.slot.UID, err)
		}
	}
}

// persistFinal seals the match record, creating it first if no round was
// ever resolved (forfeit before round one).
func (r *Room) persistFinal(p1UID, p2UID, winner, reason string) {
	if r.recorder == nil {
		return
	}

	r.persistMutex.Lock()
	defer r.persistMutex.Unlock()

	if r.matchID == 0 {
		matchID, err := r.recorder.CreateMatch(p1UID, p2UID)
		if err != nil {
			logger.Log.Errorf("Failed to create match record for room %s: %v", r.ID, err)
			return
		}
		r.matchID = matchID
	}

	if err := r.recorder.FinalizeMatch(r.matchID, winner, reason); err != nil {
		logger.Log.Errorf("Failed to finalize match record for room %s: %v", r.ID, err)
	}
}

func copyScore(score map[string]int) map[string]int {
	out := make(map[string]int, len(score))
	for uid, s := range score {
		out[uid] = s
	}
	return out
}

// loop 是房间的主循环，定时驱动状态更新
func (r *Room) loop() {
	for {
		select {
		case <-r.ticker.C:
			r.Update()
		case <-r.closeChan:
			r.ticker.Stop()
			return
		}
	}
}

// Update 由主循环调用，驱动状态机更新
func (r *Room) Update() {
	if r.machine == nil {
		return
	}
	if currentState := r.machine.GetCurrentState(); currentState != nil {
		currentState.OnUpdate()
	}
}

// Close stops the update loop and cancels anything still scheduled.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closeChan)
	})

	r.mutex.Lock()
	cancelBot := r.botCancel
	r.botCancel = nil
	if r.graceTimer != 0 {
		r.timers.Cancel(r.graceTimer)
		r.graceTimer = 0
	}
	r.mutex.Unlock()

	if cancelBot != nil {
		cancelBot()
	}
}
