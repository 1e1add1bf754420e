// bot/bot.go
package bot

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/duelserver/game"
	"github.com/wfunc/duelserver/timer"
)

// PlayerID is the identity tag shared by all synthetic opponents. Scores
// and choices are keyed per room, so reuse across rooms is safe.
const PlayerID = "BOT_1"

// Profile is the synthetic opponent handed to the room as a player slot.
type Profile struct {
	UID      string
	Username string
	Elo      int
}

// Simulator generates decoy opponents and plays their rounds.
type Simulator struct {
	timers *timer.Manager
	names  *NameClient
	rng    *rand.Rand
	rngMu  sync.Mutex
}

func NewSimulator(timers *timer.Manager, names *NameClient) *Simulator {
	return &Simulator{
		timers: timers,
		names:  names,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewOpponent builds a hidden bot for the given human, rating offset by up
// to ±100 so the pairing looks plausible.
func (s *Simulator) NewOpponent(humanElo int) Profile {
	return Profile{
		UID:      PlayerID,
		Username: s.names.FetchName(),
		Elo:      humanElo + s.intn(201) - 100,
	}
}

// RoundHooks connects one bot round to its owning room. ShowHand delivers a
// cosmetic decoy signal to the human only; Commit submits the bot's actual
// move through the same path as a human submission.
type RoundHooks struct {
	ShowHand func(move game.Move)
	Commit   func(move game.Move)
}

// PlayRound schedules the decoy feints and the committed move for a single
// round. The returned cancel function clears every timer still pending and
// must be invoked exactly once, when the round resolves or the match ends.
func (s *Simulator) PlayRound(window time.Duration, hooks RoundHooks) (cancel func()) {
	var (
		mu     sync.Mutex
		ids    []int64
		closed bool
	)

	track := func(id int64) bool {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return false
		}
		ids = append(ids, id)
		return true
	}

	// Commit the real move 2-5 seconds in.
	commitDelay := 2*time.Second + time.Duration(s.intn(3000))*time.Millisecond
	commitID := s.timers.Schedule(commitDelay, 0, func() {
		hooks.Commit(s.randomMove())
	})
	track(commitID)

	for _, delay := range s.decoySchedule(window) {
		id := s.timers.Schedule(delay, 0, func() {
			hooks.ShowHand(s.randomMove())
		})
		if !track(id) {
			s.timers.Cancel(id)
			break
		}
	}

	return func() {
		mu.Lock()
		pending := ids
		ids = nil
		closed = true
		mu.Unlock()
		for _, id := range pending {
			s.timers.Cancel(id)
		}
	}
}

// decoySchedule 生成50~65个随机假动作时间点，最后一个压在窗口末尾
func (s *Simulator) decoySchedule(window time.Duration) []time.Duration {
	count := 50 + s.intn(15)
	delays := make([]time.Duration, 0, count+1)
	for i := 0; i < count; i++ {
		delays = append(delays, time.Duration(s.intn(int(window.Milliseconds())))*time.Millisecond)
	}

	// One late feint inside the final five seconds keeps the opponent
	// looking alive right up to the deadline.
	tail := 5 * time.Second
	if window > tail {
		delays = append(delays, window-tail+time.Duration(s.intn(int(tail.Milliseconds())))*time.Millisecond)
	} else {
		delays = append(delays, time.Duration(s.intn(int(window.Milliseconds())))*time.Millisecond)
	}

	sort.Slice(delays, func(i, j int) bool { return delays[i] < delays[j] })
	return delays
}

func (s *Simulator) randomMove() game.Move {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return game.RandomMove(s.rng)
}

func (s *Simulator) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}
