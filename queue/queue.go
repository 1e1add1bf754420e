// queue/queue.go
package queue

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/wfunc/duelserver/game"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/timer"
)

// Ticket is one waiting player. Owned exclusively by the Manager while
// queued; released on match, leave or disconnect.
type Ticket struct {
	PlayerID  string
	Username  string
	PhotoURL  string
	Elo       int
	Mode      game.Mode
	SessionID string
	JoinedAt  time.Time

	fallbackTimer int64
}

// MatchStarter consumes pairing results. Defined here so the queue never
// imports the room package.
type MatchStarter interface {
	StartMatch(a, b *Ticket, mode game.Mode)
	StartBotMatch(t *Ticket, mode game.Mode)
}

// Config tunes pairing tolerance and bot fallback delays.
type Config struct {
	BaseTolerance     int
	ToleranceStep     int
	StepInterval      time.Duration
	SweepInterval     time.Duration
	RankedBotDelayMin time.Duration
	RankedBotDelayMax time.Duration
	CasualBotDelayMin time.Duration
	CasualBotDelayMax time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseTolerance:     100,
		ToleranceStep:     50,
		StepInterval:      10 * time.Second,
		SweepInterval:     3 * time.Second,
		RankedBotDelayMin: 2 * time.Second,
		RankedBotDelayMax: 10 * time.Second,
		CasualBotDelayMin: 4 * time.Second,
		CasualBotDelayMax: 10 * time.Second,
	}
}

// Manager holds the waiting pools for both matchmaking modes.
type Manager struct {
	cfg     Config
	timers  *timer.Manager
	starter MatchStarter

	mutex  sync.Mutex
	ranked map[string]*Ticket
	casual map[string]*Ticket

	scheduler gocron.Scheduler
	now       func() time.Time
	rng       *rand.Rand
	rngMutex  sync.Mutex
}

func NewManager(cfg Config, timers *timer.Manager, starter MatchStarter) *Manager {
	m := &Manager{
		cfg:     cfg,
		timers:  timers,
		starter: starter,
		ranked:  make(map[string]*Ticket),
		casual:  make(map[string]*Ticket),
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Log.Fatalf("Failed to create matchmaking scheduler: %v", err)
	}
	m.scheduler = scheduler

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(m.Sweep),
	); err != nil {
		logger.Log.Fatalf("Failed to register matchmaking sweep: %v", err)
	}
	scheduler.Start()

	return m
}

// Stop shuts down the periodic sweep.
func (m *Manager) Stop() {
	if m.scheduler != nil {
		if err := m.scheduler.Shutdown(); err != nil {
			logger.Log.Warnf("Matchmaking scheduler shutdown: %v", err)
		}
	}
}

// Enqueue registers a ticket and immediately attempts to pair it. A ticket
// for an already-queued player replaces the old one.
func (m *Manager) Enqueue(t *Ticket) {
	if t == nil || t.PlayerID == "" {
		return
	}

	m.mutex.Lock()
	t.JoinedAt = m.now()

	pool := m.pool(t.Mode)
	if old, exists := pool[t.PlayerID]; exists {
		m.timers.Cancel(old.fallbackTimer)
	}
	pool[t.PlayerID] = t

	var partner *Ticket
	switch t.Mode {
	case game.ModeRanked:
		partner = m.findRankedPartnerLocked(t)
	default:
		partner = m.findCasualPartnerLocked(t)
	}

	if partner != nil {
		delete(pool, t.PlayerID)
		delete(pool, partner.PlayerID)
		m.timers.Cancel(partner.fallbackTimer)
		m.mutex.Unlock()

		logger.Log.Infof("Paired %s with %s in %s queue", partner.PlayerID, t.PlayerID, t.Mode)
		m.starter.StartMatch(partner, t, t.Mode)
		return
	}

	// No live opponent yet; fall back to a hidden bot after a bounded
	// random wait.
	playerID := t.PlayerID
	mode := t.Mode
	t.fallbackTimer = m.timers.Schedule(m.botDelay(mode), 0, func() {
		m.botFallback(playerID, mode)
	})
	m.mutex.Unlock()
}

// Dequeue removes the player from whichever pool holds them. No-op when
// absent.
func (m *Manager) Dequeue(playerID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, pool := range []map[string]*Ticket{m.ranked, m.casual} {
		if t, exists := pool[playerID]; exists {
			m.timers.Cancel(t.fallbackTimer)
			delete(pool, playerID)
		}
	}
}

// Len reports the pool depth for metrics.
func (m *Manager) Len(mode game.Mode) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.pool(mode))
}

// Tolerance widens the acceptable rating band the longer a ticket waits, so
// quality degrades instead of wait time growing unbounded.
func (m *Manager) Tolerance(wait time.Duration) int {
	if wait < 0 {
		wait = 0
	}
	steps := int(wait / m.cfg.StepInterval)
	return m.cfg.BaseTolerance + steps*m.cfg.ToleranceStep
}

// Sweep runs the periodic wait-aware pairing pass over the ranked pool and
// re-attempts casual pairing.
func (m *Manager) Sweep() {
	type pair struct{ a, b *Ticket }
	var pairs []pair

	m.mutex.Lock()
	tickets := make([]*Ticket, 0, len(m.ranked))
	for _, t := range m.ranked {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].Elo < tickets[j].Elo })

	now := m.now()
	matched := make(map[string]bool)
	for i := 0; i+1 < len(tickets); i++ {
		a, b := tickets[i], tickets[i+1]
		if matched[a.PlayerID] || matched[b.PlayerID] {
			continue
		}

		diff := b.Elo - a.Elo
		wait := now.Sub(a.JoinedAt)
		if w := now.Sub(b.JoinedAt); w < wait {
			wait = w
		}

		if diff <= m.Tolerance(wait) {
			matched[a.PlayerID] = true
			matched[b.PlayerID] = true
			delete(m.ranked, a.PlayerID)
			delete(m.ranked, b.PlayerID)
			m.timers.Cancel(a.fallbackTimer)
			m.timers.Cancel(b.fallbackTimer)
			pairs = append(pairs, pair{a, b})
		}
	}

	// Casual pairing has no rating filter; drain the pool two at a time.
	casual := make([]*Ticket, 0, len(m.casual))
	for _, t := range m.casual {
		casual = append(casual, t)
	}
	for len(casual) >= 2 {
		a, b := casual[0], casual[1]
		casual = casual[2:]
		delete(m.casual, a.PlayerID)
		delete(m.casual, b.PlayerID)
		m.timers.Cancel(a.fallbackTimer)
		m.timers.Cancel(b.fallbackTimer)
		pairs = append(pairs, pair{a, b})
	}
	m.mutex.Unlock()

	for _, p := range pairs {
		logger.Log.Infof("Sweep paired %s with %s", p.a.PlayerID, p.b.PlayerID)
		m.starter.StartMatch(p.a, p.b, p.a.Mode)
	}
}

func (m *Manager) pool(mode game.Mode) map[string]*Ticket {
	if mode == game.ModeRanked {
		return m.ranked
	}
	return m.casual
}

// findRankedPartnerLocked scans for any candidate inside the base
// tolerance. Caller holds the mutex.
func (m *Manager) findRankedPartnerLocked(t *Ticket) *Ticket {
	for _, candidate := range m.ranked {
		if candidate.PlayerID == t.PlayerID {
			continue
		}
		diff := candidate.Elo - t.Elo
		if diff < 0 {
			diff = -diff
		}
		if diff <= m.cfg.BaseTolerance {
			return candidate
		}
	}
	return nil
}

func (m *Manager) findCasualPartnerLocked(t *Ticket) *Ticket {
	for _, candidate := range m.casual {
		if candidate.PlayerID != t.PlayerID {
			return candidate
		}
	}
	return nil
}

func (m *Manager) botFallback(playerID string, mode game.Mode) {
	m.mutex.Lock()
	pool := m.pool(mode)
	t, exists := pool[playerID]
	if !exists {
		// Matched or left while the timer was in flight.
		m.mutex.Unlock()
		return
	}
	delete(pool, playerID)
	m.mutex.Unlock()

	logger.Log.Infof("No opponent for %s in %s queue, starting bot match", playerID, mode)
	m.starter.StartBotMatch(t, mode)
}

func (m *Manager) botDelay(mode game.Mode) time.Duration {
	min, max := m.cfg.CasualBotDelayMin, m.cfg.CasualBotDelayMax
	if mode == game.ModeRanked {
		min, max = m.cfg.RankedBotDelayMin, m.cfg.RankedBotDelayMax
	}
	if max <= min {
		return min
	}
	m.rngMutex.Lock()
	defer m.rngMutex.Unlock()
	return min + time.Duration(m.rng.Int63n(int64(max-min)))
}
