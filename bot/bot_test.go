package bot

import (
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wfunc/duelserver/game"
	"github.com/wfunc/duelserver/logger"
	"github.com/wfunc/duelserver/timer"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	timers := timer.NewManager()
	t.Cleanup(timers.Stop)
	return NewSimulator(timers, NewNameClientWithURL("http://127.0.0.1:0"))
}

func TestSimulator_NewOpponent(t *testing.T) {
	s := newTestSimulator(t)

	for i := 0; i < 50; i++ {
		p := s.NewOpponent(1500)
		if p.UID != PlayerID {
			t.Fatalf("Expected bot uid %s, got %s", PlayerID, p.UID)
		}
		if p.Elo < 1400 || p.Elo > 1600 {
			t.Fatalf("Bot rating %d outside the plausible band around 1500", p.Elo)
		}
		if p.Username == "" {
			t.Fatal("Bot must always carry a display name")
		}
	}
}

func TestSimulator_DecoySchedule(t *testing.T) {
	s := newTestSimulator(t)
	window := 30 * time.Second

	for i := 0; i < 20; i++ {
		delays := s.decoySchedule(window)

		if len(delays) < 51 || len(delays) > 66 {
			t.Fatalf("Expected 51-66 decoys, got %d", len(delays))
		}

		for i, d := range delays {
			if d < 0 || d >= window {
				t.Fatalf("Decoy delay %v outside the round window", d)
			}
			if i > 0 && d < delays[i-1] {
				t.Fatal("Decoy schedule must be sorted")
			}
		}

		// The trailing feint lands inside the final five seconds.
		if tail := delays[len(delays)-1]; tail < window-5*time.Second {
			t.Fatalf("Expected a late feint in the final 5s, last at %v", tail)
		}
	}
}

func TestSimulator_DecoySchedule_ShortWindow(t *testing.T) {
	s := newTestSimulator(t)

	// A window shorter than the five second tail must not underflow.
	for _, d := range s.decoySchedule(3 * time.Second) {
		if d < 0 || d >= 3*time.Second {
			t.Fatalf("Decoy delay %v outside the short window", d)
		}
	}
}

func TestSimulator_PlayRound_CommitsWithinWindow(t *testing.T) {
	s := newTestSimulator(t)

	var commits, decoys int32
	cancel := s.PlayRound(30*time.Second, RoundHooks{
		ShowHand: func(move game.Move) { atomic.AddInt32(&decoys, 1) },
		Commit:   func(move game.Move) { atomic.AddInt32(&commits, 1) },
	})
	defer cancel()

	// The committed move arrives 2-5 seconds in.
	deadline := time.Now().Add(6 * time.Second)
	for atomic.LoadInt32(&commits) == 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}

	if atomic.LoadInt32(&commits) != 1 {
		t.Fatalf("Expected exactly one committed move, got %d", atomic.LoadInt32(&commits))
	}

	// Dozens of feints are spread across the window; a few must have
	// landed by now, or land shortly.
	deadline = time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&decoys) == 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if atomic.LoadInt32(&decoys) == 0 {
		t.Error("Expected decoy feints during the round window")
	}
}

func TestSimulator_PlayRound_CancelStopsCommit(t *testing.T) {
	s := newTestSimulator(t)

	var commits int32
	cancel := s.PlayRound(30*time.Second, RoundHooks{
		ShowHand: func(move game.Move) {},
		Commit:   func(move game.Move) { atomic.AddInt32(&commits, 1) },
	})
	cancel()
	cancel() // safe to call twice

	time.Sleep(2600 * time.Millisecond)

	if atomic.LoadInt32(&commits) != 0 {
		t.Errorf("Cancelled round must not commit, got %d", atomic.LoadInt32(&commits))
	}
}

func TestNameClient_FetchName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"login":{"username":"yellowfrog123"}}]}`))
	}))
	defer server.Close()

	c := NewNameClientWithURL(server.URL)
	if name := c.FetchName(); name != "yellowfrog123" {
		t.Errorf("Expected yellowfrog123, got %s", name)
	}
}

func TestNameClient_FetchName_Fallback(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		},
		"empty results": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results":[]}`))
		},
	}

	for name, handler := range cases {
		server := httptest.NewServer(handler)
		if got := NewNameClientWithURL(server.URL).FetchName(); got != fallbackName {
			t.Errorf("%s: expected fallback %q, got %q", name, fallbackName, got)
		}
		server.Close()
	}

	// Unreachable host falls back too.
	if got := NewNameClientWithURL("http://127.0.0.1:0").FetchName(); got != fallbackName {
		t.Errorf("unreachable: expected fallback %q, got %q", fallbackName, got)
	}
}
