package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_ScheduleFires(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	m.Schedule(50*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(400 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 1 {
		t.Errorf("Expected the task to fire once, got %d", atomic.LoadInt32(&fired))
	}
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	id := m.Schedule(200*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})
	m.Cancel(id)

	time.Sleep(500 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 0 {
		t.Error("Cancelled task should not fire")
	}
}

func TestManager_Periodic(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	id := m.Schedule(50*time.Millisecond, 150*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(700 * time.Millisecond)
	m.Cancel(id)

	if atomic.LoadInt32(&fired) < 2 {
		t.Errorf("Expected a periodic task to fire at least twice, got %d", atomic.LoadInt32(&fired))
	}
}

func TestManager_Stop(t *testing.T) {
	m := NewManager()

	var fired int32
	m.Schedule(200*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})
	m.Stop()

	time.Sleep(500 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 0 {
		t.Error("Tasks should not fire after Stop")
	}
}

func TestManager_CancelUnknownID(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	// Must not panic or disturb other tasks.
	m.Cancel(9999)
}
