package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"contractbot/internal/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryStore_GetPutRemove(t *testing.T) {
	clock := newClock()
	m := NewMemoryStore(4, 10*time.Minute, WithClock(clock.Now))

	_, ok := m.Get("s1")
	assert.False(t, ok)

	s := New("s1", "u1", clock.Now())
	m.Put(s)
	got, ok := m.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 1, m.Len())

	m.Remove("s1")
	_, ok = m.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	m.Put(nil)
	m.Put(&ConversationSession{})
	assert.Equal(t, 0, m.Len())
}

func TestMemoryStore_CopiesInAndOut(t *testing.T) {
	clock := newClock()
	m := NewMemoryStore(1, 0, WithClock(clock.Now))

	s := New("s1", "u1", clock.Now())
	s.ActiveTask = NewTaskState(task.KindContractCreation, clock.Now())
	m.Put(s)

	s.ActiveTask.Collected["ACCOUNT_NUMBER"] = "mutated after put"

	got, _ := m.Get("s1")
	assert.Empty(t, got.ActiveTask.Collected)

	got.ActiveTask.Phase = PhaseConfirming
	again, _ := m.Get("s1")
	assert.Equal(t, PhaseCollecting, again.ActiveTask.Phase)
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := newClock()
	m := NewMemoryStore(8, 10*time.Minute, WithClock(clock.Now))

	m.Put(New("old", "u", clock.Now()))
	clock.Advance(6 * time.Minute)
	m.Put(New("new", "u", clock.Now()))
	clock.Advance(5 * time.Minute)

	_, ok := m.Get("old")
	assert.False(t, ok, "idle 11m with a 10m ttl")
	_, ok = m.Get("new")
	assert.True(t, ok)

	clock.Advance(6 * time.Minute)
	m.Put(New("fresh", "u", clock.Now()))
	dropped := m.Sweep()
	assert.Equal(t, []string{"new"}, dropped)

	var ids []string
	m.Range(func(s *ConversationSession) bool {
		ids = append(ids, s.ID)
		return true
	})
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestMemoryStore_RangeStops(t *testing.T) {
	m := NewMemoryStore(2, 0)
	for i := 0; i < 10; i++ {
		m.Put(New(fmt.Sprintf("s%d", i), "u", time.Now()))
	}
	n := 0
	m.Range(func(*ConversationSession) bool {
		n++
		return n < 3
	})
	assert.Equal(t, 3, n)
}

func TestMemoryStore_LockSerializesSameID(t *testing.T) {
	m := NewMemoryStore(16, 0)
	m.Put(New("shared", "u", time.Now()))

	const workers = 50
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			unlock := m.Lock("shared")
			defer unlock()
			s, ok := m.Get("shared")
			if !ok {
				return fmt.Errorf("session vanished")
			}
			s.AppendTurn(Turn{Input: "x"}, 0)
			m.Put(s)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	s, _ := m.Get("shared")
	assert.Len(t, s.History, workers)
}

func TestMemoryStore_LockIndependentIDs(t *testing.T) {
	m := NewMemoryStore(1, 0)

	unlockA := m.Lock("a")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlock := m.Lock("b")
		unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestMemoryStore_RunSweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newClock()
	m := NewMemoryStore(2, time.Minute, WithClock(clock.Now))
	m.Put(New("a", "u", clock.Now()))
	m.Put(New("b", "u", clock.Now()))
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan []string, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.RunSweeper(ctx, 10*time.Millisecond, func(ids []string) { got <- ids })
	}()

	select {
	case ids := <-got:
		sort.Strings(ids)
		assert.Equal(t, []string{"a", "b"}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutex_ForgetsReleasedKeys(t *testing.T) {
	var k KeyedMutex
	unlock := k.Lock("x")
	assert.Equal(t, 1, k.Len())
	unlock()
	unlock()
	assert.Equal(t, 0, k.Len())
}
