package state

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type draft struct{ Code string }

func TestMemoryManager_SessionLifecycle(t *testing.T) {
	m := NewMemoryManager[draft]()

	s := m.Get(1)
	assert.True(t, s.Idle())
	assert.False(t, m.InProgress(1))

	m.Set(1, Session[draft]{State: "upload.media", Data: draft{Code: "42"}})
	require.True(t, m.InProgress(1))
	assert.Equal(t, "42", m.Get(1).Data.Code)
	assert.False(t, m.InProgress(2))

	m.Set(1, Session[draft]{State: StateIdle})
	assert.False(t, m.InProgress(1))

	m.Set(1, Session[draft]{State: "upload.code"})
	m.Clear(1)
	assert.Equal(t, StateIdle, m.Get(1).State)
}

func TestMemoryManager_LockSerialisesOneUser(t *testing.T) {
	m := NewMemoryManager[draft]().(*memoryManager[draft])

	var (
		active  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(7)
			defer unlock()
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load())
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
}

func TestMemoryManager_LockIndependentUsers(t *testing.T) {
	m := NewMemoryManager[draft]()
	unlockA := m.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock := m.Lock(2)
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another user blocked")
	}
	unlockA()
	unlockA()
}
