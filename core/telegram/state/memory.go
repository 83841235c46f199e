package state

import "sync"

type userLock struct {
	mu   sync.Mutex
	refs int
}

type memoryManager[D any] struct {
	mu       sync.Mutex
	sessions map[int64]Session[D]
	locks    map[int64]*userLock
}

// NewMemoryManager returns a Manager that keeps sessions in process memory.
// A restart drops every open wizard.
func NewMemoryManager[D any]() Manager[D] {
	return &memoryManager[D]{
		sessions: make(map[int64]Session[D]),
		locks:    make(map[int64]*userLock),
	}
}

func (m *memoryManager[D]) Get(userID int64) Session[D] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[userID]; ok {
		return session
	}
	return Session[D]{State: StateIdle}
}

func (m *memoryManager[D]) Set(userID int64, s Session[D]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Idle() {
		delete(m.sessions, userID)
		return
	}
	m.sessions[userID] = s
}

func (m *memoryManager[D]) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
}

func (m *memoryManager[D]) InProgress(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	return ok && !sess.Idle()
}

// Lock hands out one mutex per user. The entry is dropped once nobody holds
// or waits on it, so the map stays bounded by concurrent users.
func (m *memoryManager[D]) Lock(userID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(m.locks, userID)
			}
			m.mu.Unlock()
		})
	}
}
