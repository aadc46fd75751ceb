package practice

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions, instances and attempts. MarkAnswered must be a
// conditional write: it succeeds at most once per instance, which is the
// transactional backstop for the per-instance locks in the service.
type Store interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	// ApplyFinalize atomically increments total (and correct when ok is
	// true) and advances the session status; it must never lose an
	// increment under concurrent finalizes.
	ApplyFinalize(ctx context.Context, sessionID string, ok bool) (Session, error)

	PutInstance(ctx context.Context, inst ExerciseInstance) error
	GetInstance(ctx context.Context, id string) (ExerciseInstance, error)
	MarkAnswered(ctx context.Context, instanceID string, at time.Time) (bool, error)

	AppendAttempt(ctx context.Context, a Attempt) error
	// CountAttempts returns the number of non-reveal attempts and whether any
	// reveal was used.
	CountAttempts(ctx context.Context, instanceID string) (int, bool, error)
	// FinalAttempt returns the latest non-reveal attempt for an instance.
	FinalAttempt(ctx context.Context, instanceID string) (Attempt, error)
	ListAttempts(ctx context.Context, instanceID string) ([]Attempt, error)
}

type memoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	instances map[string]ExerciseInstance
	attempts  map[string][]Attempt // instanceID -> append-only log
}

// NewInMemoryStore is used by tests and the offline dev mode.
func NewInMemoryStore() Store {
	return &memoryStore{
		sessions:  map[string]Session{},
		instances: map[string]ExerciseInstance{},
		attempts:  map[string][]Attempt{},
	}
}

func (m *memoryStore) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *memoryStore) ApplyFinalize(_ context.Context, id string, ok bool) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, found := m.sessions[id]
	if !found {
		return Session{}, ErrSessionNotFound
	}
	s.Total++
	if ok {
		s.Correct++
	}
	s.Status = StatusInProgress
	if s.TargetCount > 0 && s.Total >= s.TargetCount {
		s.Status = StatusCompleted
	}
	m.sessions[id] = s
	return s, nil
}

func (m *memoryStore) PutInstance(_ context.Context, inst ExerciseInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.ID] = inst
	return nil
}

func (m *memoryStore) GetInstance(_ context.Context, id string) (ExerciseInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return ExerciseInstance{}, ErrInstanceNotFound
	}
	return inst, nil
}

func (m *memoryStore) MarkAnswered(_ context.Context, instanceID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceID]
	if !ok {
		return false, ErrInstanceNotFound
	}
	if inst.AnsweredAt != nil {
		return false, nil
	}
	inst.AnsweredAt = &at
	m.instances[instanceID] = inst
	return true, nil
}

func (m *memoryStore) AppendAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.InstanceID] = append(m.attempts[a.InstanceID], a)
	return nil
}

func (m *memoryStore) CountAttempts(_ context.Context, instanceID string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, revealed := 0, false
	for _, a := range m.attempts[instanceID] {
		if a.RevealUsed {
			revealed = true
		} else {
			n++
		}
	}
	return n, revealed, nil
}

func (m *memoryStore) FinalAttempt(_ context.Context, instanceID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.attempts[instanceID]
	for i := len(log) - 1; i >= 0; i-- {
		if !log[i].RevealUsed {
			return log[i], nil
		}
	}
	return Attempt{}, ErrInstanceNotFound
}

func (m *memoryStore) ListAttempts(_ context.Context, instanceID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Attempt(nil), m.attempts[instanceID]...), nil
}
