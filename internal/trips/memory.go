package trips

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
)

// MemoryTripRepository keeps trips in process memory. It is used when no Redis URL is set.
type MemoryTripRepository struct {
	mu    sync.RWMutex
	trips map[string]model.SavedTrip
}

func NewMemoryTripRepository() *MemoryTripRepository {
	return &MemoryTripRepository{trips: map[string]model.SavedTrip{}}
}

func (m *MemoryTripRepository) Save(_ context.Context, trip *model.SavedTrip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = *trip
	return nil
}

func (m *MemoryTripRepository) Get(_ context.Context, id string) (*model.SavedTrip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, errx.NotFound("Trip not found")
	}
	return &trip, nil
}

func (m *MemoryTripRepository) List(_ context.Context) ([]*model.SavedTrip, error) {
	m.mu.RLock()
	out := make([]*model.SavedTrip, 0, len(m.trips))
	for _, t := range m.trips {
		t := t
		out = append(out, &t)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryTripRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trips, id)
	return nil
}

type transcript struct {
	events  [][]byte
	touched time.Time
}

// MemoryTranscriptRepository keeps session logs in memory, dropping logs untouched for
// longer than ttl when new ones are written.
type MemoryTranscriptRepository struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	logs map[string]*transcript
}

func NewMemoryTranscriptRepository(ttl time.Duration) *MemoryTranscriptRepository {
	return &MemoryTranscriptRepository{ttl: ttl, now: time.Now, logs: map[string]*transcript{}}
}

func (m *MemoryTranscriptRepository) Append(_ context.Context, sessionID string, event []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.evict(now)

	t, ok := m.logs[sessionID]
	if !ok {
		t = &transcript{}
		m.logs[sessionID] = t
	}
	cp := make([]byte, len(event))
	copy(cp, event)
	t.events = append(t.events, cp)
	t.touched = now
	return nil
}

func (m *MemoryTranscriptRepository) Load(_ context.Context, sessionID string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(m.now())

	t, ok := m.logs[sessionID]
	if !ok {
		return [][]byte{}, nil
	}
	out := make([][]byte, len(t.events))
	copy(out, t.events)
	return out, nil
}

func (m *MemoryTranscriptRepository) evict(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, t := range m.logs {
		if now.Sub(t.touched) > m.ttl {
			delete(m.logs, id)
		}
	}
}

var (
	_ model.TripRepository       = (*MemoryTripRepository)(nil)
	_ model.TranscriptRepository = (*MemoryTranscriptRepository)(nil)
)
