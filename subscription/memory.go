package subscription

import (
	"context"
	"github.com/pkg/errors"
	"sort"
	"sync"
)

type alertKey struct {
	subscriberID string
	stationID    int
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
	byRegion    map[Region]map[string]struct{}
	byStation   map[int]map[string]struct{}
	alerts      map[alertKey]AlertRecord
	states      map[string]ConversationState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[string]Subscriber),
		byRegion:    make(map[Region]map[string]struct{}),
		byStation:   make(map[int]map[string]struct{}),
		alerts:      make(map[alertKey]AlertRecord),
		states:      make(map[string]ConversationState),
	}
}

func (m *MemoryStore) GetSubscriber(_ context.Context, id string) (Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscribers[id]
	if !ok {
		return Subscriber{}, ErrNotFound
	}
	return copySubscriber(s), nil
}

func (m *MemoryStore) UpsertSubscriber(_ context.Context, s Subscriber) error {
	if !s.Complete() {
		return errors.Wrapf(ErrIncomplete, "subscriber %v", s.ID)
	}
	s = copySubscriber(s.Normalize())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unindex(s.ID)
	m.subscribers[s.ID] = s
	for _, r := range s.Regions {
		if m.byRegion[r] == nil {
			m.byRegion[r] = make(map[string]struct{})
		}
		m.byRegion[r][s.ID] = struct{}{}
	}
	for _, st := range s.Stations {
		if m.byStation[st] == nil {
			m.byStation[st] = make(map[string]struct{})
		}
		m.byStation[st][s.ID] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) DeleteSubscriber(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unindex(id)
	delete(m.subscribers, id)
	for k := range m.alerts {
		if k.subscriberID == id {
			delete(m.alerts, k)
		}
	}
	return nil
}

func (m *MemoryStore) unindex(id string) {
	old, ok := m.subscribers[id]
	if !ok {
		return
	}
	for _, r := range old.Regions {
		delete(m.byRegion[r], id)
		if len(m.byRegion[r]) == 0 {
			delete(m.byRegion, r)
		}
	}
	for _, st := range old.Stations {
		delete(m.byStation[st], id)
		if len(m.byStation[st]) == 0 {
			delete(m.byStation, st)
		}
	}
}

func (m *MemoryStore) SubscribersByRegion(_ context.Context, region Region) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.byRegion[region]), nil
}

func (m *MemoryStore) SubscribersByStation(_ context.Context, stationID int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.byStation[stationID]), nil
}

func (m *MemoryStore) Watched(_ context.Context) ([]Region, []int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var regions []Region
	for r := range m.byRegion {
		regions = append(regions, r)
	}
	var stations []int
	for st := range m.byStation {
		stations = append(stations, st)
	}
	return uniqueRegions(regions), uniqueStations(stations), nil
}

func (m *MemoryStore) GetLastAlert(_ context.Context, subscriberID string, stationID int) (AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[alertKey{subscriberID, stationID}]
	if !ok {
		return AlertRecord{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) SetLastAlert(_ context.Context, record AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[alertKey{record.SubscriberID, record.StationID}] = record
	return nil
}

func (m *MemoryStore) ClearLastAlert(_ context.Context, subscriberID string, stationID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alerts, alertKey{subscriberID, stationID})
	return nil
}

func (m *MemoryStore) GetConversationState(_ context.Context, id string) (ConversationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	if !ok {
		return ConversationState{}, ErrNotFound
	}
	return copyState(s), nil
}

func (m *MemoryStore) SetConversationState(_ context.Context, id string, state ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = copyState(state)
	return nil
}

func (m *MemoryStore) ClearConversationState(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copySubscriber(s Subscriber) Subscriber {
	s.Regions = append([]Region(nil), s.Regions...)
	s.Stations = append([]int(nil), s.Stations...)
	s.Hours = append([]Window(nil), s.Hours...)
	return s
}

func copyState(s ConversationState) ConversationState {
	s.Regions = append([]Region(nil), s.Regions...)
	s.Stations = append([]int(nil), s.Stations...)
	if s.Level != nil {
		l := *s.Level
		s.Level = &l
	}
	return s
}
