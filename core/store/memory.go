package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/agrolink/core/model"
)

// MemoryStore keeps statuses and rules in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]DeviceStatus
	rules    map[string]model.AlertRule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: map[string]DeviceStatus{},
		rules:    map[string]model.AlertRule{},
	}
}

func (s *MemoryStore) SaveStatus(_ context.Context, st DeviceStatus) error {
	s.mu.Lock()
	s.statuses[st.DeviceID] = st
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Statuses(_ context.Context) ([]DeviceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]DeviceStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DeviceID < res[j].DeviceID })
	return res, nil
}

// UpsertRule validates and stores a rule, keeping its trigger time.
func (s *MemoryStore) UpsertRule(_ context.Context, r model.AlertRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if prev, ok := s.rules[r.ID]; ok && r.LastTriggeredAt.IsZero() {
		r.LastTriggeredAt = prev.LastTriggeredAt
	}
	s.rules[r.ID] = r
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ActiveRules(_ context.Context) ([]model.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.AlertRule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Active {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) MarkTriggered(_ context.Context, ruleID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok {
		return fmt.Errorf("rule %s not found", ruleID)
	}
	r.LastTriggeredAt = at
	s.rules[ruleID] = r
	return nil
}
