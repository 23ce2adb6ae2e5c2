// Package memory implements the eligibility cache in process memory,
// used by tests and single-node deployments without Redis.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/smartcycle/discounts/internal/cache"
	"github.com/smartcycle/discounts/internal/domain"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// Store is an in-memory cache.Store.
type Store struct {
	mu       sync.RWMutex
	compiled map[string]domain.CompiledSelection
	active   map[string]int
}

// New creates an empty in-memory eligibility cache.
func New() *Store {
	return &Store{
		compiled: make(map[string]domain.CompiledSelection),
		active:   make(map[string]int),
	}
}

func (s *Store) Get(_ context.Context, campaignID string) (*domain.CompiledSelection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.compiled[campaignID]
	if !ok {
		return nil, apperrors.NotFound("compiled selection", campaignID)
	}
	out := entry
	out.ItemIDs = append([]string(nil), entry.ItemIDs...)
	return &out, nil
}

func (s *Store) Put(_ context.Context, campaignID string, compiled *domain.CompiledSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := *compiled
	entry.ItemIDs = append([]string(nil), compiled.ItemIDs...)
	s.compiled[campaignID] = entry
	return nil
}

func (s *Store) Delete(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.compiled, campaignID)
	return nil
}

func (s *Store) MarkStale(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.compiled[campaignID]
	if !ok {
		return nil
	}
	entry.Stale = true
	s.compiled[campaignID] = entry
	return nil
}

func (s *Store) MarkStaleByItem(_ context.Context, itemID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected []string
	for campaignID, entry := range s.compiled {
		if entry.Stale || !entry.Contains(itemID) {
			continue
		}
		entry.Stale = true
		s.compiled[campaignID] = entry
		affected = append(affected, campaignID)
	}
	sort.Strings(affected)
	return affected, nil
}

func (s *Store) AddActive(_ context.Context, campaignID string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[campaignID] = priority
	return nil
}

func (s *Store) RemoveActive(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, campaignID)
	return nil
}

func (s *Store) ActiveCampaigns(_ context.Context) ([]cache.ActiveEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]cache.ActiveEntry, 0, len(s.active))
	for id, priority := range s.active {
		out = append(out, cache.ActiveEntry{CampaignID: id, Priority: priority})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CampaignID < out[j].CampaignID
	})
	return out, nil
}
