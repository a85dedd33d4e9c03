// Package memory is a process-local implementation of the storage ports,
// used by tests and the memory backend.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	mu           sync.Mutex
	templates    map[string]core.RecurringTemplate
	order        []string
	transactions []core.RealizedTransaction
	goals        map[string]core.BudgetGoal
	buckets      map[string]core.BudgetBucket
}

func New() *Store {
	return &Store{
		templates: make(map[string]core.RecurringTemplate),
		goals:     make(map[string]core.BudgetGoal),
		buckets:   make(map[string]core.BudgetBucket),
	}
}

func (s *Store) CreateTemplate(_ context.Context, t core.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; ok {
		return fmt.Errorf("create template %s: duplicate id", t.ID)
	}
	s.templates[t.ID] = t
	s.order = append(s.order, t.ID)
	return nil
}

func (s *Store) UpdateTemplate(_ context.Context, t core.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; !ok {
		return fmt.Errorf("update template %s: %w", t.ID, storage.ErrNotFound)
	}
	s.templates[t.ID] = t
	return nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return core.RecurringTemplate{}, fmt.Errorf("get template %s: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

// ListTemplates returns an owner's templates in insertion order.
func (s *Store) ListTemplates(_ context.Context, ownerID string) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringTemplate
	for _, id := range s.order {
		if t := s.templates[id]; t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListDueTemplates(_ context.Context, asOf core.Date) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringTemplate
	for _, id := range s.order {
		t := s.templates[id]
		if t.IsActive && !t.NextOccurrence.IsZero() && !t.NextOccurrence.After(asOf) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b core.RecurringTemplate) int {
		return a.NextOccurrence.Compare(b.NextOccurrence.Time)
	})
	return out, nil
}

func (s *Store) AdvanceTemplate(_ context.Context, id string, lastProcessed, next core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return fmt.Errorf("advance template %s: %w", id, storage.ErrNotFound)
	}
	t.LastProcessed = lastProcessed
	t.NextOccurrence = next
	s.templates[id] = t
	return nil
}

func (s *Store) ListOwners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, t := range s.templates {
		if _, ok := seen[t.OwnerID]; ok || !t.IsActive {
			continue
		}
		seen[t.OwnerID] = struct{}{}
		out = append(out, t.OwnerID)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.RealizedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, tx)
	return nil
}

// ListTransactions returns matching transactions ordered by date, then by
// insertion.
func (s *Store) ListTransactions(_ context.Context, ownerID string, from, to core.Date) ([]core.RealizedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RealizedTransaction
	for _, tx := range s.transactions {
		if tx.OwnerID == ownerID && tx.Date.Within(from, to) {
			out = append(out, tx)
		}
	}
	slices.SortStableFunc(out, func(a, b core.RealizedTransaction) int {
		return cmp.Compare(a.Date.Unix(), b.Date.Unix())
	})
	return out, nil
}

// SaveGoal replaces any existing goal for the same owner and bucket type.
func (s *Store) SaveGoal(_ context.Context, g core.BudgetGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.OwnerID+"|"+string(g.BucketType)] = g
	return nil
}

func (s *Store) ListGoals(_ context.Context, ownerID string) ([]core.BudgetGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetGoal
	for _, g := range s.goals {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b core.BudgetGoal) int {
		return cmp.Compare(a.BucketType, b.BucketType)
	})
	return out, nil
}

func (s *Store) FindBucket(_ context.Context, key core.BucketKey) (*core.BudgetBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key.String()]; ok {
		return &b, nil
	}
	return nil, nil
}

// CreateBucket keeps the first bucket stored for a key.
func (s *Store) CreateBucket(_ context.Context, b core.BudgetBucket) (core.BudgetBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := b.Key().String()
	if existing, ok := s.buckets[key]; ok {
		return existing, nil
	}
	s.buckets[key] = b
	return b, nil
}

// Buckets returns every stored bucket, for inspection.
func (s *Store) Buckets() []core.BudgetBucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetBucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b core.BudgetBucket) int {
		return cmp.Compare(a.Key().String(), b.Key().String())
	})
	return out
}

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
