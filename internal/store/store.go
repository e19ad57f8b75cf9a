// Package store provides storage backends for HabitPipe.
//
// It includes SQLite and PostgreSQL backed stores for habit records, plus an
// in-memory store for tests and ephemeral runs.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/HabitPipe/internal/models"
)

// Store defines habit persistence scoped by owner id.
//
// Lookups keyed by (habitID, ownerID) report a missing row the same way for
// "does not exist" and "belongs to someone else", so one user can never probe
// another user's habits.
type Store interface {
	// CreateHabit inserts a new habit and returns its assigned id.
	// The description may be empty; name validation happens upstream.
	CreateHabit(ownerID, name, description string) (int64, error)

	// ListHabits returns all habits for an owner in creation order.
	ListHabits(ownerID string) ([]models.Habit, error)

	// GetHabit returns the habit, or (nil, nil) if no row matches the owner.
	GetHabit(habitID int64, ownerID string) (*models.Habit, error)

	// RecordCompletion atomically increments both day counters.
	// Returns false if no row matches the owner.
	RecordCompletion(habitID int64, ownerID string) (bool, error)

	// DeleteHabit removes the habit. Returns false if no row matches the owner.
	DeleteHabit(habitID int64, ownerID string) (bool, error)

	// UpdateDescription replaces the description (empty text clears it).
	// Returns false if no row matches the owner.
	UpdateDescription(habitID int64, ownerID, description string) (bool, error)

	// OwnerStats aggregates over all of the owner's habits.
	// Returns (nil, nil) when the owner has no habits.
	OwnerStats(ownerID string) (*models.OwnerStats, error)

	// Close releases underlying resources.
	Close() error
}

// InMemoryStore is a mutex-guarded in-memory habit store.
type InMemoryStore struct {
	mu     sync.RWMutex
	habits map[int64]models.Habit
	nextID int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{habits: make(map[int64]models.Habit), nextID: 1}
}

func (s *InMemoryStore) CreateHabit(ownerID, name, description string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.habits[id] = models.Habit{
		ID:          id,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}
	return id, nil
}

func (s *InMemoryStore) ListHabits(ownerID string) ([]models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var habits []models.Habit
	for _, h := range s.habits {
		if h.OwnerID == ownerID {
			habits = append(habits, h)
		}
	}
	sort.Slice(habits, func(i, j int) bool { return habits[i].ID < habits[j].ID })
	return habits, nil
}

func (s *InMemoryStore) GetHabit(habitID int64, ownerID string) (*models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.habits[habitID]
	if !ok || h.OwnerID != ownerID {
		return nil, nil
	}
	copied := h
	return &copied, nil
}

func (s *InMemoryStore) RecordCompletion(habitID int64, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[habitID]
	if !ok || h.OwnerID != ownerID {
		return false, nil
	}
	h.CompletedDays++
	h.TotalDays++
	s.habits[habitID] = h
	return true, nil
}

func (s *InMemoryStore) DeleteHabit(habitID int64, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[habitID]
	if !ok || h.OwnerID != ownerID {
		return false, nil
	}
	delete(s.habits, habitID)
	return true, nil
}

func (s *InMemoryStore) UpdateDescription(habitID int64, ownerID, description string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[habitID]
	if !ok || h.OwnerID != ownerID {
		return false, nil
	}
	h.Description = description
	s.habits[habitID] = h
	return true, nil
}

func (s *InMemoryStore) OwnerStats(ownerID string) (*models.OwnerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats models.OwnerStats
	for _, h := range s.habits {
		if h.OwnerID != ownerID {
			continue
		}
		stats.HabitCount++
		stats.TotalCompleted += h.CompletedDays
		stats.TotalDays += h.TotalDays
	}
	if stats.HabitCount == 0 {
		return nil, nil
	}
	return &stats, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
