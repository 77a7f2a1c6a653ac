package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"worldlotto/internal/models"
)

// DrawingStore holds drawing records. At most one drawing is active at any time.
type DrawingStore interface {
	Active(ctx context.Context) (*models.Drawing, error)
	Get(ctx context.Context, drawingID string) (*models.Drawing, error)
	LatestCompleted(ctx context.Context) (*models.Drawing, error)
	// History returns all drawings, newest date first.
	History(ctx context.Context) ([]*models.Drawing, error)
	// Open stores a new active drawing. It fails if another drawing is already active.
	Open(ctx context.Context, drawing models.Drawing) (*models.Drawing, error)
	// UpdateActive applies fn to the active drawing and stores the result.
	UpdateActive(ctx context.Context, fn func(*models.Drawing) error) (*models.Drawing, error)
	// Rollover replaces the active drawing with its closed version and opens next in the same step.
	Rollover(ctx context.Context, closed models.Drawing, next models.Drawing) (*models.Drawing, *models.Drawing, error)
}

// MemoryDrawingStore is an in-process DrawingStore with sequential ids.
type MemoryDrawingStore struct {
	mu       sync.RWMutex
	drawings map[string]*models.Drawing
	order    []string
	activeID string
}

// NewMemoryDrawingStore creates an empty drawing store.
func NewMemoryDrawingStore() *MemoryDrawingStore {
	return &MemoryDrawingStore{
		drawings: make(map[string]*models.Drawing),
	}
}

func (s *MemoryDrawingStore) Active(ctx context.Context) (*models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == "" {
		return nil, ErrNoActiveDrawing
	}
	return s.drawings[s.activeID].Clone(), nil
}

func (s *MemoryDrawingStore) Get(ctx context.Context, drawingID string) (*models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drawings[drawingID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDrawingNotFound, drawingID)
	}
	return d.Clone(), nil
}

func (s *MemoryDrawingStore) LatestCompleted(ctx context.Context) (*models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		if d := s.drawings[s.order[i]]; d.IsCompleted() {
			return d.Clone(), nil
		}
	}
	return nil, ErrDrawingNotFound
}

func (s *MemoryDrawingStore) History(ctx context.Context) ([]*models.Drawing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]*models.Drawing, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		history = append(history, s.drawings[s.order[i]].Clone())
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Date.After(history[j].Date)
	})
	return history, nil
}

func (s *MemoryDrawingStore) Open(ctx context.Context, drawing models.Drawing) (*models.Drawing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID != "" {
		return nil, fmt.Errorf("%w: %s", ErrDrawingAlreadyActive, s.activeID)
	}
	return s.openLocked(drawing), nil
}

func (s *MemoryDrawingStore) UpdateActive(ctx context.Context, fn func(*models.Drawing) error) (*models.Drawing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" {
		return nil, ErrNoActiveDrawing
	}
	working := s.drawings[s.activeID].Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	// The callback may not change identity or close the drawing; Rollover does that.
	working.ID = s.activeID
	working.IsActive = true
	s.drawings[s.activeID] = working
	return working.Clone(), nil
}

func (s *MemoryDrawingStore) Rollover(ctx context.Context, closed models.Drawing, next models.Drawing) (*models.Drawing, *models.Drawing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" {
		return nil, nil, ErrNoActiveDrawing
	}
	if closed.ID != s.activeID {
		return nil, nil, fmt.Errorf("rollover of %s but active drawing is %s", closed.ID, s.activeID)
	}
	if closed.IsActive || len(closed.MainNumbers) == 0 || len(closed.WorldNumbers) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrDrawingNotClosed, closed.ID)
	}

	stored := closed.Clone()
	s.drawings[stored.ID] = stored
	s.activeID = ""

	opened := s.openLocked(next)
	return stored.Clone(), opened, nil
}

func (s *MemoryDrawingStore) openLocked(drawing models.Drawing) *models.Drawing {
	stored := drawing.Clone()
	stored.ID = fmt.Sprintf("drawing-%03d", len(s.order)+1)
	stored.IsActive = true
	s.drawings[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	s.activeID = stored.ID
	return stored.Clone()
}
