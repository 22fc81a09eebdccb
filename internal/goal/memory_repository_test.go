package goal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/events"
)

var errInjected = errors.New("injected store failure")

// memoryRepository is an in-memory Repository whose writes can be made to fail
// per goal id. Transaction restores a snapshot when fn fails.
type memoryRepository struct {
	mu    sync.RWMutex
	goals map[uuid.UUID]*Goal
	clock time.Time

	failWrite map[uuid.UUID]error
	failList  map[uuid.UUID]error
	writes    []uuid.UUID
	txCount   int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		goals:     make(map[uuid.UUID]*Goal),
		clock:     time.Date(2026, time.October, 1, 8, 0, 0, 0, time.UTC),
		failWrite: make(map[uuid.UUID]error),
		failList:  make(map[uuid.UUID]error),
	}
}

func cloneGoal(g *Goal) *Goal {
	c := *g
	if g.ParentID != nil {
		p := *g.ParentID
		c.ParentID = &p
	}
	if g.Minutes != nil {
		m := *g.Minutes
		c.Minutes = &m
	}
	return &c
}

func (r *memoryRepository) Migrate(ctx context.Context) error { return nil }

func (r *memoryRepository) Get(ctx context.Context, id uuid.UUID) (*Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGoal(g), nil
}

func matches(g *Goal, f Filter) bool {
	if f.UserID != nil && g.UserID != *f.UserID {
		return false
	}
	if f.ParentID != nil && (g.ParentID == nil || *g.ParentID != *f.ParentID) {
		return false
	}
	if f.Type != nil && g.Type != *f.Type {
		return false
	}
	if f.Category != nil && g.Category != *f.Category {
		return false
	}
	if f.StartFrom != nil && g.StartDate.Before(f.StartFrom.Time) {
		return false
	}
	if f.StartBefore != nil && !g.StartDate.Before(f.StartBefore.Time) {
		return false
	}
	if f.ExcludeID != nil && g.ID == *f.ExcludeID {
		return false
	}
	return true
}

func (r *memoryRepository) List(ctx context.Context, f Filter) ([]*Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f.ParentID != nil {
		if err := r.failList[*f.ParentID]; err != nil {
			return nil, err
		}
	}

	goals := make([]*Goal, 0)
	for _, g := range r.goals {
		if matches(g, f) {
			goals = append(goals, cloneGoal(g))
		}
	}
	sort.Slice(goals, func(i, j int) bool {
		return goals[i].CreatedAt.After(goals[j].CreatedAt)
	})
	return goals, nil
}

func (r *memoryRepository) Insert(ctx context.Context, g *Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Version == 0 {
		g.Version = 1
	}
	r.clock = r.clock.Add(time.Second)
	g.CreatedAt = r.clock
	g.UpdatedAt = r.clock
	r.goals[g.ID] = cloneGoal(g)
	return nil
}

func (r *memoryRepository) Update(ctx context.Context, id uuid.UUID, p Patch) (*Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failWrite[id]; err != nil {
		return nil, err
	}
	g, ok := r.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.ExpectedVersion != nil && *p.ExpectedVersion != g.Version {
		return nil, ErrVersionConflict
	}
	p.apply(g)
	g.Version++
	r.writes = append(r.writes, id)
	return cloneGoal(g), nil
}

func (r *memoryRepository) UpdateCompletion(ctx context.Context, ids []uuid.UUID, completed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if err := r.failWrite[id]; err != nil {
			return err
		}
	}
	for _, id := range ids {
		if g, ok := r.goals[id]; ok {
			g.Completed = completed
			g.Version++
			r.writes = append(r.writes, id)
		}
	}
	return nil
}

func (r *memoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.goals[id]; !ok {
		return ErrNotFound
	}
	delete(r.goals, id)
	return nil
}

func (r *memoryRepository) DetachChildren(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, g := range r.goals {
		if g.ParentID != nil && *g.ParentID == parentID {
			g.ParentID = nil
			g.Version++
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

func (r *memoryRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	r.mu.Lock()
	r.txCount++
	snapshot := make(map[uuid.UUID]*Goal, len(r.goals))
	for id, g := range r.goals {
		snapshot[id] = cloneGoal(g)
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.goals = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// seed stores g as-is and returns it.
func (r *memoryRepository) seed(g *Goal) *Goal {
	if err := r.Insert(context.Background(), g); err != nil {
		panic(err)
	}
	return g
}

func (r *memoryRepository) completed(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.goals[id].Completed
}

// recordingPublisher captures published invalidations.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []events.Invalidation
}

func (p *recordingPublisher) Publish(inv events.Invalidation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, inv)
}

func (p *recordingPublisher) last() (events.Invalidation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sent) == 0 {
		return events.Invalidation{}, false
	}
	return p.sent[len(p.sent)-1], true
}
