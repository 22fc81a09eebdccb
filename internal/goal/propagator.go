package goal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/events"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of a completion change. Affected lists every goal
// written, in order: the toggled goal, its descendants, then its ancestors.
type Result struct {
	Goal     *Goal       `json:"goal"`
	Affected []uuid.UUID `json:"affected"`
}

// Propagator keeps "complete iff every direct child is complete" true after a
// single goal is toggled, walking down to descendants and up to the root.
//
// In atomic mode each toggle is one store transaction. Otherwise every write
// stands on its own and a failure keeps whatever was written before it.
type Propagator struct {
	repo      Repository
	publisher events.Publisher
	atomic    bool
}

func NewPropagator(repo Repository, publisher events.Publisher, atomic bool) *Propagator {
	return &Propagator{repo: repo, publisher: publisher, atomic: atomic}
}

// collector gathers the ids a propagator would publish so a caller running
// several steps can announce them as one invalidation.
type collector struct {
	ids []uuid.UUID
}

func (c *collector) Publish(inv events.Invalidation) {
	c.ids = append(c.ids, inv.GoalIDs...)
}

// collecting returns a copy of p that reports written ids to c instead of the bus.
func (p *Propagator) collecting(c *collector) *Propagator {
	q := *p
	q.publisher = c
	return &q
}

type tracker struct {
	userID uuid.UUID
	seen   map[uuid.UUID]bool
	order  []uuid.UUID
}

func newTracker() *tracker {
	return &tracker{seen: make(map[uuid.UUID]bool)}
}

func (t *tracker) touch(g *Goal) {
	if t.userID == uuid.Nil {
		t.userID = g.UserID
	}
	t.add(g.ID)
}

func (t *tracker) add(ids ...uuid.UUID) {
	for _, id := range ids {
		if !t.seen[id] {
			t.seen[id] = true
			t.order = append(t.order, id)
		}
	}
}

func (t *tracker) reset() {
	t.userID = uuid.Nil
	t.seen = make(map[uuid.UUID]bool)
	t.order = nil
}

func (p *Propagator) run(ctx context.Context, fn func(repo Repository, tr *tracker) error) (*tracker, error) {
	tr := newTracker()
	if !p.atomic {
		return tr, fn(p.repo, tr)
	}

	err := p.repo.Transaction(ctx, func(tx Repository) error {
		// the store may retry the callback, so start each attempt clean
		tr.reset()
		return fn(tx, tr)
	})
	if err != nil {
		tr.reset()
	}
	return tr, err
}

func (p *Propagator) publish(tr *tracker, reason string) {
	if p.publisher == nil || tr.userID == uuid.Nil || len(tr.order) == 0 {
		return
	}
	p.publisher.Publish(events.Invalidation{
		UserID:  tr.userID,
		GoalIDs: append([]uuid.UUID(nil), tr.order...),
		Reason:  reason,
	})
}

// ToggleGoalCompletion flips the goal to !currentStatus. Unchecking always
// unchecks every descendant; checking checks every descendant when the goal has
// children. children is the caller's view of the direct children; nil makes the
// propagator look them up. Ancestors are recomputed last.
func (p *Propagator) ToggleGoalCompletion(ctx context.Context, goalID uuid.UUID, currentStatus bool, children []*Goal) (*Result, error) {
	log := config.WithContext(ctx).WithFields(logrus.Fields{
		"goal_id":        goalID,
		"current_status": currentStatus,
		"has_children":   len(children) > 0,
	})
	log.Debug("Toggling goal completion")

	var updated *Goal
	tr, err := p.run(ctx, func(repo Repository, tr *tracker) error {
		g, err := repo.Update(ctx, goalID, CompletionPatch(!currentStatus))
		if err != nil {
			return fmt.Errorf("update goal %s: %w", goalID, err)
		}
		tr.touch(g)
		updated = g

		if currentStatus {
			if err := p.cascade(ctx, repo, tr, goalID, false); err != nil {
				return err
			}
		} else {
			hasChildren := len(children) > 0
			if children == nil {
				direct, err := repo.List(ctx, Filter{ParentID: &goalID})
				if err != nil {
					return fmt.Errorf("list children of %s: %w", goalID, err)
				}
				hasChildren = len(direct) > 0
			}
			if hasChildren {
				if err := p.cascade(ctx, repo, tr, goalID, true); err != nil {
					return err
				}
			}
		}

		if g.HasParent() {
			return p.recomputeAncestors(ctx, repo, tr, *g.ParentID, goalID)
		}
		return nil
	})

	p.publish(tr, events.ReasonCompletion)
	if err != nil {
		log.WithError(err).WithField("written", len(tr.order)).Error("Failed to toggle goal completion")
		return nil, err
	}

	log.WithField("affected", len(tr.order)).Info("Goal completion toggled")
	return &Result{Goal: updated, Affected: tr.order}, nil
}

// ToggleChildGoalCompletion flips a child that the caller believes belongs to
// parentID. Unchecking the child also unchecks its own descendants; checking it
// does not touch them. The parent chain is recomputed afterwards.
func (p *Propagator) ToggleChildGoalCompletion(ctx context.Context, childID, parentID uuid.UUID, isCompleted bool) (*Result, error) {
	log := config.WithContext(ctx).WithFields(logrus.Fields{
		"child_id":       childID,
		"parent_id":      parentID,
		"current_status": isCompleted,
	})
	log.Debug("Toggling child goal completion")

	var updated *Goal
	tr, err := p.run(ctx, func(repo Repository, tr *tracker) error {
		child, err := repo.Get(ctx, childID)
		if err != nil {
			return fmt.Errorf("get child %s: %w", childID, err)
		}
		if !child.HasParent() || *child.ParentID != parentID {
			return ErrParentMismatch
		}

		g, err := repo.Update(ctx, childID, CompletionPatch(!isCompleted))
		if err != nil {
			return fmt.Errorf("update child %s: %w", childID, err)
		}
		tr.touch(g)
		updated = g

		if isCompleted {
			if err := p.cascade(ctx, repo, tr, childID, false); err != nil {
				return err
			}
		}

		return p.recomputeAncestors(ctx, repo, tr, parentID, childID)
	})

	p.publish(tr, events.ReasonCompletion)
	if err != nil {
		log.WithError(err).WithField("written", len(tr.order)).Error("Failed to toggle child goal completion")
		return nil, err
	}

	log.WithField("affected", len(tr.order)).Info("Child goal completion toggled")
	return &Result{Goal: updated, Affected: tr.order}, nil
}

// RecomputeAncestors rederives goalID's flag from its children and continues up
// the parent chain. Used to repair trees left stale by a failed toggle.
func (p *Propagator) RecomputeAncestors(ctx context.Context, goalID uuid.UUID) (*Result, error) {
	log := config.WithContext(ctx).WithField("goal_id", goalID)

	tr, err := p.run(ctx, func(repo Repository, tr *tracker) error {
		if _, err := repo.Get(ctx, goalID); err != nil {
			return fmt.Errorf("get goal %s: %w", goalID, err)
		}
		return p.recomputeAncestors(ctx, repo, tr, goalID)
	})

	p.publish(tr, events.ReasonRecompute)
	if err != nil {
		log.WithError(err).Error("Failed to recompute goal ancestors")
		return nil, err
	}

	head, err := p.repo.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	return &Result{Goal: head, Affected: tr.order}, nil
}

// cascade writes completed to every descendant of rootID, one level of
// siblings per write. The visited set stops on corrupted, cyclic trees.
func (p *Propagator) cascade(ctx context.Context, repo Repository, tr *tracker, rootID uuid.UUID, completed bool) error {
	visited := map[uuid.UUID]bool{rootID: true}
	stack := []uuid.UUID{rootID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := repo.List(ctx, Filter{ParentID: &id})
		if err != nil {
			return fmt.Errorf("list children of %s: %w", id, err)
		}

		ids := make([]uuid.UUID, 0, len(children))
		for _, c := range children {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			ids = append(ids, c.ID)
		}
		if len(ids) == 0 {
			continue
		}

		if err := repo.UpdateCompletion(ctx, ids, completed); err != nil {
			return fmt.Errorf("update children of %s: %w", id, err)
		}
		tr.add(ids...)

		for i := len(ids) - 1; i >= 0; i-- {
			stack = append(stack, ids[i])
		}
	}
	return nil
}

// recomputeAncestors sets each goal on the chain starting at startID to
// "has children and all of them are complete". A goal with no children is
// therefore written as incomplete. The walk ends at a root, at a goal that no
// longer exists, or at a goal already visited (exclude seeds that set).
func (p *Propagator) recomputeAncestors(ctx context.Context, repo Repository, tr *tracker, startID uuid.UUID, exclude ...uuid.UUID) error {
	log := config.WithContext(ctx)

	visited := make(map[uuid.UUID]bool, len(exclude)+4)
	for _, id := range exclude {
		visited[id] = true
	}

	id := startID
	for {
		if visited[id] {
			log.WithField("goal_id", id).Warn("Goal hierarchy cycle detected, stopping ancestor recompute")
			return nil
		}
		visited[id] = true

		children, err := repo.List(ctx, Filter{ParentID: &id})
		if err != nil {
			return fmt.Errorf("list children of %s: %w", id, err)
		}

		allComplete := len(children) > 0
		for _, c := range children {
			if !c.Completed {
				allComplete = false
				break
			}
		}

		g, err := repo.Update(ctx, id, CompletionPatch(allComplete))
		if errors.Is(err, ErrNotFound) {
			log.WithField("goal_id", id).Info("Ancestor no longer exists, stopping recompute")
			return nil
		}
		if err != nil {
			return fmt.Errorf("update ancestor %s: %w", id, err)
		}
		tr.touch(g)

		if !g.HasParent() {
			return nil
		}
		id = *g.ParentID
	}
}
