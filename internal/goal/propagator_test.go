package goal

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/events"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUserID = uuid.MustParse("6f1c2a4e-7d55-4c1b-9a0e-3c2b1a000001")

func addGoal(r *memoryRepository, t GoalType, parent *Goal, completed bool) *Goal {
	g := &Goal{
		ID:        uuid.New(),
		UserID:    testUserID,
		Title:     fmt.Sprintf("%s goal", t),
		Type:      t,
		Category:  CategoryProfessional,
		StartDate: util.NewLocalDate(2026, 10, 12),
		Completed: completed,
	}
	if parent != nil {
		pid := parent.ID
		g.ParentID = &pid
	}
	return r.seed(g)
}

func forEachMode(t *testing.T, fn func(t *testing.T, atomic bool)) {
	for _, atomic := range []bool{true, false} {
		t.Run(fmt.Sprintf("atomic=%v", atomic), func(t *testing.T) {
			fn(t, atomic)
		})
	}
}

func TestToggleGoalCascadesToEveryDescendant(t *testing.T) {
	forEachMode(t, func(t *testing.T, atomic bool) {
		ctx := context.Background()
		repo := newMemoryRepository()
		q := addGoal(repo, TypeQuarterly, nil, false)
		m1 := addGoal(repo, TypeMonthly, q, false)
		m2 := addGoal(repo, TypeMonthly, q, true)
		w1 := addGoal(repo, TypeWeekly, m1, false)
		d1 := addGoal(repo, TypeDaily, w1, false)
		d2 := addGoal(repo, TypeDaily, w1, true)
		all := []*Goal{m1, m2, w1, d1, d2}

		p := NewPropagator(repo, nil, atomic)

		res, err := p.ToggleGoalCompletion(ctx, q.ID, false, nil)
		require.NoError(t, err)
		assert.True(t, res.Goal.Completed)
		assert.True(t, repo.completed(q.ID))
		for _, g := range all {
			assert.True(t, repo.completed(g.ID), "descendant %s should be complete", g.Type)
		}
		assert.Len(t, res.Affected, 6)
		assert.Equal(t, q.ID, res.Affected[0])

		res, err = p.ToggleGoalCompletion(ctx, q.ID, true, nil)
		require.NoError(t, err)
		assert.False(t, res.Goal.Completed)
		for _, g := range all {
			assert.False(t, repo.completed(g.ID), "descendant %s should be incomplete", g.Type)
		}
	})
}

func TestToggleGoalThreeLevelScenario(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	a := addGoal(repo, TypeWeekly, nil, false)
	b := addGoal(repo, TypeDaily, a, false)

	res, err := NewPropagator(repo, nil, true).ToggleGoalCompletion(ctx, a.ID, false, nil)
	require.NoError(t, err)

	assert.True(t, repo.completed(a.ID))
	assert.True(t, repo.completed(b.ID))
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, res.Affected)
}

func TestToggleChildBubblesUpToParent(t *testing.T) {
	forEachMode(t, func(t *testing.T, atomic bool) {
		ctx := context.Background()
		repo := newMemoryRepository()
		q := addGoal(repo, TypeQuarterly, nil, false)
		m1 := addGoal(repo, TypeMonthly, q, true)
		m2 := addGoal(repo, TypeMonthly, q, false)
		p := NewPropagator(repo, nil, atomic)

		res, err := p.ToggleChildGoalCompletion(ctx, m2.ID, q.ID, false)
		require.NoError(t, err)
		assert.True(t, repo.completed(m2.ID))
		assert.True(t, repo.completed(q.ID))
		assert.Equal(t, []uuid.UUID{m2.ID, q.ID}, res.Affected)

		_, err = p.ToggleChildGoalCompletion(ctx, m1.ID, q.ID, true)
		require.NoError(t, err)
		assert.False(t, repo.completed(m1.ID))
		assert.False(t, repo.completed(q.ID))
	})
}

func TestAncestorRecomputeReachesRoot(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	q := addGoal(repo, TypeQuarterly, nil, false)
	m := addGoal(repo, TypeMonthly, q, false)
	w := addGoal(repo, TypeWeekly, m, false)

	p := NewPropagator(repo, nil, true)
	res, err := p.ToggleGoalCompletion(ctx, w.ID, false, []*Goal{})
	require.NoError(t, err)

	assert.True(t, repo.completed(w.ID))
	assert.True(t, repo.completed(m.ID))
	assert.True(t, repo.completed(q.ID))
	assert.Equal(t, []uuid.UUID{w.ID, m.ID, q.ID}, res.Affected)

	// an incomplete sibling of m keeps q open
	addGoal(repo, TypeMonthly, q, false)
	_, err = p.ToggleGoalCompletion(ctx, w.ID, true, nil)
	require.NoError(t, err)
	_, err = p.ToggleGoalCompletion(ctx, w.ID, false, nil)
	require.NoError(t, err)
	assert.True(t, repo.completed(m.ID))
	assert.False(t, repo.completed(q.ID))
}

func TestRecomputeAncestorsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	q := addGoal(repo, TypeQuarterly, nil, true)
	addGoal(repo, TypeMonthly, q, true)
	addGoal(repo, TypeMonthly, q, false)
	p := NewPropagator(repo, nil, true)

	first, err := p.RecomputeAncestors(ctx, q.ID)
	require.NoError(t, err)
	second, err := p.RecomputeAncestors(ctx, q.ID)
	require.NoError(t, err)

	assert.False(t, first.Goal.Completed)
	assert.Equal(t, first.Goal.Completed, second.Goal.Completed)
}

func TestChildlessGoalAsymmetry(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	p := NewPropagator(repo, nil, true)

	t.Run("DirectToggleKeepsFlag", func(t *testing.T) {
		d := addGoal(repo, TypeDaily, nil, false)
		res, err := p.ToggleGoalCompletion(ctx, d.ID, false, nil)
		require.NoError(t, err)
		assert.True(t, res.Goal.Completed)
		assert.True(t, repo.completed(d.ID))
		assert.Equal(t, []uuid.UUID{d.ID}, res.Affected)
	})

	t.Run("RecomputeForcesIncomplete", func(t *testing.T) {
		w := addGoal(repo, TypeWeekly, nil, true)
		res, err := p.RecomputeAncestors(ctx, w.ID)
		require.NoError(t, err)
		assert.False(t, res.Goal.Completed)
		assert.False(t, repo.completed(w.ID))
	})
}

func TestFailureMidChainNonAtomicKeepsPriorWrites(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	m := addGoal(repo, TypeMonthly, nil, false)
	a := addGoal(repo, TypeWeekly, m, false)
	b := addGoal(repo, TypeDaily, a, false)
	repo.failWrite[m.ID] = errInjected

	pub := &recordingPublisher{}
	_, err := NewPropagator(repo, pub, false).ToggleGoalCompletion(ctx, a.ID, false, nil)
	require.ErrorIs(t, err, errInjected)

	assert.True(t, repo.completed(a.ID))
	assert.True(t, repo.completed(b.ID))
	assert.False(t, repo.completed(m.ID))

	inv, ok := pub.last()
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, inv.GoalIDs)
	assert.Equal(t, events.ReasonCompletion, inv.Reason)
}

func TestFailureMidChainAtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	m := addGoal(repo, TypeMonthly, nil, false)
	a := addGoal(repo, TypeWeekly, m, false)
	b := addGoal(repo, TypeDaily, a, false)
	repo.failWrite[m.ID] = errInjected

	pub := &recordingPublisher{}
	_, err := NewPropagator(repo, pub, true).ToggleGoalCompletion(ctx, a.ID, false, nil)
	require.ErrorIs(t, err, errInjected)

	assert.False(t, repo.completed(a.ID))
	assert.False(t, repo.completed(b.ID))
	assert.False(t, repo.completed(m.ID))
	assert.Equal(t, 1, repo.txCount)

	_, published := pub.last()
	assert.False(t, published)
}

func TestFailureDuringCascadeAborts(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	w := addGoal(repo, TypeWeekly, nil, true)
	d := addGoal(repo, TypeDaily, w, true)
	repo.failList[d.ID] = errInjected

	_, err := NewPropagator(repo, nil, false).ToggleGoalCompletion(ctx, w.ID, true, nil)
	require.ErrorIs(t, err, errInjected)

	// self and the first level were written before the failing lookup
	assert.False(t, repo.completed(w.ID))
	assert.False(t, repo.completed(d.ID))
}

func TestToggleChildValidatesParent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	q := addGoal(repo, TypeQuarterly, nil, false)
	other := addGoal(repo, TypeQuarterly, nil, false)
	m := addGoal(repo, TypeMonthly, q, false)

	_, err := NewPropagator(repo, nil, true).ToggleChildGoalCompletion(ctx, m.ID, other.ID, false)
	assert.ErrorIs(t, err, ErrParentMismatch)
	assert.False(t, repo.completed(m.ID))
	assert.Empty(t, repo.writes)
}

func TestToggleChildCascadeDirection(t *testing.T) {
	ctx := context.Background()

	t.Run("CheckingDoesNotCascade", func(t *testing.T) {
		repo := newMemoryRepository()
		m := addGoal(repo, TypeMonthly, nil, false)
		child := addGoal(repo, TypeWeekly, m, false)
		grandchild := addGoal(repo, TypeDaily, child, false)

		_, err := NewPropagator(repo, nil, true).ToggleChildGoalCompletion(ctx, child.ID, m.ID, false)
		require.NoError(t, err)
		assert.True(t, repo.completed(child.ID))
		assert.False(t, repo.completed(grandchild.ID))
	})

	t.Run("UncheckingCascades", func(t *testing.T) {
		repo := newMemoryRepository()
		m := addGoal(repo, TypeMonthly, nil, true)
		child := addGoal(repo, TypeWeekly, m, true)
		grandchild := addGoal(repo, TypeDaily, child, true)

		res, err := NewPropagator(repo, nil, true).ToggleChildGoalCompletion(ctx, child.ID, m.ID, true)
		require.NoError(t, err)
		assert.False(t, repo.completed(child.ID))
		assert.False(t, repo.completed(grandchild.ID))
		assert.False(t, repo.completed(m.ID))
		assert.Equal(t, []uuid.UUID{child.ID, grandchild.ID, m.ID}, res.Affected)
	})
}

func TestSuppliedChildrenHint(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	w := addGoal(repo, TypeWeekly, nil, false)
	d := addGoal(repo, TypeDaily, w, false)

	_, err := NewPropagator(repo, nil, true).ToggleGoalCompletion(ctx, w.ID, false, []*Goal{})
	require.NoError(t, err)
	assert.True(t, repo.completed(w.ID))
	assert.False(t, repo.completed(d.ID), "an empty children hint skips the cascade")
}

func TestCycleGuardTerminates(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	a := addGoal(repo, TypeWeekly, nil, false)
	b := addGoal(repo, TypeWeekly, a, false)
	aParent := b.ID
	repo.goals[a.ID].ParentID = &aParent

	p := NewPropagator(repo, nil, true)
	res, err := p.ToggleGoalCompletion(ctx, a.ID, false, nil)
	require.NoError(t, err)
	assert.True(t, repo.completed(a.ID))
	assert.True(t, repo.completed(b.ID))
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, res.Affected)

	_, err = p.RecomputeAncestors(ctx, a.ID)
	require.NoError(t, err)
}

func TestMissingAncestorStopsQuietly(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	ghost := &Goal{ID: uuid.New()}
	d := addGoal(repo, TypeDaily, ghost, false)

	res, err := NewPropagator(repo, nil, true).ToggleGoalCompletion(ctx, d.ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{d.ID}, res.Affected)
}

func TestToggleMissingGoal(t *testing.T) {
	_, err := NewPropagator(newMemoryRepository(), nil, true).ToggleGoalCompletion(context.Background(), uuid.New(), false, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewPropagator(newMemoryRepository(), nil, true).RecomputeAncestors(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTogglePublishesAffectedIDs(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	q := addGoal(repo, TypeQuarterly, nil, false)
	m := addGoal(repo, TypeMonthly, q, false)
	w := addGoal(repo, TypeWeekly, m, false)

	pub := &recordingPublisher{}
	_, err := NewPropagator(repo, pub, true).ToggleGoalCompletion(ctx, m.ID, false, nil)
	require.NoError(t, err)

	inv, ok := pub.last()
	require.True(t, ok)
	assert.Equal(t, testUserID, inv.UserID)
	assert.Equal(t, []uuid.UUID{m.ID, w.ID, q.ID}, inv.GoalIDs)
}
