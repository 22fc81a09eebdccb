package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/auth"
	"github.com/saulo-duarte/chronos-goals/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestRecorderPersistsInvalidations(t *testing.T) {
	repo := newTestRepository(t)
	bus := events.NewBus()
	recorder := NewRecorder(repo, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		recorder.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	userID := uuid.New()
	root, child, parent := uuid.New(), uuid.New(), uuid.New()
	bus.Publish(events.Invalidation{UserID: userID, GoalIDs: []uuid.UUID{root, child, parent}, Reason: events.ReasonCompletion})

	var entries []*Activity
	require.Eventually(t, func() bool {
		var err error
		entries, err = repo.ListForGoal(context.Background(), userID, child, 10)
		return err == nil && len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, root, entries[0].GoalID)
	assert.Equal(t, events.ReasonCompletion, entries[0].Reason)
	touched, err := entries[0].Touched()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{root, child, parent}, touched)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
	assert.Equal(t, 0, bus.Subscribers())
}

func TestListForGoal(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	userID := uuid.New()
	goalID := uuid.New()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	insert := func(root uuid.UUID, ids []uuid.UUID, at time.Time, owner uuid.UUID) {
		raw, err := json.Marshal(ids)
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, &Activity{UserID: owner, GoalID: root, Reason: events.ReasonUpdated, GoalIDs: raw, CreatedAt: at}))
	}
	insert(goalID, []uuid.UUID{goalID}, base, userID)
	other := uuid.New()
	insert(other, []uuid.UUID{other, goalID}, base.Add(time.Minute), userID)
	insert(other, []uuid.UUID{other}, base.Add(2*time.Minute), userID)
	insert(goalID, []uuid.UUID{goalID}, base.Add(3*time.Minute), uuid.New())

	entries, err := repo.ListForGoal(ctx, userID, goalID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, other, entries[0].GoalID, "newest first")
	assert.Equal(t, goalID, entries[1].GoalID)

	limited, err := repo.ListForGoal(ctx, userID, goalID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListForGoalFindsEntriesBehindNewerActivity(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	userID := uuid.New()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	record := func(ids []uuid.UUID, at time.Time) {
		raw, err := json.Marshal(ids)
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, &Activity{UserID: userID, GoalID: ids[0], Reason: events.ReasonCompletion, GoalIDs: raw, CreatedAt: at}))
	}

	target, parent := uuid.New(), uuid.New()
	record([]uuid.UUID{target}, base)
	record([]uuid.UUID{uuid.New(), parent, target}, base.Add(time.Second))
	for i := 0; i < 600; i++ {
		record([]uuid.UUID{uuid.New(), parent}, base.Add(time.Duration(i+2)*time.Second))
	}

	entries, err := repo.ListForGoal(ctx, userID, target, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEqual(t, target, entries[0].GoalID)
	assert.Equal(t, target, entries[1].GoalID)

	busy, err := repo.ListForGoal(ctx, userID, parent, 50)
	require.NoError(t, err)
	assert.Len(t, busy, 50)
}

func TestHandlerListForGoal(t *testing.T) {
	repo := newTestRepository(t)
	userID := uuid.New()
	goalID := uuid.New()
	raw, _ := json.Marshal([]uuid.UUID{goalID})
	require.NoError(t, repo.Insert(context.Background(), &Activity{UserID: userID, GoalID: goalID, Reason: events.ReasonCreated, GoalIDs: raw, CreatedAt: time.Now()}))

	r := chi.NewRouter()
	r.Get("/goals/{id}/activity", NewHandler(repo).ListForGoal)

	serve := func(path string, withClaims bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if withClaims {
			req = req.WithContext(auth.WithClaims(req.Context(), &auth.UserClaims{UserID: userID.String(), Role: auth.RoleUser}))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("/goals/"+goalID.String()+"/activity", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, events.ReasonCreated, entries[0].Reason)

	assert.Equal(t, http.StatusUnauthorized, serve("/goals/"+goalID.String()+"/activity", false).Code)
	assert.Equal(t, http.StatusBadRequest, serve("/goals/x/activity", true).Code)
	assert.Equal(t, http.StatusBadRequest, serve("/goals/"+goalID.String()+"/activity?limit=0", true).Code)
}
