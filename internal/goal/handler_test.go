package goal

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/auth"
	"github.com/saulo-duarte/chronos-goals/internal/events"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithClaims(r.Context(), &auth.UserClaims{UserID: testUserID.String(), Role: auth.RoleUser})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type handlerFixture struct {
	repo    *memoryRepository
	bus     *events.Bus
	handler http.Handler
}

func newHandlerFixture() *handlerFixture {
	repo := newMemoryRepository()
	bus := events.NewBus()
	svc := NewService(repo, NewPropagator(repo, bus, true), bus, nil)
	h := NewHandler(svc, bus)
	h.now = func() time.Time { return time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC) }
	return &handlerFixture{repo: repo, bus: bus, handler: withTestUser(Routes(h))}
}

func (f *handlerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreate(t *testing.T) {
	f := newHandlerFixture()

	t.Run("Created", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/", `{"title":"Run","type":"weekly","category":"personal","start_date":"2026-10-12","sub_goals":[{"title":"Mon"},{"title":"Thu"}]}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			ID        uuid.UUID `json:"id"`
			StartDate string    `json:"start_date"`
			Children  []Goal    `json:"children"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2026-10-12", resp.StartDate)
		assert.Len(t, resp.Children, 2)
	})

	t.Run("ValidationFailed", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/", `{"title":"","type":"yearly","category":"personal","start_date":"2026-10-12"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "validation failed")
	})

	t.Run("MissingStartDate", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/", `{"title":"x","type":"daily","category":"personal"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("InvalidHierarchy", func(t *testing.T) {
		q := addGoal(f.repo, TypeQuarterly, nil, false)
		rec := f.do(http.MethodPost, "/", `{"title":"x","type":"daily","category":"personal","start_date":"2026-10-12","parent_id":"`+q.ID.String()+`"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestHandlerGetAndDelete(t *testing.T) {
	f := newHandlerFixture()
	w := addGoal(f.repo, TypeWeekly, nil, false)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/"+w.ID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/nope", "").Code)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/"+w.ID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/"+w.ID.String(), "").Code)
}

func TestHandlerUpdateConflict(t *testing.T) {
	f := newHandlerFixture()
	g := addGoal(f.repo, TypeDaily, nil, false)

	rec := f.do(http.MethodPut, "/"+g.ID.String(), `{"title":"new","version":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, "/"+g.ID.String(), `{"title":"newer","version":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerToggleToast(t *testing.T) {
	f := newHandlerFixture()
	w := addGoal(f.repo, TypeWeekly, nil, false)
	d := addGoal(f.repo, TypeDaily, w, false)

	rec := f.do(http.MethodPost, "/"+w.ID.String()+"/toggle", `{"completed":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var toast ToastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toast))
	assert.True(t, toast.Success)
	assert.Equal(t, "Goal completed", toast.Title)
	require.NotNil(t, toast.Result)
	assert.Equal(t, []uuid.UUID{w.ID, d.ID}, toast.Result.Affected)

	rec = f.do(http.MethodPost, "/"+w.ID.String()+"/children/"+d.ID.String()+"/toggle", `{"completed":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toast))
	assert.Equal(t, "Sub-goal not completed", toast.Title)
	assert.False(t, f.repo.completed(w.ID))
}

func TestHandlerToggleFailureToast(t *testing.T) {
	f := newHandlerFixture()
	w := addGoal(f.repo, TypeWeekly, nil, false)
	addGoal(f.repo, TypeDaily, w, false)
	f.repo.failList[w.ID] = errInjected

	rec := f.do(http.MethodPost, "/"+w.ID.String()+"/toggle", `{"completed":false}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var toast ToastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toast))
	assert.False(t, toast.Success)
	assert.Equal(t, "Error", toast.Title)
	assert.False(t, f.repo.completed(w.ID))
}

func TestHandlerToggleChildMismatch(t *testing.T) {
	f := newHandlerFixture()
	w1 := addGoal(f.repo, TypeWeekly, nil, false)
	w2 := addGoal(f.repo, TypeWeekly, nil, false)
	d := addGoal(f.repo, TypeDaily, w1, false)

	rec := f.do(http.MethodPost, "/"+w2.ID.String()+"/children/"+d.ID.String()+"/toggle", `{"completed":false}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerTodayAndWeekly(t *testing.T) {
	f := newHandlerFixture()
	f.repo.seed(&Goal{ID: uuid.New(), UserID: testUserID, Type: TypeDaily, Category: CategoryProfessional, StartDate: util.NewLocalDate(2026, 10, 14)})
	f.repo.seed(&Goal{ID: uuid.New(), UserID: testUserID, Type: TypeWeekly, Category: CategoryProfessional, StartDate: util.NewLocalDate(2026, 10, 12), Completed: true})

	rec := f.do(http.MethodGet, "/today", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var today TodayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &today))
	assert.Equal(t, "2026-10-14", today.Date.String())
	assert.Len(t, today.Professional, 1)
	assert.Empty(t, today.Personal)

	rec = f.do(http.MethodGet, "/progress/weekly", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var weekly WeeklyProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &weekly))
	assert.Equal(t, "2026-10-12", weekly.WeekStart.String())
	assert.Equal(t, 100, weekly.Percentage)
}

func TestHandlerRequiresClaims(t *testing.T) {
	repo := newMemoryRepository()
	h := NewHandler(NewService(repo, NewPropagator(repo, nil, true), nil, nil), nil)

	rec := httptest.NewRecorder()
	Routes(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerEventsStream(t *testing.T) {
	f := newHandlerFixture()
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return f.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	goalID := uuid.New()
	f.bus.Publish(events.Invalidation{UserID: uuid.New(), GoalIDs: []uuid.UUID{uuid.New()}, Reason: events.ReasonUpdated})
	f.bus.Publish(events.Invalidation{UserID: testUserID, GoalIDs: []uuid.UUID{goalID}, Reason: events.ReasonCompletion})

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)

	var inv events.Invalidation
	require.NoError(t, json.Unmarshal([]byte(data), &inv))
	assert.Equal(t, testUserID, inv.UserID)
	assert.Equal(t, []uuid.UUID{goalID}, inv.GoalIDs)
}
