package goal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/auth"
	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/events"
	googlecalendar "github.com/saulo-duarte/chronos-goals/internal/google_calendar"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidID        = errors.New("invalid id format")
	ErrInvalidHierarchy = errors.New("invalid goal hierarchy")
	ErrParentMismatch   = errors.New("goal is not a child of the given parent")
	ErrMissingStartDate = errors.New("start_date is required")
	ErrInvalidFilter    = errors.New("invalid goal filter")
)

type ListQuery struct {
	Type     string
	Category string
	ParentID string
}

type Service interface {
	Create(ctx context.Context, dto CreateGoalDTO) (*GoalWithChildrenResponse, error)
	CreateForUser(ctx context.Context, userID uuid.UUID, dto CreateGoalDTO) (*GoalWithChildrenResponse, error)
	List(ctx context.Context, q ListQuery) ([]*Goal, error)
	Get(ctx context.Context, id string) (*GoalWithChildrenResponse, error)
	Update(ctx context.Context, id string, dto UpdateGoalDTO) (*Goal, error)
	Delete(ctx context.Context, id string) error
	CandidateParents(ctx context.Context, id string) ([]*Goal, error)
	ToggleCompletion(ctx context.Context, id string, dto ToggleGoalDTO) (*Result, error)
	ToggleChildCompletion(ctx context.Context, parentID, childID string, dto ToggleChildDTO) (*Result, error)
	Today(ctx context.Context, day util.LocalDate) (*TodayResponse, error)
	WeeklyProgress(ctx context.Context, day util.LocalDate) (*WeeklyProgressResponse, error)
	Recompute(ctx context.Context, id uuid.UUID) (*Result, error)
}

type service struct {
	repo       Repository
	propagator *Propagator
	publisher  events.Publisher
	calendar   googlecalendar.CalendarManager
}

// NewService wires the goal use cases. calendar may be nil when Google
// Calendar sync is not configured.
func NewService(repo Repository, propagator *Propagator, publisher events.Publisher, calendar googlecalendar.CalendarManager) Service {
	return &service{
		repo:       repo,
		propagator: propagator,
		publisher:  publisher,
		calendar:   calendar,
	}
}

func getUserIDFromContext(ctx context.Context, log logrus.FieldLogger, action string) (uuid.UUID, error) {
	claims, err := auth.GetUserClaimsFromContext(ctx)
	if err != nil {
		log.WithError(err).Warnf("Attempt to %s without authentication", action)
		return uuid.Nil, ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		log.WithError(err).Warnf("Attempt to %s with malformed user id", action)
		return uuid.Nil, ErrUnauthorized
	}
	return userID, nil
}

func parseUUID(log logrus.FieldLogger, id string, entityName string) (uuid.UUID, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		log.WithError(err).Warnf("Invalid %s ID", entityName)
		return uuid.Nil, ErrInvalidID
	}
	return parsedID, nil
}

func findOwned(ctx context.Context, repo Repository, id, userID uuid.UUID) (*Goal, error) {
	g, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.UserID != userID {
		return nil, ErrNotFound
	}
	return g, nil
}

// validateParent enforces that a parent exists, has the same owner and sits
// exactly one level above goalType.
func validateParent(ctx context.Context, repo Repository, userID uuid.UUID, goalType GoalType, parentID *uuid.UUID, selfID uuid.UUID) error {
	if parentID == nil || *parentID == uuid.Nil {
		return nil
	}

	wantType, ok := goalType.ParentType()
	if !ok {
		return fmt.Errorf("%w: %s goals cannot have a parent", ErrInvalidHierarchy, goalType)
	}
	if *parentID == selfID {
		return fmt.Errorf("%w: a goal cannot be its own parent", ErrInvalidHierarchy)
	}

	parent, err := findOwned(ctx, repo, *parentID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: parent %s not found", ErrInvalidHierarchy, parentID)
		}
		return err
	}
	if parent.Type != wantType {
		return fmt.Errorf("%w: parent of a %s goal must be %s, got %s", ErrInvalidHierarchy, goalType, wantType, parent.Type)
	}
	return nil
}

func (s *service) Create(ctx context.Context, dto CreateGoalDTO) (*GoalWithChildrenResponse, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "create goal")
	if err != nil {
		return nil, err
	}
	return s.CreateForUser(ctx, userID, dto)
}

func (s *service) CreateForUser(ctx context.Context, userID uuid.UUID, dto CreateGoalDTO) (*GoalWithChildrenResponse, error) {
	log := config.WithContext(ctx)

	if dto.StartDate.IsZero() {
		return nil, ErrMissingStartDate
	}
	if !dto.Type.IsValid() || !dto.Category.IsValid() {
		return nil, fmt.Errorf("%w: unknown type or category", ErrInvalidHierarchy)
	}

	childType, hasChildLevel := dto.Type.ChildType()
	if len(dto.SubGoals) > 0 && !hasChildLevel {
		return nil, fmt.Errorf("%w: %s goals cannot have sub-goals", ErrInvalidHierarchy, dto.Type)
	}

	g := &Goal{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     strings.TrimSpace(dto.Title),
		Type:      dto.Type,
		Category:  dto.Category,
		StartDate: dto.StartDate,
		Minutes:   dto.Minutes,
		ParentID:  dto.ParentID,
	}
	if g.ParentID != nil && *g.ParentID == uuid.Nil {
		g.ParentID = nil
	}

	var children []*Goal
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := validateParent(ctx, tx, userID, g.Type, g.ParentID, g.ID); err != nil {
			return err
		}
		if err := tx.Insert(ctx, g); err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}

		children = children[:0]
		for _, sub := range dto.SubGoals {
			parentID := g.ID
			child := &Goal{
				ID:        uuid.New(),
				UserID:    userID,
				Title:     strings.TrimSpace(sub.Title),
				Type:      childType,
				Category:  g.Category,
				StartDate: g.StartDate,
				Minutes:   sub.Minutes,
				ParentID:  &parentID,
			}
			if err := tx.Insert(ctx, child); err != nil {
				return fmt.Errorf("insert sub-goal: %w", err)
			}
			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("title", g.Title).Error("Failed to create goal")
		return nil, err
	}

	for _, created := range append([]*Goal{g}, children...) {
		s.syncCalendar(ctx, created)
	}

	affected := []uuid.UUID{g.ID}
	for _, c := range children {
		affected = append(affected, c.ID)
	}

	// a new incomplete child can flip a completed parent chain back to incomplete
	if g.HasParent() {
		col := &collector{}
		if _, err := s.propagator.collecting(col).RecomputeAncestors(ctx, *g.ParentID); err != nil {
			log.WithError(err).WithField("parent_id", g.ParentID).Warn("Failed to recompute ancestors after create")
		}
		affected = append(affected, col.ids...)
	}
	s.publish(userID, affected, events.ReasonCreated)

	log.WithFields(logrus.Fields{
		"goal_id":   g.ID,
		"sub_goals": len(children),
	}).Info("Goal created successfully")
	return &GoalWithChildrenResponse{Goal: g, Children: children}, nil
}

func (s *service) List(ctx context.Context, q ListQuery) ([]*Goal, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "list goals")
	if err != nil {
		return nil, err
	}

	f := Filter{UserID: &userID}
	if q.Type != "" {
		t := GoalType(q.Type)
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: type %q", ErrInvalidFilter, q.Type)
		}
		f.Type = &t
	}
	if q.Category != "" {
		c := Category(q.Category)
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: category %q", ErrInvalidFilter, q.Category)
		}
		f.Category = &c
	}
	if q.ParentID != "" {
		pid, err := parseUUID(log, q.ParentID, "parent goal")
		if err != nil {
			return nil, err
		}
		f.ParentID = &pid
	}

	goals, err := s.repo.List(ctx, f)
	if err != nil {
		log.WithError(err).Error("Failed to list goals")
		return nil, err
	}
	return goals, nil
}

func (s *service) Get(ctx context.Context, id string) (*GoalWithChildrenResponse, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "find goal")
	if err != nil {
		return nil, err
	}
	goalID, err := parseUUID(log, id, "goal")
	if err != nil {
		return nil, err
	}

	g, err := findOwned(ctx, s.repo, goalID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WithField("goal_id", id).Warn("Goal not found or does not belong to user")
		} else {
			log.WithError(err).Error("Error finding goal by ID")
		}
		return nil, err
	}

	children, err := s.repo.List(ctx, Filter{ParentID: &goalID})
	if err != nil {
		log.WithError(err).Error("Failed to list child goals")
		return nil, err
	}
	return &GoalWithChildrenResponse{Goal: g, Children: children}, nil
}

func (s *service) Update(ctx context.Context, id string, dto UpdateGoalDTO) (*Goal, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "update goal")
	if err != nil {
		return nil, err
	}
	goalID, err := parseUUID(log, id, "goal")
	if err != nil {
		return nil, err
	}

	existing, err := findOwned(ctx, s.repo, goalID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WithField("goal_id", id).Warn("Goal not found for update")
		} else {
			log.WithError(err).Error("Error finding goal for update")
		}
		return nil, err
	}

	patch := Patch{ExpectedVersion: dto.Version}
	if dto.Title != nil {
		title := strings.TrimSpace(*dto.Title)
		patch.Title = &title
	}
	if dto.Category != nil {
		patch.Category = dto.Category
	}
	if dto.StartDate != nil && !dto.StartDate.IsZero() {
		patch.StartDate = dto.StartDate
	}
	if dto.Minutes != nil {
		if *dto.Minutes == 0 {
			patch.ClearMinutes = true
		} else {
			patch.Minutes = dto.Minutes
		}
	}

	newType := existing.Type
	if dto.Type != nil {
		newType = *dto.Type
		patch.Type = dto.Type
	}

	newParent := existing.ParentID
	if dto.ParentID != nil {
		if *dto.ParentID == "" {
			patch.ClearParent = true
			newParent = nil
		} else {
			pid, err := parseUUID(log, *dto.ParentID, "parent goal")
			if err != nil {
				return nil, err
			}
			patch.ParentID = &pid
			newParent = &pid
		}
	}

	oldParent := existing.ParentID
	var updated *Goal
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if newType != existing.Type {
			children, err := tx.List(ctx, Filter{ParentID: &goalID})
			if err != nil {
				return err
			}
			if len(children) > 0 {
				return fmt.Errorf("%w: cannot change the type of a goal that has sub-goals", ErrInvalidHierarchy)
			}
		}
		if newType == TypeQuarterly && newParent != nil {
			// moving to the top level always detaches
			patch.ParentID = nil
			patch.ClearParent = true
			newParent = nil
		}
		if err := validateParent(ctx, tx, userID, newType, newParent, goalID); err != nil {
			return err
		}

		g, err := tx.Update(ctx, goalID, patch)
		if err != nil {
			return err
		}
		updated = g
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			log.WithField("goal_id", id).Warn("Goal update rejected, stale version")
		} else {
			log.WithError(err).Error("Failed to update goal")
		}
		return nil, err
	}

	// every write below is announced once, as part of this update
	col := &collector{ids: []uuid.UUID{goalID}}
	prop := s.propagator.collecting(col)

	if dto.Completed != nil && *dto.Completed != updated.Completed {
		res, err := prop.ToggleGoalCompletion(ctx, goalID, updated.Completed, nil)
		if err != nil {
			s.publish(userID, col.ids, events.ReasonUpdated)
			return nil, err
		}
		updated = res.Goal
	}

	if !sameParent(oldParent, updated.ParentID) {
		for _, pid := range []*uuid.UUID{oldParent, updated.ParentID} {
			if pid == nil {
				continue
			}
			_, err := prop.RecomputeAncestors(ctx, *pid)
			if err != nil && !errors.Is(err, ErrNotFound) {
				log.WithError(err).WithField("parent_id", pid).Warn("Failed to recompute ancestors after reparent")
			}
		}
	}

	s.syncCalendar(ctx, updated)
	s.publish(userID, col.ids, events.ReasonUpdated)

	log.WithField("goal_id", goalID).Info("Goal updated successfully")
	return updated, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Delete removes a goal and detaches its direct children, which become
// top-level goals of their own type. The former parent chain is recomputed.
func (s *service) Delete(ctx context.Context, id string) error {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "delete goal")
	if err != nil {
		return err
	}
	goalID, err := parseUUID(log, id, "goal")
	if err != nil {
		return err
	}

	var deleted *Goal
	var orphans []uuid.UUID
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		g, err := findOwned(ctx, tx, goalID, userID)
		if err != nil {
			return err
		}
		deleted = g

		orphans, err = tx.DetachChildren(ctx, goalID)
		if err != nil {
			return fmt.Errorf("detach children: %w", err)
		}
		return tx.Delete(ctx, goalID)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WithField("goal_id", id).Warn("Goal not found or does not belong to user for deletion")
		} else {
			log.WithError(err).Error("Failed to delete goal")
		}
		return err
	}

	col := &collector{ids: append([]uuid.UUID{goalID}, orphans...)}
	if deleted.HasParent() {
		_, err := s.propagator.collecting(col).RecomputeAncestors(ctx, *deleted.ParentID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.WithError(err).WithField("parent_id", deleted.ParentID).Warn("Failed to recompute ancestors after delete")
		}
	}

	if s.calendar != nil && deleted.GoogleCalendarEventID != "" {
		if err := s.calendar.RemoveGoal(ctx, userID, deleted.GoogleCalendarEventID); err != nil {
			log.WithError(err).Warnf("Failed to delete Google Calendar event %s for goal %s", deleted.GoogleCalendarEventID, id)
		}
	}

	s.publish(userID, col.ids, events.ReasonDeleted)
	log.WithFields(logrus.Fields{
		"goal_id":  goalID,
		"detached": len(orphans),
	}).Info("Goal deleted successfully")
	return nil
}

func (s *service) CandidateParents(ctx context.Context, id string) ([]*Goal, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "list candidate parents")
	if err != nil {
		return nil, err
	}
	goalID, err := parseUUID(log, id, "goal")
	if err != nil {
		return nil, err
	}

	g, err := findOwned(ctx, s.repo, goalID, userID)
	if err != nil {
		return nil, err
	}

	parentType, ok := g.Type.ParentType()
	if !ok {
		return []*Goal{}, nil
	}

	goals, err := s.repo.List(ctx, Filter{UserID: &userID, Type: &parentType, ExcludeID: &goalID})
	if err != nil {
		log.WithError(err).Error("Failed to list candidate parents")
		return nil, err
	}
	return goals, nil
}

func (s *service) ToggleCompletion(ctx context.Context, id string, dto ToggleGoalDTO) (*Result, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "toggle goal")
	if err != nil {
		return nil, err
	}
	goalID, err := parseUUID(log, id, "goal")
	if err != nil {
		return nil, err
	}

	if _, err := findOwned(ctx, s.repo, goalID, userID); err != nil {
		return nil, err
	}
	return s.propagator.ToggleGoalCompletion(ctx, goalID, dto.Completed, dto.childGoals(goalID))
}

func (s *service) ToggleChildCompletion(ctx context.Context, parentID, childID string, dto ToggleChildDTO) (*Result, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "toggle child goal")
	if err != nil {
		return nil, err
	}
	pid, err := parseUUID(log, parentID, "parent goal")
	if err != nil {
		return nil, err
	}
	cid, err := parseUUID(log, childID, "child goal")
	if err != nil {
		return nil, err
	}

	if _, err := findOwned(ctx, s.repo, pid, userID); err != nil {
		return nil, err
	}
	return s.propagator.ToggleChildGoalCompletion(ctx, cid, pid, dto.Completed)
}

func (s *service) Today(ctx context.Context, day util.LocalDate) (*TodayResponse, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "list today's goals")
	if err != nil {
		return nil, err
	}

	daily := TypeDaily
	next := day.AddDays(1)
	goals, err := s.repo.List(ctx, Filter{
		UserID:      &userID,
		Type:        &daily,
		StartFrom:   &day,
		StartBefore: &next,
	})
	if err != nil {
		log.WithError(err).Error("Failed to list today's goals")
		return nil, err
	}

	resp := &TodayResponse{Date: day, Professional: []*Goal{}, Personal: []*Goal{}}
	for _, g := range goals {
		switch g.Category {
		case CategoryProfessional:
			resp.Professional = append(resp.Professional, g)
		case CategoryPersonal:
			resp.Personal = append(resp.Personal, g)
		}
	}
	return resp, nil
}

// WeeklyProgress covers weekly goals starting Monday through Sunday of the
// week containing day.
func (s *service) WeeklyProgress(ctx context.Context, day util.LocalDate) (*WeeklyProgressResponse, error) {
	log := config.WithContext(ctx)
	userID, err := getUserIDFromContext(ctx, log, "read weekly progress")
	if err != nil {
		return nil, err
	}

	weekly := TypeWeekly
	start := day.StartOfWeek()
	next := start.AddDays(7)
	goals, err := s.repo.List(ctx, Filter{
		UserID:      &userID,
		Type:        &weekly,
		StartFrom:   &start,
		StartBefore: &next,
	})
	if err != nil {
		log.WithError(err).Error("Failed to list weekly goals")
		return nil, err
	}

	resp := &WeeklyProgressResponse{
		WeekStart: start,
		WeekEnd:   start.AddDays(6),
		Total:     len(goals),
		Goals:     goals,
	}
	for _, g := range goals {
		if g.Completed {
			resp.Completed++
		}
	}
	resp.Percentage = completionPercentage(resp.Completed, resp.Total)
	return resp, nil
}

func completionPercentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return (completed*100 + total/2) / total
}

func (s *service) Recompute(ctx context.Context, id uuid.UUID) (*Result, error) {
	return s.propagator.RecomputeAncestors(ctx, id)
}

func (s *service) publish(userID uuid.UUID, ids []uuid.UUID, reason string) {
	if s.publisher == nil {
		return
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	s.publisher.Publish(events.Invalidation{
		UserID:  userID,
		GoalIDs: unique,
		Reason:  reason,
		At:      time.Now(),
	})
}

func (s *service) syncCalendar(ctx context.Context, g *Goal) {
	if s.calendar == nil || g == nil {
		return
	}
	log := config.WithContext(ctx)

	calGoal := toCalendarGoal(g)
	eventID, err := s.calendar.SyncGoal(ctx, g.UserID, calGoal)
	if err != nil {
		log.WithError(err).Warnf("Failed to sync goal %s with Google Calendar", g.ID)
		return
	}
	if eventID == g.GoogleCalendarEventID {
		return
	}

	if _, err := s.repo.Update(ctx, g.ID, Patch{CalendarEventID: &eventID}); err != nil {
		log.WithError(err).Error("Failed to update goal with Google Calendar Event ID")
		return
	}
	g.GoogleCalendarEventID = eventID
	g.Version++
}

func toCalendarGoal(g *Goal) *googlecalendar.CalendarGoal {
	cg := &googlecalendar.CalendarGoal{
		ID:       g.ID,
		Title:    g.Title,
		Type:     string(g.Type),
		Category: string(g.Category),
		Minutes:  g.Minutes,
	}
	if !g.StartDate.IsZero() {
		d := g.StartDate.Time
		cg.Date = &d
	}
	if g.GoogleCalendarEventID != "" {
		eventID := g.GoogleCalendarEventID
		cg.GoogleCalendarEventID = &eventID
	}
	return cg
}
