package goal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("goal not found")
	ErrVersionConflict = errors.New("goal was modified by another request")
)

// Filter narrows List. Results are always ordered by creation time, newest first.
type Filter struct {
	UserID      *uuid.UUID
	ParentID    *uuid.UUID
	Type        *GoalType
	Category    *Category
	StartFrom   *util.LocalDate
	StartBefore *util.LocalDate
	ExcludeID   *uuid.UUID
}

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Goal, error)
	List(ctx context.Context, f Filter) ([]*Goal, error)
	Insert(ctx context.Context, g *Goal) error
	Update(ctx context.Context, id uuid.UUID, p Patch) (*Goal, error)
	UpdateCompletion(ctx context.Context, ids []uuid.UUID, completed bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	DetachChildren(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error)

	// Transaction runs fn against a repository bound to a single transaction.
	// Any error returned by fn rolls every write back.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	Migrate(ctx context.Context) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Goal{})
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Goal, error) {
	var g Goal
	if err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *repository) List(ctx context.Context, f Filter) ([]*Goal, error) {
	q := r.db.WithContext(ctx).Model(&Goal{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.ParentID != nil {
		q = q.Where("parent_id = ?", *f.ParentID)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if f.StartFrom != nil {
		q = q.Where("start_date >= ?", *f.StartFrom)
	}
	if f.StartBefore != nil {
		q = q.Where("start_date < ?", *f.StartBefore)
	}
	if f.ExcludeID != nil {
		q = q.Where("id <> ?", *f.ExcludeID)
	}

	var goals []*Goal
	if err := q.Order("created_at DESC").Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *repository) Insert(ctx context.Context, g *Goal) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, p Patch) (*Goal, error) {
	cols := p.columns()
	cols["version"] = gorm.Expr("version + 1")
	cols["updated_at"] = time.Now()

	q := r.db.WithContext(ctx).Model(&Goal{}).Where("id = ?", id)
	if p.ExpectedVersion != nil {
		q = q.Where("version = ?", *p.ExpectedVersion)
	}

	res := q.Updates(cols)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if p.ExpectedVersion == nil {
			return nil, ErrNotFound
		}
		if _, err := r.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}
	return r.Get(ctx, id)
}

func (r *repository) UpdateCompletion(ctx context.Context, ids []uuid.UUID, completed bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&Goal{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"completed":  completed,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&Goal{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) DetachChildren(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&Goal{}).
		Where("parent_id = ?", parentID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err := r.db.WithContext(ctx).Model(&Goal{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"parent_id":  nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}
