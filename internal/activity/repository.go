package activity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, a *Activity) error
	ListForGoal(ctx context.Context, userID, goalID uuid.UUID, limit int) ([]*Activity, error)
	Migrate(ctx context.Context) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Activity{})
}

func (r *repository) Insert(ctx context.Context, a *Activity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// ListForGoal returns entries that started at goalID or touched it, newest first.
func (r *repository) ListForGoal(ctx context.Context, userID, goalID uuid.UUID, limit int) ([]*Activity, error) {
	db := r.db.WithContext(ctx)
	touched := db.Where("goal_id = ?", goalID).
		Or(datatypes.JSONArrayQuery("goal_ids").Contains(goalID.String()))

	q := db.Where("user_id = ?", userID).
		Where(touched).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []*Activity
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
