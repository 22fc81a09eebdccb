package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity is one recorded invalidation. GoalID is the goal the change
// started from; GoalIDs lists every goal it touched.
type Activity struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_activity_user_created,priority:1" json:"user_id"`
	GoalID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"goal_id"`
	Reason    string         `gorm:"type:varchar(32);not null" json:"reason"`
	GoalIDs   datatypes.JSON `gorm:"type:jsonb;not null" json:"goal_ids"`
	CreatedAt time.Time      `gorm:"index:idx_activity_user_created,priority:2" json:"created_at"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Activity) Touched() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(a.GoalIDs) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(a.GoalIDs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
