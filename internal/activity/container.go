package activity

import (
	"github.com/saulo-duarte/chronos-goals/internal/events"
	"gorm.io/gorm"
)

type ActivityContainer struct {
	Repo     Repository
	Recorder *Recorder
	Handler  *Handler
}

func NewActivityContainer(db *gorm.DB, bus *events.Bus) *ActivityContainer {
	repo := NewRepository(db)
	return &ActivityContainer{
		Repo:     repo,
		Recorder: NewRecorder(repo, bus),
		Handler:  NewHandler(repo),
	}
}
