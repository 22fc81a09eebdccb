package activity

import (
	"context"
	"encoding/json"

	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/events"
	"github.com/sirupsen/logrus"
)

const recorderBuffer = 256

// Recorder appends every invalidation published on the bus to the activity log.
type Recorder struct {
	repo Repository
	bus  *events.Bus
}

func NewRecorder(repo Repository, bus *events.Bus) *Recorder {
	return &Recorder{repo: repo, bus: bus}
}

// Run consumes the bus until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	ch, unsubscribe := r.bus.SubscribeBlocking(recorderBuffer)
	defer unsubscribe()

	log := config.Logger().WithField("component", "activity_recorder")
	log.Info("Activity recorder started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Activity recorder stopped")
			return
		case inv, ok := <-ch:
			if !ok {
				return
			}
			if err := r.record(ctx, inv); err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"user_id": inv.UserID,
					"reason":  inv.Reason,
				}).Error("Failed to record activity")
			}
		}
	}
}

func (r *Recorder) record(ctx context.Context, inv events.Invalidation) error {
	if len(inv.GoalIDs) == 0 {
		return nil
	}
	ids, err := json.Marshal(inv.GoalIDs)
	if err != nil {
		return err
	}
	return r.repo.Insert(ctx, &Activity{
		UserID:    inv.UserID,
		GoalID:    inv.GoalIDs[0],
		Reason:    inv.Reason,
		GoalIDs:   ids,
		CreatedAt: inv.At,
	})
}
