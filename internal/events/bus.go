package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	ReasonCompletion = "completion"
	ReasonCreated    = "created"
	ReasonUpdated    = "updated"
	ReasonDeleted    = "deleted"
	ReasonRecompute  = "recompute"
)

// Invalidation names the goals whose cached views are stale after a write.
// GoalIDs[0] is the goal the change originated from.
type Invalidation struct {
	UserID  uuid.UUID   `json:"user_id"`
	GoalIDs []uuid.UUID `json:"goal_ids"`
	Reason  string      `json:"reason"`
	At      time.Time   `json:"at"`
}

type Publisher interface {
	Publish(inv Invalidation)
}

type subscriber struct {
	ch    chan Invalidation
	done  chan struct{}
	block bool
}

type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a buffered listener that misses events while its buffer
// is full. The returned func unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Invalidation, func()) {
	return b.subscribe(buffer, false)
}

// SubscribeBlocking registers a listener that receives every event. Publish
// waits for room in its buffer until the listener unsubscribes.
func (b *Bus) SubscribeBlocking(buffer int) (<-chan Invalidation, func()) {
	return b.subscribe(buffer, true)
}

func (b *Bus) subscribe(buffer int, block bool) (<-chan Invalidation, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{
		ch:    make(chan Invalidation, buffer),
		done:  make(chan struct{}),
		block: block,
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			// release publishers waiting on this subscriber before taking the write lock
			close(sub.done)
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish never blocks on a Subscribe listener; one whose buffer is full misses
// the event. Blocking listeners are waited on.
func (b *Bus) Publish(inv Invalidation) {
	if b == nil || len(inv.GoalIDs) == 0 {
		return
	}
	if inv.At.IsZero() {
		inv.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		if sub.block {
			select {
			case sub.ch <- inv:
			case <-sub.done:
			}
			continue
		}
		select {
		case sub.ch <- inv:
		default:
			config.Logger().WithFields(logrus.Fields{
				"subscriber": id,
				"reason":     inv.Reason,
			}).Warn("Dropping invalidation for slow subscriber")
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
