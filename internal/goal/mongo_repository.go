package goal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	util "github.com/saulo-duarte/chronos-goals/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const goalsCollection = "goals"

type goalDocument struct {
	ID              string    `bson:"_id"`
	UserID          string    `bson:"user_id"`
	Title           string    `bson:"title"`
	Type            string    `bson:"type"`
	Category        string    `bson:"category"`
	StartDate       time.Time `bson:"start_date"`
	Minutes         *int      `bson:"minutes"`
	Completed       bool      `bson:"completed"`
	ParentID        *string   `bson:"parent_id"`
	Version         int       `bson:"version"`
	CalendarEventID string    `bson:"google_calendar_event_id,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toDocument(g *Goal) goalDocument {
	doc := goalDocument{
		ID:              g.ID.String(),
		UserID:          g.UserID.String(),
		Title:           g.Title,
		Type:            string(g.Type),
		Category:        string(g.Category),
		StartDate:       util.DateOf(g.StartDate.Time).Time,
		Minutes:         g.Minutes,
		Completed:       g.Completed,
		Version:         g.Version,
		CalendarEventID: g.GoogleCalendarEventID,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
	if g.HasParent() {
		p := g.ParentID.String()
		doc.ParentID = &p
	}
	return doc
}

func (d goalDocument) toGoal() (*Goal, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("goal document id %q: %w", d.ID, err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("goal document user_id %q: %w", d.UserID, err)
	}

	g := &Goal{
		ID:                    id,
		UserID:                userID,
		Title:                 d.Title,
		Type:                  GoalType(d.Type),
		Category:              Category(d.Category),
		StartDate:             util.DateOf(d.StartDate),
		Minutes:               d.Minutes,
		Completed:             d.Completed,
		Version:               d.Version,
		GoogleCalendarEventID: d.CalendarEventID,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
	if d.ParentID != nil {
		parentID, err := uuid.Parse(*d.ParentID)
		if err != nil {
			return nil, fmt.Errorf("goal document parent_id %q: %w", *d.ParentID, err)
		}
		g.ParentID = &parentID
	}
	return g, nil
}

type mongoRepository struct {
	client  *mongo.Client
	coll    *mongo.Collection
	session mongo.SessionContext
}

// NewMongoRepository stores goals in the "goals" collection. Transaction needs a replica set.
func NewMongoRepository(client *mongo.Client, db *mongo.Database) Repository {
	return &mongoRepository{
		client: client,
		coll:   db.Collection(goalsCollection),
	}
}

// scope keeps every call inside the open session when the repository is transaction-bound.
func (r *mongoRepository) scope(ctx context.Context) context.Context {
	if r.session != nil {
		return r.session
	}
	return ctx
}

func (r *mongoRepository) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}, {Key: "start_date", Value: 1}},
			Options: options.Index().SetName("idx_user_type_start_date"),
		},
		{
			Keys:    bson.D{{Key: "parent_id", Value: 1}},
			Options: options.Index().SetName("idx_parent_id"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created_at"),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create goal indexes: %w", err)
	}
	return nil
}

func (r *mongoRepository) Get(ctx context.Context, id uuid.UUID) (*Goal, error) {
	var doc goalDocument
	if err := r.coll.FindOne(r.scope(ctx), bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toGoal()
}

func mongoFilter(f Filter) bson.M {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = f.UserID.String()
	}
	if f.ParentID != nil {
		filter["parent_id"] = f.ParentID.String()
	}
	if f.Type != nil {
		filter["type"] = string(*f.Type)
	}
	if f.Category != nil {
		filter["category"] = string(*f.Category)
	}
	if f.StartFrom != nil || f.StartBefore != nil {
		rng := bson.M{}
		if f.StartFrom != nil {
			rng["$gte"] = f.StartFrom.Time
		}
		if f.StartBefore != nil {
			rng["$lt"] = f.StartBefore.Time
		}
		filter["start_date"] = rng
	}
	if f.ExcludeID != nil {
		filter["_id"] = bson.M{"$ne": f.ExcludeID.String()}
	}
	return filter
}

func (r *mongoRepository) List(ctx context.Context, f Filter) ([]*Goal, error) {
	ctx = r.scope(ctx)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.coll.Find(ctx, mongoFilter(f), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []goalDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	goals := make([]*Goal, 0, len(docs))
	for _, d := range docs {
		g, err := d.toGoal()
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

func (r *mongoRepository) Insert(ctx context.Context, g *Goal) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Version == 0 {
		g.Version = 1
	}
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	_, err := r.coll.InsertOne(r.scope(ctx), toDocument(g))
	return err
}

func mongoSet(p Patch) bson.M {
	set := bson.M{"updated_at": time.Now()}
	for col, v := range p.columns() {
		switch val := v.(type) {
		case util.LocalDate:
			set[col] = val.Time
		case uuid.UUID:
			set[col] = val.String()
		case GoalType:
			set[col] = string(val)
		case Category:
			set[col] = string(val)
		default:
			set[col] = val
		}
	}
	return set
}

func (r *mongoRepository) Update(ctx context.Context, id uuid.UUID, p Patch) (*Goal, error) {
	ctx = r.scope(ctx)
	filter := bson.M{"_id": id.String()}
	if p.ExpectedVersion != nil {
		filter["version"] = *p.ExpectedVersion
	}
	update := bson.M{
		"$set": mongoSet(p),
		"$inc": bson.M{"version": 1},
	}

	var doc goalDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, missedUpdate(p.ExpectedVersion, func() error {
			_, err := r.Get(ctx, id)
			return err
		})
	}
	return doc.toGoal()
}

// missedUpdate names why an update matched no document. Without a version guard
// the goal is gone; with one, lookup tells a missing goal from a stale version.
func missedUpdate(expectedVersion *int, lookup func() error) error {
	if expectedVersion == nil {
		return ErrNotFound
	}
	if err := lookup(); err != nil {
		return err
	}
	return ErrVersionConflict
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *mongoRepository) UpdateCompletion(ctx context.Context, ids []uuid.UUID, completed bool) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.coll.UpdateMany(r.scope(ctx),
		bson.M{"_id": bson.M{"$in": idStrings(ids)}},
		bson.M{
			"$set": bson.M{"completed": completed, "updated_at": time.Now()},
			"$inc": bson.M{"version": 1},
		})
	return err
}

func (r *mongoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(r.scope(ctx), bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRepository) DetachChildren(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	children, err := r.List(ctx, Filter{ParentID: &parentID})
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}

	_, err = r.coll.UpdateMany(r.scope(ctx),
		bson.M{"_id": bson.M{"$in": idStrings(ids)}},
		bson.M{
			"$set": bson.M{"parent_id": nil, "updated_at": time.Now()},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *mongoRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if r.session != nil {
		return fn(r)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&mongoRepository{client: r.client, coll: r.coll, session: sc})
	})
	return err
}
