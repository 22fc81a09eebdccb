package container

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/saulo-duarte/chronos-goals/internal/activity"
	"github.com/saulo-duarte/chronos-goals/internal/auth"
	"github.com/saulo-duarte/chronos-goals/internal/coach"
	"github.com/saulo-duarte/chronos-goals/internal/config"
	"github.com/saulo-duarte/chronos-goals/internal/events"
	"github.com/saulo-duarte/chronos-goals/internal/goal"
	googlecalendar "github.com/saulo-duarte/chronos-goals/internal/google_calendar"
	"github.com/saulo-duarte/chronos-goals/internal/router"
	"github.com/saulo-duarte/chronos-goals/internal/user"
)

type Container struct {
	Settings config.Settings
	Bus      *events.Bus

	UserContainer           *user.UserContainer
	GoogleCalendarContainer *googlecalendar.GoogleCalendarContainer
	GoalContainer           *goal.GoalContainer
	ActivityContainer       *activity.ActivityContainer
	CoachContainer          *coach.CoachContainer

	mongoClient *mongo.Client
}

// New connects to PostgreSQL (always) and to MongoDB when STORE_DRIVER=mongo.
func New(ctx context.Context) (*Container, error) {
	settings := config.Load()
	config.Init()
	auth.Init()
	config.InitCrypto()

	if err := config.Connect(ctx, settings.DatabaseDSN); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	c := &Container{Settings: settings, Bus: events.NewBus()}

	goalRepo, err := c.goalRepository(ctx)
	if err != nil {
		return nil, err
	}

	oauthConfig := config.GoogleOAuthConfig(settings)
	c.UserContainer = user.NewUserContainer(config.DB, oauthConfig, settings.CookieDomain)
	c.GoogleCalendarContainer = googlecalendar.NewGoogleCalendarContainer(c.UserContainer.Repo, oauthConfig)
	c.GoalContainer = goal.NewGoalContainer(
		goalRepo,
		c.Bus,
		c.GoogleCalendarContainer.CalendarManager,
		settings.PropagationAtomic,
	)
	c.ActivityContainer = activity.NewActivityContainer(config.DB, c.Bus)
	c.CoachContainer = coach.NewCoachContainer(ctx, settings.GeminiModel, c.GoalContainer.Service)

	return c, nil
}

func (c *Container) goalRepository(ctx context.Context) (goal.Repository, error) {
	log := config.Logger().WithField("store_driver", c.Settings.StoreDriver)

	switch c.Settings.StoreDriver {
	case config.StoreDriverPostgres:
		log.Info("Using PostgreSQL goal store")
		return goal.NewRepository(config.DB), nil
	case config.StoreDriverMongo:
		client, err := config.ConnectMongo(ctx, c.Settings.MongoURI)
		if err != nil {
			return nil, err
		}
		if c.Settings.PropagationAtomic && !config.IsReplicaSet(ctx, client) {
			log.Warn("Atomic propagation requested on a standalone MongoDB; toggles will fail")
		}
		c.mongoClient = client
		log.Info("Using MongoDB goal store")
		return goal.NewMongoRepository(client, client.Database(c.Settings.MongoDatabase)), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", c.Settings.StoreDriver)
	}
}

func (c *Container) Migrate(ctx context.Context) error {
	if err := c.UserContainer.Repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	if err := c.GoalContainer.Repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate goals: %w", err)
	}
	if err := c.ActivityContainer.Repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate activity: %w", err)
	}
	return nil
}

// StartBackground runs the activity recorder until ctx is cancelled.
func (c *Container) StartBackground(ctx context.Context) {
	go c.ActivityContainer.Recorder.Run(ctx)
}

func (c *Container) Router() *chi.Mux {
	return router.New(router.RouterConfig{
		UserHandler:     c.UserContainer.Handler,
		GoalHandler:     c.GoalContainer.Handler,
		ActivityHandler: c.ActivityContainer.Handler,
		CoachHandler:    c.CoachContainer.Handler,
		AllowedOrigins:  c.Settings.AllowedOrigins,
	})
}

func (c *Container) Close(ctx context.Context) {
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(ctx); err != nil {
			config.Logger().WithError(err).Warn("Failed to disconnect MongoDB")
		}
	}
	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
