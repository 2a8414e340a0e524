package app

import (
	"context"
	"time"

	"talent-match/internal/collaborator"
	"talent-match/internal/config"
	"talent-match/internal/database"
	dbpostgres "talent-match/internal/database/postgres"
	"talent-match/internal/domain/scoring"
	"talent-match/internal/events"
	"talent-match/internal/pipeline"
	"talent-match/internal/repository"
	"talent-match/internal/scheduler"
	"talent-match/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Container owns every long-lived dependency and wires the matching
// pipeline end to end: profile client -> scoring engine -> repository ->
// batch publisher, with the event consumer and reconciler both driving
// the same generator.
type Container struct {
	Config config.Config
	Logger *zap.Logger

	DB       database.DB
	Redis    *redis.Client
	Profiles collaborator.ProfileClient

	Generator  *pipeline.Generator
	Usecase    usecase.MatchUsecase
	Consumer   *events.Consumer
	Reconciler *scheduler.Reconciler
}

func NewContainer(cfg config.Config, logger *zap.Logger) (*Container, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient, err := events.NewClient(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	profiles, err := collaborator.NewProfileClient(cfg.Collaborator.ProfileServiceURL, cfg.Collaborator.RequestTimeout)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, err
	}

	engine, err := scoring.NewEngine(scoring.Weights{
		Skill:        cfg.Matching.SkillWeight,
		Experience:   cfg.Matching.ExperienceWeight,
		Availability: cfg.Matching.AvailabilityWeight,
		Location:     cfg.Matching.LocationWeight,
		Interest:     cfg.Matching.InterestWeight,
	})
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, err
	}

	matches := repository.NewPostgresMatchRepository(db)
	publisher := events.NewStreamPublisher(redisClient, cfg.Redis.OutboundStream)

	generator := pipeline.NewGenerator(profiles, matches, engine, publisher, pipeline.Options{
		CreationThreshold: cfg.Matching.CreationThreshold,
		CandidatePageSize: cfg.Matching.CandidatePageSize,
		ScoringWorkers:    cfg.Matching.ScoringWorkers,
		PreviewSize:       cfg.Matching.PreviewSize,
	}, logger)

	consumer := events.NewConsumer(redisClient, cfg.Redis, generator, logger)

	reconciler := scheduler.NewReconciler(profiles, generator, scheduler.Options{
		Interval:      cfg.Matching.ReconcileInterval,
		RecencyWindow: cfg.Matching.RecencyWindow,
		BatchSize:     cfg.Matching.ReconcileBatch,
		PageSize:      cfg.Matching.CandidatePageSize,
	}, logger)

	return &Container{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Redis:      redisClient,
		Profiles:   profiles,
		Generator:  generator,
		Usecase:    usecase.NewMatchUsecase(matches, generator),
		Consumer:   consumer,
		Reconciler: reconciler,
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}

	var firstErr error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
