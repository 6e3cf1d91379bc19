package server

import (
	"context"
	"errors"
	"sync"

	"backend-runnersurfers/internal/auth"
	"backend-runnersurfers/internal/catalog"
	"backend-runnersurfers/internal/config"
	"backend-runnersurfers/internal/metrics"
	"backend-runnersurfers/internal/notify"
	"backend-runnersurfers/internal/profile"
	"backend-runnersurfers/internal/run"
	"backend-runnersurfers/internal/stream"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Metrics  *metrics.Metrics
	Catalog  *catalog.Catalog
	Profiles profile.Store
	Runs     run.RunRepository
	Syncer   *run.Syncer
	Registry *run.Registry

	stopBackground context.CancelFunc
	background     sync.WaitGroup
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	m := metrics.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(m.Middleware())

	s := &Server{
		App:     app,
		Cfg:     cfg,
		DB:      db,
		Redis:   redisClient,
		Stream:  stream.NewHub(redisClient),
		Metrics: m,
		Catalog: catalog.Default(),
	}
	s.wire()
	registerRoutes(s)
	return s
}

func (s *Server) wire() {
	if s.DB != nil {
		svc, err := profile.NewService(s.DB, s.Cfg.ProfileCacheSize)
		if err != nil {
			log.Fatal().Err(err).Msg("profile service")
		}
		s.Profiles = svc
		s.Runs = run.NewRepository(s.DB)
	} else {
		log.Warn().Msg("no postgres pool, profiles and runs are kept in memory")
		s.Profiles = profile.NewMemoryStore()
		s.Runs = run.NewMemoryRepository()
	}

	var outbox run.Outbox = run.NewMemoryOutbox()
	if s.Redis != nil {
		outbox = run.NewRedisOutbox(s.Redis)
	}

	sink := notify.Multi{notify.NewLogSink(), notify.NewHubSink(s.Stream)}
	s.Syncer = run.NewSyncer(run.NewPersister(s.Runs, s.Profiles), outbox, sink, s.Metrics, run.SyncerConfig{
		MaxAttempts: s.Cfg.OutboxMaxAttempts,
		Timeout:     s.Cfg.SyncTimeout,
	})
	s.Registry = run.NewRegistry(run.Deps{
		Catalog:    s.Catalog,
		Profiles:   s.Profiles,
		Syncer:     s.Syncer,
		Sink:       sink,
		Publisher:  s.Stream,
		Metrics:    s.Metrics,
		Location:   s.Cfg.QuestLocation(),
		WeightKg:   s.Cfg.RunnerWeightKg,
		FixTimeout: s.Cfg.FixTimeout,
	})
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "active_runs": s.Registry.Active(), "controllers": s.Registry.Len()})
	})
	s.App.Get("/metrics", s.Metrics.Handler())

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	catalog.RegisterRoutes(s.App.Group("/catalog"), s.Catalog)
	run.RegisterRoutes(s.App.Group("/runs"), s.Registry, s.Runs, s.Syncer, jwtMiddleware)
	run.RegisterQuestRoutes(s.App.Group("/quests"), s.Registry, jwtMiddleware)
	profile.RegisterRoutes(s.App.Group("/profile"), s.Profiles, s.Catalog, s.Registry, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware)
}

// Start launches the outbox flusher and the controller sweep.
func (s *Server) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.stopBackground = cancel
	s.background.Add(2)
	go func() {
		defer s.background.Done()
		s.Syncer.Run(ctx, s.Cfg.OutboxFlushInterval)
	}()
	go func() {
		defer s.background.Done()
		s.Registry.Run(ctx, s.Cfg.OutboxFlushInterval)
	}()
}

// Shutdown ends live runs so their results reach the syncer, then stops the flusher and the hub.
func (s *Server) Shutdown(ctx context.Context) {
	s.Registry.Shutdown(ctx)
	if s.stopBackground != nil {
		s.stopBackground()
		s.background.Wait()
	}
	s.Stream.Close()
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
