package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-engine/internal/handler"
	"github.com/noah-isme/sma-timetable-engine/internal/repository"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	"github.com/noah-isme/sma-timetable-engine/pkg/cache"
	"github.com/noah-isme/sma-timetable-engine/pkg/config"
	"github.com/noah-isme/sma-timetable-engine/pkg/database"
	"github.com/noah-isme/sma-timetable-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-engine/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var store service.ProposalStore
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
		store = service.NewRedisProposalStore(redisClient, cfg.Engine.ProposalTTL)
	} else {
		store = service.NewMemoryProposalStore(cfg.Engine.ProposalTTL)
	}

	metrics := service.NewMetricsService()
	engine := scheduler.New(logr)

	runRepo := repository.NewTimetableRunRepository(db)
	slotRepo := repository.NewTimetableSlotRepository(db)

	generator := service.NewGeneratorService(
		engine,
		runRepo,
		slotRepo,
		db,
		store,
		nil,
		logr,
		metrics,
		service.GeneratorConfig{
			Search:      searchParams(cfg.Engine),
			Weights:     weights(cfg.Engine.Weights),
			ProposalTTL: cfg.Engine.ProposalTTL,
		},
	)
	timetables := handler.NewTimetableHandler(generator)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/timetables/generate", timetables.Generate)
		api.POST("/timetables/save", timetables.Save)
		api.GET("/timetables", timetables.List)
		api.GET("/timetables/:id/slots", timetables.Slots)
		api.GET("/timetables/:id/export.csv", timetables.Export)
		api.DELETE("/timetables/:id", timetables.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func searchParams(e config.EngineConfig) scheduler.SearchParams {
	return scheduler.SearchParams{
		Restarts:          e.Restarts,
		MaxRepairPasses:   e.MaxRepairPasses,
		MaxSwaps:          e.MaxSwaps,
		TabuSize:          e.TabuSize,
		BaseSeed:          e.BaseSeed,
		ChainDepth:        e.ChainDepth,
		ChainNodes:        e.ChainNodes,
		ChainAttempts:     e.ChainAttempts,
		KempeDepth:        e.KempeDepth,
		KempeNodes:        e.KempeNodes,
		AdjacencyBoostAt:  e.AdjacencyBoostAt,
		SameSlotBoostAt:   e.SameSlotBoostAt,
		AdaptiveBoostStep: e.AdaptiveBoostStep,
	}
}

func weights(w config.WeightsConfig) scheduler.Weights {
	return scheduler.Weights{
		Blank:           w.Blank,
		TeacherConflict: w.TeacherConflict,
		ClassConflict:   w.ClassConflict,
		WindowViolation: w.WindowViolation,
		AdjacentRepeat:  w.AdjacentRepeat,
		SameSlotRepeat:  w.SameSlotRepeat,
		FallbackSubject: w.FallbackSubject,
		TeacherIdleGap:  w.TeacherIdleGap,
	}.Normalize()
}
