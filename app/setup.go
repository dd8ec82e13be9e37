package app

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/api"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/config"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/router"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/action"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/automation"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/cron"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/jobs"
	pipeline_service "github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/pipeline"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/utils/cache"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		print("Error running migrations:\n")
		return err
	}

	// Redis is optional: without it the instance falls back to in-process
	// locks and keeps no state snapshots.
	var redisCache *cache.RedisCache
	if getEnv.REDIS_URL != "" {
		redisCache, err = cache.NewRedisCache(getEnv.REDIS_URL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. State snapshots and cross-instance locks are disabled.", err)
			redisCache = nil
		}
	}

	// Wire the automation core: one action registry shared by the executor,
	// the orchestrator and the rule engine.
	registry := action.NewRegistry()
	executor := jobs.NewExecutor(store, registry, redisCache)
	orchestrator := pipeline_service.NewOrchestrator(store, registry, redisCache)
	engine := automation.NewEngine(store, registry)
	RegisterActions(registry, store, orchestrator, engine)

	// Scheduler for operator-defined cron jobs
	scheduler := jobs.NewScheduler(store, executor, getEnv.SCHEDULER_TICK_INTERVAL, getEnv.SCHEDULER_WORKERS)
	scheduler.Start()

	// Maintenance cron jobs (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start maintenance cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer stopping background workers and closing connections
	defer func() {
		scheduler.Stop()
		if cronManager != nil {
			cronManager.Stop()
		}
		if redisCache != nil {
			redisCache.Close()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Attach Middleware
	// Custom Logger
	app.Use(logger.New())

	app.Use(recover.New())

	// Setup Routes
	router.SetupRoutes(app, store, router.Services{
		Executor:     executor,
		Orchestrator: orchestrator,
		Engine:       engine,
	})

	// Get the PORT & Start the Server
	return server.Run()

}
