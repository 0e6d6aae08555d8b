package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskpulse/api/handler"
	"github.com/fastygo/taskpulse/internal/advisor"
	"github.com/fastygo/taskpulse/internal/config"
	feedbackctl "github.com/fastygo/taskpulse/internal/feedback"
	"github.com/fastygo/taskpulse/internal/infrastructure/buffer"
	"github.com/fastygo/taskpulse/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskpulse/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskpulse/internal/infrastructure/redis"
	"github.com/fastygo/taskpulse/internal/middleware"
	"github.com/fastygo/taskpulse/internal/router"
	"github.com/fastygo/taskpulse/internal/services"
	"github.com/fastygo/taskpulse/internal/services/lifecycle"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	"github.com/fastygo/taskpulse/pkg/logger"
	"github.com/fastygo/taskpulse/repository"
	"github.com/fastygo/taskpulse/repository/memory"
	"github.com/fastygo/taskpulse/repository/postgres"
	redisRepo "github.com/fastygo/taskpulse/repository/redis"
	"github.com/fastygo/taskpulse/usecase"
	feedbackUC "github.com/fastygo/taskpulse/usecase/feedback"
	"github.com/fastygo/taskpulse/usecase/insight"
	taskUC "github.com/fastygo/taskpulse/usecase/task"
)

// stores bundles the persistence wiring selected by STORE_DRIVER.
type stores struct {
	tasks    repository.TaskRepository
	feedback repository.FeedbackRepository
	buffer   usecase.OperationBuffer
	monitor  *monitor.Monitor
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		App:      cfg.AppName,
		Env:      cfg.Environment,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	stopSignals := manager.Listen(cancel)
	defer stopSignals()

	var st stores
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		st = memoryStores(zapLogger)
	default:
		st = postgresStores(appCtx, cfg, manager, zapLogger)
	}

	loc := cfg.Location()
	source := advisorSource(appCtx, cfg, loc, zapLogger)

	dispatcher := usecase.NewDispatcher()
	taskUseCase := taskUC.New(st.tasks, st.buffer, zapLogger.Named("task"))
	insightUseCase := insight.New(st.tasks, loc, zapLogger.Named("insight"))
	insightUseCase.Register(dispatcher)
	feedbackUseCase := feedbackUC.New(
		feedbackctl.NewRegistry(cfg.Feedback.MaxAge, zapLogger.Named("feedback")),
		source,
		st.feedback,
		st.tasks,
		cfg.Advisor.Timeout,
		zapLogger.Named("feedback"),
	)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	// The advisory call has its own timeout; give the request a little more.
	feedbackAdapter := httpcontext.NewAdapter(cfg.Advisor.Timeout + cfg.Context.RequestTimeout)

	var health apiHandler.StatusSource
	if st.monitor != nil {
		health = st.monitor
	}
	handlers := router.Handlers{
		Task:     apiHandler.NewTaskHandler(taskUseCase, loc, ctxAdapter, zapLogger),
		Insight:  apiHandler.NewInsightHandler(dispatcher, loc, ctxAdapter, zapLogger),
		Feedback: apiHandler.NewFeedbackHandler(feedbackUseCase, feedbackAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(health, cfg.Store.Driver, ctxAdapter, zapLogger),
	}

	r := router.New(handlers, middleware.RequireUser(zapLogger), router.Options{EnablePprof: cfg.HTTP.EnablePprof})

	server := &fasthttp.Server{
		Handler:      middleware.AccessLog(zapLogger.Named("http"))(r.Handler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("store", cfg.Store.Driver),
			zap.String("timezone", loc.String()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

func memoryStores(zapLogger *zap.Logger) stores {
	zapLogger.Warn("using in-memory task store; data is lost on restart")
	return stores{
		tasks:    memory.NewTaskRepo(),
		feedback: memory.NewFeedbackRepo(),
	}
}

func postgresStores(appCtx context.Context, cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) stores {
	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg, zapLogger.Named("postgres"))
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	var feedbackRepo repository.FeedbackRepository
	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger.Named("redis"))
	if err != nil {
		zapLogger.Warn("redis unavailable, caching feedback in memory", zap.Error(err))
		feedbackRepo = memory.NewFeedbackRepo()
	} else {
		feedbackRepo = redisRepo.NewFeedbackRepository(redisClient, cfg.Feedback.CacheTTL)
		manager.RegisterCloser("redis", redisClient.Close)
	}

	bufferStore, err := buffer.Open(cfg.Buffer.Path, buffer.DefaultBucket, cfg.Buffer.MaxSize)
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.RegisterCloser("buffer", bufferStore.Close)

	mon := monitor.New(pool, redisClient, bufferStore, 10*time.Second, zapLogger.Named("monitor"))

	taskRepo := postgres.NewTaskRepository(pool)
	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		taskRepo,
		zapLogger.Named("buffer"),
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	mon.OnReconnect(func() {
		go func() {
			ctx, cancel := context.WithTimeout(appCtx, cfg.Buffer.SyncInterval)
			defer cancel()
			if err := bufferProcessor.Drain(ctx); err != nil {
				zapLogger.Error("buffer drain after reconnect failed", zap.Error(err))
			}
		}()
	})
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	return stores{
		tasks:    taskRepo,
		feedback: feedbackRepo,
		buffer:   services.NewBufferBridge(bufferProcessor),
		monitor:  mon,
	}
}

// advisorSource picks Gemini when a key is configured and the local heuristic otherwise.
func advisorSource(ctx context.Context, cfg *config.Config, loc *time.Location, zapLogger *zap.Logger) feedbackctl.Source {
	now := func() time.Time { return time.Now().In(loc) }
	if cfg.Advisor.APIKey == "" {
		zapLogger.Info("GENAI_API_KEY not set, using heuristic advisor")
		return advisor.NewHeuristicSource(now)
	}
	src, err := advisor.NewGenAISource(ctx, advisor.Config{
		APIKey:      cfg.Advisor.APIKey,
		Model:       cfg.Advisor.Model,
		Temperature: cfg.Advisor.Temperature,
		Timeout:     cfg.Advisor.Timeout,
	}, zapLogger.Named("advisor"))
	if err != nil {
		zapLogger.Warn("genai advisor unavailable, using heuristic advisor", zap.Error(err))
		return advisor.NewHeuristicSource(now)
	}
	return src
}
