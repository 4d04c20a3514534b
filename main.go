package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"synthesistalk/internal/api"
	"synthesistalk/internal/config"
	"synthesistalk/internal/redis"
	"synthesistalk/internal/service/ai"
	"synthesistalk/internal/service/chat"
	"synthesistalk/internal/service/document"
	"synthesistalk/internal/service/export"
	"synthesistalk/internal/service/history"
	"synthesistalk/internal/service/notes"
	"synthesistalk/internal/service/prompt"
	"synthesistalk/internal/service/reasoning"
	"synthesistalk/internal/service/tools"
	"synthesistalk/internal/storage"
	"synthesistalk/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("SYNTHESIS_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("SYNTHESIS_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: history_messages, notes
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modelGateway, err := ai.NewModelGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("init model gateway: %v", err)
	}
	searchGateway, err := ai.NewSearchGateway(ctx, cfg, rdb)
	if err != nil {
		log.Fatalf("init search gateway: %v", err)
	}
	engine := reasoning.NewEngine(modelGateway, searchGateway, reasoning.Options{
		SelfCorrectAttempts: cfg.Reasoning.SelfCorrectAttempts,
		MaxReactSteps:       cfg.Reasoning.MaxReactSteps,
	})

	exporter, err := export.NewExporter(cfg.BasicConfig.ExportDir)
	if err != nil {
		log.Fatalf("init exporter: %v", err)
	}
	exporter.StartCleaner(ctx,
		time.Duration(cfg.BasicConfig.ExportCleanInterval)*time.Minute,
		time.Duration(cfg.BasicConfig.ExportTTL)*time.Minute,
	)
	extractor, err := document.NewExtractor(ctx, cfg.BasicConfig.UploadDir)
	if err != nil {
		log.Fatalf("init document extractor: %v", err)
	}

	selector := prompt.NewSelector(cfg.BasicConfig.ContextWindow)
	historyStore := history.NewStore(db, rdb)
	chatService := chat.NewService(historyStore, selector, engine, extractor)
	toolService := tools.NewService(historyStore, selector, tools.NewDispatcher(engine, exporter))

	jobs := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	})
	defer jobs.Stop()

	handlers := api.NewHandler(chatService, toolService, notes.NewStore(db), jobs)
	router := gin.Default()
	handlers.RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.BasicConfig.ServerAddress, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped: %v", err)
	}
}
