package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentmemory/memsearch/config"
	"github.com/agentmemory/memsearch/db/kvdb"
	"github.com/agentmemory/memsearch/docstore"
	"github.com/agentmemory/memsearch/logger"
	"github.com/agentmemory/memsearch/metrics"
	indexservice "github.com/agentmemory/memsearch/services/index"
	searchservice "github.com/agentmemory/memsearch/services/search"
	"github.com/agentmemory/memsearch/validation"
)

type server struct {
	router        *gin.Engine
	httpServer    *http.Server
	kvdb          kvdb.DB
	indexService  *indexservice.Service
	searchService *searchservice.Service
	validator     *validation.Validator
	metrics       *metrics.Metrics
	logger        logger.Logger
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		logger: logger.New(),
	}
	if err := s.setupDependencies(ctx, cfg); err != nil {
		return err
	}
	s.setupRouter()
	s.setupHTTPServer(cfg)
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies(ctx context.Context, cfg *config.Config) error {
	memoryRoot := cfg.GetMemoryRoot()
	if memoryRoot == "" {
		return fmt.Errorf("no memory root configured, set MEMORY_ROOT")
	}
	if info, err := os.Stat(memoryRoot); err != nil || !info.IsDir() {
		return fmt.Errorf("memory root %s is not a readable directory", memoryRoot)
	}

	var err error
	s.kvdb, err = kvdb.New(s.logger, cfg.GetKVDBPath())
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}

	s.metrics = metrics.New()

	store := docstore.New(memoryRoot, s.logger)
	s.indexService = indexservice.New(ctx, s.logger, store, s.kvdb, s.metrics, cfg.GetSnapshotPath())
	s.searchService = searchservice.New(s.logger, s.indexService, store, s.metrics)

	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	// Bring the index up to date in the background so the first search
	// does not pay for the whole build.
	go func() {
		if _, err := s.indexService.Refresh(ctx); err != nil {
			s.logger.Error("initial index update failed", "err", err.Error())
		}
	}()

	return nil
}

func (s *server) setupRouter() {
	router := newRouter(s.metrics)

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(router, s.logger, s.indexService, s.searchService, s.validator, s.metrics)

	s.router = router
}

func (s *server) setupHTTPServer(cfg *config.Config) {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		s.kvdb.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
			return
		}
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
