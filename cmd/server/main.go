package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"skim/backend/internal/config"
	"skim/backend/internal/db"
	"skim/backend/internal/fetch"
	"skim/backend/internal/filter"
	"skim/backend/internal/handler"
	transport "skim/backend/internal/http"
	"skim/backend/internal/ingest"
	"skim/backend/internal/logger"
	"skim/backend/internal/poller"
	"skim/backend/internal/repository"
	"skim/backend/internal/service"
	"skim/backend/internal/snowflake"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.ParseLevel(cfg.LogLevel))

	if err := snowflake.Init(1); err != nil {
		log.Fatalf("init id generator: %v", err)
	}

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer dbConn.Close()

	userRepo := repository.NewUserRepository(dbConn)
	categoryRepo := repository.NewCategoryRepository(dbConn)
	feedRepo := repository.NewFeedRepository(dbConn)
	entryRepo := repository.NewEntryRepository(dbConn)
	userEntryRepo := repository.NewUserEntryRepository(dbConn)
	filterRepo := repository.NewFilterRepository(dbConn)
	tagRepo := repository.NewTagRepository(dbConn)
	rateLimitRepo := repository.NewDomainRateLimitRepository(dbConn)

	rateLimitService := service.NewDomainRateLimitService(rateLimitRepo)

	engine := filter.NewEngine(filterRepo, userEntryRepo, entryRepo, tagRepo)
	dedup := ingest.NewDeduplicator(entryRepo, userEntryRepo, feedRepo, engine)
	client := fetch.NewClient(nil, cfg.FetchTimeout)
	throttle := fetch.NewThrottle(cfg.DomainSpacing, rateLimitService)
	adaptive := poller.NewAdaptive(entryRepo)

	pipe := poller.New(feedRepo, client, throttle, dedup, adaptive, poller.Options{
		Tick:        cfg.PollTick,
		Workers:     cfg.PollWorkers,
		WorkerDelay: cfg.WorkerDelay,
	})

	accountService := service.NewAccountService(userRepo, categoryRepo)
	feedService := service.NewFeedService(feedRepo, pipe)
	entryService := service.NewEntryService(userEntryRepo, entryRepo)
	refreshService := service.NewRefreshService(feedRepo, pipe)
	filterService := service.NewFilterService(filterRepo)
	backfillService := service.NewBackfillService(filterRepo, userEntryRepo, entryRepo, feedRepo, engine)

	accountHandler := handler.NewAccountHandler(accountService)
	feedHandler := handler.NewFeedHandler(feedService, refreshService)
	entryHandler := handler.NewEntryHandler(entryService)
	filterHandler := handler.NewFilterHandler(filterService, backfillService)
	rateLimitHandler := handler.NewDomainRateLimitHandler(rateLimitService)

	router := transport.NewRouter(accountHandler, feedHandler, entryHandler, filterHandler, rateLimitHandler)

	pipe.Start()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down...")
		pipe.Stop()
		os.Exit(0)
	}()

	if err := router.Start(cfg.Addr); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
