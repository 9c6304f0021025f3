package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/cluster"
	"github.com/augeas/BirdSpider/internal/crawler"
	"github.com/augeas/BirdSpider/internal/model"
	"github.com/augeas/BirdSpider/internal/search"
	"github.com/augeas/BirdSpider/internal/selector"
	"github.com/augeas/BirdSpider/internal/stream"
	"github.com/augeas/BirdSpider/internal/twitterapi"
	"github.com/augeas/BirdSpider/pkg/cache"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
	"github.com/augeas/BirdSpider/pkg/taskq"
)

func main() {
	// Parse command line arguments
	consumerType := flag.String("type", "worker", "Type of consumer to run (worker, stream)")
	flag.Parse()

	// Load configuration
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, _ := log.NewCslLogger()

	// Setup database
	mysql, err := db.NewMysql(config)
	if err != nil {
		logger.Error(context.Background(), "Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Setup cache
	redis, err := cache.NewRedis(config)
	if err != nil {
		logger.Error(context.Background(), "Failed to connect to redis: %v", err)
		os.Exit(1)
	}
	defer redis.Close()

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the graph store and make sure tables exist
	graph, err := model.NewGraph(config, logger, mysql)
	if err != nil {
		logger.Error(ctx, "Failed to create graph: %v", err)
		os.Exit(1)
	}
	if err := graph.Migrate(); err != nil {
		logger.Error(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	solr := search.NewSolr(config, logger)

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	switch *consumerType {
	case "worker":
		startTaskWorker(ctx, config, logger, mysql, redis, graph, solr)
	case "stream":
		startStreamIngestor(ctx, config, logger, graph, solr)
	default:
		logger.Error(ctx, "Unknown consumer type: %s", *consumerType)
		os.Exit(1)
	}

	// Wait for termination signal
	<-sigCh
	logger.Info(ctx, "Received shutdown signal, gracefully shutting down...")
	cancel()
}

// startTaskWorker đăng ký toàn bộ task handler rồi chạy worker trên task topic
func startTaskWorker(
	ctx context.Context,
	config *cfg.Config,
	logger log.Logger,
	mysql *db.Mysql,
	redis *cache.Redis,
	graph *model.Graph,
	solr *search.Solr,
) {
	queue := taskq.NewKafkaQueue(config, logger)
	caller := twitterapi.NewCaller(logger, config, redis)

	picker, err := selector.NewSelector(config, logger, mysql, redis)
	if err != nil {
		logger.Error(ctx, "Failed to create selector: %v", err)
		os.Exit(1)
	}

	spider := crawler.NewCrawler(config, logger, caller, graph, picker, redis, queue, solr)
	runner := cluster.NewRunner(config, logger, mysql, graph)

	worker := taskq.NewWorker(config, logger, queue)
	spider.RegisterHandlers(worker)
	worker.Register(cluster.TaskClusterGraph, runner.HandleClusterGraph)

	go func() {
		if err := worker.Start(ctx); err != nil {
			logger.Error(ctx, "Task worker error: %v", err)
		}
	}()

	logger.Info(ctx, "Task worker started successfully")
}

// startStreamIngestor chạy batch ingest cho tweet thô trên stream topic
func startStreamIngestor(
	ctx context.Context,
	config *cfg.Config,
	logger log.Logger,
	graph *model.Graph,
	solr *search.Solr,
) {
	ingestor := stream.NewIngestor(config, logger, graph, solr)

	go func() {
		if err := ingestor.Start(ctx); err != nil {
			logger.Error(ctx, "Stream ingestor error: %v", err)
		}
	}()

	logger.Info(ctx, "Stream ingestor started successfully")
}
