package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GERARD818/Watcher-AI/internal/blob"
	"github.com/GERARD818/Watcher-AI/internal/config"
	"github.com/GERARD818/Watcher-AI/internal/database"
	"github.com/GERARD818/Watcher-AI/internal/detector"
	"github.com/GERARD818/Watcher-AI/internal/metrics"
	"github.com/GERARD818/Watcher-AI/internal/pipeline"
	"github.com/GERARD818/Watcher-AI/internal/queue"
	"github.com/GERARD818/Watcher-AI/internal/video"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.Println("Worker: init...")
	godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация базы данных
	db, err := database.New(cfg.Postgres.DSN)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Init(); err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Инициализация хранилища медиа
	blobClient, err := blob.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey)
	if err != nil {
		log.Fatalf("Failed connect to MinIO: %v", err)
	}
	if err := blobClient.EnsureBucket(ctx, cfg.Minio.ArtifactBucket); err != nil {
		log.Fatal(err)
	}

	// Потребитель очереди задач
	consumer, err := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.TaskTopic, cfg.Kafka.ReconnectDelay.Std())
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}
	defer consumer.Close()
	consumer.StartListening(ctx)

	detectClient := detector.NewClient(cfg.Detector.Endpoint)
	decoder := video.NewDecoder(cfg.Render.FFmpeg)

	var renderer pipeline.Renderer
	if cfg.Render.Enabled {
		renderer = video.NewRenderer(cfg.Render.FFmpeg, cfg.Render.FPS)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go metrics.Serve(cfg.HTTP.MetricsAddr, reg)

	p := pipeline.New(db, blobClient, detectClient, decoder, renderer, cfg.Minio.ArtifactBucket, m)
	go p.Run(ctx, consumer.Messages())

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Println("Завершение работы...")
	cancel() // Stop goroutines
}
