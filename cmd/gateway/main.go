package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/GERARD818/Watcher-AI/internal/api"
	"github.com/GERARD818/Watcher-AI/internal/blob"
	"github.com/GERARD818/Watcher-AI/internal/config"
	"github.com/GERARD818/Watcher-AI/internal/database"
	"github.com/GERARD818/Watcher-AI/internal/queue"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("Gateway: init...")
	godotenv.Load()

	// Чтение конфига
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateGateway(); err != nil {
		log.Fatal(err)
	}

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
	ctx := context.Background()
	if err := blobClient.EnsureBucket(ctx, cfg.Minio.MediaBucket); err != nil {
		log.Fatal(err)
	}
	if err := blobClient.EnsureBucket(ctx, cfg.Minio.ArtifactBucket); err != nil {
		log.Fatal(err)
	}

	// Продюсер очереди задач
	producer, err := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TaskTopic)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer producer.Close()

	// Настройка роутера
	r := mux.NewRouter()
	handlers := api.NewHandlers(db, blobClient, producer, cfg.Minio.MediaBucket)

	// Регистрация обработчиков
	r.HandleFunc("/health", handlers.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/ingest/frame", handlers.IngestHandler).Methods("POST")
	r.HandleFunc("/v1/cameras/{camera_id}", handlers.UpsertCameraHandler).Methods("PUT")
	r.HandleFunc("/v1/cameras/{camera_id}", handlers.GetCameraHandler).Methods("GET")
	r.HandleFunc("/v1/detections", handlers.GetDetectionsHandler).Methods("GET")

	// Запуск сервера
	log.Printf("Starting ingest gateway on %s", cfg.HTTP.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTP.ListenAddr, r))
}
