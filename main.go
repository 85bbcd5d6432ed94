package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rohan/securevault-backend/auth/middleware"
	"github.com/rohan/securevault-backend/handlers"
	"github.com/rohan/securevault-backend/initializers"
	"github.com/rohan/securevault-backend/jobs"
	"github.com/rohan/securevault-backend/routes"
	"github.com/rohan/securevault-backend/storage"
	"github.com/rohan/securevault-backend/vault"
)

const defaultPort = "8080"

func main() {
	initializers.ConnectToDatabase()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	var blobs vault.BlobStore
	if os.Getenv("BLOB_BACKEND") == "local" {
		blobs = storage.NewLocalStore(envOr("BLOB_DIR", "uploads"))
	} else {
		initializers.InitAWS()
		blobs = storage.NewS3Store(initializers.S3Client, initializers.S3Bucket)
	}

	records := storage.NewGormStore(initializers.DB)
	engine := vault.NewService(records, blobs, vault.SystemClock, records, envOr("UPLOAD_TMP_DIR", "tmp/uploads"))
	handlers.Engine = engine

	jobs.StartCleanupJob(records, engine.Chunks())

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RateLimitMiddleware(rate.Every(time.Second), 5))

	routes.RegisterUserRoutes(router)
	routes.RegisterFileRoutes(router)
	routes.RegisterShareRoutes(router)

	log.Printf("listening on :%s", port)
	log.Fatal(router.Run(":" + port))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
