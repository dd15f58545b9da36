package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/fundkit/savings-api/config"
	"github.com/fundkit/savings-api/handlers"
	"github.com/fundkit/savings-api/middleware"
	"github.com/fundkit/savings-api/routes"
	"github.com/fundkit/savings-api/services"
	"github.com/fundkit/savings-api/store"
	"github.com/fundkit/savings-api/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db, err := config.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("✅ Database connected successfully")

	if err := config.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	st := store.NewPostgres(db)

	go scheduleCapUsagePruning(st)

	wsHandler := handlers.NewWSHandler()

	router := gin.Default()

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}

	corsConfig := cors.Config{
		AllowOrigins:     []string{frontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Api-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.RateLimiter())

	v1 := router.Group("/api/v1")
	{
		routes.SetupAuthRoutes(v1, db)
		v1.GET("/ws/activity/:user_id", wsHandler.HandleWS)

		protected := v1.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			routes.SetupSavingsRoutes(protected, v1, st, wsHandler)
			routes.SetupUserRoutes(protected, db)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	utils.LogStartup("fundkit-savings-api", "1.0.0", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// scheduleCapUsagePruning drops cap usage rows for long-elapsed periods.
// Lazy period rollover keeps decisions correct either way; this only keeps
// the table small.
func scheduleCapUsagePruning(st store.Store) {
	caps := services.NewCapTracker(st)
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	pruneCapUsage(caps)
	for range ticker.C {
		pruneCapUsage(caps)
	}
}

func pruneCapUsage(caps *services.CapTracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pruned, err := caps.PruneElapsed(ctx, time.Now().UTC(), 62*24*time.Hour)
	if err != nil {
		log.Printf("❌ Cap usage pruning failed: %v", err)
		return
	}
	if pruned > 0 {
		log.Printf("🧹 Pruned %d elapsed cap usage rows", pruned)
	}
}
