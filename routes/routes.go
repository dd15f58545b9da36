package routes

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/fundkit/savings-api/handlers"
	"github.com/fundkit/savings-api/services"
	"github.com/fundkit/savings-api/store"
)

// SetupAuthRoutes sets up public authentication routes.
func SetupAuthRoutes(rg *gin.RouterGroup, db *sql.DB) {
	authHandler := &handlers.AuthHandler{DB: db}

	rg.POST("/auth/signup", authHandler.Signup)
	rg.POST("/auth/login", authHandler.Login)
}

// SetupUserRoutes sets up protected account routes.
func SetupUserRoutes(rg *gin.RouterGroup, db *sql.DB) {
	userHandler := &handlers.UserHandler{DB: db}

	rg.GET("/user/profile", userHandler.GetProfile)
	rg.POST("/user/2fa/setup", userHandler.SetupTOTP)
	rg.POST("/user/2fa/verify", userHandler.VerifyTOTP)
	rg.POST("/user/2fa/disable", userHandler.DisableTOTP)
}

// SetupSavingsRoutes wires the savings engine and registers both the
// user-facing routes (protected) and the collaborator callbacks (public,
// optionally gated by a shared API key).
func SetupSavingsRoutes(protected, public *gin.RouterGroup, st store.Store, ws *handlers.WSHandler) {
	locks := services.NewUserLocks()
	caps := services.NewCapTracker(st)
	ledger := services.NewActivityLedger(st, locks, ws)
	transfers := services.NewRequesterFromEnv()

	positionService := services.NewPositionService(st, ledger, transfers, locks)
	withdrawalService := services.NewWithdrawalService(positionService, ledger, transfers, locks)
	spendSaveService := services.NewSpendSaveService(st, caps, ledger, transfers, locks)
	summaryService := services.NewSummaryService(st, caps)

	positionHandler := handlers.NewPositionHandler(positionService, withdrawalService)
	spendSaveHandler := handlers.NewSpendSaveHandler(spendSaveService)
	activityHandler := handlers.NewActivityHandler(ledger, summaryService)

	// Position routes
	protected.POST("/positions", positionHandler.CreatePosition)
	protected.GET("/positions", positionHandler.ListPositions)
	protected.GET("/positions/:id", positionHandler.GetPosition)
	protected.POST("/positions/:id/deposit", positionHandler.Deposit)
	protected.POST("/positions/:id/withdraw", positionHandler.Withdraw)
	protected.POST("/positions/:id/pause", positionHandler.Pause)

	// Spend & Save configuration
	protected.GET("/spend-save/config", spendSaveHandler.GetConfig)
	protected.PUT("/spend-save/config", spendSaveHandler.UpdateConfig)
	protected.POST("/spend-save/pause", spendSaveHandler.Pause)
	protected.POST("/spend-save/resume", spendSaveHandler.Resume)
	protected.POST("/spend-save/disable", spendSaveHandler.Disable)

	// Ledger
	protected.GET("/activity", activityHandler.ListActivity)
	protected.GET("/savings/summary", activityHandler.GetSummary)

	// Collaborator callbacks: spend observer and settlement indexer
	collaborator := public.Group("/")
	collaborator.Use(collaboratorKeyMiddleware())
	collaborator.POST("/events/spend", spendSaveHandler.HandleSpendEvent)
	collaborator.POST("/confirmations", activityHandler.Reconcile)
}

// collaboratorKeyMiddleware checks the shared key when one is configured.
func collaboratorKeyMiddleware() gin.HandlerFunc {
	key := os.Getenv("COLLABORATOR_API_KEY")
	return func(c *gin.Context) {
		if key != "" && c.GetHeader("X-Api-Key") != key {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
