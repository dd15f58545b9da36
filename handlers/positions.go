package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fundkit/savings-api/middleware"
	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/services"
)

type PositionHandler struct {
	Positions   *services.PositionService
	Withdrawals *services.WithdrawalService
}

func NewPositionHandler(positions *services.PositionService, withdrawals *services.WithdrawalService) *PositionHandler {
	return &PositionHandler{Positions: positions, Withdrawals: withdrawals}
}

// CreatePosition opens a new savings position.
func (h *PositionHandler) CreatePosition(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req models.CreatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	position, activity, err := h.Positions.Create(c.Request.Context(), userID, req, time.Now().UTC())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"position": position, "activity": activity})
}

// ListPositions returns all of the user's positions as snapshots.
func (h *PositionHandler) ListPositions(c *gin.Context) {
	userID := middleware.GetUserID(c)

	positions, err := h.Positions.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch positions"})
		return
	}

	now := time.Now().UTC()
	snapshots := make([]models.Snapshot, 0, len(positions))
	for i := range positions {
		snapshots = append(snapshots, positions[i].Snapshot(now))
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions, "snapshots": snapshots})
}

// GetPosition returns one position with its effective state.
func (h *PositionHandler) GetPosition(c *gin.Context) {
	userID := middleware.GetUserID(c)

	position, err := h.Positions.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	now := time.Now().UTC()
	c.JSON(http.StatusOK, gin.H{"position": position, "snapshot": position.Snapshot(now)})
}

// Deposit records a deposit intent; principal moves on confirmation.
func (h *PositionHandler) Deposit(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, err := h.Positions.RequestDeposit(c.Request.Context(), userID, c.Param("id"), req, time.Now().UTC())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"activity": activity})
}

// Withdraw gates a withdrawal intent; denial reasons are expected outcomes.
func (h *PositionHandler) Withdraw(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, denial, err := h.Withdrawals.Request(c.Request.Context(), userID, c.Param("id"), req, time.Now().UTC())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if denial != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"allowed": false, "reason": denial.Reason})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"allowed": true, "activity": activity})
}

// Pause toggles a recurring position between active and paused.
func (h *PositionHandler) Pause(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req models.PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	position, err := h.Positions.SetPaused(c.Request.Context(), userID, c.Param("id"), req.Paused, time.Now().UTC())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidParameters), errors.Is(err, services.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPositionNotFound), errors.Is(err, services.ErrConfigNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, services.ErrUnknownReference):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflictingReconciliation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
