package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fundkit/savings-api/middleware"
	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/services"
)

type SpendSaveHandler struct {
	Service *services.SpendSaveService
}

func NewSpendSaveHandler(service *services.SpendSaveService) *SpendSaveHandler {
	return &SpendSaveHandler{Service: service}
}

// GetConfig returns the user's Spend & Save rules.
func (h *SpendSaveHandler) GetConfig(c *gin.Context) {
	userID := middleware.GetUserID(c)

	cfg, err := h.Service.GetConfig(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig enables or reconfigures Spend & Save.
func (h *SpendSaveHandler) UpdateConfig(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req models.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, activity, err := h.Service.UpdateConfig(c.Request.Context(), userID, req, time.Now().UTC())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"config": cfg, "activity": activity})
}

// Pause suspends automation without losing the configuration.
func (h *SpendSaveHandler) Pause(c *gin.Context) {
	h.setEnabled(c, false)
}

// Resume re-enables automation with the existing configuration.
func (h *SpendSaveHandler) Resume(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable turns automation off; a later drained withdrawal closes the
// recurring position.
func (h *SpendSaveHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *SpendSaveHandler) setEnabled(c *gin.Context, enabled bool) {
	userID := middleware.GetUserID(c)

	cfg, activity, err := h.Service.SetEnabled(c.Request.Context(), userID, enabled, time.Now().UTC())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"config": cfg, "activity": activity})
}

// HandleSpendEvent ingests one observed spend from the transaction-observing
// collaborator and returns the typed decision.
func (h *SpendSaveHandler) HandleSpendEvent(c *gin.Context) {
	var event models.SpendEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if event.Amount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must not be negative"})
		return
	}

	now := time.Now().UTC()
	if !event.OccurredAt.IsZero() {
		now = event.OccurredAt.UTC()
	}

	result, err := h.Service.HandleSpend(c.Request.Context(), event, now)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
