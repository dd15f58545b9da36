package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fundkit/savings-api/middleware"
	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/services"
)

type ActivityHandler struct {
	Ledger  *services.ActivityLedger
	Summary *services.SummaryService
}

func NewActivityHandler(ledger *services.ActivityLedger, summary *services.SummaryService) *ActivityHandler {
	return &ActivityHandler{Ledger: ledger, Summary: summary}
}

// ListActivity returns ledger projections, newest first. With ?kind= it
// filters by activity kind, otherwise ?limit= caps the recent feed.
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()

	if kind := c.Query("kind"); kind != "" {
		activities, err := h.Ledger.ListByKind(ctx, userID, models.ActivityKind(kind))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch activity"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activities": activities})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	activities, err := h.Ledger.ListRecent(ctx, userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch activity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// Reconcile ingests a settlement confirmation from the indexing
// collaborator. Redelivery of the same outcome is a safe no-op.
func (h *ActivityHandler) Reconcile(c *gin.Context) {
	var confirmation models.Confirmation
	if err := c.ShouldBindJSON(&confirmation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, err := h.Ledger.Reconcile(c.Request.Context(), confirmation.ExternalRef, confirmation.Outcome, time.Now().UTC())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

// GetSummary returns the dashboard savings figures.
func (h *ActivityHandler) GetSummary(c *gin.Context) {
	userID := middleware.GetUserID(c)

	summary, err := h.Summary.Summary(c.Request.Context(), userID, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
