package handlers

import (
	"encoding/json"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/utils"
)

// WSHandler streams ledger changes to connected dashboards. It implements
// services.Notifier.
type WSHandler struct {
	M *melody.Melody
}

func NewWSHandler() *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 1024 * 1024

	// Keep-alive for cloud hosting proxies
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	// Pin each session to its own request's user id. Registering this per
	// request would let concurrent upgrades cross feeds.
	m.HandleConnect(func(s *melody.Session) {
		userID := userIDFromPath(s.Request.URL.Path)
		s.Set("user_id", userID)
		utils.LogWebSocket("connect", userID)
	})

	m.HandleDisconnect(func(s *melody.Session) {
		userID, _ := s.Get("user_id")
		id, _ := userID.(string)
		utils.LogWebSocket("disconnect", id)
	})

	m.HandleError(func(s *melody.Session, err error) {
		utils.SafeError("WebSocket error: %v", err)
	})

	return &WSHandler{M: m}
}

// HandleWS upgrades the request; the connect hook pins the session to the
// user id carried in the path.
func (h *WSHandler) HandleWS(c *gin.Context) {
	if err := h.M.HandleRequest(c.Writer, c.Request); err != nil {
		utils.SafeError("Failed to upgrade websocket: %v", err)
	}
}

// userIDFromPath extracts the trailing user id segment of the feed route.
func userIDFromPath(p string) string {
	return path.Base(path.Clean(p))
}

// NotifyActivity pushes a ledger entry to every session watching its user.
func (h *WSHandler) NotifyActivity(userID string, activity *models.Activity) {
	msg, err := json.Marshal(gin.H{"type": "activity", "activity": activity})
	if err != nil {
		return
	}

	err = h.M.BroadcastFilter(msg, func(s *melody.Session) bool {
		id, exists := s.Get("user_id")
		return exists && id == userID
	})
	if err != nil {
		utils.SafeWarn("Error broadcasting activity to user %s: %v", userID, err)
	}
}
