package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/pmcompanion/pmcompanion/internal/runtime"
	"github.com/pmcompanion/pmcompanion/internal/store"
)

// activeChatTTL bounds how long a stale active-chat marker survives.
const activeChatTTL = 7 * 24 * time.Hour

// SessionHandler keeps per-user UI session state in redis: which chat is the
// active conversation. The marker is advisory; authorization still happens
// in the database.
type SessionHandler struct {
	Store *store.Store
	Rdb   *redis.Client
}

func (h *SessionHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/active-chat", h.getActiveChat)
	g.PUT("/active-chat", h.setActiveChat)
}

func activeChatKey(userID string) string {
	return fmt.Sprintf("session:%s:active_chat", userID)
}

func (h *SessionHandler) getActiveChat(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chatID, err := h.Rdb.Get(c.Request().Context(), activeChatKey(userID)).Result()
	if err == redis.Nil {
		return c.JSON(http.StatusOK, ActiveChatResponse{})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ActiveChatResponse{ChatID: chatID})
}

func (h *SessionHandler) setActiveChat(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req ActiveChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ChatID == "" {
		if err := h.Rdb.Del(c.Request().Context(), activeChatKey(userID)).Err(); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, ActiveChatResponse{})
	}
	// Only a chat the caller can see may become active.
	_, ok, err := h.Store.GetChat(c.Request().Context(), userID, req.ChatID)
	if err != nil {
		return storeError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	if err := h.Rdb.Set(c.Request().Context(), activeChatKey(userID), req.ChatID, activeChatTTL).Err(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ActiveChatResponse{ChatID: req.ChatID})
}
