package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pmcompanion/pmcompanion/internal/runtime"
	"github.com/pmcompanion/pmcompanion/internal/store"
)

// ChatsHandler serves conversations and their transcript/artifact
// subresources. All access control happens in the database: the store pins
// the session user and RLS decides what is visible or writable.
type ChatsHandler struct {
	Store *store.Store
}

func (h *ChatsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id/phase", h.updatePhase)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/messages", h.listMessages)
	g.POST("/:id/messages", h.addMessage)
	g.GET("/:id/drafts", h.listDrafts)
	g.POST("/:id/drafts", h.addDraft)
	g.GET("/:id/plans", h.listPlans)
	g.POST("/:id/plans", h.addPlan)
}

// chatParam returns the :id path parameter when it is a well-formed uuid.
// On lookup paths a malformed id behaves like any other absent chat, so the
// caller answers 404 instead of leaking a cast error from the database.
func chatParam(c echo.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// storeError maps store failures onto the HTTP taxonomy: validation 400,
// policy-denied writes 403, everything else 500. Denied reads never reach
// here; they come back as empty results.
func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case store.IsAuthorizationDenied(err):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	case store.IsReferentialViolation(err) || store.IsConstraintViolation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *ChatsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chats, err := h.Store.ListChats(c.Request().Context(), userID, c.QueryParam("category"))
	if err != nil {
		return storeError(err)
	}
	if chats == nil {
		chats = []store.ChatRecord{}
	}
	return c.JSON(http.StatusOK, chats)
}

func (h *ChatsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.Store.CreateChat(c.Request().Context(), userID, req.Name, req.Category, req.WorkflowPhase)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *ChatsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chatID, ok := chatParam(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	rec, ok, err := h.Store.GetChat(c.Request().Context(), userID, chatID)
	if err != nil {
		return storeError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *ChatsHandler) updatePhase(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chatID, ok := chatParam(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	var req UpdatePhaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, ok, err := h.Store.UpdateChatPhase(c.Request().Context(), userID, chatID, req.WorkflowPhase)
	if err != nil {
		return storeError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *ChatsHandler) delete(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chatID, ok := chatParam(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	deleted, err := h.Store.DeleteChat(c.Request().Context(), userID, chatID)
	if err != nil {
		return storeError(err)
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ChatsHandler) listMessages(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chatID, ok := chatParam(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	msgs, err := h.Store.ListMessages(c.Request().Context(), userID, chatID)
	if err != nil {
		return storeError(err)
	}
	if msgs == nil {
		msgs = []store.MessageRecord{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChatsHandler) addMessage(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req AddMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.Store.AddMessage(c.Request().Context(), userID, c.Param("id"), req.Role, req.Content)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *ChatsHandler) listDrafts(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chatID, ok := chatParam(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	drafts, err := h.Store.ListEmailDrafts(c.Request().Context(), userID, chatID)
	if err != nil {
		return storeError(err)
	}
	if drafts == nil {
		drafts = []store.EmailDraftRecord{}
	}
	return c.JSON(http.StatusOK, drafts)
}

func (h *ChatsHandler) addDraft(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req AddDraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.Store.AddEmailDraft(c.Request().Context(), userID, store.EmailDraftRecord{
		ChatID:    c.Param("id"),
		Subject:   req.Subject,
		Recipient: req.Recipient,
		Body:      req.Body,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *ChatsHandler) listPlans(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chatID, ok := chatParam(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	plans, err := h.Store.ListActionPlans(c.Request().Context(), userID, chatID)
	if err != nil {
		return storeError(err)
	}
	if plans == nil {
		plans = []store.ActionPlanRecord{}
	}
	return c.JSON(http.StatusOK, plans)
}

func (h *ChatsHandler) addPlan(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req AddPlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.Store.AddActionPlan(c.Request().Context(), userID, store.ActionPlanRecord{
		ChatID:            c.Param("id"),
		Title:             req.Title,
		Checklist:         req.Checklist,
		KeyConsiderations: req.KeyConsiderations,
	})
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}
