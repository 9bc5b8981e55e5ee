// Package api exposes the site's JSON routes: newsletter subscription,
// gated lead magnet downloads, progressive-profiling answers, and
// first-party analytics ingestion.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/shipfolio/shipfolio/content"
	"github.com/shipfolio/shipfolio/logger"
	"github.com/shipfolio/shipfolio/mailer"
	"github.com/shipfolio/shipfolio/persistence"
	"github.com/shipfolio/shipfolio/storage"
	"github.com/shipfolio/shipfolio/token"
)

type Handler struct {
	repo      *persistence.Repository
	downloads *token.DownloadService
	profiles  *token.ProfileService
	store     storage.Store
	mail      mailer.Mailer
	node      *snowflake.Node
	siteURL   string
}

func NewHandler(
	repo *persistence.Repository,
	downloads *token.DownloadService,
	profiles *token.ProfileService,
	store storage.Store,
	mail mailer.Mailer,
	node *snowflake.Node,
	siteURL string,
) *Handler {
	return &Handler{
		repo:      repo,
		downloads: downloads,
		profiles:  profiles,
		store:     store,
		mail:      mail,
		node:      node,
		siteURL:   strings.TrimRight(siteURL, "/"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/newsletter/subscribe", h.HandleSubscribe)
	g.GET("/downloads/:magnetId", h.HandleDownload)
	g.POST("/profile", h.HandleProfileAnswer)
	g.POST("/analytics/track", h.HandleTrack)
}

func (h *Handler) HandleSubscribe(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		MagnetID string `json:"magnetId"`
		Source   string `json:"source"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if !validEmail(email) {
		return h.Error(c, http.StatusBadRequest, "A valid email address is required", nil)
	}

	var magnet content.Magnet
	if body.MagnetID != "" {
		m, ok := content.MagnetByID(body.MagnetID)
		if !ok {
			return h.Error(c, http.StatusBadRequest, "Unknown lead magnet", nil)
		}
		magnet = m
	}

	sub := &persistence.Subscriber{
		ID:       uuid.New(),
		Email:    email,
		Source:   body.Source,
		MagnetID: magnet.ID,
	}
	if err := h.repo.UpsertSubscriber(c.Request().Context(), sub); err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}

	if magnet.ID != "" {
		h.deliverMagnet(c.Request().Context(), email, magnet)
	} else {
		h.sendProfilePrompt(c.Request().Context(), email)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Subscribed! Check your email.",
	})
}

// deliverMagnet mails the gated download link. Email failures are logged,
// not surfaced: the subscription itself already succeeded.
func (h *Handler) deliverMagnet(ctx context.Context, email string, magnet content.Magnet) {
	tok := h.downloads.Issue(email, magnet.ID, token.DefaultDownloadTTL)
	downloadURL := fmt.Sprintf("%s/api/downloads/%s?token=%s",
		h.siteURL, magnet.ID, url.QueryEscape(tok))

	if err := h.mail.SendLeadMagnet(ctx, email, magnet.Title, downloadURL); err != nil {
		logger.Log.Error("lead magnet email failed",
			zap.Error(err),
			zap.String("email", email),
			zap.String("magnet", magnet.ID),
		)
	}
}

// sendProfilePrompt sends the progressive-profiling welcome question to
// subscribers who did not ask for a download. The link carries an unsigned
// profile token; the answer endpoint enforces the 30-day age policy.
func (h *Handler) sendProfilePrompt(ctx context.Context, email string) {
	tok := h.profiles.Encode(email)
	profileURL := fmt.Sprintf("%s/profile/building?token=%s", h.siteURL, url.QueryEscape(tok))

	if err := h.mail.SendProfilePrompt(ctx, email, "What are you building right now?", profileURL); err != nil {
		logger.Log.Error("profile prompt email failed",
			zap.Error(err),
			zap.String("email", email),
		)
	}
}

func (h *Handler) HandleDownload(c echo.Context) error {
	magnet, ok := content.MagnetByID(c.Param("magnetId"))
	if !ok {
		return h.Error(c, http.StatusNotFound, "Unknown download", nil)
	}

	// Missing and invalid tokens are distinct user-facing conditions.
	tok := c.QueryParam("token")
	if tok == "" {
		return h.Error(c, http.StatusUnauthorized, "Subscribe to get access to this download", nil)
	}

	claims, err := h.downloads.Validate(tok)
	if err != nil {
		return h.Error(c, http.StatusUnauthorized, "Invalid or expired download link", nil)
	}
	if claims.MagnetID != magnet.ID {
		return h.Error(c, http.StatusForbidden, "This link does not unlock this download", nil)
	}

	fileURL, err := h.store.ResolveURL(c.Request().Context(), magnet.ObjectKey)
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}

	return c.Redirect(http.StatusFound, fileURL)
}

func (h *Handler) HandleProfileAnswer(c echo.Context) error {
	var body struct {
		Token    string `json:"token"`
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}
	if body.Token == "" || body.Question == "" || body.Answer == "" {
		return h.Error(c, http.StatusBadRequest, "token, question and answer are required", nil)
	}

	data, err := h.profiles.Decode(body.Token)
	if err != nil {
		return h.Error(c, http.StatusUnauthorized, "Invalid profile link", nil)
	}
	if h.profiles.IsExpired(data.Timestamp, token.DefaultProfileMaxAge) {
		return h.Error(c, http.StatusGone, "This profile link has expired", nil)
	}

	ans := &persistence.ProfileAnswer{
		ID:       uuid.New(),
		Email:    data.Email,
		Question: body.Question,
		Answer:   body.Answer,
	}
	if err := h.repo.SaveProfileAnswer(c.Request().Context(), ans); err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Thanks! Your answer was saved.",
	})
}

func (h *Handler) HandleTrack(c echo.Context) error {
	var body struct {
		Event      string         `json:"event"`
		Path       string         `json:"path"`
		Properties map[string]any `json:"properties"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}
	if body.Event == "" {
		return h.Error(c, http.StatusBadRequest, "event is required", nil)
	}

	props := "{}"
	if body.Properties != nil {
		raw, err := json.Marshal(body.Properties)
		if err != nil {
			return h.Error(c, http.StatusBadRequest, "Invalid properties", err)
		}
		props = string(raw)
	}

	ev := &persistence.AnalyticsEvent{
		ID:         h.node.Generate().Int64(),
		Event:      body.Event,
		Path:       body.Path,
		Properties: props,
		ClientIP:   clientIP(c.Request()),
	}
	if err := h.repo.RecordEvent(c.Request().Context(), ev); err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}

	return c.NoContent(http.StatusAccepted)
}

func validEmail(s string) bool {
	if s == "" || len(s) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Error writes a JSON error response.
func (h *Handler) Error(c echo.Context, code int, message string, err error) error {
	resp := map[string]interface{}{
		"error": message,
		"code":  code,
	}
	if err != nil {
		logger.Log.Error("request failed",
			zap.Error(err),
			zap.String("path", c.Path()),
			zap.Int("code", code),
		)
	}
	return c.JSON(code, resp)
}
