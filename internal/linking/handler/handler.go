// Package handler exposes the account-linking flow over HTTP. Handlers
// translate between the wire and the linking service; every security
// decision lives in the service.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mmckelve45/auth0-pizza42/internal/httperr"
	"github.com/Mmckelve45/auth0-pizza42/internal/linking"
	"github.com/Mmckelve45/auth0-pizza42/internal/logger"
	"github.com/Mmckelve45/auth0-pizza42/internal/middleware"
	"github.com/Mmckelve45/auth0-pizza42/internal/session"
)

type Config struct {
	AppURL        string
	SecureCookies bool
	DevMode       bool // include error detail in responses
}

type Handler struct {
	svc   *linking.Service
	store session.Store
	cfg   Config
}

func NewHandler(svc *linking.Service, store session.Store, cfg Config) *Handler {
	return &Handler{
		svc:   svc,
		store: store,
		cfg:   cfg,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, requireAuth gin.HandlerFunc) {
	link := r.Group("/link")

	link.GET("/detect", requireAuth, h.detect)
	link.GET("/initiate", h.initiate)
	link.GET("/callback", h.callback)
	link.GET("/complete", h.complete)
	link.POST("/complete/unlink", requireAuth, h.unlink)

	link.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "account-linking",
		})
	})
}

// GET /link/detect?email=
func (h *Handler) detect(c *gin.Context) {
	detection, err := h.svc.Detect(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.jsonError(c, err, "Failed to detect duplicate accounts")
		return
	}

	c.JSON(http.StatusOK, detection)
}

// GET /link/initiate?primaryUserId=&secondaryUserId=&email=
func (h *Handler) initiate(c *gin.Context) {
	sess, err := h.currentSession(c)
	if err != nil {
		h.pageError(c, err, "Failed to initiate account linking")
		return
	}
	if sess == nil {
		sess, err = h.newSession(c)
		if err != nil {
			h.pageError(c, err, "Failed to initiate account linking")
			return
		}
	}

	prompt, err := h.svc.Initiate(
		c.Request.Context(),
		sess,
		c.Query("primaryUserId"),
		c.Query("secondaryUserId"),
		c.Query("email"),
	)
	if err != nil {
		h.pageError(c, err, "Failed to initiate account linking")
		return
	}

	logger.Info("linking initiated", map[string]any{
		"session_id": sess.SessionID,
		"primary":    prompt.PrimaryUserID,
	})

	c.HTML(http.StatusOK, "link-prompt.html", gin.H{
		"Email":        prompt.Email,
		"AuthorizeURL": prompt.AuthorizeURL,
		"AppURL":       h.cfg.AppURL,
	})
}

// GET /link/callback?code=&state=[&error=&error_description=]
func (h *Handler) callback(c *gin.Context) {
	sess, err := h.currentSession(c)
	if err != nil {
		h.pageError(c, err, "Failed to process authentication callback")
		return
	}

	cb := linking.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		ErrorParam:       c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	}

	if err := h.svc.HandleCallback(c.Request.Context(), sess, cb); err != nil {
		h.pageError(c, err, "Failed to process authentication callback")
		return
	}

	c.Redirect(http.StatusFound, "/link/complete")
}

// GET /link/complete
func (h *Handler) complete(c *gin.Context) {
	sess, err := h.currentSession(c)
	if err != nil {
		h.pageError(c, err, "Failed to link accounts. Please try again.")
		return
	}

	result, err := h.svc.Complete(c.Request.Context(), sess)
	if err != nil {
		h.pageError(c, err, "Failed to link accounts. Please try again.")
		return
	}

	// The flow is over; the session cookie has nothing left to correlate.
	session.ClearCookie(c.Writer, session.CookieOptions{
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	c.HTML(http.StatusOK, "link-success.html", gin.H{
		"Email":     result.Email,
		"Provider":  result.Provider,
		"ReturnURL": h.cfg.AppURL,
	})
}

type unlinkRequest struct {
	PrimaryUserID string `json:"primaryUserId"`
	Provider      string `json:"provider"`
	UserID        string `json:"userId"`
}

// POST /link/complete/unlink
func (h *Handler) unlink(c *gin.Context) {
	var req unlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// The caller identity is the bearer subject, never a body field.
	caller := c.GetString(middleware.ContextSubjectKey)
	if caller == "" {
		h.jsonError(c, httperr.Unauthorized("Authentication required"), "Failed to unlink account")
		return
	}

	err := h.svc.Unlink(
		c.Request.Context(),
		caller,
		req.PrimaryUserID,
		req.Provider,
		req.UserID,
	)
	if err != nil {
		h.jsonError(c, err, "Failed to unlink account")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Account unlinked successfully",
	})
}

// ---------------------------------------------------------------------------
// Session plumbing

// currentSession resolves the linking session from the cookie, or nil
// when no valid session exists.
func (h *Handler) currentSession(c *gin.Context) (*session.Session, error) {
	cookie, err := c.Request.Cookie(session.CookieName(h.cfg.SecureCookies))
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return h.store.Get(c.Request.Context(), cookie.Value)
}

func (h *Handler) newSession(c *gin.Context) (*session.Session, error) {
	id, err := session.GenerateID()
	if err != nil {
		return nil, &httperr.Server{Cause: err}
	}

	now := time.Now()
	sess := &session.Session{
		SessionID: id,
		CreatedAt: now,
		ExpiresAt: now.Add(session.TTL),
	}

	if err := h.store.Create(c.Request.Context(), *sess); err != nil {
		return nil, &httperr.Server{Cause: err}
	}

	session.SetCookie(c.Writer, id, sess.ExpiresAt, session.CookieOptions{
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	return sess, nil
}

// ---------------------------------------------------------------------------
// Error responses

// resolve maps an error to status + user-facing message. Provider and
// server errors collapse to a generic message; detail is only exposed in
// development.
func (h *Handler) resolve(err error, fallback string) (status int, msg string, detail string) {
	var cErr *httperr.Client
	if errors.As(err, &cErr) {
		return cErr.Status(), cErr.Message, ""
	}

	logger.Error("linking request failed", map[string]any{
		"error": err.Error(),
	})

	if h.cfg.DevMode {
		detail = err.Error()
	}
	return http.StatusInternalServerError, fallback, detail
}

func (h *Handler) jsonError(c *gin.Context, err error, fallback string) {
	status, msg, detail := h.resolve(err, fallback)

	body := gin.H{"error": msg}
	if detail != "" {
		body["detail"] = detail
	}
	c.JSON(status, body)
}

func (h *Handler) pageError(c *gin.Context, err error, fallback string) {
	status, msg, detail := h.resolve(err, fallback)

	c.HTML(status, "error.html", gin.H{
		"Message":   msg,
		"Detail":    detail,
		"ReturnURL": h.cfg.AppURL,
	})
}
