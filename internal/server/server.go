// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comigor/nl2sql-go/internal/agent"
	"github.com/comigor/nl2sql-go/internal/database"
	"github.com/comigor/nl2sql-go/internal/logger"
)

// Processor answers questions. *agent.Service implements it.
type Processor interface {
	Process(ctx context.Context, question string) (*agent.Result, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type AskResponse struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Outcome   string   `json:"outcome"`
	Steps     []string `json:"steps"`
}

type Handler struct {
	proc Processor
	db   Pinger
}

func NewHandler(proc Processor, db Pinger) *Handler {
	return &Handler{proc: proc, db: db}
}

// NewRouter wires the routes behind recovery and request logging.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	router.GET("/healthz", h.Health)
	router.POST("/", h.AskText)
	router.POST("/ask", h.Ask)
	return router
}

// AskText takes the raw request body as the question and replies in plain text.
func (h *Handler) AskText(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.L.Warn("read body error", "error", err)
		c.String(http.StatusBadRequest, "failed to read request body")
		return
	}
	res, err := h.proc.Process(c.Request.Context(), string(body))
	if err != nil {
		c.String(statusFor(err), errorMessage(err))
		return
	}
	c.String(http.StatusOK, res.Answer)
}

func (h *Handler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.L.Warn("invalid ask request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.proc.Process(c.Request.Context(), req.Question)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": errorMessage(err)})
		return
	}

	steps := make([]string, len(res.Steps))
	for i, s := range res.Steps {
		steps[i] = string(s.State)
	}
	c.JSON(http.StatusOK, AskResponse{
		SessionID: res.SessionID,
		Answer:    res.Answer,
		Outcome:   string(res.Outcome),
		Steps:     steps,
	})
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		logger.L.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, agent.ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(err, database.ErrConnection):
		return "Database credentials are not properly configured or the database is unreachable."
	default:
		return "failed to process request"
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		lvl := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			lvl = slog.LevelError
		}
		logger.L.Log(c.Request.Context(), lvl, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
			"errors", strings.Join(c.Errors.Errors(), "; "),
		)
	}
}
