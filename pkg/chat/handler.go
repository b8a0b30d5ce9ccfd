package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spindleai/spindle/pkg/completion"
)

// Responder answers one chat message.
type Responder interface {
	Handle(ctx context.Context, message string) Reply
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body of every /chat reply. Error is a machine-readable
// code and is omitted on success.
type ChatResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

type Handler struct {
	responder Responder
	logger    *zap.Logger
}

func NewHandler(r Responder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{responder: r, logger: logger}
}

// NewRouter builds the gin engine serving the chat API.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))
	r.POST("/chat", h.Chat)
	r.GET("/healthz", h.Health)
	return r
}

// Chat answers a message. Every request gets a JSON body with a response.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ChatResponse{
			Response: completion.ErrorMessage(err),
			Error:    ErrCodeInvalidRequest,
		})
		return
	}

	reply := h.responder.Handle(c.Request.Context(), req.Message)
	c.JSON(http.StatusOK, ChatResponse{Response: reply.Response, Error: reply.Error})
}

// Health is a liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", c.ClientIP()))
	}
}
