package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"synthesistalk/internal/models"
	"synthesistalk/internal/service/chat"
	"synthesistalk/internal/service/document"
	"synthesistalk/internal/service/notes"
	"synthesistalk/internal/service/tools"
	"synthesistalk/internal/worker"
)

const maxUploadBytes = 20 << 20

// JobRunner runs fn on behalf of key. Calls sharing a key never overlap.
type JobRunner interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Handler wires HTTP routes to the chat, tool and note services. Every
// request runs through the job runner keyed by its user id.
type Handler struct {
	chat  *chat.Service
	tools *tools.Service
	notes *notes.Store
	jobs  JobRunner
}

// NewHandler constructs a Handler instance.
func NewHandler(chatService *chat.Service, toolService *tools.Service, noteStore *notes.Store, jobs JobRunner) *Handler {
	return &Handler{chat: chatService, tools: toolService, notes: noteStore, jobs: jobs}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.root)

	chatRoutes := router.Group("/chat")
	chatRoutes.POST("/message", h.chatMessage)

	toolRoutes := router.Group("/tools")
	toolRoutes.POST("/use", h.useTool)
	toolRoutes.POST("/upload", h.uploadDocument)
	toolRoutes.POST("/note/save", h.saveNote)
	toolRoutes.GET("/note/list", h.listNotes)
	toolRoutes.POST("/note/delete", h.deleteNote)
	toolRoutes.POST("/note/clear", h.clearNotes)
	toolRoutes.POST("/visualize", h.runTool(models.ToolVisualize, "chart_data"))
	toolRoutes.POST("/react_agent", h.runTool(models.ToolReact, "result"))
	toolRoutes.POST("/export", h.runTool(models.ToolExportPDF, "result"))
	toolRoutes.POST("/qa", h.runTool(models.ToolQA, "result"))
	toolRoutes.POST("/convo/reset", h.resetConversation)
	toolRoutes.POST("/generate_topic", h.generateTopic)
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "SynthesisTalk backend is running"})
}

// writeJobError answers a failed job. Scheduling failures take precedence
// over status, which applies to errors returned by the job itself.
func writeJobError(c *gin.Context, err error, status int) {
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	case errors.Is(err, worker.ErrDispatcherStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request cancelled"})
	case errors.Is(err, worker.ErrJobPanicked):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (h *Handler) chatMessage(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and message are required"})
		return
	}

	var (
		reply   string
		history []string
	)
	err := h.jobs.Do(c.Request.Context(), req.UserID, func(ctx context.Context) error {
		var err error
		reply, history, err = h.chat.Send(ctx, req.UserID, req.Message)
		return err
	})
	if err != nil {
		log.Printf("chat message for %s: %v", req.UserID, err)
		writeJobError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply, "history": history})
}

func bindInvocation(c *gin.Context) (models.ToolInvocation, bool) {
	var inv models.ToolInvocation
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return inv, false
	}
	inv.UserID = strings.TrimSpace(inv.UserID)
	return inv, true
}

// useTool runs any tool and records the exchange in history.
func (h *Handler) useTool(c *gin.Context) {
	inv, ok := bindInvocation(c)
	if !ok {
		return
	}
	var result models.ToolResult
	err := h.jobs.Do(c.Request.Context(), inv.UserID, func(ctx context.Context) error {
		var err error
		result, err = h.tools.Use(ctx, inv)
		return err
	})
	if err != nil {
		log.Printf("tool %s: %v", inv.ToolName, err)
		writeJobError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result.Payload()})
}

// runTool serves the convenience endpoints bound to one tool. They read
// history but never write it.
func (h *Handler) runTool(toolName, field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, ok := bindInvocation(c)
		if !ok {
			return
		}
		inv.ToolName = toolName
		var result models.ToolResult
		err := h.jobs.Do(c.Request.Context(), inv.UserID, func(ctx context.Context) error {
			var err error
			result, err = h.tools.Run(ctx, inv)
			return err
		})
		if err != nil {
			log.Printf("tool %s: %v", toolName, err)
			writeJobError(c, err, http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{field: result.Payload()})
	}
}

func (h *Handler) uploadDocument(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	userID := strings.TrimSpace(c.PostForm("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	filename := filepath.Base(file.Filename)
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "filename": filename})
		return
	}
	if !document.Supported(filepath.Ext(filename)) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    (&document.UnsupportedError{Ext: filepath.Ext(filename)}).Error(),
			"filename": filename,
		})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed", "filename": filename})
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	_ = f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed", "filename": filename})
		return
	}

	var result *models.UploadResult
	err = h.jobs.Do(c.Request.Context(), userID, func(ctx context.Context) error {
		var err error
		result, err = h.chat.Upload(ctx, userID, filename, data)
		return err
	})
	if err != nil {
		log.Printf("upload %s for %s: %v", filename, userID, err)
		var unsupported *document.UnsupportedError
		if errors.As(err, &unsupported) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "filename": filename})
			return
		}
		if errors.Is(err, worker.ErrDispatcherBusy) || errors.Is(err, worker.ErrDispatcherStopped) || errors.Is(err, worker.ErrJobPanicked) {
			writeJobError(c, err, http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "Failed to process " + filename + ": " + err.Error(),
			"filename": filename,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// note endpoints take form fields, like the upload endpoint

func (h *Handler) saveNote(c *gin.Context) {
	userID := strings.TrimSpace(c.PostForm("user_id"))
	note := c.PostForm("note")
	if userID == "" || strings.TrimSpace(note) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and note are required"})
		return
	}
	h.noteJob(c, userID, func(ctx context.Context) ([]string, error) {
		return h.notes.Append(ctx, userID, note)
	})
}

func (h *Handler) listNotes(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	h.noteJob(c, userID, func(ctx context.Context) ([]string, error) {
		return h.notes.List(ctx, userID)
	})
}

func (h *Handler) deleteNote(c *gin.Context) {
	userID := strings.TrimSpace(c.PostForm("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	index, err := strconv.Atoi(c.PostForm("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	h.noteJob(c, userID, func(ctx context.Context) ([]string, error) {
		return h.notes.Delete(ctx, userID, index)
	})
}

func (h *Handler) clearNotes(c *gin.Context) {
	userID := strings.TrimSpace(c.PostForm("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	h.noteJob(c, userID, func(ctx context.Context) ([]string, error) {
		return h.notes.Clear(ctx, userID)
	})
}

func (h *Handler) noteJob(c *gin.Context, userID string, fn func(ctx context.Context) ([]string, error)) {
	var list []string
	err := h.jobs.Do(c.Request.Context(), userID, func(ctx context.Context) error {
		var err error
		list, err = fn(ctx)
		return err
	})
	if err != nil {
		log.Printf("notes for %s: %v", userID, err)
		writeJobError(c, err, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": list})
}

type resetRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) resetConversation(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user_id"})
		return
	}
	err := h.jobs.Do(c.Request.Context(), req.UserID, func(ctx context.Context) error {
		return h.chat.Reset(ctx, req.UserID)
	})
	if err != nil {
		log.Printf("reset conversation for %s: %v", req.UserID, err)
		writeJobError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "conversation reset"})
}

type topicRequest struct {
	ConversationText string `json:"conversation_text"`
}

func (h *Handler) generateTopic(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	var topic string
	err := h.jobs.Do(c.Request.Context(), "", func(ctx context.Context) error {
		topic = h.chat.TopicTitle(ctx, req.ConversationText)
		return nil
	})
	if err != nil {
		writeJobError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic": topic})
}
