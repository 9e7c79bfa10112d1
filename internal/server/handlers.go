// Package server exposes the dialogue engine over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"contractbot/internal/dialogue"
	"contractbot/internal/logging"
	"contractbot/internal/perception"
	"contractbot/internal/session"
	"contractbot/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistorySource returns persisted turns for a session, oldest first.
type HistorySource interface {
	History(ctx context.Context, sessionID string, limit int) ([]store.TurnRecord, error)
}

// SessionDeleter removes a persisted session snapshot.
type SessionDeleter interface {
	Delete(id string) error
}

// Handlers serves the dialogue API.
type Handlers struct {
	manager   *dialogue.Manager
	history   HistorySource
	snapshots SessionDeleter
}

// NewHandlers builds Handlers. history and snapshots may be nil.
func NewHandlers(manager *dialogue.Manager, history HistorySource, snapshots SessionDeleter) *Handlers {
	return &Handlers{manager: manager, history: history, snapshots: snapshots}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// TurnRequest is the body of POST /v1/turn.
type TurnRequest struct {
	Text      string `json:"text" binding:"required,notblank,max=4096"`
	SessionID string `json:"sessionId" binding:"max=128"`
	UserID    string `json:"userId" binding:"max=128"`
}

// TextRequest is the body of the stateless classify and extract endpoints.
type TextRequest struct {
	Text string `json:"text" binding:"required,notblank,max=4096"`
}

// ExtractResponse is the reply of POST /v1/extract.
type ExtractResponse struct {
	Entities []perception.Entity `json:"entities"`
}

// ChoiceRequest is one option in a ChoicesRequest.
type ChoiceRequest struct {
	Label string `json:"label" binding:"required,notblank"`
	Value string `json:"value"`
}

// ChoicesRequest is the body of POST /v1/sessions/:id/choices.
type ChoicesRequest struct {
	UserID  string          `json:"userId"`
	Prompt  string          `json:"prompt"`
	Choices []ChoiceRequest `json:"choices" binding:"required,min=1,max=20,dive"`
}

// HistoryResponse is the reply of GET /v1/sessions/:id/history. Turns come
// from the turn log when one is configured, otherwise from the live session.
type HistoryResponse struct {
	SessionID string             `json:"sessionId"`
	Source    string             `json:"source"`
	Records   []store.TurnRecord `json:"records,omitempty"`
	Turns     []session.Turn     `json:"turns,omitempty"`
	Choices   *session.ChoiceSet `json:"choices,omitempty"`
	Task      *session.TaskState `json:"activeTask,omitempty"`
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", notBlank)
	}
}

// notBlank rejects strings made only of whitespace.
func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// HandleTurn processes one utterance.
//
// POST /v1/turn
func (h *Handlers) HandleTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	resp := h.manager.ProcessTurn(c.Request.Context(), req.Text, req.SessionID, req.UserID)
	c.JSON(http.StatusOK, resp)
}

// HandleClassify classifies text without touching any session.
//
// POST /v1/classify
func (h *Handlers) HandleClassify(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	a := h.manager.Analyze(req.Text)
	if a.Entities == nil {
		a.Entities = []perception.Entity{}
	}
	c.JSON(http.StatusOK, a)
}

// HandleExtract returns the entities found in text.
//
// POST /v1/extract
func (h *Handlers) HandleExtract(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	entities := h.manager.ExtractEntities(req.Text)
	if entities == nil {
		entities = []perception.Entity{}
	}
	c.JSON(http.StatusOK, ExtractResponse{Entities: entities})
}

// HandleOfferChoices attaches a numbered choice list to a session.
//
// POST /v1/sessions/:id/choices
func (h *Handlers) HandleOfferChoices(c *gin.Context) {
	id := c.Param("id")
	var req ChoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	choices := make([]session.Choice, len(req.Choices))
	for i, ch := range req.Choices {
		choices[i] = session.Choice{Label: ch.Label, Value: ch.Value}
	}
	if err := h.manager.OfferChoices(id, req.UserID, req.Prompt, choices); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	sess, ok := h.manager.Session(id)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "session vanished", Code: "SESSION_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, sess.Choices)
}

// HandleEndSession drops a session and its snapshot.
//
// DELETE /v1/sessions/:id
func (h *Handlers) HandleEndSession(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.manager.Session(id); !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "SESSION_NOT_FOUND"})
		return
	}
	h.manager.EndSession(id)
	if h.snapshots != nil {
		if err := h.snapshots.Delete(id); err != nil {
			logging.Get(logging.CategoryServer).Error("delete snapshot %s: %v", id, err)
		}
	}
	c.Status(http.StatusNoContent)
}

// HandleHistory returns the turns of a session.
//
// GET /v1/sessions/:id/history?limit=N
func (h *Handlers) HandleHistory(c *gin.Context) {
	id := c.Param("id")
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500", Code: "INVALID_REQUEST"})
			return
		}
		limit = n
	}

	sess, live := h.manager.Session(id)
	resp := HistoryResponse{SessionID: id}
	if live {
		resp.Choices = sess.Choices
		resp.Task = sess.ActiveTask
	}

	if h.history != nil {
		records, err := h.history.History(c.Request.Context(), id, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_ERROR"})
			return
		}
		if len(records) == 0 && !live {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "SESSION_NOT_FOUND"})
			return
		}
		resp.Source = "turnlog"
		resp.Records = records
		c.JSON(http.StatusOK, resp)
		return
	}

	if !live {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "SESSION_NOT_FOUND"})
		return
	}
	turns := sess.History
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	resp.Source = "session"
	resp.Turns = turns
	c.JSON(http.StatusOK, resp)
}

// HandleHealth reports liveness.
//
// GET /health
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
