package api

import (
	"fmt"
	"gymbook/internal/domain"
	"gymbook/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// --- DTOs ---

type CreateSessionRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" binding:"required"`
	MaxVisitors *int      `json:"maxVisitors,omitempty"`
	// Required when a manager creates the session.
	TrainerID string `json:"trainerId,omitempty"`
}

type UpdateSessionRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	MaxVisitors *int       `json:"maxVisitors,omitempty"`
}

// CreateSession godoc
// @Summary Create a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session body CreateSessionRequest true "Session details"
// @Success 201 {object} domain.Session
// @Failure 400 {object} gin.H "Invalid input or duplicate session"
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	input := service.NewSession{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		MaxVisitors: req.MaxVisitors,
	}
	if req.TrainerID != "" {
		trainerID, err := primitive.ObjectIDFromHex(req.TrainerID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid trainerId format.")
			return
		}
		input.TrainerID = trainerID
	}

	session, err := h.sessionService.CreateSession(c.Request.Context(), principal, input)
	if err != nil {
		writeServiceError(c, err, "Failed to create session.")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ListSessions godoc
// @Summary List every session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Session
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.ListAllSessions(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve sessions.")
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession godoc
// @Summary Get a session by ID
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} domain.Session
// @Failure 404 {object} gin.H "Session not found"
// @Router /sessions/{sessionId} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessionID, ok := paramObjectID(c, "sessionId")
	if !ok {
		return
	}
	session, err := h.sessionService.GetSession(c.Request.Context(), principal, sessionID)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve session.")
		return
	}
	c.JSON(http.StatusOK, session)
}

// UpdateSession godoc
// @Summary Edit a session's details
// @Description Only title, description, date and maxVisitors can change. The roster and reviews are managed through booking and review routes.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param update body UpdateSessionRequest true "Fields to change"
// @Success 200 {object} domain.Session
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Caller does not own the session"
// @Failure 404 {object} gin.H "Session not found"
// @Router /sessions/{sessionId} [put]
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessionID, ok := paramObjectID(c, "sessionId")
	if !ok {
		return
	}
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	session, err := h.sessionService.UpdateSession(c.Request.Context(), principal, sessionID, domain.SessionUpdate{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		MaxVisitors: req.MaxVisitors,
	})
	if err != nil {
		writeServiceError(c, err, "Failed to update session.")
		return
	}
	c.JSON(http.StatusOK, session)
}
