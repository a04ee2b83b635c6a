package api

import (
	"context"
	"fmt"
	"gymbook/internal/domain"
	"gymbook/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ReconcileRunner drains the reconciliation queue on demand.
type ReconcileRunner interface {
	RunOnce(ctx context.Context) (resolved, failed int, err error)
}

type ManagerHandler struct {
	directoryService service.DirectoryService
	exportService    service.ExportService
	reconciler       ReconcileRunner
}

func NewManagerHandler(
	directoryService service.DirectoryService,
	exportService service.ExportService,
	reconciler ReconcileRunner,
) *ManagerHandler {
	return &ManagerHandler{
		directoryService: directoryService,
		exportService:    exportService,
		reconciler:       reconciler,
	}
}

// --- DTOs ---

type CreateTrainerRequest struct {
	Username    string  `json:"username" binding:"required"`
	Password    string  `json:"password" binding:"required,min=8"`
	Name        string  `json:"name" binding:"required"`
	Email       string  `json:"email" binding:"omitempty,email"`
	Rating      float64 `json:"rating" binding:"gte=0"`
	MaxVisitors int     `json:"maxVisitors" binding:"gte=0"`
}

type UpdateTrainerRequest struct {
	Name        *string  `json:"name,omitempty"`
	Email       *string  `json:"email,omitempty" binding:"omitempty,email"`
	Rating      *float64 `json:"rating,omitempty"`
	MaxVisitors *int     `json:"maxVisitors,omitempty"`
}

type ReconcileResponse struct {
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

// ListTrainers godoc
// @Summary List all trainers
// @Tags Manager
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Trainer
// @Router /manager/trainers [get]
func (h *ManagerHandler) ListTrainers(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	trainers, err := h.directoryService.ListTrainers(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve trainers.")
		return
	}
	if trainers == nil {
		trainers = []domain.Trainer{}
	}
	c.JSON(http.StatusOK, trainers)
}

// CreateTrainer godoc
// @Summary Provision a trainer account
// @Tags Manager
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param trainer body CreateTrainerRequest true "Trainer details"
// @Success 201 {object} domain.Trainer
// @Failure 400 {object} gin.H "Validation error"
// @Failure 409 {object} gin.H "Username already taken"
// @Router /manager/trainers [post]
func (h *ManagerHandler) CreateTrainer(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	var req CreateTrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	trainer, err := h.directoryService.CreateTrainer(c.Request.Context(), principal, service.NewAccount{
		Username:    req.Username,
		Password:    req.Password,
		Name:        req.Name,
		Email:       req.Email,
		Rating:      req.Rating,
		MaxVisitors: req.MaxVisitors,
	})
	if err != nil {
		writeServiceError(c, err, "Failed to create trainer.")
		return
	}
	c.JSON(http.StatusCreated, trainer)
}

// UpdateTrainer godoc
// @Summary Edit a trainer's profile
// @Tags Manager
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param trainerId path string true "Trainer ID"
// @Success 200 {object} domain.Trainer
// @Failure 404 {object} gin.H "Trainer not found"
// @Router /manager/trainers/{trainerId} [put]
func (h *ManagerHandler) UpdateTrainer(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	trainerID, ok := paramObjectID(c, "trainerId")
	if !ok {
		return
	}
	var req UpdateTrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	trainer, err := h.directoryService.UpdateTrainer(c.Request.Context(), principal, trainerID, service.TrainerPatch{
		Name:        req.Name,
		Email:       req.Email,
		Rating:      req.Rating,
		MaxVisitors: req.MaxVisitors,
	})
	if err != nil {
		writeServiceError(c, err, "Failed to update trainer.")
		return
	}
	c.JSON(http.StatusOK, trainer)
}

// DeleteTrainer godoc
// @Summary Delete a trainer without sessions
// @Tags Manager
// @Security BearerAuth
// @Param trainerId path string true "Trainer ID"
// @Success 204
// @Failure 409 {object} gin.H "Trainer still owns sessions"
// @Router /manager/trainers/{trainerId} [delete]
func (h *ManagerHandler) DeleteTrainer(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	trainerID, ok := paramObjectID(c, "trainerId")
	if !ok {
		return
	}
	if err := h.directoryService.DeleteTrainer(c.Request.Context(), principal, trainerID); err != nil {
		writeServiceError(c, err, "Failed to delete trainer.")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTopVisitors godoc
// @Summary Visitors with the most bookings
// @Tags Manager
// @Produce json
// @Security BearerAuth
// @Param limit query int false "How many (default 5)"
// @Success 200 {array} domain.VisitorRanking
// @Router /manager/topVisitors [get]
func (h *ManagerHandler) GetTopVisitors(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortWithError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rankings, err := h.directoryService.TopVisitors(c.Request.Context(), principal, limit)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve top visitors.")
		return
	}
	if rankings == nil {
		rankings = []domain.VisitorRanking{}
	}
	c.JSON(http.StatusOK, rankings)
}

// GetSessionsWithReviews godoc
// @Summary Every session with its reviews resolved
// @Tags Manager
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.SessionWithReviews
// @Router /manager/sessions/reviews [get]
func (h *ManagerHandler) GetSessionsWithReviews(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessions, err := h.directoryService.AllSessionsWithReviews(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve sessions.")
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// ExportRoster godoc
// @Summary Export a session roster as CSV
// @Tags Manager
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} service.RosterExport
// @Failure 404 {object} gin.H "Session not found"
// @Router /manager/sessions/{sessionId}/export [post]
func (h *ManagerHandler) ExportRoster(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessionID, ok := paramObjectID(c, "sessionId")
	if !ok {
		return
	}
	export, err := h.exportService.ExportRoster(c.Request.Context(), principal, sessionID)
	if err != nil {
		writeServiceError(c, err, "Failed to export roster.")
		return
	}
	c.JSON(http.StatusOK, export)
}

// Reconcile godoc
// @Summary Run one reconciliation pass now
// @Tags Manager
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ReconcileResponse
// @Router /manager/reconcile [post]
func (h *ManagerHandler) Reconcile(c *gin.Context) {
	resolved, failed, err := h.reconciler.RunOnce(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, "Reconciliation failed.")
		return
	}
	c.JSON(http.StatusOK, ReconcileResponse{Resolved: resolved, Failed: failed})
}
