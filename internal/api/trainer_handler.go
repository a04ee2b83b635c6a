package api

import (
	"gymbook/internal/domain"
	"gymbook/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TrainerHandler serves the trainer's own views: sessions they run, who booked them and what
// those visitors said.
type TrainerHandler struct {
	sessionService service.SessionService
}

func NewTrainerHandler(sessionService service.SessionService) *TrainerHandler {
	return &TrainerHandler{sessionService: sessionService}
}

// GetMySessions godoc
// @Summary Sessions owned by the caller
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Session
// @Router /trainer/sessions [get]
func (h *TrainerHandler) GetMySessions(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.ListMySessions(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve sessions.")
		return
	}
	if sessions == nil {
		sessions = []domain.Session{} // Return empty array instead of null
	}
	c.JSON(http.StatusOK, sessions)
}

// GetMyVisitors godoc
// @Summary Visitors booked into any of the caller's sessions
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Visitor
// @Router /trainer/visitors [get]
func (h *TrainerHandler) GetMyVisitors(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	visitors, err := h.sessionService.ListTrainerVisitors(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve visitors.")
		return
	}
	if visitors == nil {
		visitors = []domain.Visitor{}
	}
	c.JSON(http.StatusOK, visitors)
}

// GetMyReviews godoc
// @Summary Reviews left on the caller's sessions
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Review
// @Router /trainer/reviews [get]
func (h *TrainerHandler) GetMyReviews(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	reviews, err := h.sessionService.ListTrainerReviews(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve reviews.")
		return
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	c.JSON(http.StatusOK, reviews)
}
