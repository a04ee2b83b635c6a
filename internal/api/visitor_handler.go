package api

import (
	"gymbook/internal/domain"
	"gymbook/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type VisitorHandler struct {
	directoryService service.DirectoryService
}

func NewVisitorHandler(directoryService service.DirectoryService) *VisitorHandler {
	return &VisitorHandler{directoryService: directoryService}
}

// GetMySessions godoc
// @Summary Sessions the caller is booked into
// @Tags Visitor
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Session
// @Router /visitor/sessions [get]
func (h *VisitorHandler) GetMySessions(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessions, err := h.directoryService.MySessions(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve sessions.")
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

// GetMyTrainers godoc
// @Summary Trainers running the caller's sessions
// @Tags Visitor
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Trainer
// @Router /visitor/trainers [get]
func (h *VisitorHandler) GetMyTrainers(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	trainers, err := h.directoryService.MyTrainers(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to retrieve trainers.")
		return
	}
	if trainers == nil {
		trainers = []domain.Trainer{}
	}
	c.JSON(http.StatusOK, trainers)
}
