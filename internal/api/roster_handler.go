package api

import (
	"fmt"
	"gymbook/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RosterHandler serves bookings and reviews, the operations that touch both sides of a booking.
type RosterHandler struct {
	rosterService service.RosterService
	reviewService service.ReviewService
}

func NewRosterHandler(rosterService service.RosterService, reviewService service.ReviewService) *RosterHandler {
	return &RosterHandler{
		rosterService: rosterService,
		reviewService: reviewService,
	}
}

type SubmitReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Book godoc
// @Summary Book the calling visitor into a session
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} domain.Session
// @Failure 400 {object} gin.H "Already booked or session full"
// @Failure 404 {object} gin.H "Session or visitor not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /book/{sessionId} [post]
func (h *RosterHandler) Book(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessionID, ok := paramObjectID(c, "sessionId")
	if !ok {
		return
	}

	session, err := h.rosterService.SelfBook(c.Request.Context(), sessionID, principal)
	if err != nil {
		writeServiceError(c, err, "Failed to book session.")
		return
	}
	c.JSON(http.StatusOK, session)
}

// Unbook godoc
// @Summary Remove the calling visitor from a session
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} domain.Session
// @Failure 400 {object} gin.H "Not booked"
// @Failure 404 {object} gin.H "Session or visitor not found"
// @Router /unbook/{sessionId} [delete]
func (h *RosterHandler) Unbook(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessionID, ok := paramObjectID(c, "sessionId")
	if !ok {
		return
	}

	session, err := h.rosterService.SelfUnbook(c.Request.Context(), sessionID, principal)
	if err != nil {
		writeServiceError(c, err, "Failed to unbook session.")
		return
	}
	c.JSON(http.StatusOK, session)
}

// AddVisitor godoc
// @Summary Add a visitor to a session the caller owns
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Param visitorId path string true "Visitor ID"
// @Param sessionId path string true "Session ID"
// @Success 200 {object} domain.Session
// @Failure 403 {object} gin.H "Caller does not own the session"
// @Router /addVisitor/{visitorId}/{sessionId} [post]
func (h *RosterHandler) AddVisitor(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	visitorID, ok := paramObjectID(c, "visitorId")
	if !ok {
		return
	}
	sessionID, ok := paramObjectID(c, "sessionId")
	if !ok {
		return
	}

	session, err := h.rosterService.AddVisitor(c.Request.Context(), sessionID, visitorID, principal)
	if err != nil {
		writeServiceError(c, err, "Failed to add visitor.")
		return
	}
	c.JSON(http.StatusOK, session)
}

// RemoveVisitor godoc
// @Summary Remove a visitor from a session the caller owns
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Router /removeVisitor/{visitorId}/{sessionId} [delete]
func (h *RosterHandler) RemoveVisitor(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	visitorID, ok := paramObjectID(c, "visitorId")
	if !ok {
		return
	}
	sessionID, ok := paramObjectID(c, "sessionId")
	if !ok {
		return
	}

	session, err := h.rosterService.RemoveVisitor(c.Request.Context(), sessionID, visitorID, principal)
	if err != nil {
		writeServiceError(c, err, "Failed to remove visitor.")
		return
	}
	c.JSON(http.StatusOK, session)
}

// SubmitReview godoc
// @Summary Rate a session
// @Tags Roster
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param review body SubmitReviewRequest true "Rating 1-5 and comment"
// @Success 200 {object} domain.Review
// @Failure 400 {object} gin.H "Rating out of range or empty comment"
// @Router /review/{sessionId} [post]
func (h *RosterHandler) SubmitReview(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	sessionID, ok := paramObjectID(c, "sessionId")
	if !ok {
		return
	}
	var req SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	review, err := h.reviewService.SubmitReview(c.Request.Context(), sessionID, principal, req.Rating, req.Comment)
	if err != nil {
		writeServiceError(c, err, "Failed to submit review.")
		return
	}
	c.JSON(http.StatusOK, review)
}
