package api

import (
	"gymbook/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the caller's own account. Accounts are provisioned by managers or gymctl,
// so there is no register or login route.
type AccountHandler struct {
	accountService service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// Me godoc
// @Summary Get the authenticated user's profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Profile
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "User no longer exists"
// @Router /me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}
	profile, err := h.accountService.Profile(c.Request.Context(), principal)
	if err != nil {
		writeServiceError(c, err, "Failed to load profile.")
		return
	}
	c.JSON(http.StatusOK, profile)
}
