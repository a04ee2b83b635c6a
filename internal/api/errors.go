package api

import (
	"errors"
	"fmt"
	"gymbook/internal/domain"
	"gymbook/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// statusFor maps service errors onto HTTP status codes. Order matters: a PartialWriteError
// also unwraps to its cause, which may itself look like a client error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPartialWrite), errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusInternalServerError
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCapacityExceeded),
		errors.Is(err, service.ErrAlreadyBooked),
		errors.Is(err, service.ErrNotBooked),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrDuplicateSession):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError responds with the mapped status. Server-side failures get a generic message
// and the detail goes to the request log through c.Error.
func writeServiceError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		abortWithError(c, status, fallback)
		return
	}
	abortWithError(c, status, err.Error())
}

// paramObjectID parses a hex ObjectID path parameter, answering 400 on failure.
func paramObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format.", name))
		return primitive.NilObjectID, false
	}
	return id, true
}

// principalOrAbort fetches the authenticated principal, answering 401 when it is missing.
func principalOrAbort(c *gin.Context) (domain.Principal, bool) {
	p, err := getPrincipalFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return domain.Principal{}, false
	}
	return p, true
}
