package handler

import (
	"errors"
	"log"
	"net/http"

	"tourdesk/internal/middleware"
	"tourdesk/internal/service"
	"tourdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusOf maps a service error onto the HTTP status it stands for.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Internal errors are logged
// and reported without their detail.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "Internal server error"
	}
	c.JSON(status, response.Error(status, msg))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// scopeOf returns the caller scope set by the auth middleware. Routes are
// only reachable through RequireRole, so a missing scope is a wiring bug.
func scopeOf(c *gin.Context) (service.Scope, bool) {
	scope, ok := middleware.ScopeFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Unauthorized"))
	}
	return scope, ok
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, data))
}
