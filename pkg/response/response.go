package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success     bool        `json:"success"`
	Data        interface{} `json:"data,omitempty"`
	Error       string      `json:"error,omitempty"`
	Field       string      `json:"field,omitempty"`
	WaitSeconds int         `json:"waitSeconds,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Accepted sends a 202 JSON response for work handed to a background job.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// TooManyRequests sends 429 with a Retry-After header.
func TooManyRequests(c *gin.Context, err string, waitSeconds int) {
	c.Header("Retry-After", strconv.Itoa(waitSeconds))
	c.JSON(http.StatusTooManyRequests, Body{Success: false, Error: err, WaitSeconds: waitSeconds})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Error maps a service error to its HTTP status. fallback is the message used for
// untyped (store) failures so internals are not leaked to clients.
func Error(c *gin.Context, err error, fallback string) {
	if ve, ok := apperr.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, Body{Success: false, Error: ve.Error(), Field: ve.Field})
		return
	}
	if re, ok := apperr.AsRateLimit(err); ok {
		TooManyRequests(c, re.Error(), re.WaitSeconds)
		return
	}
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		Unauthorized(c, "unauthorized")
	case errors.Is(err, apperr.ErrForbidden):
		Forbidden(c, "admin access required")
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(c, "not found")
	default:
		Internal(c, fallback)
	}
}
