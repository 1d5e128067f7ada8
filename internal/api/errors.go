package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flipcheck/flipcheck/internal/analysis"
	"github.com/flipcheck/flipcheck/internal/cache"
	"github.com/flipcheck/flipcheck/internal/reddit"
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// toError maps domain errors onto HTTP statuses
func toError(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case analysis.IsValidation(err):
		return NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, reddit.ErrNotFound), errors.Is(err, cache.ErrMiss):
		return NewError(http.StatusNotFound, err.Error())
	default:
		return NewError(http.StatusInternalServerError, err.Error())
	}
}

// abortWithError writes the {"error": ...} body for err
func abortWithError(c *gin.Context, err error) {
	e := toError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.Code, gin.H{"error": e.Message})
}
