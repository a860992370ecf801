package handler

import (
	"net/http"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/apperror"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every REST endpoint answers with
type Response struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func Respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// RespondError maps err through the taxonomy. Internal details never leave
// the process.
func RespondError(c *gin.Context, err error) {
	c.JSON(apperror.HTTPStatus(err), Response{
		Success:   false,
		Message:   apperror.PublicMessage(err),
		Error:     apperror.KindOf(err).String(),
		Timestamp: time.Now().UTC(),
	})
}

// AbortWithError writes the error envelope and stops the handler chain
func AbortWithError(c *gin.Context, err error) {
	RespondError(c, err)
	c.Abort()
}

func ok(c *gin.Context, message string, data any) {
	Respond(c, http.StatusOK, message, data)
}
