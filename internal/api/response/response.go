package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes v with the given status.
func JSON(c *gin.Context, code int, v any) {
	c.JSON(code, v)
}

// SuccessResponse writes v with status 200.
func SuccessResponse(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}

// NoContent writes an empty 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
	c.Writer.WriteHeaderNow()
}

// ErrorResponse writes {"error": message} with the given status.
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, Body{Error: message})
}

// Abort writes err and stops the handler chain. Anything that is not an
// *Error is reported as a generic server error.
func Abort(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Wrap(KindServerError, "Internal server error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.Code(), Body{Error: e.Message, Details: e.Details})
}
