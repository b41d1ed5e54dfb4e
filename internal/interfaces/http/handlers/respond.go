// internal/interfaces/http/handlers/respond.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
)

// respondError translates a service error into the stable wire shape
// {code, error, details?}. Uncoded errors surface as 500 without echoing
// the cause.
func respondError(c *gin.Context, err error) {
	if typed := apperror.As(err); typed != nil {
		body := gin.H{
			"code":  typed.Code(),
			"error": typed.Message(),
		}
		if details := typed.Details(); len(details) > 0 {
			body["details"] = details
		}
		c.JSON(typed.Status(), body)
		return
	}

	c.Error(err) // surfaces in the request log
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":  apperror.CodeInternal,
		"error": "internal server error",
	})
}

// respondInvalid reports a request binding failure
func respondInvalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":  apperror.CodeValidationFailed,
		"error": "invalid request: " + err.Error(),
	})
}
