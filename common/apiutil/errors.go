package apiutil

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the inner payload of every structured rejection.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the standard error envelope for all APIs
//
// Example:
//
//	{
//	  "error": {
//	    "code": 400,
//	    "message": "Missing header: x-signature"
//	  }
//	}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteError writes the standard error envelope and stops the handler chain.
func WriteError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    status,
			Message: message,
		},
	})
}
