package middleware

import (
	"classroom_chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		c.JSON(errors.HTTPStatusFromError(err), gin.H{
			"error": errors.PublicMessage(err),
			"code":  errors.Code(err),
		})
	}
}
