package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Guard redirects page requests whose sign-in state differs from requiredAuth.
// It must run after Session.
func Guard(requiredAuth bool, redirectTo string) gin.HandlerFunc {
	return func(c *gin.Context) {
		signedIn := Principal(c) != nil
		if signedIn != requiredAuth {
			c.Redirect(http.StatusFound, redirectTo)
			c.Abort()
			return
		}
		c.Next()
	}
}
