package middleware

import (
	"net/http"

	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/response"
	"github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

// CheckSingleDeviceSession validates the JWT's JTI against the active
// session in Redis. A mismatch means the candidate signed in elsewhere
// and this token was invalidated.
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.ValidateUserSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
