package handlers

import (
	"speakapp/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// GetUserIDFromSession retrieves the current user ID from the session.
// Returns (0, false) if not authenticated or if the stored value is invalid.
func GetUserIDFromSession(c *gin.Context) (int, bool) {
	session := sessions.Default(c)
	userID := session.Get(middleware.UserIDKey)
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(int)
	if !ok {
		if idFloat, ok := userID.(float64); ok {
			return int(idFloat), true
		}
		return 0, false
	}
	return id, true
}

// OptionalUserID returns a pointer to the session user ID, or nil for
// anonymous requests. Selection endpoints use this to choose between the
// rotation path and the static fallback.
func OptionalUserID(c *gin.Context) *int {
	if id, ok := GetUserIDFromSession(c); ok {
		return &id
	}
	return nil
}
