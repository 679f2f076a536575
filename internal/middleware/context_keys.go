package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// userIDKey stores the authenticated user's ID in the request context.
const userIDKey = contextKey("userID")

// SystemUserID is the acting user for work not triggered by a request.
const SystemUserID = "system"

// ContextWithUserID returns a copy of ctx carrying userID.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext retrieves the authenticated user ID from the Gin context.
// It returns the user ID and a boolean indicating if it was found.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, ok := c.Request.Context().Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}
