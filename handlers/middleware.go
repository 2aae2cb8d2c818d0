package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/letya999/duty-bot/internal/session"
	"github.com/letya999/duty-bot/services"
)

// RequireSession resolves the bearer token through the session store and puts
// the person id on the context.
func RequireSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		personID, err := store.Resolve(c.Request.Context(), token)
		if err != nil {
			log.Printf("Session lookup failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
			return
		}
		if personID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}

		c.Set("person_id", personID)
		c.Next()
	}
}

// respondError maps the engine's error taxonomy onto HTTP statuses: conflicts
// get 409 with the conflicting assignment attached, other user errors 400,
// everything else a generic 500.
func respondError(c *gin.Context, err error) {
	if ce, ok := services.AsConflictError(err); ok {
		c.JSON(http.StatusConflict, gin.H{"error": ce.Message, "conflict": ce.Conflict})
		return
	}
	if services.IsUserError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
}

// actor returns the authenticated person id for audit entries.
func actor(c *gin.Context) string {
	if v, ok := c.Get("person_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}
