package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/letya999/duty-bot/internal/session"
)

// AuthHandler issues sessions. Real login (OAuth against the chat platform)
// lives outside this service; callers exchange the shared bootstrap token for
// a per-person session here.
type AuthHandler struct {
	Sessions       *session.Store
	BootstrapToken string
}

func NewAuthHandler(sessions *session.Store, bootstrapToken string) *AuthHandler {
	return &AuthHandler{Sessions: sessions, BootstrapToken: bootstrapToken}
}

type createSessionRequest struct {
	PersonID       string `json:"person_id" binding:"required"`
	BootstrapToken string `json:"bootstrap_token" binding:"required"`
}

// CreateSession exchanges the bootstrap token for an opaque session token.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.BootstrapToken == "" || req.BootstrapToken != h.BootstrapToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid bootstrap token"})
		return
	}

	token, err := h.Sessions.Create(c.Request.Context(), req.PersonID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// DeleteSession revokes the caller's token.
func (h *AuthHandler) DeleteSession(c *gin.Context) {
	token := c.Param("token")
	if err := h.Sessions.Revoke(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}
