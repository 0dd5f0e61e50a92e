package auth

import (
	"net/http"

	"chat-relay/internal/models"
	"chat-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

const tokenCookieMaxAge = 30 * 24 * 60 * 60

// Handler exposes the credential endpoints. The issued token is set as
// the `token` cookie, which is what the websocket handshake later reads.
type Handler struct {
	service *Service
	tokens  *TokenService
}

func NewHandler(service *Service, tokens *TokenService) *Handler {
	return &Handler{service: service, tokens: tokens}
}

func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.InternalError(c, "could not create user")
		return
	}

	setTokenCookie(c, token)
	c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Unauthorized(c, "invalid credentials")
		return
	}

	setTokenCookie(c, token)
	c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

// Logout clears the token cookie.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie("token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Profile decodes the token cookie and returns its claims.
func (h *Handler) Profile(c *gin.Context) {
	token, err := c.Cookie("token")
	if err != nil || token == "" {
		response.Unauthorized(c, "no token")
		return
	}

	identity, err := h.tokens.Verify(token)
	if err != nil {
		response.Unauthorized(c, "invalid token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":   identity.UserID,
		"username": identity.Username,
	})
}

func setTokenCookie(c *gin.Context, token string) {
	c.SetCookie("token", token, tokenCookieMaxAge, "/", "", false, true)
}
