package api

import (
	"net/http"

	"chat-relay/internal/auth"
	"chat-relay/internal/models"
	"chat-relay/internal/relay"
	"chat-relay/internal/store"
	"chat-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// HistoryHandler serves the durable side of the relay: conversation
// history and the contact list.
type HistoryHandler struct {
	messages store.MessageStore
	users    store.UserStore
	tokens   *auth.TokenService
}

func NewHistoryHandler(messages store.MessageStore, users store.UserStore, tokens *auth.TokenService) *HistoryHandler {
	return &HistoryHandler{messages: messages, users: users, tokens: tokens}
}

// Messages returns every message between the authenticated user and
// :userId, oldest first.
func (h *HistoryHandler) Messages(c *gin.Context) {
	me, ok := h.identity(c)
	if !ok {
		return
	}

	other := c.Param("userId")
	msgs, err := h.messages.FindBetween(c.Request.Context(), me.UserID, other)
	if err != nil {
		response.InternalError(c, "could not load messages")
		return
	}

	out := make([]models.OutboundFrame, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.OutboundFrame{
			Text:      m.Text,
			Sender:    m.SenderID,
			Recipient: m.RecipientID,
			File:      m.FileName,
			ID:        m.ID,
		})
	}
	c.JSON(http.StatusOK, out)
}

// People returns every known user for the contact list.
func (h *HistoryHandler) People(c *gin.Context) {
	if _, ok := h.identity(c); !ok {
		return
	}

	users, err := h.users.All(c.Request.Context())
	if err != nil {
		response.InternalError(c, "could not load users")
		return
	}

	out := make([]models.PersonResponse, 0, len(users))
	for _, u := range users {
		out = append(out, models.PersonResponse{ID: u.ID, Username: u.Username})
	}
	c.JSON(http.StatusOK, out)
}

// identity resolves the caller from the token cookie, replying 401 when
// it cannot.
func (h *HistoryHandler) identity(c *gin.Context) (relay.Identity, bool) {
	token, err := c.Cookie("token")
	if err != nil || token == "" {
		response.Unauthorized(c, "no token")
		return relay.Identity{}, false
	}

	id, err := h.tokens.Verify(token)
	if err != nil {
		response.Unauthorized(c, "invalid token")
		return relay.Identity{}, false
	}
	return id, true
}
