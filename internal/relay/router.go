package relay

import (
	"context"
	"log/slog"

	"chat-relay/internal/models"
)

// MessageStore is the durable message collaborator. It assigns the
// record identifier on create.
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
}

// EventPublisher receives a copy of every persisted envelope for
// downstream consumers. Best effort; failures never block the relay.
type EventPublisher interface {
	Publish(msg *models.Message) error
}

// Router validates inbound envelopes, persists them, and fans them out
// to the recipient's live connections. It is called synchronously from
// each connection's read loop, which gives per-connection ordering for
// free: an envelope is persisted and forwarded before the next one from
// the same connection is even read.
type Router struct {
	registry *Registry
	store    MessageStore
	ingestor *Ingestor
	events   EventPublisher // optional
	logger   *slog.Logger
}

func NewRouter(registry *Registry, store MessageStore, ingestor *Ingestor, events EventPublisher, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		store:    store,
		ingestor: ingestor,
		events:   events,
		logger:   logger,
	}
}

// Route relays one envelope from the connection behind sender.
// Malformed envelopes are dropped without client feedback. The sender
// identity comes exclusively from the registry binding; anything the
// payload claims about its sender is ignored.
func (rt *Router) Route(ctx context.Context, sender Handle, frame models.InboundFrame) {
	id, bound := rt.registry.IdentityOf(sender)
	if !bound {
		rt.logger.Debug("dropping envelope from unbound connection", "handle", sender)
		return
	}
	if frame.Recipient == "" {
		rt.logger.Debug("dropping envelope without recipient", "userID", id.UserID)
		return
	}

	fileName := ""
	if frame.File != nil {
		name, err := rt.ingestor.Ingest(ctx, frame.File.Name, frame.File.Data)
		if err != nil {
			// The attachment is lost but any accompanying text still relays.
			rt.logger.Warn("attachment ingest failed", "userID", id.UserID, "file", frame.File.Name, "error", err)
		} else {
			fileName = name
		}
	}

	if frame.Text == "" && fileName == "" {
		rt.logger.Debug("dropping empty envelope", "userID", id.UserID)
		return
	}

	msg := &models.Message{
		SenderID:    id.UserID,
		RecipientID: frame.Recipient,
		Text:        frame.Text,
		FileName:    fileName,
	}
	if err := rt.store.Create(ctx, msg); err != nil {
		// Without a durable record there is nothing to forward; tell the
		// sender instead of silently losing the message.
		rt.logger.Error("message persist failed", "userID", id.UserID, "recipient", frame.Recipient, "error", err)
		rt.registry.Reply(sender, models.ErrorFrame{
			Error:     "message could not be delivered",
			Recipient: frame.Recipient,
		})
		return
	}

	if rt.events != nil {
		if err := rt.events.Publish(msg); err != nil {
			rt.logger.Warn("event publish failed", "messageID", msg.ID, "error", err)
		}
	}

	delivered := rt.registry.SendTo(frame.Recipient, models.OutboundFrame{
		Text:      msg.Text,
		Sender:    msg.SenderID,
		Recipient: msg.RecipientID,
		File:      msg.FileName,
		ID:        msg.ID,
	})
	if delivered == 0 {
		// Recipient offline; the persisted record is the durable fallback.
		rt.logger.Debug("recipient offline", "recipient", frame.Recipient, "messageID", msg.ID)
	}
}
