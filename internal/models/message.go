package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */
// Message is the durable copy of one relayed chat message.
type Message struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SenderID    string    `gorm:"not null;size:36;index" json:"senderId"`
	RecipientID string    `gorm:"not null;size:36;index" json:"recipientId"`
	Text        string    `gorm:"nullable" json:"text,omitempty"`     // optional
	FileName    string    `gorm:"nullable" json:"fileName,omitempty"` // storage name of the ingested attachment
	CreatedAt   time.Time `json:"createdAt"`
}

/** -------------------- WebSocket frames -------------------- */

// InboundFrame is one client->server message unit.
type InboundFrame struct {
	Recipient string       `json:"recipient"`
	Text      string       `json:"text"`
	File      *InboundFile `json:"file"`
}

// InboundFile carries an inline-encoded attachment, data is
// "<mime-prefix>,<base64-bytes>" as produced by a FileReader data URL.
type InboundFile struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// OutboundFrame is the finalized message unit forwarded to the recipient.
type OutboundFrame struct {
	Text      string `json:"text,omitempty"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	File      string `json:"file,omitempty"`
	ID        string `json:"_id"`
}

// PresenceEntry is one online identity in a presence broadcast.
type PresenceEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// PresenceFrame is broadcast to every live connection whenever the
// set of online identities changes.
type PresenceFrame struct {
	Online []PresenceEntry `json:"online"`
}

// ErrorFrame reports a delivery failure back to the sending connection.
type ErrorFrame struct {
	Error     string `json:"error"`
	Recipient string `json:"recipient,omitempty"`
}
