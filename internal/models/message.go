package models

import "time"

// MessageType tags the kind of content a message carries
type MessageType string

// MessageTypeText is the only type written by the messaging core.
const MessageTypeText MessageType = "text"

// MaxMessageLength is the longest message content accepted, in characters.
const MaxMessageLength = 1000

// Message is a single chat message. Sender is joined from user_profiles and
// is nil when the profile is missing.
type Message struct {
	ID        string       `json:"id" db:"id"`
	ChatID    string       `json:"chat_id" db:"chat_id"`
	SenderID  string       `json:"sender_id" db:"sender_id"`
	Content   string       `json:"content" db:"content"`
	Type      MessageType  `json:"type" db:"type"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	Sender    *UserProfile `json:"sender,omitempty"`
}

// SenderName returns the sender's display name, or "Unknown".
func (m *Message) SenderName() string {
	if name := m.Sender.DisplayName(); name != "" {
		return name
	}
	return "Unknown"
}
