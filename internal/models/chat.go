package models

import "time"

// ChatType distinguishes unnamed direct chats from named group chats
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// Valid reports whether t is a known chat type.
func (t ChatType) Valid() bool {
	return t == ChatTypeDirect || t == ChatTypeGroup
}

// Chat is a family-scoped conversation. Participants and Messages are only
// populated by the queries that join them; Messages holds a preview of the
// most recent messages in ascending order.
type Chat struct {
	ID           string            `json:"id" db:"id"`
	FamilyID     string            `json:"family_id" db:"family_id"`
	Type         ChatType          `json:"type" db:"type"`
	Name         *string           `json:"name,omitempty" db:"name"`
	AvatarURL    *string           `json:"avatar_url,omitempty" db:"avatar_url"`
	UnreadCount  int               `json:"unread_count" db:"unread_count"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	Participants []ChatParticipant `json:"participants,omitempty"`
	Messages     []Message         `json:"messages,omitempty"`
}

// IsGroup returns true for group chats
func (c *Chat) IsGroup() bool {
	return c.Type == ChatTypeGroup
}

// ExplicitName returns the chat's own name, or "" when it has none.
func (c *Chat) ExplicitName() string {
	if c.Name == nil {
		return ""
	}
	return *c.Name
}

// LastMessage returns the newest message of the preview, or nil.
func (c *Chat) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// ParticipantIDs returns the user ids of all participants in join order.
func (c *Chat) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasParticipant reports whether userID takes part in the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ChatParticipant links a user to a chat. (ChatID, UserID) is unique.
type ChatParticipant struct {
	ChatID string       `json:"chat_id" db:"chat_id"`
	UserID string       `json:"user_id" db:"user_id"`
	User   *UserProfile `json:"user,omitempty"`
}
