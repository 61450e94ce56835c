package viewmodel

import "github.com/nasirmalek/FamilyCircle/internal/models"

// Bubble is one rendered message of the detail view.
type Bubble struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Avatar     Avatar `json:"avatar"`
	IsOwn      bool   `json:"is_own"`
	ShowAvatar bool   `json:"show_avatar"`
	Time       string `json:"time"`
}

// BuildBubbles renders messages for viewerID. The avatar and sender name are
// shown on the first message of each run from the same sender.
func BuildBubbles(messages []*models.Message, viewerID string) []Bubble {
	bubbles := make([]Bubble, 0, len(messages))
	for i, m := range messages {
		name := m.SenderName()
		var avatarURL *string
		if m.Sender != nil {
			avatarURL = m.Sender.AvatarURL
		}
		bubbles = append(bubbles, Bubble{
			ID:         m.ID,
			Content:    m.Content,
			SenderID:   m.SenderID,
			SenderName: name,
			Avatar:     ResolveAvatar(avatarURL, name),
			IsOwn:      m.SenderID == viewerID,
			ShowAvatar: i == 0 || messages[i-1].SenderID != m.SenderID,
			Time:       FormatMessageTime(m.CreatedAt),
		})
	}
	return bubbles
}
