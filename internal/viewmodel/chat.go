// Package viewmodel derives display data for the chat list and chat detail
// screens. Everything here is pure: no I/O and no clock reads.
package viewmodel

import (
	"fmt"
	"strings"
	"time"

	"github.com/nasirmalek/FamilyCircle/internal/models"
)

// NoMessagesPlaceholder is shown for chats without messages.
const NoMessagesPlaceholder = "No messages yet"

// UnknownName is shown when no name can be derived.
const UnknownName = "Unknown"

// DisplayName returns the chat's explicit name, or the names of its
// participants except viewerName joined with ", ".
func DisplayName(chat *models.Chat, viewerName string) string {
	if name := chat.ExplicitName(); name != "" {
		return name
	}
	return strings.Join(participantNames(chat, viewerName), ", ")
}

func participantNames(chat *models.Chat, exclude string) []string {
	names := make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		name := p.User.DisplayName()
		if name == "" || (exclude != "" && name == exclude) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// LastMessagePreview returns the content of the newest preview message.
func LastMessagePreview(chat *models.Chat) string {
	if m := chat.LastMessage(); m != nil && m.Content != "" {
		return m.Content
	}
	return NoMessagesPlaceholder
}

// UnreadCount returns the chat's stored unread counter as is.
func UnreadCount(chat *models.Chat) int {
	return chat.UnreadCount
}

// ChatListItem is one row of the chat list.
type ChatListItem struct {
	ChatID      string          `json:"chat_id"`
	Type        models.ChatType `json:"type"`
	Name        string          `json:"name"`
	Avatar      Avatar          `json:"avatar"`
	LastMessage string          `json:"last_message"`
	Timestamp   string          `json:"timestamp,omitempty"`
	UnreadCount int             `json:"unread_count"`
}

// BuildChatList maps chats to list rows in the given order.
func BuildChatList(chats []*models.Chat, viewerName string, now time.Time) []ChatListItem {
	items := make([]ChatListItem, 0, len(chats))
	for _, c := range chats {
		name := DisplayName(c, viewerName)
		item := ChatListItem{
			ChatID:      c.ID,
			Type:        c.Type,
			Name:        name,
			Avatar:      ResolveAvatar(c.AvatarURL, name),
			LastMessage: LastMessagePreview(c),
			UnreadCount: UnreadCount(c),
		}
		if m := c.LastMessage(); m != nil {
			item.Timestamp = FormatTimestamp(m.CreatedAt, now)
		}
		items = append(items, item)
	}
	return items
}

// Header is the top bar of an open chat.
type Header struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Avatar   Avatar `json:"avatar"`
}

// BuildHeader returns the detail header for chat. Groups show their member
// count, direct chats show "Active".
func BuildHeader(chat *models.Chat) Header {
	names := participantNames(chat, "")

	title := chat.ExplicitName()
	if title == "" {
		title = strings.Join(names, ", ")
	}
	if title == "" {
		title = UnknownName
	}

	subtitle := "Active"
	if chat.IsGroup() {
		subtitle = fmt.Sprintf("%d members", len(names))
	}

	return Header{
		Title:    title,
		Subtitle: subtitle,
		Avatar:   ResolveAvatar(chat.AvatarURL, title),
	}
}
