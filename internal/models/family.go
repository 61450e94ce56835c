package models

import "time"

// Family member roles
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Family is the tenant scope that owns chats and members. A family can be
// bound to a Telegram group chat.
type Family struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	TelegramChatID *int64    `json:"-" db:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// FamilyMember represents the join table between families and users
type FamilyMember struct {
	FamilyID string       `json:"family_id" db:"family_id"`
	UserID   string       `json:"user_id" db:"user_id"`
	Role     string       `json:"role" db:"role"`
	Relation string       `json:"relation,omitempty" db:"relation"`
	JoinedAt time.Time    `json:"joined_at" db:"joined_at"`
	User     *UserProfile `json:"user,omitempty"`
}

// Name returns the member's display name, or "Unknown" without a profile.
func (m *FamilyMember) Name() string {
	if name := m.User.DisplayName(); name != "" {
		return name
	}
	return "Unknown"
}
