package models

import "time"

// UserProfile is the public profile of an app user. Profiles are owned by
// the account collaborator; messaging only reads them, except for the
// Telegram bootstrap which creates profiles for group members.
type UserProfile struct {
	ID         string    `json:"id" db:"id"`
	Username   string    `json:"username" db:"username"`
	Email      string    `json:"email" db:"email"`
	AvatarURL  *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	TelegramID *int64    `json:"-" db:"telegram_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the best display name for the profile
func (u *UserProfile) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
