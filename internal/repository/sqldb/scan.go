// Package sqldb implements the repositories on the generic SQL backend.
package sqldb

import (
	"database/sql"
	"time"

	"github.com/nasirmalek/FamilyCircle/internal/models"
)

// profileColumns lists the user_profiles columns read through a LEFT JOIN
// under alias.
func profileColumns(alias string) []string {
	return []string{
		alias + ".id",
		alias + ".username",
		alias + ".email",
		alias + ".avatar_url",
		alias + ".created_at",
		alias + ".updated_at",
	}
}

// joinedProfile receives a profile that may be missing from a LEFT JOIN.
type joinedProfile struct {
	id        sql.NullString
	username  sql.NullString
	email     sql.NullString
	avatarURL sql.NullString
	createdAt sql.NullTime
	updatedAt sql.NullTime
}

func (p *joinedProfile) dest() []any {
	return []any{&p.id, &p.username, &p.email, &p.avatarURL, &p.createdAt, &p.updatedAt}
}

func (p *joinedProfile) profile() *models.UserProfile {
	if !p.id.Valid {
		return nil
	}
	u := &models.UserProfile{
		ID:        p.id.String,
		Username:  p.username.String,
		Email:     p.email.String,
		CreatedAt: p.createdAt.Time,
		UpdatedAt: p.updatedAt.Time,
	}
	if p.avatarURL.Valid {
		avatar := p.avatarURL.String
		u.AvatarURL = &avatar
	}
	return u
}

func now() time.Time {
	return time.Now().UTC()
}
