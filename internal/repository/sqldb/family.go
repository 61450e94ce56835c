package sqldb

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/nasirmalek/FamilyCircle/internal/backend"
	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/repository"
)

type familyRepository struct {
	db *backend.Backend
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *backend.Backend) repository.FamilyRepository {
	return &familyRepository{db: db}
}

func (r *familyRepository) Create(ctx context.Context, family *models.Family) (*models.Family, error) {
	if family.ID == "" {
		family.ID = uuid.NewString()
	}
	ts := now()
	family.CreatedAt = ts
	family.UpdatedAt = ts

	_, err := r.db.Exec(ctx, r.db.Insert("families", backend.Row{
		"id":               family.ID,
		"name":             family.Name,
		"telegram_chat_id": family.TelegramChatID,
		"created_at":       family.CreatedAt,
		"updated_at":       family.UpdatedAt,
	}))
	if err != nil {
		return nil, models.NewBackendError("create family", err)
	}

	return family, nil
}

func (r *familyRepository) GetByID(ctx context.Context, id string) (*models.Family, error) {
	return r.getOne(ctx, "get family", sq.Eq{"id": id})
}

func (r *familyRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*models.Family, error) {
	return r.getOne(ctx, "get family by telegram chat ID", sq.Eq{"telegram_chat_id": chatID})
}

func (r *familyRepository) Update(ctx context.Context, family *models.Family) (*models.Family, error) {
	family.UpdatedAt = now()

	res, err := r.db.Exec(ctx, r.db.Update("families", backend.Row{
		"name":             family.Name,
		"telegram_chat_id": family.TelegramChatID,
		"updated_at":       family.UpdatedAt,
	}, sq.Eq{"id": family.ID}))
	if err != nil {
		return nil, models.NewBackendError("update family", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, models.NewBackendError("update family", models.ErrNotFound)
	}

	return family, nil
}

// AddMember inserts the membership or updates role and relation of an
// existing one. joined_at is set by the database on first insert only.
func (r *familyRepository) AddMember(ctx context.Context, member *models.FamilyMember) error {
	if member.Role == "" {
		member.Role = models.RoleMember
	}

	_, err := r.db.Exec(ctx, r.db.Upsert("family_members", []backend.Row{{
		"family_id": member.FamilyID,
		"user_id":   member.UserID,
		"role":      member.Role,
		"relation":  member.Relation,
	}}, "family_id", "user_id"))
	if err != nil {
		return models.NewBackendError("add family member", err)
	}

	return nil
}

func (r *familyRepository) GetMembers(ctx context.Context, familyID string) ([]*models.FamilyMember, error) {
	cols := append([]string{"fm.family_id", "fm.user_id", "fm.role", "fm.relation", "fm.joined_at"}, profileColumns("up")...)
	rows, err := r.db.Query(ctx, r.db.Select("family_members fm", cols...).
		LeftJoin("user_profiles up ON up.id = fm.user_id").
		Where(sq.Eq{"fm.family_id": familyID}).
		OrderBy("fm.joined_at ASC", "fm.user_id ASC"))
	if err != nil {
		return nil, models.NewBackendError("list family members", err)
	}
	defer rows.Close()

	members := make([]*models.FamilyMember, 0)
	for rows.Next() {
		m := &models.FamilyMember{}
		var p joinedProfile
		dest := append([]any{&m.FamilyID, &m.UserID, &m.Role, &m.Relation, &m.JoinedAt}, p.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, models.NewBackendError("scan family member", err)
		}
		m.User = p.profile()
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewBackendError("list family members", err)
	}

	return members, nil
}

func (r *familyRepository) IsMember(ctx context.Context, familyID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRow(ctx, r.db.Select("family_members", "COUNT(*)").
		Where(sq.Eq{"family_id": familyID, "user_id": userID})).Scan(&n)
	if err != nil {
		return false, models.NewBackendError("check family membership", err)
	}
	return n > 0, nil
}

func (r *familyRepository) getOne(ctx context.Context, op string, filter sq.Sqlizer) (*models.Family, error) {
	family := &models.Family{}
	err := r.db.QueryRow(ctx, r.db.Select("families", "id", "name", "telegram_chat_id", "created_at", "updated_at").
		Where(filter).Limit(1)).Scan(
		&family.ID,
		&family.Name,
		&family.TelegramChatID,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewBackendError(op, models.ErrNotFound)
		}
		return nil, models.NewBackendError(op, err)
	}

	return family, nil
}
