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

var profileSelectColumns = []string{"id", "username", "email", "avatar_url", "telegram_id", "created_at", "updated_at"}

type profileRepository struct {
	db *backend.Backend
}

// NewProfileRepository creates a new user profile repository
func NewProfileRepository(db *backend.Backend) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	ts := now()
	profile.CreatedAt = ts
	profile.UpdatedAt = ts

	_, err := r.db.Exec(ctx, r.db.Insert("user_profiles", backend.Row{
		"id":          profile.ID,
		"username":    profile.Username,
		"email":       profile.Email,
		"avatar_url":  profile.AvatarURL,
		"telegram_id": profile.TelegramID,
		"created_at":  profile.CreatedAt,
		"updated_at":  profile.UpdatedAt,
	}))
	if err != nil {
		return nil, models.NewBackendError("create profile", err)
	}

	return profile, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.UserProfile, error) {
	return r.getOne(ctx, "get profile", sq.Eq{"id": id})
}

func (r *profileRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.UserProfile, error) {
	return r.getOne(ctx, "get profile by telegram ID", sq.Eq{"telegram_id": telegramID})
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	return r.getOne(ctx, "get profile by username", sq.Eq{"username": username})
}

func (r *profileRepository) Update(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error) {
	profile.UpdatedAt = now()

	res, err := r.db.Exec(ctx, r.db.Update("user_profiles", backend.Row{
		"username":    profile.Username,
		"email":       profile.Email,
		"avatar_url":  profile.AvatarURL,
		"telegram_id": profile.TelegramID,
		"updated_at":  profile.UpdatedAt,
	}, sq.Eq{"id": profile.ID}))
	if err != nil {
		return nil, models.NewBackendError("update profile", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, models.NewBackendError("update profile", models.ErrNotFound)
	}

	return profile, nil
}

func (r *profileRepository) getOne(ctx context.Context, op string, filter sq.Sqlizer) (*models.UserProfile, error) {
	profile := &models.UserProfile{}
	err := r.db.QueryRow(ctx, r.db.Select("user_profiles", profileSelectColumns...).Where(filter).Limit(1)).Scan(
		&profile.ID,
		&profile.Username,
		&profile.Email,
		&profile.AvatarURL,
		&profile.TelegramID,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewBackendError(op, models.ErrNotFound)
		}
		return nil, models.NewBackendError(op, err)
	}

	return profile, nil
}
