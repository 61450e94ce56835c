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

var chatColumns = []string{"c.id", "c.family_id", "c.type", "c.name", "c.avatar_url", "c.unread_count", "c.created_at"}

type chatRepository struct {
	db *backend.Backend
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *backend.Backend) repository.ChatRepository {
	return &chatRepository{db: db}
}

func scanChat(s backend.RowScanner) (*models.Chat, error) {
	c := &models.Chat{}
	if err := s.Scan(&c.ID, &c.FamilyID, &c.Type, &c.Name, &c.AvatarURL, &c.UnreadCount, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *chatRepository) ListByFamily(ctx context.Context, familyID string) ([]*models.Chat, error) {
	rows, err := r.db.Query(ctx, r.db.Select("chats c", chatColumns...).
		Where(sq.Eq{"c.family_id": familyID}).
		Where("EXISTS (SELECT 1 FROM chat_participants cp WHERE cp.chat_id = c.id)").
		OrderBy("c.created_at DESC", "c.id ASC"))
	if err != nil {
		return nil, models.NewBackendError("list chats", err)
	}

	chats := make([]*models.Chat, 0)
	byID := make(map[string]*models.Chat)
	ids := make([]string, 0)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			rows.Close()
			return nil, models.NewBackendError("scan chat", err)
		}
		chats = append(chats, c)
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, models.NewBackendError("list chats", err)
	}

	if len(ids) == 0 {
		return chats, nil
	}

	if err := loadParticipants(ctx, r.db, byID, ids); err != nil {
		return nil, models.NewBackendError("list chats", err)
	}
	if err := r.loadPreviews(ctx, byID, ids); err != nil {
		return nil, models.NewBackendError("list chats", err)
	}

	return chats, nil
}

func (r *chatRepository) GetByID(ctx context.Context, chatID string) (*models.Chat, error) {
	c, err := getChat(ctx, r.db, chatID)
	if err != nil {
		return nil, models.NewBackendError("get chat", err)
	}
	return c, nil
}

func (r *chatRepository) CreateDirect(ctx context.Context, familyID string, participantIDs []string) (*models.Chat, error) {
	return r.create(ctx, "create direct chat", familyID, models.ChatTypeDirect, nil, participantIDs)
}

func (r *chatRepository) CreateGroup(ctx context.Context, familyID, name string, participantIDs []string) (*models.Chat, error) {
	return r.create(ctx, "create group chat", familyID, models.ChatTypeGroup, &name, participantIDs)
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRow(ctx, r.db.Select("chat_participants", "COUNT(*)").
		Where(sq.Eq{"chat_id": chatID, "user_id": userID})).Scan(&n)
	if err != nil {
		return false, models.NewBackendError("check chat participant", err)
	}
	return n > 0, nil
}

// create inserts the chat row and its participants in one transaction.
func (r *chatRepository) create(ctx context.Context, op, familyID string, chatType models.ChatType, name *string, participantIDs []string) (*models.Chat, error) {
	chatID := uuid.NewString()

	var chat *models.Chat
	err := r.db.InTx(ctx, func(tx *backend.Backend) error {
		_, err := tx.Exec(ctx, tx.Insert("chats", backend.Row{
			"id":         chatID,
			"family_id":  familyID,
			"type":       chatType,
			"name":       name,
			"created_at": now(),
		}))
		if err != nil {
			return err
		}

		if len(participantIDs) > 0 {
			rows := make([]backend.Row, 0, len(participantIDs))
			for i, userID := range participantIDs {
				rows = append(rows, backend.Row{
					"chat_id":  chatID,
					"user_id":  userID,
					"position": i,
				})
			}
			if _, err := tx.Exec(ctx, tx.Insert("chat_participants", rows...)); err != nil {
				return err
			}
		}

		chat, err = getChat(ctx, tx, chatID)
		return err
	})
	if err != nil {
		if errors.Is(err, backend.ErrRollback) {
			return nil, &models.PartialWriteError{ChatID: chatID, Err: models.NewBackendError(op, err)}
		}
		return nil, models.NewBackendError(op, err)
	}

	return chat, nil
}

func getChat(ctx context.Context, db *backend.Backend, chatID string) (*models.Chat, error) {
	c, err := scanChat(db.QueryRow(ctx, db.Select("chats c", chatColumns...).Where(sq.Eq{"c.id": chatID})))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	if err := loadParticipants(ctx, db, map[string]*models.Chat{c.ID: c}, []string{c.ID}); err != nil {
		return nil, err
	}
	return c, nil
}

// loadParticipants attaches participants, joined with their profiles, to
// the chats in byID.
func loadParticipants(ctx context.Context, db *backend.Backend, byID map[string]*models.Chat, ids []string) error {
	cols := append([]string{"cp.chat_id", "cp.user_id"}, profileColumns("up")...)
	rows, err := db.Query(ctx, db.Select("chat_participants cp", cols...).
		LeftJoin("user_profiles up ON up.id = cp.user_id").
		Where(sq.Eq{"cp.chat_id": ids}).
		OrderBy("cp.chat_id", "cp.position ASC", "cp.user_id ASC"))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.ChatParticipant
		var up joinedProfile
		dest := append([]any{&p.ChatID, &p.UserID}, up.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		p.User = up.profile()
		if c, ok := byID[p.ChatID]; ok {
			c.Participants = append(c.Participants, p)
		}
	}
	return rows.Err()
}

// loadPreviews attaches the latest repository.PreviewSize messages of each
// chat in ascending order.
func (r *chatRepository) loadPreviews(ctx context.Context, byID map[string]*models.Chat, ids []string) error {
	ranked := sq.Select("id", "ROW_NUMBER() OVER (PARTITION BY chat_id ORDER BY created_at DESC, id DESC) AS rn").
		From("messages").
		Where(sq.Eq{"chat_id": ids})
	latest := sq.Select("ranked.id").
		FromSelect(ranked, "ranked").
		Where(sq.LtOrEq{"ranked.rn": repository.PreviewSize})

	rows, err := r.db.Query(ctx, selectMessages(r.db).
		Where(sq.Expr("m.id IN (?)", latest)).
		OrderBy("m.chat_id", "m.created_at ASC", "m.id ASC"))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return err
		}
		if c, ok := byID[m.ChatID]; ok {
			c.Messages = append(c.Messages, *m)
		}
	}
	return rows.Err()
}
