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

type messageRepository struct {
	db *backend.Backend
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *backend.Backend) repository.MessageRepository {
	return &messageRepository{db: db}
}

// selectMessages reads messages under alias m joined with the sender profile.
func selectMessages(db *backend.Backend) sq.SelectBuilder {
	cols := append([]string{"m.id", "m.chat_id", "m.sender_id", "m.content", "m.type", "m.created_at"}, profileColumns("up")...)
	return db.Select("messages m", cols...).
		LeftJoin("user_profiles up ON up.id = m.sender_id")
}

func scanMessage(s backend.RowScanner) (*models.Message, error) {
	m := &models.Message{}
	var p joinedProfile
	dest := append([]any{&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Type, &m.CreatedAt}, p.dest()...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	m.Sender = p.profile()
	return m, nil
}

func (r *messageRepository) ListByChat(ctx context.Context, chatID string) ([]*models.Message, error) {
	rows, err := r.db.Query(ctx, selectMessages(r.db).
		Where(sq.Eq{"m.chat_id": chatID}).
		OrderBy("m.created_at ASC", "m.id ASC"))
	if err != nil {
		return nil, models.NewBackendError("list messages", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, models.NewBackendError("scan message", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewBackendError("list messages", err)
	}

	return messages, nil
}

// Create inserts a text message. Content is stored as given.
func (r *messageRepository) Create(ctx context.Context, chatID, content, senderID string) (*models.Message, error) {
	id := uuid.NewString()

	_, err := r.db.Exec(ctx, r.db.Insert("messages", backend.Row{
		"id":         id,
		"chat_id":    chatID,
		"sender_id":  senderID,
		"content":    content,
		"type":       models.MessageTypeText,
		"created_at": now(),
	}))
	if err != nil {
		return nil, models.NewBackendError("send message", err)
	}

	m, err := scanMessage(r.db.QueryRow(ctx, selectMessages(r.db).Where(sq.Eq{"m.id": id})))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = models.ErrNotFound
		}
		return nil, models.NewBackendError("send message", err)
	}

	return m, nil
}
