package repository

import (
	"context"

	"github.com/nasirmalek/FamilyCircle/internal/models"
)

// PreviewSize is the number of latest messages attached to each chat by
// ChatRepository.ListByFamily.
const PreviewSize = 5

// ChatRepository defines the interface for chat and participant operations
type ChatRepository interface {
	// ListByFamily returns the family's chats that have at least one
	// participant, newest first, with participants and a message preview.
	ListByFamily(ctx context.Context, familyID string) ([]*models.Chat, error)
	GetByID(ctx context.Context, chatID string) (*models.Chat, error)
	CreateDirect(ctx context.Context, familyID string, participantIDs []string) (*models.Chat, error)
	CreateGroup(ctx context.Context, familyID, name string, participantIDs []string) (*models.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
}

// MessageRepository defines the interface for message operations
type MessageRepository interface {
	// ListByChat returns all messages of the chat in ascending creation order.
	ListByChat(ctx context.Context, chatID string) ([]*models.Message, error)
	Create(ctx context.Context, chatID, content, senderID string) (*models.Message, error)
}

// ProfileRepository defines the interface for user profile operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error)
	GetByID(ctx context.Context, id string) (*models.UserProfile, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	Update(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error)
}

// FamilyRepository defines the interface for family data operations
type FamilyRepository interface {
	Create(ctx context.Context, family *models.Family) (*models.Family, error)
	GetByID(ctx context.Context, id string) (*models.Family, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*models.Family, error)
	Update(ctx context.Context, family *models.Family) (*models.Family, error)
	AddMember(ctx context.Context, member *models.FamilyMember) error
	GetMembers(ctx context.Context, familyID string) ([]*models.FamilyMember, error)
	IsMember(ctx context.Context, familyID, userID string) (bool, error)
}
