package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/metrics"
	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/repository"
)

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the application. Every operation takes
// explicit family and user ids; there is no ambient session.
type Service struct {
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	Chats    repository.ChatRepository
	Messages repository.MessageRepository
	Profiles repository.ProfileRepository
	Families repository.FamilyRepository
}

// New creates a new Service with all required dependencies. m may be nil.
func New(logger *logrus.Logger, m *metrics.Metrics,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	profiles repository.ProfileRepository,
	families repository.FamilyRepository,
) *Service {
	return &Service{
		logger: logger, metrics: m,
		Chats: chats, Messages: messages,
		Profiles: profiles, Families: families,
	}
}

// ListChats returns the family's chats viewerID takes part in, newest
// first, each with participants and a preview of its latest messages.
func (s *Service) ListChats(ctx context.Context, familyID, viewerID string) ([]*models.Chat, error) {
	chats, err := s.Chats.ListByFamily(ctx, familyID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"family_id": familyID,
			"user_id":   viewerID,
		}).Errorf("Failed to list chats: %v", err)
		return nil, err
	}

	visible := make([]*models.Chat, 0, len(chats))
	for _, c := range chats {
		if c.HasParticipant(viewerID) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// GetChat returns a chat with its participants.
func (s *Service) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	chat, err := s.Chats.GetByID(ctx, chatID)
	if err != nil {
		if !models.IsNotFound(err) {
			s.logger.WithField("chat_id", chatID).Errorf("Failed to load chat: %v", err)
		}
		return nil, err
	}
	return chat, nil
}

// ListMessages returns the chat's messages, oldest first.
func (s *Service) ListMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	messages, err := s.Messages.ListByChat(ctx, chatID)
	if err != nil {
		s.logger.WithField("chat_id", chatID).Errorf("Failed to list messages: %v", err)
		return nil, err
	}
	return messages, nil
}

// SendMessage posts content to the chat as senderID. Content is trimmed and
// must hold between 1 and models.MaxMessageLength characters.
func (s *Service) SendMessage(ctx context.Context, chatID, content, senderID string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("content", "Message cannot be empty")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, models.NewValidationError("content",
			fmt.Sprintf("Message cannot be longer than %d characters", models.MaxMessageLength))
	}

	msg, err := s.Messages.Create(ctx, chatID, content, senderID)
	s.metrics.MessageSent(err)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"user_id": senderID,
		}).Errorf("Failed to send message: %v", err)
		return nil, err
	}

	return msg, nil
}

// ListMembers returns the members of a family with their profiles.
func (s *Service) ListMembers(ctx context.Context, familyID string) ([]*models.FamilyMember, error) {
	members, err := s.Families.GetMembers(ctx, familyID)
	if err != nil {
		s.logger.WithField("family_id", familyID).Errorf("Failed to list family members: %v", err)
		return nil, err
	}
	return members, nil
}

// IsFamilyMember reports whether userID belongs to familyID.
func (s *Service) IsFamilyMember(ctx context.Context, familyID, userID string) (bool, error) {
	return s.Families.IsMember(ctx, familyID, userID)
}

// IsChatParticipant reports whether userID takes part in chatID.
func (s *Service) IsChatParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	return s.Chats.IsParticipant(ctx, chatID, userID)
}

// EnsureUser retrieves an existing profile by Telegram ID, or creates a new
// one if not found. If the profile exists but the Telegram name has changed,
// it updates the record.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.UserProfile, error) {
	name := telegramName(username, firstName, lastName)

	profile, err := s.Profiles.GetByTelegramID(ctx, telegramID)
	if err != nil && !models.IsNotFound(err) {
		return nil, fmt.Errorf("failed to lookup user (telegram_id=%d): %w", telegramID, err)
	}
	if profile == nil {
		profile, err = s.Profiles.Create(ctx, &models.UserProfile{
			Username:   name,
			TelegramID: &telegramID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user (telegram_id=%d): %w", telegramID, err)
		}
		s.logger.Infof("Created new user: %s (telegram_id=%d)", profile.DisplayName(), telegramID)
		return profile, nil
	}

	if name != "" && profile.Username != name {
		profile.Username = name
		if _, err := s.Profiles.Update(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to update user (telegram_id=%d): %w", telegramID, err)
		}
		s.logger.Infof("Updated user profile: %s (telegram_id=%d)", profile.DisplayName(), telegramID)
	}

	return profile, nil
}

// telegramName prefers the @username and falls back to the full name.
func telegramName(username, firstName, lastName string) string {
	if username = strings.TrimSpace(username); username != "" {
		return username
	}
	return strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
}

// EnsureFamily retrieves the family bound to a Telegram group, or creates a
// new one if it does not exist. If the group title has changed, the family
// name is updated accordingly.
func (s *Service) EnsureFamily(ctx context.Context, telegramChatID int64, chatTitle string) (*models.Family, error) {
	chatTitle = strings.TrimSpace(chatTitle)

	family, err := s.Families.GetByTelegramChatID(ctx, telegramChatID)
	if err != nil && !models.IsNotFound(err) {
		return nil, fmt.Errorf("failed to lookup family (chat_id=%d): %w", telegramChatID, err)
	}
	if family == nil {
		family, err = s.Families.Create(ctx, &models.Family{
			Name:           chatTitle,
			TelegramChatID: &telegramChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create family for chat %d: %w", telegramChatID, err)
		}
		s.logger.Infof("Created new family: %q (chat_id=%d)", chatTitle, telegramChatID)
		return family, nil
	}

	if chatTitle != "" && family.Name != chatTitle {
		family.Name = chatTitle
		if _, err := s.Families.Update(ctx, family); err != nil {
			return nil, fmt.Errorf("failed to update family %s: %w", family.ID, err)
		}
		s.logger.Infof("Updated family name to %q (family_id=%s)", chatTitle, family.ID)
	}

	return family, nil
}

// EnsureFamilyMember makes sure the given user is a member of the family.
// If the user is already a member, this is a no-op. New members are added
// with the "member" role.
func (s *Service) EnsureFamilyMember(ctx context.Context, familyID, userID string) error {
	ok, err := s.Families.IsMember(ctx, familyID, userID)
	if err != nil {
		return fmt.Errorf("failed to check membership of %s in family %s: %w", userID, familyID, err)
	}
	if ok {
		return nil
	}

	if err := s.Families.AddMember(ctx, &models.FamilyMember{
		FamilyID: familyID,
		UserID:   userID,
		Role:     models.RoleMember,
	}); err != nil {
		return fmt.Errorf("failed to add user %s to family %s: %w", userID, familyID, err)
	}

	s.logger.Infof("Added user %s to family %s", userID, familyID)
	return nil
}
