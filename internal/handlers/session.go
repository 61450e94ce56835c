package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/service"
	"github.com/nasirmalek/FamilyCircle/internal/telegram"
)

// session is the caller of a command resolved to app records: the Telegram
// user as a profile and the Telegram group as a family.
type session struct {
	user   *models.UserProfile
	family *models.Family
	log    *logrus.Entry
}

// resolveSession ensures the sender, the group's family and the membership
// between them exist.
func resolveSession(ctx context.Context, svc *service.Service, logger *logrus.Logger, message *tgbotapi.Message) (*session, error) {
	user, err := svc.EnsureUser(ctx, message.From.ID, message.From.UserName, message.From.FirstName, message.From.LastName)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	chatTitle := message.Chat.Title
	if chatTitle == "" {
		chatTitle = message.From.FirstName + "'s family"
	}
	family, err := svc.EnsureFamily(ctx, message.Chat.ID, chatTitle)
	if err != nil {
		return nil, fmt.Errorf("ensure family: %w", err)
	}
	if err := svc.EnsureFamilyMember(ctx, family.ID, user.ID); err != nil {
		return nil, fmt.Errorf("ensure family member: %w", err)
	}

	return &session{
		user:   user,
		family: family,
		log: logger.WithFields(logrus.Fields{
			"family_id": family.ID,
			"user_id":   user.ID,
		}),
	}, nil
}

func send(bot telegram.Sender, chatID int64, text string) error {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func sendMarkdown(bot telegram.Sender, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
