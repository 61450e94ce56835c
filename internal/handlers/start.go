package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/service"
	"github.com/nasirmalek/FamilyCircle/internal/telegram"
)

// StartHandler handles the /start command. It registers the group as a
// family and the sender as one of its members.
type StartHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{svc: svc, logger: logger}
}

// Handle processes the /start command
func (h *StartHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	sess, err := resolveSession(ctx, h.svc, h.logger, message)
	if err != nil {
		return err
	}

	welcomeText := fmt.Sprintf(`👋 *Welcome to FamilyCircle, %s!*

This group is now the family *%s*. Everyone who sends a command here joins it.

• /chats - List family chats
• /group <name> @user ... - Start a group chat
• /direct @user - Start a direct chat
• /help - Show all commands`, sess.user.DisplayName(), sess.family.Name)

	if err := sendMarkdown(bot, message.Chat.ID, welcomeText); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	sess.log.Info("Sent start message")
	return nil
}
