package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/telegram"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *FamilyCircle Help*

*Chats:*
• /chats - List family chats, newest first
• /read <n> - Show the latest messages of chat n
• /say <n> <text> - Send a message to chat n

*New chats:*
• /direct @user - Start a direct chat
• /group <name> @user1 @user2 - Start a group chat

_Chat numbers come from the last /chats listing._`

	if err := sendMarkdown(bot, message.Chat.ID, helpText); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"telegram_chat_id": message.Chat.ID,
		"telegram_user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
