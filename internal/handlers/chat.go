package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/chatview"
	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/service"
	"github.com/nasirmalek/FamilyCircle/internal/telegram"
	"github.com/nasirmalek/FamilyCircle/internal/viewmodel"
)

// readLimit is the number of messages shown by /read.
const readLimit = 10

// chatByNumber returns the n-th chat (1-based) of the viewer's listing.
func chatByNumber(ctx context.Context, svc *service.Service, familyID, viewerID, arg string) (*models.Chat, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return nil, models.NewValidationError("n", fmt.Sprintf("%q is not a chat number", arg))
	}
	chats, err := svc.ListChats(ctx, familyID, viewerID)
	if err != nil {
		return nil, err
	}
	if n > len(chats) {
		return nil, models.NewValidationError("n", fmt.Sprintf("There is no chat #%d, see /chats", n))
	}
	return chats[n-1], nil
}

// replyValidation sends a validation message to the user and reports
// whether err was one.
func replyValidation(bot telegram.Sender, chatID int64, err error) (bool, error) {
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		return false, nil
	}
	return true, send(bot, chatID, "❌ "+ve.Message)
}

// ---------------------------------------------------------------------------
// ChatsHandler – /chats
// ---------------------------------------------------------------------------

// ChatsHandler lists the sender's chats in the family, newest first.
type ChatsHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewChatsHandler creates a new ChatsHandler.
func NewChatsHandler(svc *service.Service, logger *logrus.Logger) *ChatsHandler {
	return &ChatsHandler{svc: svc, logger: logger}
}

// Handle processes the /chats command.
func (h *ChatsHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	sess, err := resolveSession(ctx, h.svc, h.logger, message)
	if err != nil {
		return err
	}

	chats, err := h.svc.ListChats(ctx, sess.family.ID, sess.user.ID)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if len(chats) == 0 {
		return send(bot, message.Chat.ID, "💬 No chats yet. Start one with /group or /direct.")
	}

	var sb strings.Builder
	sb.WriteString("💬 Family chats\n")
	for i, item := range viewmodel.BuildChatList(chats, sess.user.DisplayName(), time.Now()) {
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, item.Name))
		if item.Timestamp != "" {
			sb.WriteString(" · " + item.Timestamp)
		}
		if item.UnreadCount > 0 {
			sb.WriteString(fmt.Sprintf(" (%d)", item.UnreadCount))
		}
		sb.WriteString("\n   " + item.LastMessage)
	}

	sess.log.WithField("chats", len(chats)).Debug("Listed chats")
	return send(bot, message.Chat.ID, sb.String())
}

// ---------------------------------------------------------------------------
// ReadHandler – /read <n>
// ---------------------------------------------------------------------------

// ReadHandler shows the latest messages of a chat the sender takes part in.
type ReadHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewReadHandler creates a new ReadHandler.
func NewReadHandler(svc *service.Service, logger *logrus.Logger) *ReadHandler {
	return &ReadHandler{svc: svc, logger: logger}
}

// Handle processes the /read command.
func (h *ReadHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return send(bot, message.Chat.ID, "❌ Usage: /read <n>")
	}

	sess, err := resolveSession(ctx, h.svc, h.logger, message)
	if err != nil {
		return err
	}

	chat, err := chatByNumber(ctx, h.svc, sess.family.ID, sess.user.ID, args[0])
	if handled, sendErr := replyValidation(bot, message.Chat.ID, err); handled {
		return sendErr
	}
	if err != nil {
		return fmt.Errorf("find chat: %w", err)
	}
	if ok, err := h.svc.IsChatParticipant(ctx, chat.ID, sess.user.ID); err != nil {
		return fmt.Errorf("check participant: %w", err)
	} else if !ok {
		return send(bot, message.Chat.ID, "🔒 You are not a participant of this chat.")
	}

	messages, err := h.svc.ListMessages(ctx, chat.ID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	header := viewmodel.BuildHeader(chat)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💬 %s · %s\n", header.Title, header.Subtitle))
	if len(messages) == 0 {
		sb.WriteString("\n" + viewmodel.NoMessagesPlaceholder)
	}
	if len(messages) > readLimit {
		messages = messages[len(messages)-readLimit:]
	}
	for _, b := range viewmodel.BuildBubbles(messages, sess.user.ID) {
		name := b.SenderName
		if b.IsOwn {
			name = "You"
		}
		sb.WriteString(fmt.Sprintf("\n[%s] %s: %s", b.Time, name, b.Content))
	}

	return send(bot, message.Chat.ID, sb.String())
}

// ---------------------------------------------------------------------------
// SayHandler – /say <n> <text>
// ---------------------------------------------------------------------------

// SayHandler sends a message to a chat the sender takes part in.
type SayHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewSayHandler creates a new SayHandler.
func NewSayHandler(svc *service.Service, logger *logrus.Logger) *SayHandler {
	return &SayHandler{svc: svc, logger: logger}
}

// Handle processes the /say command.
func (h *SayHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	// keep the text exactly as typed after the chat number
	number, text, _ := strings.Cut(strings.TrimSpace(message.CommandArguments()), " ")
	if number == "" || strings.TrimSpace(text) == "" {
		return send(bot, message.Chat.ID, "❌ Usage: /say <n> <text>")
	}

	sess, err := resolveSession(ctx, h.svc, h.logger, message)
	if err != nil {
		return err
	}

	chat, err := chatByNumber(ctx, h.svc, sess.family.ID, sess.user.ID, number)
	if handled, sendErr := replyValidation(bot, message.Chat.ID, err); handled {
		return sendErr
	}
	if err != nil {
		return fmt.Errorf("find chat: %w", err)
	}
	if ok, err := h.svc.IsChatParticipant(ctx, chat.ID, sess.user.ID); err != nil {
		return fmt.Errorf("check participant: %w", err)
	} else if !ok {
		return send(bot, message.Chat.ID, "🔒 You are not a participant of this chat.")
	}

	msg, err := h.svc.SendMessage(ctx, chat.ID, text, sess.user.ID)
	if handled, sendErr := replyValidation(bot, message.Chat.ID, err); handled {
		return sendErr
	}
	if err != nil {
		return send(bot, message.Chat.ID, "❌ "+chatview.SendFailedMessage)
	}

	sess.log.WithFields(logrus.Fields{
		"chat_id":    chat.ID,
		"message_id": msg.ID,
	}).Info("Message sent from Telegram")

	return send(bot, message.Chat.ID, fmt.Sprintf("✅ Sent to %s", viewmodel.BuildHeader(chat).Title))
}

// ---------------------------------------------------------------------------
// DirectHandler – /direct @user, GroupHandler – /group <name> @u1 @u2
// ---------------------------------------------------------------------------

// lookupMembers resolves @handles to profile ids of family members. The
// returned string names the first handle that could not be resolved.
func lookupMembers(ctx context.Context, svc *service.Service, familyID string, handles []string) ([]string, string, error) {
	ids := make([]string, 0, len(handles))
	for _, handle := range handles {
		profile, err := svc.Profiles.GetByUsername(ctx, strings.TrimPrefix(handle, "@"))
		if models.IsNotFound(err) {
			return nil, handle, nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("lookup %s: %w", handle, err)
		}
		ok, err := svc.IsFamilyMember(ctx, familyID, profile.ID)
		if err != nil {
			return nil, "", fmt.Errorf("check member %s: %w", handle, err)
		}
		if !ok {
			return nil, handle, nil
		}
		ids = append(ids, profile.ID)
	}
	return ids, "", nil
}

// createChat runs the creation flow for a Telegram command and replies
// with the outcome.
func createChat(ctx context.Context, svc *service.Service, bot telegram.Sender, message *tgbotapi.Message,
	sess *session, kind models.ChatType, name string, handles []string,
) error {
	memberIDs, unknown, err := lookupMembers(ctx, svc, sess.family.ID, handles)
	if err != nil {
		return err
	}
	if unknown != "" {
		return send(bot, message.Chat.ID, fmt.Sprintf("❌ %s is not a member of this family yet. Ask them to send /start.", unknown))
	}

	chat, err := svc.CreateChat(ctx, service.CreateChatInput{
		Kind:      kind,
		Name:      name,
		MemberIDs: memberIDs,
		FamilyID:  sess.family.ID,
		CreatorID: sess.user.ID,
	})
	if handled, sendErr := replyValidation(bot, message.Chat.ID, err); handled {
		return sendErr
	}
	if err != nil {
		return send(bot, message.Chat.ID, "❌ "+service.CreateChatFailedMsg)
	}

	return send(bot, message.Chat.ID, fmt.Sprintf("✅ Created %s with %d participants. See /chats.",
		viewmodel.DisplayName(chat, sess.user.DisplayName()), len(chat.Participants)))
}

// DirectHandler starts a direct chat with one family member.
type DirectHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDirectHandler creates a new DirectHandler.
func NewDirectHandler(svc *service.Service, logger *logrus.Logger) *DirectHandler {
	return &DirectHandler{svc: svc, logger: logger}
}

// Handle processes the /direct command.
func (h *DirectHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 || !strings.HasPrefix(args[0], "@") {
		return send(bot, message.Chat.ID, "❌ Usage: /direct @user")
	}

	sess, err := resolveSession(ctx, h.svc, h.logger, message)
	if err != nil {
		return err
	}
	return createChat(ctx, h.svc, bot, message, sess, models.ChatTypeDirect, "", args)
}

// GroupHandler starts a named group chat.
type GroupHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(svc *service.Service, logger *logrus.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, logger: logger}
}

// Handle processes the /group command. Words starting with @ are members,
// the rest form the group name.
func (h *GroupHandler) Handle(ctx context.Context, bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	var nameParts, handles []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "@") {
			handles = append(handles, arg)
		} else {
			nameParts = append(nameParts, arg)
		}
	}

	sess, err := resolveSession(ctx, h.svc, h.logger, message)
	if err != nil {
		return err
	}
	return createChat(ctx, h.svc, bot, message, sess, models.ChatTypeGroup, strings.Join(nameParts, " "), handles)
}
