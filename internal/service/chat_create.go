package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/models"
)

// User-facing messages of the chat creation flow
const (
	ErrMsgUnknownChatType = "Please choose direct or group chat"
	ErrMsgNoMembers       = "Please select at least one member"
	ErrMsgNoGroupName     = "Please enter a group name"
	CreateChatFailedMsg   = "Failed to create chat"
)

// CreateChatInput is the request of the new chat screen. FamilyID and
// CreatorID come from the authenticated caller.
type CreateChatInput struct {
	Kind      models.ChatType
	Name      string
	MemberIDs []string
	FamilyID  string
	CreatorID string
}

// Validate checks the input in order: kind, members, then group name.
func (in CreateChatInput) Validate() error {
	if !in.Kind.Valid() {
		return models.NewValidationError("type", ErrMsgUnknownChatType)
	}
	if len(in.MemberIDs) == 0 {
		return models.NewValidationError("member_ids", ErrMsgNoMembers)
	}
	if in.Kind == models.ChatTypeGroup && strings.TrimSpace(in.Name) == "" {
		return models.NewValidationError("name", ErrMsgNoGroupName)
	}
	return nil
}

// Participants returns the creator followed by the selected members, each
// id once, in first-seen order.
func (in CreateChatInput) Participants() []string {
	seen := make(map[string]bool, len(in.MemberIDs)+1)
	ids := make([]string, 0, len(in.MemberIDs)+1)
	for _, id := range append([]string{in.CreatorID}, in.MemberIDs...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// CreateChat validates the input and creates a direct or group chat. A
// validation failure performs no writes.
func (s *Service) CreateChat(ctx context.Context, in CreateChatInput) (*models.Chat, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"family_id": in.FamilyID,
		"user_id":   in.CreatorID,
		"type":      in.Kind,
	})

	participants := in.Participants()

	var (
		chat *models.Chat
		err  error
	)
	if in.Kind == models.ChatTypeGroup {
		chat, err = s.Chats.CreateGroup(ctx, in.FamilyID, strings.TrimSpace(in.Name), participants)
	} else {
		chat, err = s.Chats.CreateDirect(ctx, in.FamilyID, participants)
	}
	s.metrics.ChatCreated(string(in.Kind), err)
	if err != nil {
		log.Errorf("Failed to create chat: %v", err)
		return nil, err
	}

	log.WithField("chat_id", chat.ID).Infof("Created %s chat with %d participants", in.Kind, len(participants))
	return chat, nil
}
