// Package chat implements two-party conversations. Every operation is shared
// by the REST handlers and the WebSocket gateway so both paths validate and
// fan out identically.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/repositories"
)

var (
	ErrInvalidData          = errors.New("invalid data")
	ErrNotParticipant       = errors.New("not a participant")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
	ErrUserNotFound         = errors.New("user not found")
)

type UserLookup interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
}

// Notifier creates a notification without failing the caller
type Notifier interface {
	Notify(ctx context.Context, in models.NotificationInput)
}

// Broadcaster pushes an event to every live connection of a user and
// reports how many connections it reached.
type Broadcaster interface {
	Deliver(userID uint, event string, payload any) int
}

type Service struct {
	repo        repositories.ChatRepository
	users       UserLookup
	notifier    Notifier
	broadcaster Broadcaster
	logger      *slog.Logger

	pending sync.WaitGroup
}

func NewService(repo repositories.ChatRepository, users UserLookup, notifier Notifier, broadcaster Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		users:       users,
		notifier:    notifier,
		broadcaster: broadcaster,
		logger:      logger.With("component", "chat"),
	}
}

// Wait blocks until every chat notification started so far has been written
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	convs, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(convs) == 0 {
		return []models.ConversationSummary{}, nil
	}

	ids := make([]uint, 0, len(convs))
	for i := range convs {
		ids = append(ids, convs[i].OtherParticipant(userID))
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	profiles := make(map[uint]models.UserCompact, len(users))
	for i := range users {
		profiles[users[i].ID] = users[i].ToCompact()
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		other := c.OtherParticipant(userID)
		p, ok := profiles[other]
		if !ok {
			p = models.UserCompact{ID: other}
		}
		summaries = append(summaries, models.ConversationSummary{Conversation: c, Participant: p})
	}
	return summaries, nil
}

func (s *Service) GetOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	if userA == 0 || userB == 0 {
		return nil, ErrInvalidData
	}
	if userA == userB {
		return nil, ErrSelfConversation
	}
	if _, err := s.users.GetUserByID(ctx, userB); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	conv, err := s.repo.FindOrCreateConversation(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) ListMessages(ctx context.Context, conversationID, callerID uint) ([]models.ChatMessage, error) {
	if _, err := s.participant(ctx, conversationID, callerID); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// SendMessage stores a message, pushes it to the recipient and back to the
// sender's other connections, and queues a chat notification for the recipient.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID uint, content string) (*models.ChatMessage, error) {
	if conversationID == 0 || strings.TrimSpace(content) == "" {
		return nil, ErrInvalidData
	}
	conv, err := s.participant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	recipientID := conv.OtherParticipant(senderID)
	if s.broadcaster != nil {
		s.broadcaster.Deliver(recipientID, models.EventChatMessage, msg)
		s.broadcaster.Deliver(senderID, models.EventChatMessage, msg)
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.notifyRecipient(context.WithoutCancel(ctx), senderID, recipientID, msg)
	}()

	return msg, nil
}

// SendMessageToUser opens the conversation with recipientID on first contact, then sends
func (s *Service) SendMessageToUser(ctx context.Context, senderID, recipientID uint, content string) (*models.Conversation, *models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, ErrInvalidData
	}
	conv, err := s.GetOrCreateConversation(ctx, senderID, recipientID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.SendMessage(ctx, conv.ID, senderID, content)
	if err != nil {
		return nil, nil, err
	}
	return conv, msg, nil
}

// MarkRead marks messages the other participant sent as read. A reader can
// never flip their own messages. Without ids or upTo everything unread is marked.
// The receipt lists only the messages that changed state; it is delivered
// to the sender only when that list is non-empty.
func (s *Service) MarkRead(ctx context.Context, conversationID, readerID uint, ids []uint, upTo uint) (*models.ReadReceipt, error) {
	conv, err := s.participant(ctx, conversationID, readerID)
	if err != nil {
		return nil, err
	}

	senderID := conv.OtherParticipant(readerID)
	flipped, err := s.repo.MarkRead(ctx, conv.ID, senderID, ids, upTo)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	receipt := &models.ReadReceipt{
		ConversationID: conv.ID,
		MessageIDs:     flipped,
		UpToMessageID:  upTo,
		ReaderID:       readerID,
	}
	if len(flipped) > 0 && s.broadcaster != nil {
		s.broadcaster.Deliver(senderID, models.EventReadReceipt, receipt)
	}
	return receipt, nil
}

// Typing forwards an ephemeral typing indicator to the other participant
func (s *Service) Typing(ctx context.Context, conversationID, userID uint, started bool) error {
	conv, err := s.participant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	event := models.EventTypingStop
	if started {
		event = models.EventTypingStart
	}
	if s.broadcaster != nil {
		s.broadcaster.Deliver(conv.OtherParticipant(userID), event, models.TypingState{
			ConversationID: conv.ID,
			UserID:         userID,
		})
	}
	return nil
}

func (s *Service) participant(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	if conversationID == 0 {
		return nil, ErrInvalidData
	}
	conv, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

func (s *Service) notifyRecipient(ctx context.Context, senderID, recipientID uint, msg *models.ChatMessage) {
	if s.notifier == nil {
		return
	}
	name := "Someone"
	if sender, err := s.users.GetUserByID(ctx, senderID); err == nil {
		name = sender.Name()
	} else {
		s.logger.Warn("chat notification sender lookup failed", "sender", senderID, "error", err)
	}

	actor := senderID
	s.notifier.Notify(ctx, models.NotificationInput{
		UserID:      recipientID,
		ActorID:     &actor,
		Type:        models.NotificationChat,
		Title:       "New message from " + name,
		Message:     preview(msg.Content, 120),
		RelatedID:   fmt.Sprint(msg.ConversationID),
		RelatedType: models.RelatedConversation,
	})
}

func preview(content string, limit int) string {
	r := []rune(strings.TrimSpace(content))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit]) + "…"
}
