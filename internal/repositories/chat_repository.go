package repositories

import (
	"context"
	"time"

	"github.com/anonto42/stackit/backend/internal/models"
	"gorm.io/gorm"
)

// ChatRepository persists two-party conversations and their messages
type ChatRepository interface {
	GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error)
	// FindOrCreateConversation returns the conversation for the unordered pair, creating it when absent
	FindOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uint) ([]models.Conversation, error)
	CreateMessage(ctx context.Context, message *models.ChatMessage) error
	ListMessages(ctx context.Context, conversationID uint) ([]models.ChatMessage, error)
	// MarkRead flips unread messages sent by senderID and returns the ids it flipped.
	// With no ids and no upTo every such message is marked.
	MarkRead(ctx context.Context, conversationID, senderID uint, ids []uint, upTo uint) ([]uint, error)
}

type postgresChatRepository struct {
	db *gorm.DB
}

func NewPostgresChatRepository(db *gorm.DB) ChatRepository {
	return &postgresChatRepository{db: db}
}

func (r *postgresChatRepository) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *postgresChatRepository) FindOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	low, high := models.OrderedPair(userA, userB)
	db := r.db.WithContext(ctx)

	var conv models.Conversation
	err := db.Where(models.Conversation{UserLowID: low, UserHighID: high}).FirstOrCreate(&conv).Error
	if err != nil {
		// Lost a race on idx_conversation_pair; the other insert won.
		if ferr := db.Where("user_low_id = ? AND user_high_id = ?", low, high).First(&conv).Error; ferr == nil {
			return &conv, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (r *postgresChatRepository) ListConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&convs).Error
	return convs, err
}

// CreateMessage stores the message and bumps the conversation's activity timestamp
func (r *postgresChatRepository) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", message.ConversationID).
			Update("updated_at", time.Now()).Error
	})
}

func (r *postgresChatRepository) ListMessages(ctx context.Context, conversationID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *postgresChatRepository) MarkRead(ctx context.Context, conversationID, senderID uint, ids []uint, upTo uint) ([]uint, error) {
	var flipped []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.ChatMessage{}).
			Where("conversation_id = ? AND sender_id = ? AND is_read = ?", conversationID, senderID, false)
		switch {
		case len(ids) > 0:
			q = q.Where("id IN ?", ids)
		case upTo > 0:
			q = q.Where("id <= ?", upTo)
		}
		if err := q.Order("id").Pluck("id", &flipped).Error; err != nil {
			return err
		}
		if len(flipped) == 0 {
			return nil
		}
		return tx.Model(&models.ChatMessage{}).Where("id IN ?", flipped).Update("is_read", true).Error
	})
	if err != nil {
		return nil, err
	}
	return flipped, nil
}
