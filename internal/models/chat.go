package models

import (
	"strconv"
	"time"
)

// Conversation is a two-party chat. The pair is stored ordered so that the
// unique index covers both argument orders.
type Conversation struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserLowID  uint      `json:"user_low_id" gorm:"uniqueIndex:idx_conversation_pair"`
	UserHighID uint      `json:"user_high_id" gorm:"uniqueIndex:idx_conversation_pair;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"index"`
}

// OrderedPair returns the two ids low first
func OrderedPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c *Conversation) HasParticipant(userID uint) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// OtherParticipant returns the participant that is not userID
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

// ChatMessage is a single message inside a conversation
type ChatMessage struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uint      `json:"conversation_id" gorm:"index"`
	SenderID       uint      `json:"sender_id" gorm:"index"`
	Content        string    `json:"content" gorm:"type:text"`
	IsRead         bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationSummary is a conversation annotated with the other participant's profile
type ConversationSummary struct {
	Conversation
	Participant UserCompact `json:"participant"`
}

// ReadReceipt is broadcast to the sender when the other participant reads messages
type ReadReceipt struct {
	ConversationID uint   `json:"conversation_id"`
	MessageIDs     []uint `json:"message_ids,omitempty"`
	UpToMessageID  uint   `json:"up_to_message_id,omitempty"`
	ReaderID       uint   `json:"reader_id"`
}

// TypingState is the ephemeral typing indicator payload
type TypingState struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
}

// GetOrCreateConversationRequest defines the request body for opening a conversation
type GetOrCreateConversationRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

// SendMessageRequest defines the request body for sending a chat message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// MarkReadRequest defines the request body for marking messages read
type MarkReadRequest struct {
	MessageIDs    []uint `json:"message_ids,omitempty"`
	UpToMessageID uint   `json:"up_to_message_id,omitempty"`
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
