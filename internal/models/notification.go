package models

import "time"

// Notification types
const (
	NotificationMention = "mention"
	NotificationAnswer  = "answer"
	NotificationVote    = "vote"
	NotificationComment = "comment"
	NotificationChat    = "chat"
	// NotificationAdmin covers moderation notices: ban, unban, promote, demote and content removal.
	NotificationAdmin = "admin"
)

// NotificationTypes is the closed set of types a notification may carry
var NotificationTypes = map[string]bool{
	NotificationMention: true,
	NotificationAnswer:  true,
	NotificationVote:    true,
	NotificationComment: true,
	NotificationChat:    true,
	NotificationAdmin:   true,
}

// Related entity kinds used for deep links
const (
	RelatedPost         = "post"
	RelatedComment      = "comment"
	RelatedAnswer       = "answer"
	RelatedConversation = "conversation"
	RelatedUser         = "user"
)

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"index"` // recipient
	ActorID     *uint     `json:"actor_id,omitempty" gorm:"index"`
	Type        string    `json:"type" gorm:"size:30;index"`
	Title       string    `json:"title" gorm:"size:200"`
	Message     string    `json:"message"`
	RelatedID   string    `json:"related_id,omitempty" gorm:"index:idx_notification_related"`
	RelatedType string    `json:"related_type,omitempty" gorm:"size:20;index:idx_notification_related"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

// NotificationInput carries everything needed to create a notification
type NotificationInput struct {
	UserID      uint
	ActorID     *uint
	Type        string
	Title       string
	Message     string
	RelatedID   string
	RelatedType string
}
