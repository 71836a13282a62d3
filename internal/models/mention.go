package models

import "time"

// Mention records that one user @-mentioned another inside a question, comment or answer
type Mention struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	MentionedUserID  uint      `json:"mentioned_user_id" gorm:"index"`
	MentioningUserID uint      `json:"mentioning_user_id" gorm:"index"`
	PostID           string    `json:"post_id" gorm:"size:24;index"` // MongoDB ObjectID as string
	CommentID        *uint     `json:"comment_id,omitempty" gorm:"index"`
	AnswerID         *uint     `json:"answer_id,omitempty" gorm:"index"`
	CreatedAt        time.Time `json:"created_at"`
}

// MentionContext locates the text a mention was found in. PostID is always set;
// CommentID or AnswerID narrows it to a child of that post.
type MentionContext struct {
	PostID    string
	CommentID *uint
	AnswerID  *uint
}

// Related returns the deep-link target for notifications about this context
func (m MentionContext) Related() (id string, kind string) {
	switch {
	case m.CommentID != nil:
		return uintToString(*m.CommentID), RelatedComment
	case m.AnswerID != nil:
		return uintToString(*m.AnswerID), RelatedAnswer
	default:
		return m.PostID, RelatedPost
	}
}
