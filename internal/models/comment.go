package models

import "gorm.io/gorm"

// Comment represents a comment on a question
type Comment struct {
	gorm.Model
	PostID  string `json:"post_id" gorm:"index"` // ID of the question the comment belongs to (MongoDB ObjectID as string)
	UserID  uint   `json:"user_id" gorm:"index"` // ID of the user who made the comment
	Content string `json:"content"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}
