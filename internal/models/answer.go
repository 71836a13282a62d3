package models

import "gorm.io/gorm"

// Answer is a reply to a question
type Answer struct {
	gorm.Model
	PostID   string `json:"post_id" gorm:"index"` // MongoDB ObjectID as string
	UserID   uint   `json:"user_id" gorm:"index"`
	Content  string `json:"content" gorm:"type:text"`
	Score    int    `json:"score" gorm:"default:0"`
	Accepted bool   `json:"accepted" gorm:"default:false"`
}

// Vote is a single user's vote on an answer
type Vote struct {
	gorm.Model
	AnswerID uint `json:"answer_id" gorm:"uniqueIndex:idx_vote_user_answer"`
	UserID   uint `json:"user_id" gorm:"uniqueIndex:idx_vote_user_answer"`
	Value    int  `json:"value"`
}

// CreateAnswerRequest defines the request body for answering a question
type CreateAnswerRequest struct {
	Content string `json:"content" validate:"required,min=1,max=10000"`
}

// VoteRequest defines the request body for voting on an answer
type VoteRequest struct {
	Value int `json:"value" validate:"required,oneof=1 -1"`
}
