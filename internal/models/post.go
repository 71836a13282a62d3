package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a question stored in MongoDB
type Post struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID        uint               `json:"user_id" bson:"user_id"`
	Title         string             `json:"title" bson:"title"`
	Content       string             `json:"content" bson:"content"`
	Tags          []string           `json:"tags,omitempty" bson:"tags,omitempty"`
	AnswersCount  int                `json:"answers_count" bson:"answers_count"`
	CommentsCount int                `json:"comments_count" bson:"comments_count"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// CreatePostRequest defines the request body for asking a question
type CreatePostRequest struct {
	Title   string   `json:"title" validate:"required,min=5,max=200"`
	Content string   `json:"content" validate:"required,min=1,max=20000"`
	Tags    []string `json:"tags,omitempty" validate:"omitempty,max=5,dive,min=1,max=30"`
}
