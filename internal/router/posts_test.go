package router

import (
	"context"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/repositories"
)

type noPosts struct{}

func (noPosts) CreatePost(context.Context, *models.Post) error { return nil }

func (noPosts) GetPostByID(context.Context, string) (*models.Post, error) {
	return nil, repositories.ErrNotFound
}

func (noPosts) IncrementCommentsCount(context.Context, string, int) error { return nil }

func (noPosts) IncrementAnswersCount(context.Context, string, int) error { return nil }
