package repositories

import (
	"context"

	"github.com/anonto42/stackit/backend/internal/models"
	"gorm.io/gorm"
)

// MentionRepository stores @-mention records
type MentionRepository interface {
	CreateMentions(ctx context.Context, mentions []models.Mention) error
}

type postgresMentionRepository struct {
	db *gorm.DB
}

// NewPostgresMentionRepository accepts either the root handle or a transaction
func NewPostgresMentionRepository(db *gorm.DB) MentionRepository {
	return &postgresMentionRepository{db: db}
}

func (r *postgresMentionRepository) CreateMentions(ctx context.Context, mentions []models.Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&mentions).Error
}
