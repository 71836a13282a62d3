package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/stackit/backend/internal/models"
	"gorm.io/gorm"
)

// AnswerRepository defines the interface for answers and the votes cast on them
type AnswerRepository interface {
	CreateAnswer(ctx context.Context, answer *models.Answer, within func(MentionRepository) error) error
	GetAnswerByID(ctx context.Context, id uint) (*models.Answer, error)
	// CastVote records the user's vote and returns the value it replaced (0 if none)
	CastVote(ctx context.Context, vote *models.Vote) (int, error)
	// Accept marks the answer accepted and clears any other accepted answer on the same question
	Accept(ctx context.Context, answer *models.Answer) error
}

type postgresAnswerRepository struct {
	db *gorm.DB
}

func NewPostgresAnswerRepository(db *gorm.DB) AnswerRepository {
	return &postgresAnswerRepository{db: db}
}

func (r *postgresAnswerRepository) CreateAnswer(ctx context.Context, answer *models.Answer, within func(MentionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			return err
		}
		if within == nil {
			return nil
		}
		return within(NewPostgresMentionRepository(tx))
	})
}

func (r *postgresAnswerRepository) GetAnswerByID(ctx context.Context, id uint) (*models.Answer, error) {
	var answer models.Answer
	if err := r.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, translate(err)
	}
	return &answer, nil
}

func (r *postgresAnswerRepository) CastVote(ctx context.Context, vote *models.Vote) (int, error) {
	previous := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		err := tx.Where("answer_id = ? AND user_id = ?", vote.AnswerID, vote.UserID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(vote).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			previous = existing.Value
			if existing.Value == vote.Value {
				*vote = existing
				return nil
			}
			if err := tx.Model(&existing).Update("value", vote.Value).Error; err != nil {
				return err
			}
			existing.Value = vote.Value
			*vote = existing
		}
		return tx.Model(&models.Answer{}).Where("id = ?", vote.AnswerID).
			Update("score", gorm.Expr("score + ?", vote.Value-previous)).Error
	})
	return previous, err
}

func (r *postgresAnswerRepository) Accept(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Answer{}).
			Where("post_id = ? AND accepted = ? AND id <> ?", answer.PostID, true, answer.ID).
			Update("accepted", false).Error; err != nil {
			return err
		}
		answer.Accepted = true
		return tx.Model(answer).Update("accepted", true).Error
	})
}
