package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommentSharesTransactionWithMentions(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewPostgresCommentRepository(db)

	comment := &models.Comment{PostID: "p1", UserID: 1, Content: "hi @bob"}
	err := repo.CreateComment(ctx, comment, func(store MentionRepository) error {
		id := comment.ID
		return store.CreateMentions(ctx, []models.Mention{{MentionedUserID: 2, MentioningUserID: 1, PostID: "p1", CommentID: &id}})
	})
	require.NoError(t, err)

	// a failing mention step rolls the comment back with it
	failed := &models.Comment{PostID: "p1", UserID: 1, Content: "lost"}
	err = repo.CreateComment(ctx, failed, func(MentionRepository) error { return errors.New("boom") })
	require.Error(t, err)

	comments, err := repo.GetCommentsByPostID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, comment.ID, comments[0].ID)

	require.NoError(t, repo.DeleteComment(ctx, comment.ID))

	var mentions int64
	require.NoError(t, db.Model(&models.Mention{}).Count(&mentions).Error)
	assert.Zero(t, mentions)

	assert.ErrorIs(t, repo.DeleteComment(ctx, comment.ID), ErrNotFound)
	_, err = repo.GetCommentByID(ctx, comment.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUsersByUsernamesIsExact(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewPostgresUserRepository(db)
	bob := testutil.CreateUser(t, db, "bob")

	users, err := repo.GetUsersByUsernames(ctx, []string{"Bob", "bo", "bob"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, bob.ID, users[0].ID)

	users, err = repo.GetUsersByUsernames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}
