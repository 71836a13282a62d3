package mentions

import (
	"context"
	"errors"
	"testing"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/notifications"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/anonto42/stackit/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postID = "65f0c0ffee0000000000beef"

func TestProcessMentionsInComment(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	notifier := notifications.NewService(repositories.NewPostgresNotificationRepository(db), nil, nil)
	p := NewProcessor(repositories.NewPostgresUserRepository(db), repositories.NewPostgresMentionRepository(db), notifier, nil)

	commentID := uint(42)
	ref := models.MentionContext{PostID: postID, CommentID: &commentID}
	mentions, err := p.ProcessMentions(ctx, ref, alice, "Thanks @bob for the help, @alice @nosuchuser @bob")
	require.NoError(t, err)
	require.Len(t, mentions, 2)
	assert.Equal(t, bob.ID, mentions[0].MentionedUserID)
	assert.Equal(t, alice.ID, mentions[1].MentionedUserID)

	var stored []models.Mention
	require.NoError(t, db.Order("id").Find(&stored).Error)
	require.Len(t, stored, 2)
	for _, m := range stored {
		assert.Equal(t, alice.ID, m.MentioningUserID)
		assert.Equal(t, postID, m.PostID)
		require.NotNil(t, m.CommentID)
		assert.Equal(t, commentID, *m.CommentID)
	}

	// alice mentioning herself still produces a notification
	for _, u := range []*models.User{alice, bob} {
		var n []models.Notification
		require.NoError(t, db.Where("user_id = ?", u.ID).Find(&n).Error)
		require.Len(t, n, 1, u.Username)
		assert.Equal(t, models.NotificationMention, n[0].Type)
		assert.Equal(t, models.RelatedComment, n[0].RelatedType)
		assert.Equal(t, "42", n[0].RelatedID)
	}
}

func TestResolveIsCaseSensitive(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "bob")
	p := NewProcessor(repositories.NewPostgresUserRepository(db), nil, nil, nil)

	users, err := p.Resolve(context.Background(), "@Bob @BOB")
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = p.Resolve(context.Background(), "@bob")
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestProcessMentionsWithoutHandles(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	p := NewProcessor(repositories.NewPostgresUserRepository(db), repositories.NewPostgresMentionRepository(db), nil, nil)

	mentions, err := p.ProcessMentions(context.Background(), models.MentionContext{PostID: postID}, alice, "no handles here")
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

type failingStore struct{}

func (failingStore) CreateMentions(context.Context, []models.Mention) error {
	return errors.New("disk full")
}

func TestRecordPropagatesStoreErrors(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil)
	_, err := p.Record(context.Background(), failingStore{}, models.MentionContext{PostID: postID}, 1,
		[]models.User{{ID: 2, Username: "bob"}})
	assert.Error(t, err)
}

func TestRecordRequiresPost(t *testing.T) {
	p := NewProcessor(nil, nil, nil, nil)
	_, err := p.Record(context.Background(), failingStore{}, models.MentionContext{}, 1,
		[]models.User{{ID: 2, Username: "bob"}})
	assert.Error(t, err)
}
