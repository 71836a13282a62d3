package mentions

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/repositories"
)

// UserResolver looks users up by exact username
type UserResolver interface {
	GetUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
}

// Notifier creates a notification without failing the caller
type Notifier interface {
	Notify(ctx context.Context, in models.NotificationInput)
}

type Processor struct {
	users    UserResolver
	store    repositories.MentionRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewProcessor(users UserResolver, store repositories.MentionRepository, notifier Notifier, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{users: users, store: store, notifier: notifier, logger: logger.With("component", "mentions")}
}

// Resolve returns the users named by @handles in text, in first-mention order.
// Handles that match no username are skipped.
func (p *Processor) Resolve(ctx context.Context, text string) ([]models.User, error) {
	handles := slices.Collect(ExtractHandles(text))
	if len(handles) == 0 {
		return nil, nil
	}

	found, err := p.users.GetUsersByUsernames(ctx, handles)
	if err != nil {
		return nil, fmt.Errorf("resolve mentions: %w", err)
	}

	byName := make(map[string]models.User, len(found))
	for _, u := range found {
		byName[u.Username] = u
	}
	resolved := make([]models.User, 0, len(found))
	for _, h := range handles {
		if u, ok := byName[h]; ok {
			resolved = append(resolved, u)
		}
	}
	return resolved, nil
}

// Record writes one Mention per resolved user through store, which may be
// bound to the transaction creating the surrounding content.
func (p *Processor) Record(ctx context.Context, store repositories.MentionRepository, ref models.MentionContext, authorID uint, users []models.User) ([]models.Mention, error) {
	if len(users) == 0 {
		return nil, nil
	}
	if ref.PostID == "" {
		return nil, fmt.Errorf("record mentions: post reference is required")
	}

	mentions := make([]models.Mention, 0, len(users))
	for _, u := range users {
		mentions = append(mentions, models.Mention{
			MentionedUserID:  u.ID,
			MentioningUserID: authorID,
			PostID:           ref.PostID,
			CommentID:        ref.CommentID,
			AnswerID:         ref.AnswerID,
		})
	}
	if err := store.CreateMentions(ctx, mentions); err != nil {
		return nil, fmt.Errorf("record mentions: %w", err)
	}
	return mentions, nil
}

// Announce sends a mention notification for every recorded mention.
// The author is notified of their own self-mentions too.
func (p *Processor) Announce(ctx context.Context, author *models.User, ref models.MentionContext, mentions []models.Mention) {
	relatedID, relatedType := ref.Related()
	for _, m := range mentions {
		actor := author.ID
		p.notifier.Notify(ctx, models.NotificationInput{
			UserID:      m.MentionedUserID,
			ActorID:     &actor,
			Type:        models.NotificationMention,
			Title:       "You were mentioned",
			Message:     fmt.Sprintf("%s mentioned you in %s", author.Name(), withArticle(relatedType)),
			RelatedID:   relatedID,
			RelatedType: relatedType,
		})
	}
}

// ProcessMentions resolves, records and announces mentions found in text
// using the processor's own store. Resolution failures are returned; the
// notifications are best-effort.
func (p *Processor) ProcessMentions(ctx context.Context, ref models.MentionContext, author *models.User, text string) ([]models.Mention, error) {
	users, err := p.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}
	mentions, err := p.Record(ctx, p.store, ref, author.ID, users)
	if err != nil {
		return nil, err
	}
	p.Announce(ctx, author, ref, mentions)
	if len(mentions) > 0 {
		p.logger.Debug("mentions processed", "author", author.ID, "post_id", ref.PostID, "count", len(mentions))
	}
	return mentions, nil
}

func withArticle(kind string) string {
	if kind == models.RelatedAnswer {
		return "an " + kind
	}
	return "a " + kind
}
