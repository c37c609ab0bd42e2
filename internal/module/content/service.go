package content

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sodam/server/internal/module/billing"
	"github.com/sodam/server/internal/module/billing/quota"
)

// ServiceInterface defines the content service surface.
type ServiceInterface interface {
	// CreatePost creates a post, charging one creates unit. A nil error
	// with a non-allowed result means the quota rejected the call.
	CreatePost(ctx context.Context, userID uuid.UUID, title, body string, tags []string) (*Post, *quota.Result, error)

	// ExportPosts bundles the user's posts, charging one exports unit.
	ExportPosts(ctx context.Context, userID uuid.UUID) (*Export, *quota.Result, error)

	GetPost(ctx context.Context, userID, postID uuid.UUID) (*Post, error)
	ListPosts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Post, error)
	UpdatePost(ctx context.Context, userID, postID uuid.UUID, title, body string, tags []string, status PostStatus) (*Post, error)
	DeletePost(ctx context.Context, userID, postID uuid.UUID) error
}

// Service implements post CRUD with metered create and export.
type Service struct {
	repo    Repository
	gate    *quota.Gate
	billing billing.ServiceInterface
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new content service.
func NewService(repo Repository, gate *quota.Gate, billingSvc billing.ServiceInterface, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		gate:    gate,
		billing: billingSvc,
		logger:  logger,
		now:     time.Now,
	}
}

var _ ServiceInterface = (*Service)(nil)

func (s *Service) CreatePost(ctx context.Context, userID uuid.UUID, title, body string, tags []string) (*Post, *quota.Result, error) {
	res, err := s.charge(ctx, userID, billing.ResourceCreates)
	if err != nil {
		return nil, nil, err
	}
	if !res.Allowed {
		return nil, res, nil
	}

	post := &Post{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
		Body:   body,
		Tags:   pq.StringArray(tags),
		Status: PostStatusDraft,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, res, err
	}

	s.logger.Debug("post created",
		zap.String("user_id", userID.String()),
		zap.String("post_id", post.ID.String()),
	)
	return post, res, nil
}

func (s *Service) ExportPosts(ctx context.Context, userID uuid.UUID) (*Export, *quota.Result, error) {
	res, err := s.charge(ctx, userID, billing.ResourceExports)
	if err != nil {
		return nil, nil, err
	}
	if !res.Allowed {
		return nil, res, nil
	}

	posts, err := s.repo.ListAllByUser(ctx, userID)
	if err != nil {
		return nil, res, err
	}

	return &Export{
		ExportedAt: s.now().UTC(),
		Count:      len(posts),
		Posts:      posts,
	}, res, nil
}

func (s *Service) GetPost(ctx context.Context, userID, postID uuid.UUID) (*Post, error) {
	return s.ownedPost(ctx, userID, postID)
}

func (s *Service) ListPosts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Post, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) UpdatePost(ctx context.Context, userID, postID uuid.UUID, title, body string, tags []string, status PostStatus) (*Post, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	if title != "" {
		post.Title = title
	}
	if body != "" {
		post.Body = body
	}
	if tags != nil {
		post.Tags = pq.StringArray(tags)
	}
	if status != "" {
		post.Status = status
	}

	if err := s.repo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, userID, postID uuid.UUID) error {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, postID)
}

// ownedPost loads a post and hides other users' posts behind not-found.
func (s *Service) ownedPost(ctx context.Context, userID, postID uuid.UUID) (*Post, error) {
	post, err := s.repo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *Service) charge(ctx context.Context, userID uuid.UUID, kind billing.ResourceKind) (*quota.Result, error) {
	plan, err := s.billing.PlanFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.gate.Use(ctx, userID, plan, kind, 1)
}
