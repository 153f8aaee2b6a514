// Package reviews lets players rate each other.
package reviews

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/apperror"
)

var (
	ErrSelfReview   = apperror.New(apperror.KindValidation, "self_review", "cannot review yourself")
	ErrUserNotFound = apperror.NotFound("user")
)

// Store is the review persistence the service needs.
type Store interface {
	Create(ctx context.Context, rv *models.Review) error
	ListAbout(ctx context.Context, userID uuid.UUID) ([]models.Review, error)
	Rating(ctx context.Context, userID uuid.UUID) (float64, error)
}

// Directory answers whether a user exists.
type Directory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Publisher receives the review-created trigger.
type Publisher interface {
	Publish(ctx context.Context, t fanout.Trigger)
}

// CreateInput is the body for POST /reviews.
type CreateInput struct {
	UserID uuid.UUID `json:"user" binding:"required"`
	Text   string    `json:"text" binding:"required"`
	Stars  int       `json:"stars" binding:"required"`
}

// Summary is the caller's reviews with their mean rating.
type Summary struct {
	Rating  float64         `json:"rating"`
	Reviews []models.Review `json:"reviews"`
}

// Service creates and lists reviews.
type Service struct {
	store  Store
	users  Directory
	pub    Publisher
	logger *zap.Logger
}

// NewService creates the reviews service.
func NewService(store Store, users Directory, pub Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, users: users, pub: pub, logger: logger}
}

// Create stores a review by authorID and notifies the reviewed user.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, in CreateInput) (*models.Review, error) {
	text := strings.TrimSpace(in.Text)
	switch {
	case in.Stars < models.MinStars || in.Stars > models.MaxStars:
		return nil, apperror.Validation("stars must be within 1..5")
	case text == "":
		return nil, apperror.Validation("text is required")
	case len([]rune(text)) > models.MaxReviewTextLen:
		return nil, apperror.Validation("text must be at most 200 characters")
	case in.UserID == authorID:
		return nil, ErrSelfReview
	}
	ok, err := s.users.Exists(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	rv := &models.Review{AuthorID: authorID, UserID: in.UserID, Text: text, Stars: in.Stars}
	if err := s.store.Create(ctx, rv); err != nil {
		return nil, err
	}
	if s.pub != nil {
		s.pub.Publish(ctx, fanout.Trigger{Kind: fanout.KindReviewCreated, Actor: authorID, Review: rv})
	}
	s.logger.Info("review created", zap.String("review_id", rv.ID.String()), zap.String("user_id", rv.UserID.String()))
	return rv, nil
}

// Mine returns the reviews about userID and their mean rating.
func (s *Service) Mine(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	list, err := s.store.ListAbout(ctx, userID)
	if err != nil {
		return nil, err
	}
	rating, err := s.store.Rating(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Review{}
	}
	return &Summary{Rating: rating, Reviews: list}, nil
}
