package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/sentiment"
	"github.com/Zakerman110/master-work-644/storage"
	"github.com/Zakerman110/master-work-644/utils"
)

// ReviewService handles reviews written by users of this service and their moderation
type ReviewService struct {
	products   storage.ProductRepository
	reviews    storage.ReviewRepository
	classifier sentiment.Classifier
	threshold  float64
	logger     *utils.Logger
}

// NewReviewService creates a ReviewService. Predictions below threshold are flagged for moderation.
func NewReviewService(products storage.ProductRepository, reviews storage.ReviewRepository, classifier sentiment.Classifier, threshold float64, logger *utils.Logger) *ReviewService {
	return &ReviewService{
		products:   products,
		reviews:    reviews,
		classifier: classifier,
		threshold:  threshold,
		logger:     logger,
	}
}

// Submit stores a user review under the product's "self" source
func (s *ReviewService) Submit(ctx context.Context, productID int64, text string, rating float64) (*models.Review, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: review text is blank", ErrValidation)
	}
	if rating < 0 || rating > 5 {
		return nil, fmt.Errorf("%w: rating %.1f is outside 0-5", ErrValidation, rating)
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return nil, err
	}

	binding, err := s.products.UpsertSourceBinding(ctx, productID, models.Self, "", "")
	if err != nil {
		return nil, err
	}
	existing, err := s.reviews.ListReviewTexts(ctx, binding.ID)
	if err != nil {
		return nil, err
	}
	if _, dup := existing[text]; dup {
		return nil, ErrDuplicateReview
	}

	review := models.Review{Text: text, Rating: rating}
	label, confidence, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.logger.Warn("sentiment classification failed", "product_id", productID, "error", err)
		review.ModelSentiment = sentiment.Neutral
		review.NeedsReview = true
	} else {
		review.ModelSentiment = label
		review.Confidence = confidence
		review.NeedsReview = confidence < s.threshold
	}

	batch := []models.Review{review}
	if err := s.reviews.InsertReviews(ctx, binding.ID, batch); err != nil {
		return nil, err
	}

	s.logger.Info("user review stored",
		"product_id", productID,
		"sentiment", batch[0].ModelSentiment,
		"confidence", batch[0].Confidence,
		"needs_review", batch[0].NeedsReview,
	)
	return &batch[0], nil
}

// Correct records a moderator's sentiment label for a review
func (s *ReviewService) Correct(ctx context.Context, reviewID int64, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: sentiment label is blank", ErrValidation)
	}
	return s.reviews.SetHumanSentiment(ctx, reviewID, label)
}

// Pending lists reviews waiting for moderation
func (s *ReviewService) Pending(ctx context.Context, limit int) ([]models.Review, error) {
	return s.reviews.ListNeedingModeration(ctx, limit)
}
