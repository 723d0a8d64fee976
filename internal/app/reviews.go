package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"resort_hub/internal/domain"
)

const maxCommentLen = 2000

type ReviewInput struct {
	UserName string `json:"userName"`
	Rating   Number `json:"rating"`
	Comment  string `json:"comment"`
}

type ReviewService struct {
	resorts domain.ResortRepository
	reviews domain.ReviewRepository
	cache   domain.Cache
	now     func() time.Time
}

func NewReviewService(r domain.ResortRepository, rv domain.ReviewRepository, c domain.Cache) *ReviewService {
	return &ReviewService{resorts: r, reviews: rv, cache: c, now: time.Now}
}

func (s *ReviewService) AddReview(ctx context.Context, resortID string, in ReviewInput) (domain.Review, error) {
	author := strings.TrimSpace(in.UserName)
	if author == "" {
		return domain.Review{}, domain.Invalid("userName", "is required")
	}
	if !in.Rating.Present() {
		return domain.Review{}, domain.Invalid("rating", "is required")
	}
	rating, err := strconv.Atoi(in.Rating.Raw)
	if err != nil || rating < 1 || rating > 5 {
		return domain.Review{}, domain.Invalid("rating", "must be an integer from 1 to 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(comment) > maxCommentLen {
		return domain.Review{}, domain.Invalid("comment", "must be at most %d characters", maxCommentLen)
	}

	if _, err := s.resorts.GetResort(ctx, resortID); err != nil {
		return domain.Review{}, wrapStore("get resort", resortID, err)
	}

	rv, err := s.reviews.AddReview(ctx, domain.Review{
		ResortID:  resortID,
		Author:    author,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("add review for %s: %w", resortID, err)
	}
	// even a single new review changes every cached page
	invalidateReviews(ctx, s.cache, resortID)
	return rv, nil
}
