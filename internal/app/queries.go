package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resort_hub/internal/domain"
)

type QueryService struct {
	resorts  domain.ResortRepository
	files    domain.FileRepository
	reviews  domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ResortRepository, f domain.FileRepository, rv domain.ReviewRepository,
	c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{resorts: r, files: f, reviews: rv, cache: c, cacheTTL: ttl}
}

// GetResort returns the resort with its file record (zero or one entry in Files).
func (s *QueryService) GetResort(ctx context.Context, id string) (domain.ResortDetail, error) {
	key := resortKey(id)
	var out domain.ResortDetail
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	r, err := s.resorts.GetResort(ctx, id)
	if err != nil {
		return domain.ResortDetail{}, wrapStore("get resort", id, err)
	}
	out = domain.ResortDetail{Resort: r, Files: []domain.FileRecord{}}
	rec, err := s.files.FindByResortID(ctx, id)
	switch {
	case err == nil:
		out.Files = append(out.Files, rec)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.ResortDetail{}, fmt.Errorf("load files for %s: %w", id, err)
	}

	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

func (s *QueryService) ListResorts(ctx context.Context, q domain.ResortsQuery) ([]domain.ResortSummary, error) {
	key, cacheable := listKey(q)
	var out []domain.ResortSummary
	if cacheable {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}
	out, err := s.resorts.ListResorts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list resorts: %w", err)
	}
	if out == nil {
		out = []domain.ResortSummary{}
	}
	if cacheable {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

func (s *QueryService) ListReviews(ctx context.Context, id string, pg domain.PageQuery) (domain.ReviewsPage, error) {
	key := reviewsKey(id, pg.Limit, pg.Sort)
	// only first pages are cached; the key carries no cursor
	cacheable := cachedLimit(pg.Limit) && pg.Sort == reviewsSort && pg.Cursor == nil
	var out domain.ReviewsPage
	if cacheable {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	rs, err := s.reviews.ListReviews(ctx, id, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the repo's backing array
	copyRS := deepCopyReviewsPage(rs)

	// optional size guard
	if b, _ := json.Marshal(copyRS); cacheable && len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, copyRS, int(s.cacheTTL.Seconds()))
	}
	return copyRS, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{NextCursor: in.NextCursor, Items: []domain.Review{}}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
