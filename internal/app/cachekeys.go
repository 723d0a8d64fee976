package app

import (
	"context"
	"fmt"

	"resort_hub/internal/domain"
)

// Limits the HTTP layer hands out; only these list and review variants are cached.
var cachedLimits = []int{50, 100, 200}

var cachedStatuses = []string{"", string(domain.StatusActive), string(domain.StatusInactive), string(domain.StatusPending)}

const reviewsSort = "-created_at"

func cachedLimit(l int) bool {
	for _, c := range cachedLimits {
		if c == l {
			return true
		}
	}
	return false
}

func resortKey(id string) string { return "resort:" + id }

func reviewsKey(id string, limit int, sort string) string {
	return fmt.Sprintf("reviews:%s:%d:%s", id, limit, sort)
}

// listKey reports false for variants that are not cached (free-text
// queries and limits outside cachedLimits).
func listKey(q domain.ResortsQuery) (string, bool) {
	if q.Q != nil || !cachedLimit(q.Limit) {
		return "", false
	}
	status := ""
	if q.Status != nil {
		status = string(*q.Status)
	}
	return fmt.Sprintf("resorts:%s:%d", status, q.Limit), true
}

func (s *ResortService) invalidateResort(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, resortKey(id))
	s.invalidateLists(ctx)
}

func (s *ResortService) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, st := range cachedStatuses {
		for _, lim := range cachedLimits {
			_ = s.cache.Del(ctx, fmt.Sprintf("resorts:%s:%d", st, lim))
		}
	}
}

func (s *ResortService) invalidateReviews(ctx context.Context, id string) {
	invalidateReviews(ctx, s.cache, id)
}

// invalidateReviews clears the review page variants the API serves.
func invalidateReviews(ctx context.Context, c domain.Cache, id string) {
	if c == nil {
		return
	}
	for _, lim := range cachedLimits {
		_ = c.Del(ctx, reviewsKey(id, lim, reviewsSort))
	}
}
