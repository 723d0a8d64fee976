package app

import (
	"context"

	"resort_hub/internal/domain"
)

const pageViewsKey = "stats:page_views"

type StatsService struct{ counter domain.Counter }

func NewStatsService(c domain.Counter) *StatsService { return &StatsService{counter: c} }

func (s *StatsService) RecordPageView(ctx context.Context) (int64, error) {
	return s.counter.Incr(ctx, pageViewsKey)
}
