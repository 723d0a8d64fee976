package app_test

import (
	"context"
	"testing"

	"resort_hub/internal/app"
	"resort_hub/internal/storage/memory"
)

func TestRecordPageView(t *testing.T) {
	s := app.NewStatsService(memory.NewCache())
	for want := int64(1); want <= 3; want++ {
		got, err := s.RecordPageView(context.Background())
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if got != want {
			t.Fatalf("views = %d, want %d", got, want)
		}
	}
}
