package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"resort_hub/internal/app"
	"resort_hub/internal/domain"
	"resort_hub/internal/storage/memory"
)

func TestGetResort_CacheMissThenHit(t *testing.T) {
	st := memory.New()
	r, err := st.CreateResort(context.Background(), domain.Resort{Name: "Lakeview", Status: domain.StatusActive})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	cache := &fakeCache{}
	q := app.NewQueryService(st, st, st, cache, 10*time.Minute)

	// Miss (first time, populates cache)
	d, err := q.GetResort(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if d.Resort.Name != "Lakeview" || d.Files == nil || len(d.Files) != 0 {
		t.Fatalf("unexpected detail: %+v", d)
	}

	// Mutate the store behind the cache's back
	r.Name = "SHOULD NOT SEE THIS"
	if _, err := st.UpdateResort(context.Background(), r); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Hit (served from cache)
	d2, err := q.GetResort(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if d2.Resort.Name != "Lakeview" {
		t.Fatalf("expected cached name, got %s", d2.Resort.Name)
	}
}

func TestGetResort_WriteInvalidatesCache(t *testing.T) {
	st := memory.New()
	cache := &fakeCache{}
	svc := app.NewResortService(st, st, st, &fakeMedia{}, app.ReconcilerOptions{}).WithCache(cache)
	q := app.NewQueryService(st, st, st, cache, 10*time.Minute)

	r, _, err := svc.CreateResort(context.Background(), app.ResortInput{ResortFields: app.ResortFields{Name: ptr("Lakeview")}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := q.GetResort(context.Background(), r.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.UpdateResortMedia(context.Background(), r.ID, app.ResortPatch{
		NewImages: refs("https://cdn/upload/v1/a.jpg"),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	d, err := q.GetResort(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(d.Files) != 1 || len(d.Files[0].Images) != 1 {
		t.Fatalf("expected fresh files after write, got %+v", d.Files)
	}
}

func TestListResorts_CoverImageAndStatusFilter(t *testing.T) {
	st := memory.New()
	svc := app.NewResortService(st, st, st, &fakeMedia{}, app.ReconcilerOptions{})
	q := app.NewQueryService(st, st, st, &fakeCache{}, time.Minute)
	ctx := context.Background()

	if _, _, err := svc.CreateResort(ctx, app.ResortInput{
		ResortFields: app.ResortFields{Name: ptr("Lakeview")},
		Images:       refs("https://cdn/upload/v1/cover.jpg", "https://cdn/upload/v1/second.jpg"),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CreateResort(ctx, app.ResortInput{
		ResortFields: app.ResortFields{Name: ptr("Closed Camp"), Status: ptr("inactive")},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	active := domain.StatusActive
	out, err := q.ListResorts(ctx, domain.ResortsQuery{Status: &active, Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].Name != "Lakeview" {
		t.Fatalf("unexpected list: %+v", out)
	}
	if out[0].Image == nil || out[0].Image.URL != "https://cdn/upload/v1/cover.jpg" {
		t.Fatalf("expected first image as cover, got %+v", out[0].Image)
	}

	all, err := q.ListResorts(ctx, domain.ResortsQuery{Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 resorts, got %d", len(all))
	}
}

func TestListReviews_Cache(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	if _, err := st.AddReview(ctx, domain.Review{ResortID: "r1", Author: "Ana", Rating: 5, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cache := &fakeCache{}
	q := app.NewQueryService(st, st, st, cache, 10*time.Minute)
	pg := domain.PageQuery{Limit: 50, Sort: "-created_at"}

	out, err := q.ListReviews(ctx, "r1", pg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Author != "Ana" {
		t.Fatalf("unexpected reviews: %+v", out.Items)
	}

	// Add a review directly, call again -> should come from cache
	if _, err := st.AddReview(ctx, domain.Review{ResortID: "r1", Author: "Bo", Rating: 4, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	out2, _ := q.ListReviews(ctx, "r1", pg)
	if len(out2.Items) != 1 {
		t.Fatalf("expected cached page, got %d items", len(out2.Items))
	}

	// Uncached limits always hit the store
	out3, _ := q.ListReviews(ctx, "r1", domain.PageQuery{Limit: 7, Sort: "-created_at"})
	if len(out3.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out3.Items))
	}
}

func TestListReviews_CursorPagesBypassCache(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	for i := 0; i < 52; i++ {
		if _, err := st.AddReview(ctx, domain.Review{ResortID: "r1", Author: fmt.Sprint("u", i), Rating: 5, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	cache := &fakeCache{}
	q := app.NewQueryService(st, st, st, cache, 10*time.Minute)
	pg := domain.PageQuery{Limit: 50, Sort: "-created_at"}

	first, err := q.ListReviews(ctx, "r1", pg)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Items) != 50 || first.Items[0].Author != "u51" || first.NextCursor == nil {
		t.Fatalf("unexpected first page: %d items, next %v", len(first.Items), first.NextCursor)
	}

	// same limit and sort as the cached first page
	pg.Cursor = first.NextCursor
	second, err := q.ListReviews(ctx, "r1", pg)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Items) != 2 || second.Items[0].Author != "u1" || second.NextCursor != nil {
		t.Fatalf("unexpected second page: %+v", second)
	}
	if len(cache.store) != 1 {
		t.Fatalf("only the first page should be cached, got %d entries", len(cache.store))
	}
}

func TestListReviews_EmptyIsNotNil(t *testing.T) {
	st := memory.New()
	q := app.NewQueryService(st, st, st, &fakeCache{}, time.Minute)
	out, err := q.ListReviews(context.Background(), "none", domain.PageQuery{Limit: 50, Sort: "-created_at"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.Items == nil {
		t.Fatalf("expected empty slice, got nil")
	}
}
