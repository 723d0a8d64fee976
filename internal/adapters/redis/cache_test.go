package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "resort_hub/internal/adapters/redis"
	"resort_hub/internal/domain"
)

func TestCacheRoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	defer c.Close()
	ctx := context.Background()

	in := domain.ResortDetail{
		Resort: domain.Resort{ID: "r1", Name: "Lakeview"},
		Files: []domain.FileRecord{{
			ResortID: "r1",
			Images:   []domain.MediaRef{{URL: "https://cdn/upload/v1/a.jpg", PublicID: "a"}},
		}},
	}
	if err := c.Set(ctx, "resort:r1", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out domain.ResortDetail
	ok, err := c.Get(ctx, "resort:r1", &out)
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if out.Resort.Name != "Lakeview" || out.Files[0].Images[0].PublicID != "a" {
		t.Fatalf("unexpected value: %+v", out)
	}

	mr.FastForward(61 * time.Second)
	if ok, _ := c.Get(ctx, "resort:r1", &out); ok {
		t.Fatalf("expected expiry")
	}
}

func TestCacheDelAndIncr(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "k", 1, 60)
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	var v int
	if ok, _ := c.Get(ctx, "k", &v); ok {
		t.Fatalf("expected miss")
	}

	for want := int64(1); want <= 2; want++ {
		n, err := c.Incr(ctx, "stats:page_views")
		if err != nil || n != want {
			t.Fatalf("incr = %d, %v", n, err)
		}
	}
}
