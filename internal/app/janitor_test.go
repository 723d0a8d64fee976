package app_test

import (
	"context"
	"testing"
	"time"

	"resort_hub/internal/app"
	"resort_hub/internal/domain"
)

func TestOrphanJanitor_Handle(t *testing.T) {
	m := &fakeMedia{fail: map[string]bool{"stuck": true}}
	j := app.NewOrphanJanitor(m, time.Second, 3)
	ctx := context.Background()

	next, err := j.Handle(ctx, domain.OrphanedMedia{PublicID: "ok", Kind: domain.KindImage, Attempts: 1})
	if err != nil || next != nil {
		t.Fatalf("expected done, got %+v %v", next, err)
	}

	next, err = j.Handle(ctx, domain.OrphanedMedia{PublicID: "stuck", Kind: domain.KindVideo, Attempts: 1})
	if err != nil || next == nil {
		t.Fatalf("expected requeue, got %+v %v", next, err)
	}
	if next.Attempts != 2 || next.Reason == "" {
		t.Fatalf("unexpected requeued orphan: %+v", next)
	}

	next, err = j.Handle(ctx, *next)
	if err == nil || next != nil {
		t.Fatalf("expected give up after max attempts, got %+v %v", next, err)
	}
	if got := len(m.Calls()); got != 3 {
		t.Fatalf("expected 3 deletes, got %d", got)
	}
}

func TestOrphanJanitor_Malformed(t *testing.T) {
	m := &fakeMedia{}
	j := app.NewOrphanJanitor(m, 0, 0)
	if _, err := j.Handle(context.Background(), domain.OrphanedMedia{Kind: "audio", PublicID: "x"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if len(m.Calls()) != 0 {
		t.Fatalf("malformed orphan must not be deleted")
	}
}

func TestOrphanJanitor_WaitHonorsContext(t *testing.T) {
	m := &fakeMedia{}
	j := app.NewOrphanJanitor(m, time.Second, 3).WithRetryDelay(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	o := domain.OrphanedMedia{PublicID: "a", Kind: domain.KindImage, Attempts: 1, FailedAt: time.Now()}
	next, err := j.Handle(ctx, o)
	if err == nil || next == nil || next.Attempts != 1 {
		t.Fatalf("expected unchanged orphan and ctx error, got %+v %v", next, err)
	}
	if len(m.Calls()) != 0 {
		t.Fatalf("delete must wait for the retry delay")
	}
}

func TestOrphanJanitor_Process(t *testing.T) {
	m := &fakeMedia{fail: map[string]bool{"stuck": true}}
	sink := &fakeSink{}
	j := app.NewOrphanJanitor(m, time.Second, 2)
	ctx := context.Background()

	out, err := j.Process(ctx, domain.OrphanedMedia{PublicID: "ok", Kind: domain.KindImage}, sink)
	if err != nil || out != app.OrphanDeleted {
		t.Fatalf("want deleted, got %q %v", out, err)
	}

	out, err = j.Process(ctx, domain.OrphanedMedia{ResortID: "r1", PublicID: "stuck", Kind: domain.KindImage}, sink)
	if err != nil || out != app.OrphanRequeued {
		t.Fatalf("want requeued, got %q %v", out, err)
	}
	if len(sink.got) != 1 || sink.got[0].Attempts != 1 || sink.got[0].ResortID != "r1" {
		t.Fatalf("unexpected requeue: %+v", sink.got)
	}

	out, err = j.Process(ctx, sink.got[0], sink)
	if err != nil || out != app.OrphanAbandoned {
		t.Fatalf("want abandoned, got %q %v", out, err)
	}
	if len(sink.got) != 1 {
		t.Fatalf("abandoned orphan must not be requeued: %+v", sink.got)
	}
}
