package rabbitmq_test

import (
	"testing"
	"time"

	"resort_hub/internal/adapters/rabbitmq"
	"resort_hub/internal/domain"
)

func TestEncodeDecode(t *testing.T) {
	in := domain.OrphanedMedia{
		ResortID: "r1", PublicID: "resorts/images/a", Kind: domain.KindImage,
		Attempts: 2, Reason: "timeout", FailedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	b, err := rabbitmq.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := rabbitmq.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.PublicID != in.PublicID || out.Kind != in.Kind || out.Attempts != 2 || !out.FailedAt.Equal(in.FailedAt) {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestDecodeRejectsUnusable(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"publicId":"","kind":"image"}`,
		`{"publicId":"a","kind":"audio"}`,
	} {
		if _, err := rabbitmq.Decode([]byte(body)); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}
