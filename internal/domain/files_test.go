package domain_test

import (
	"testing"

	"resort_hub/internal/domain"
)

func ref(s string) domain.MediaRef {
	r, _ := domain.ParseMediaRef(s)
	return r
}

func names(refs []domain.MediaRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.PublicID
	}
	return out
}

func TestMediaChange_Apply(t *testing.T) {
	rec := domain.FileRecord{
		ResortID: "r1",
		Images:   []domain.MediaRef{ref("a"), ref("b"), ref("c"), ref("b")},
		Videos:   []domain.MediaRef{ref("v")},
	}
	c := domain.MediaChange{
		RemoveImages: []domain.MediaRef{ref("b")},
		AddImages:    []domain.MediaRef{ref("d"), ref("e")},
	}
	out := c.Apply(rec)

	want := []string{"a", "c", "d", "e"}
	got := names(out.Images)
	if len(got) != len(want) {
		t.Fatalf("images = %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("images = %v want %v", got, want)
		}
	}
	if len(out.Videos) != 1 {
		t.Fatalf("videos changed: %v", names(out.Videos))
	}
	if len(rec.Images) != 4 || rec.Images[1].PublicID != "b" {
		t.Fatalf("input record was modified: %v", names(rec.Images))
	}
}

func TestMediaChange_ReaddRemoved(t *testing.T) {
	rec := domain.FileRecord{Images: []domain.MediaRef{ref("a"), ref("b")}}
	out := domain.MediaChange{
		RemoveImages: []domain.MediaRef{ref("a")},
		AddImages:    []domain.MediaRef{ref("a")},
	}.Apply(rec)
	if got := names(out.Images); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("images = %v", got)
	}
}

func TestRemoveMatching_NoMatchIsNoop(t *testing.T) {
	in := []domain.MediaRef{ref("a")}
	out := domain.RemoveMatching(in, []domain.MediaRef{ref("zzz")})
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("unexpected %v", names(out))
	}
}

func TestFileRecord_Collection(t *testing.T) {
	rec := domain.FileRecord{Images: []domain.MediaRef{ref("i")}, Videos: []domain.MediaRef{ref("v")}}
	if rec.Collection(domain.KindVideo)[0].PublicID != "v" || rec.Collection(domain.KindImage)[0].PublicID != "i" {
		t.Fatalf("wrong collection")
	}
	if !(domain.FileRecord{}).Empty() || rec.Empty() {
		t.Fatalf("Empty is wrong")
	}
}

func TestRemoveMatching_SiblingWithSameIdentifierSurvives(t *testing.T) {
	in := []domain.MediaRef{
		ref("https://cdn/upload/v1/a.jpg"),
		ref("https://cdn/upload/v1/a.png"),
	}
	out := domain.RemoveMatching(in, []domain.MediaRef{ref("https://cdn/upload/v1/a.jpg")})
	if len(out) != 1 || out[0].URL != "https://cdn/upload/v1/a.png" {
		t.Fatalf("expected only a.png left, got %+v", out)
	}

	// a bare identifier still removes every entry carrying it
	out = domain.RemoveMatching(in, []domain.MediaRef{ref("a")})
	if len(out) != 0 {
		t.Fatalf("expected bare identifier to remove both, got %+v", out)
	}
}
