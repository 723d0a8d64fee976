package app_test

import (
	"context"
	"errors"
	"sync"

	"resort_hub/internal/app"
	"resort_hub/internal/domain"
)

// ---- fakes ----

type destroyCall struct {
	PublicID string
	Kind     domain.MediaKind
}

type fakeMedia struct {
	mu    sync.Mutex
	calls []destroyCall
	fail  map[string]bool // public ids that fail
}

func (m *fakeMedia) Destroy(ctx context.Context, publicID string, kind domain.MediaKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, destroyCall{PublicID: publicID, Kind: kind})
	if m.fail[publicID] {
		return errors.New("media host unavailable")
	}
	return nil
}

func (m *fakeMedia) Calls() []destroyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]destroyCall(nil), m.calls...)
}

type fakeSink struct {
	mu  sync.Mutex
	got []domain.OrphanedMedia
}

func (s *fakeSink) PublishOrphan(ctx context.Context, o domain.OrphanedMedia) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, o)
	return nil
}

type fakeCache struct {
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.ResortDetail:
		*d = v.(domain.ResortDetail)
	case *domain.ReviewsPage:
		*d = v.(domain.ReviewsPage)
	case *[]domain.ResortSummary:
		*d = v.([]domain.ResortSummary)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

// failingFiles wraps a file repository and fails ApplyMediaChange.
type failingFiles struct {
	domain.FileRepository
}

func (f failingFiles) ApplyMediaChange(ctx context.Context, resortID string, c domain.MediaChange) (domain.FileRecord, error) {
	return domain.FileRecord{}, errors.New("store unavailable")
}

func ptr[T any](v T) *T { return &v }

func urls(refs []domain.MediaRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.String())
	}
	return out
}

func refs(ss ...string) []domain.MediaRef {
	out := make([]domain.MediaRef, 0, len(ss))
	for _, s := range ss {
		r, _ := domain.ParseMediaRef(s)
		out = append(out, r)
	}
	return out
}

func num(s string) app.Number { return app.Number{Raw: s} }
