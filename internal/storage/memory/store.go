// Package memory is a process-local store used for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"resort_hub/internal/domain"
)

type Store struct {
	mu      sync.Mutex
	resorts map[string]domain.Resort
	files   map[string]domain.FileRecord
	reviews map[string][]domain.Review
	admins  map[string]domain.Admin
}

func New() *Store {
	return &Store{
		resorts: map[string]domain.Resort{},
		files:   map[string]domain.FileRecord{},
		reviews: map[string][]domain.Review{},
		admins:  map[string]domain.Admin{},
	}
}

/********** resorts **********/

func (s *Store) GetResort(ctx context.Context, id string) (domain.Resort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resorts[id]
	if !ok {
		return domain.Resort{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *Store) CreateResort(ctx context.Context, r domain.Resort) (domain.Resort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, dup := s.resorts[r.ID]; dup {
		return domain.Resort{}, domain.ErrConflict
	}
	s.resorts[r.ID] = r
	return r, nil
}

func (s *Store) UpdateResort(ctx context.Context, r domain.Resort) (domain.Resort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resorts[r.ID]; !ok {
		return domain.Resort{}, domain.ErrNotFound
	}
	s.resorts[r.ID] = r
	return r, nil
}

func (s *Store) DeleteResort(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resorts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.resorts, id)
	return nil
}

func (s *Store) ListResorts(ctx context.Context, q domain.ResortsQuery) ([]domain.ResortSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ResortSummary, 0, len(s.resorts))
	for _, r := range s.resorts {
		if q.Status != nil && r.Status != *q.Status {
			continue
		}
		if q.Q != nil && !strings.Contains(strings.ToLower(r.Name+" "+r.Location), strings.ToLower(*q.Q)) {
			continue
		}
		sum := domain.ResortSummary{Resort: r}
		if rec, ok := s.files[r.ID]; ok && len(rec.Images) > 0 {
			img := rec.Images[0]
			sum.Image = &img
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

/********** files **********/

func cloneFiles(rec domain.FileRecord) domain.FileRecord {
	rec.Images = append([]domain.MediaRef{}, rec.Images...)
	rec.Videos = append([]domain.MediaRef{}, rec.Videos...)
	return rec
}

func (s *Store) FindByResortID(ctx context.Context, resortID string) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[resortID]
	if !ok {
		return domain.FileRecord{}, domain.ErrNotFound
	}
	return cloneFiles(rec), nil
}

func (s *Store) CreateFiles(ctx context.Context, rec domain.FileRecord) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.files[rec.ResortID]; dup {
		return domain.FileRecord{}, domain.ErrConflict
	}
	rec = cloneFiles(rec)
	s.files[rec.ResortID] = rec
	return cloneFiles(rec), nil
}

func (s *Store) EnsureFiles(ctx context.Context, resortID string) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFiles(s.ensureLocked(resortID)), nil
}

func (s *Store) ensureLocked(resortID string) domain.FileRecord {
	rec, ok := s.files[resortID]
	if !ok {
		now := time.Now().UTC()
		rec = domain.FileRecord{ResortID: resortID, Images: []domain.MediaRef{}, Videos: []domain.MediaRef{},
			CreatedAt: now, UpdatedAt: now}
		s.files[resortID] = rec
	}
	return rec
}

func (s *Store) ApplyMediaChange(ctx context.Context, resortID string, c domain.MediaChange) (domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := c.Apply(s.ensureLocked(resortID))
	rec.UpdatedAt = time.Now().UTC()
	s.files[resortID] = rec
	return cloneFiles(rec), nil
}

func (s *Store) DeleteFilesByResortID(ctx context.Context, resortID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, resortID)
	return nil
}

func (s *Store) DeleteFilesIfEmpty(ctx context.Context, resortID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.files[resortID]
	if !ok || !rec.Empty() {
		return false, nil
	}
	delete(s.files, resortID)
	return true, nil
}

/********** reviews **********/

func (s *Store) AddReview(ctx context.Context, r domain.Review) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.reviews[r.ResortID] = append(s.reviews[r.ResortID], r)
	return r, nil
}

// ListReviews returns newest first. The cursor is the id of the last review
// of the previous page.
func (s *Store) ListReviews(ctx context.Context, resortID string, pg domain.PageQuery) (domain.ReviewsPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.reviews[resortID]
	items := make([]domain.Review, 0, len(src))
	skipping := pg.Cursor != nil && *pg.Cursor != ""
	for i := len(src) - 1; i >= 0; i-- {
		if skipping {
			skipping = src[i].ID != *pg.Cursor
			continue
		}
		items = append(items, src[i])
	}
	out := domain.ReviewsPage{Items: items}
	if pg.Limit > 0 && len(items) > pg.Limit {
		out.Items = items[:pg.Limit]
		next := out.Items[pg.Limit-1].ID
		out.NextCursor = &next
	}
	return out, nil
}

func (s *Store) DeleteReviewsByResortID(ctx context.Context, resortID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reviews, resortID)
	return nil
}

/********** admins **********/

func (s *Store) CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.admins {
		if x.Email == a.Email {
			return domain.Admin{}, domain.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.admins[a.ID] = a
	return a, nil
}

func (s *Store) FindAdminByEmail(ctx context.Context, email string) (domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Admin{}, domain.ErrNotFound
}

func (s *Store) GetAdmin(ctx context.Context, id string) (domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return domain.Admin{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.LastLogin = &at
	s.admins[id] = a
	return nil
}
