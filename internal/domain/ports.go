package domain

import (
	"context"
	"time"
)

type ResortRepository interface {
	GetResort(ctx context.Context, id string) (Resort, error)
	CreateResort(ctx context.Context, r Resort) (Resort, error)
	UpdateResort(ctx context.Context, r Resort) (Resort, error)
	DeleteResort(ctx context.Context, id string) error
	ListResorts(ctx context.Context, q ResortsQuery) ([]ResortSummary, error)
}

type FileRepository interface {
	// FindByResortID returns ErrNotFound when the resort has no file record.
	FindByResortID(ctx context.Context, resortID string) (FileRecord, error)
	CreateFiles(ctx context.Context, rec FileRecord) (FileRecord, error)
	// EnsureFiles returns the existing record or lazily creates an empty one.
	EnsureFiles(ctx context.Context, resortID string) (FileRecord, error)
	// ApplyMediaChange runs remove-matching-then-append as one atomic mutation
	// of the resort's record, creating it when absent.
	ApplyMediaChange(ctx context.Context, resortID string, c MediaChange) (FileRecord, error)
	DeleteFilesByResortID(ctx context.Context, resortID string) error
	// DeleteFilesIfEmpty deletes the record only if both collections are
	// still empty at delete time, and reports whether it did.
	DeleteFilesIfEmpty(ctx context.Context, resortID string) (bool, error)
}

type ReviewRepository interface {
	AddReview(ctx context.Context, r Review) (Review, error)
	ListReviews(ctx context.Context, resortID string, pg PageQuery) (ReviewsPage, error)
	DeleteReviewsByResortID(ctx context.Context, resortID string) error
}

type AdminRepository interface {
	CreateAdmin(ctx context.Context, a Admin) (Admin, error)
	FindAdminByEmail(ctx context.Context, email string) (Admin, error)
	GetAdmin(ctx context.Context, id string) (Admin, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// MediaStore deletes objects at the media host. Deleting an object that is
// already gone must succeed.
type MediaStore interface {
	Destroy(ctx context.Context, publicID string, kind MediaKind) error
}

// OrphanedMedia is a remote object whose delete failed and still needs cleanup.
type OrphanedMedia struct {
	ResortID string    `json:"resortId"`
	PublicID string    `json:"publicId"`
	Kind     MediaKind `json:"kind"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason,omitempty"`
	FailedAt time.Time `json:"failedAt"`
}

type OrphanSink interface {
	PublishOrphan(ctx context.Context, o OrphanedMedia) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
}
