package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"resort_hub/internal/domain"
)

type ReconcilerOptions struct {
	GeoRequired       bool          // lat/lng mandatory on create
	PruneEmptyFiles   bool          // drop the file record once both collections are empty
	DeleteTimeout     time.Duration // per remote delete
	DeleteConcurrency int
}

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	if o.DeleteTimeout <= 0 {
		o.DeleteTimeout = 10 * time.Second
	}
	if o.DeleteConcurrency <= 0 {
		o.DeleteConcurrency = 4
	}
	return o
}

// ResortService owns resort writes and keeps each resort's file record and
// the remote media store in step with them.
type ResortService struct {
	resorts domain.ResortRepository
	files   domain.FileRepository
	reviews domain.ReviewRepository
	media   domain.MediaStore
	orphans domain.OrphanSink
	cache   domain.Cache
	opts    ReconcilerOptions
	now     func() time.Time
}

func NewResortService(r domain.ResortRepository, f domain.FileRepository, rv domain.ReviewRepository,
	m domain.MediaStore, opts ReconcilerOptions) *ResortService {
	return &ResortService{resorts: r, files: f, reviews: rv, media: m, opts: opts.withDefaults(), now: time.Now}
}

// WithOrphanSink hands failed remote deletes to a cleanup queue.
func (s *ResortService) WithOrphanSink(o domain.OrphanSink) *ResortService {
	s.orphans = o
	return s
}

// WithCache evicts cached read models after writes.
func (s *ResortService) WithCache(c domain.Cache) *ResortService {
	s.cache = c
	return s
}

type UpdateResult struct {
	Resort           domain.Resort
	Files            domain.FileRecord
	FilesDeleted     bool // pruned after becoming empty
	DeletionFailures []*domain.RemoteDeletionError
}

type DeleteResult struct {
	DeletionAttempts int
	DeletionFailures []*domain.RemoteDeletionError
}

func (s *ResortService) CreateResort(ctx context.Context, in ResortInput) (domain.Resort, domain.FileRecord, error) {
	sc, err := parseScalars(in.ResortFields)
	if err != nil {
		return domain.Resort{}, domain.FileRecord{}, err
	}
	if sc.name == nil {
		return domain.Resort{}, domain.FileRecord{}, domain.Invalid("name", "is required")
	}
	if s.opts.GeoRequired {
		if sc.lat == nil {
			return domain.Resort{}, domain.FileRecord{}, domain.Invalid("lat", "is required")
		}
		if sc.lng == nil {
			return domain.Resort{}, domain.FileRecord{}, domain.Invalid("lng", "is required")
		}
	}
	images, videos := nonZero(in.Images), nonZero(in.Videos)
	if err := validateNewMedia("images", images); err != nil {
		return domain.Resort{}, domain.FileRecord{}, err
	}
	if err := validateNewMedia("videos", videos); err != nil {
		return domain.Resort{}, domain.FileRecord{}, err
	}

	now := s.now().UTC()
	r := domain.Resort{Status: domain.StatusActive, CreatedAt: now, UpdatedAt: now}
	if err := sc.apply(&r); err != nil {
		return domain.Resort{}, domain.FileRecord{}, err
	}

	created, err := s.resorts.CreateResort(ctx, r)
	if err != nil {
		return domain.Resort{}, domain.FileRecord{}, fmt.Errorf("create resort: %w", err)
	}

	rec := domain.FileRecord{ResortID: created.ID, Images: images, Videos: videos}
	if !rec.Empty() {
		rec.CreatedAt, rec.UpdatedAt = now, now
		if rec, err = s.files.CreateFiles(ctx, rec); err != nil {
			return created, domain.FileRecord{}, fmt.Errorf("create files for %s: %w", created.ID, err)
		}
	}
	s.invalidateLists(ctx)

	log.Info().Str("resort", created.ID).Int("images", len(images)).Int("videos", len(videos)).Msg("resort created")
	return created, rec, nil
}

// UpdateResortMedia applies scalar updates to the resort, deletes removed
// media at the media host and reconciles the resort's file record.
//
// The resort write and the file record write are not one transaction: if the
// latter fails the caller sees an updated resort and an error.
func (s *ResortService) UpdateResortMedia(ctx context.Context, id string, p ResortPatch) (UpdateResult, error) {
	sc, err := parseScalars(p.ResortFields)
	if err != nil {
		return UpdateResult{}, err
	}
	change := p.change()
	if err := validateNewMedia("newImages", change.AddImages); err != nil {
		return UpdateResult{}, err
	}
	if err := validateNewMedia("newVideos", change.AddVideos); err != nil {
		return UpdateResult{}, err
	}

	// 1) resort fields
	r, err := s.resorts.GetResort(ctx, id)
	if err != nil {
		return UpdateResult{}, wrapStore("get resort", id, err)
	}
	if err := sc.apply(&r); err != nil {
		return UpdateResult{}, err
	}
	if sc.any() {
		r.UpdatedAt = s.now().UTC()
		if r, err = s.resorts.UpdateResort(ctx, r); err != nil {
			return UpdateResult{}, wrapStore("update resort", id, err)
		}
		s.invalidateResort(ctx, id)
	}
	res := UpdateResult{Resort: r}

	// 2) file record, lazily created
	current, err := s.files.EnsureFiles(ctx, id)
	if err != nil {
		return res, fmt.Errorf("load files for %s: %w", id, err)
	}

	// 3-4) best-effort remote deletes
	var targets []deleteTarget
	targets = append(targets, resolveTargets(domain.KindImage, change.RemoveImages, current.Images)...)
	targets = append(targets, resolveTargets(domain.KindVideo, change.RemoveVideos, current.Videos)...)
	res.DeletionFailures = s.destroyAll(ctx, id, targets)

	// 5-6) remove-then-append in one store mutation
	rec := current
	if !change.Empty() {
		if rec, err = s.files.ApplyMediaChange(ctx, id, change); err != nil {
			return res, fmt.Errorf("apply media change for %s: %w", id, err)
		}
	}
	res.Files = rec
	if s.opts.PruneEmptyFiles && rec.Empty() {
		deleted, err := s.files.DeleteFilesIfEmpty(ctx, id)
		if err != nil {
			return res, fmt.Errorf("prune files for %s: %w", id, err)
		}
		res.FilesDeleted = deleted
		if !deleted {
			// a concurrent append won; report what is stored now
			if cur, err := s.files.FindByResortID(ctx, id); err == nil {
				res.Files = cur
			}
		}
	}
	s.invalidateResort(ctx, id)

	log.Info().
		Str("resort", id).
		Int("removed", len(change.RemoveImages)+len(change.RemoveVideos)).
		Int("added", len(change.AddImages)+len(change.AddVideos)).
		Int("delete_failures", len(res.DeletionFailures)).
		Msg("resort media reconciled")
	return res, nil
}

// DeleteResort removes the resort, its file record, its reviews and, best
// effort, every remote object the file record references.
func (s *ResortService) DeleteResort(ctx context.Context, id string) (DeleteResult, error) {
	if _, err := s.resorts.GetResort(ctx, id); err != nil {
		return DeleteResult{}, wrapStore("get resort", id, err)
	}

	var targets []deleteTarget
	rec, err := s.files.FindByResortID(ctx, id)
	switch {
	case err == nil:
		targets = append(targets, resolveTargets(domain.KindImage, rec.Images, nil)...)
		targets = append(targets, resolveTargets(domain.KindVideo, rec.Videos, nil)...)
	case !errors.Is(err, domain.ErrNotFound):
		return DeleteResult{}, fmt.Errorf("load files for %s: %w", id, err)
	}

	res := DeleteResult{DeletionAttempts: len(targets)}
	res.DeletionFailures = s.destroyAll(ctx, id, targets)

	if err := s.files.DeleteFilesByResortID(ctx, id); err != nil {
		return res, fmt.Errorf("delete files for %s: %w", id, err)
	}
	if s.reviews != nil {
		if err := s.reviews.DeleteReviewsByResortID(ctx, id); err != nil {
			return res, fmt.Errorf("delete reviews for %s: %w", id, err)
		}
	}
	if err := s.resorts.DeleteResort(ctx, id); err != nil {
		return res, wrapStore("delete resort", id, err)
	}
	s.invalidateResort(ctx, id)
	s.invalidateReviews(ctx, id)

	log.Info().Str("resort", id).Int("deleted_media", len(targets)-len(res.DeletionFailures)).Msg("resort deleted")
	return res, nil
}

type deleteTarget struct {
	kind     domain.MediaKind
	publicID string
}

// resolveTargets picks the remote identifier for every removed ref. A URL
// without an extractable identifier borrows the identifier of the stored
// entry with the same URL; with neither there is nothing to delete remotely.
func resolveTargets(kind domain.MediaKind, removed, stored []domain.MediaRef) []deleteTarget {
	seen := map[string]bool{}
	var out []deleteTarget
	for _, ref := range removed {
		pid := ref.PublicID
		if pid == "" && ref.URL != "" {
			for _, st := range stored {
				if st.URL == ref.URL && st.PublicID != "" {
					pid = st.PublicID
					break
				}
			}
		}
		if pid == "" {
			log.Warn().Str("kind", string(kind)).Str("ref", ref.String()).Msg("no remote identifier; skipping remote delete")
			continue
		}
		if seen[pid] {
			continue
		}
		seen[pid] = true
		out = append(out, deleteTarget{kind: kind, publicID: pid})
	}
	return out
}

// destroyAll issues the remote deletes concurrently. Each call is bounded by
// DeleteTimeout; failures are logged, queued for cleanup and returned.
func (s *ResortService) destroyAll(ctx context.Context, resortID string, targets []deleteTarget) []*domain.RemoteDeletionError {
	if len(targets) == 0 || s.media == nil {
		return nil
	}
	errs := make([]*domain.RemoteDeletionError, len(targets))

	var g errgroup.Group
	g.SetLimit(s.opts.DeleteConcurrency)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(ctx, s.opts.DeleteTimeout)
			defer cancel()
			if err := s.media.Destroy(dctx, t.publicID, t.kind); err != nil {
				errs[i] = &domain.RemoteDeletionError{PublicID: t.publicID, Kind: t.kind, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []*domain.RemoteDeletionError
	for _, e := range errs {
		if e == nil {
			continue
		}
		failed = append(failed, e)
		log.Warn().Err(e.Err).Str("resort", resortID).Str("kind", string(e.Kind)).Str("public_id", e.PublicID).
			Msg("remote delete failed; leaving orphan for cleanup")
		s.queueOrphan(ctx, resortID, e)
	}
	return failed
}

func (s *ResortService) queueOrphan(ctx context.Context, resortID string, e *domain.RemoteDeletionError) {
	if s.orphans == nil {
		return
	}
	o := domain.OrphanedMedia{
		ResortID: resortID,
		PublicID: e.PublicID,
		Kind:     e.Kind,
		Attempts: 1,
		Reason:   e.Err.Error(),
		FailedAt: s.now().UTC(),
	}
	if err := s.orphans.PublishOrphan(context.WithoutCancel(ctx), o); err != nil {
		log.Error().Err(err).Str("public_id", e.PublicID).Msg("queue orphaned media failed")
	}
}

// wrapStore keeps ErrNotFound visible to callers and labels everything else.
func wrapStore(op, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("resort %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}
