package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"resort_hub/internal/domain"
)

// OrphanJanitor retries remote deletes that failed during a reconciliation.
type OrphanJanitor struct {
	media       domain.MediaStore
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

func NewOrphanJanitor(m domain.MediaStore, timeout time.Duration, maxAttempts int) *OrphanJanitor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OrphanJanitor{media: m, timeout: timeout, maxAttempts: maxAttempts, now: time.Now}
}

// WithRetryDelay spaces retries: attempt n is not retried before
// FailedAt + n*d.
func (j *OrphanJanitor) WithRetryDelay(d time.Duration) *OrphanJanitor {
	j.retryDelay = d
	return j
}

// Handle retries one orphan. When the delete fails again and attempts remain,
// it returns the orphan to requeue; once attempts are exhausted it gives up
// with an error and nil. A cancelled wait returns the orphan unchanged with
// the context error.
func (j *OrphanJanitor) Handle(ctx context.Context, o domain.OrphanedMedia) (*domain.OrphanedMedia, error) {
	if o.PublicID == "" || !o.Kind.Valid() {
		return nil, fmt.Errorf("malformed orphan %+v", o)
	}
	if wait := o.FailedAt.Add(time.Duration(o.Attempts) * j.retryDelay).Sub(j.now()); j.retryDelay > 0 && wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return &o, ctx.Err()
		case <-t.C:
		}
	}

	dctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	err := j.media.Destroy(dctx, o.PublicID, o.Kind)
	if err == nil {
		log.Info().Str("public_id", o.PublicID).Str("kind", string(o.Kind)).Int("attempts", o.Attempts+1).Msg("orphan deleted")
		return nil, nil
	}

	next := o
	next.Attempts++
	next.Reason = err.Error()
	next.FailedAt = j.now().UTC()
	if next.Attempts >= j.maxAttempts {
		return nil, fmt.Errorf("giving up on %s %q after %d attempts: %w", o.Kind, o.PublicID, next.Attempts, err)
	}
	return &next, nil
}

// Outcome of processing one orphan, as reported to metrics.
const (
	OrphanDeleted   = "deleted"
	OrphanRequeued  = "requeued"
	OrphanAbandoned = "abandoned"
)

// Process handles o and puts a retryable orphan back on sink. The returned
// error is non-nil only when the orphan could neither be deleted nor
// requeued, or when ctx ended first.
func (j *OrphanJanitor) Process(ctx context.Context, o domain.OrphanedMedia, sink domain.OrphanSink) (string, error) {
	next, err := j.Handle(ctx, o)
	switch {
	case err != nil && ctx.Err() != nil:
		return "", err
	case err != nil:
		log.Error().Err(err).Str("resort_id", o.ResortID).Msg("orphan abandoned")
		return OrphanAbandoned, nil
	case next == nil:
		return OrphanDeleted, nil
	}
	if err := sink.PublishOrphan(ctx, *next); err != nil {
		return "", fmt.Errorf("requeue %s %q: %w", next.Kind, next.PublicID, err)
	}
	log.Warn().Str("public_id", next.PublicID).Int("attempts", next.Attempts).Str("reason", next.Reason).Msg("orphan requeued")
	return OrphanRequeued, nil
}
