// Package gcsmedia deletes media kept in a Google Cloud Storage bucket.
package gcsmedia

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"resort_hub/internal/adapters/observability"
	"resort_hub/internal/domain"
)

type Options struct {
	Bucket string
	Prefix string
	// CredentialsJSON is either inline JSON or a path to a key file.
	CredentialsJSON string
	Endpoint        string // fake-gcs-server and other emulators
}

type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// ClientOptions turns credentials and endpoint settings into client options.
func ClientOptions(o Options) []option.ClientOption {
	var opts []option.ClientOption
	creds := strings.TrimSpace(o.CredentialsJSON)
	switch {
	case creds == "":
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	default:
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint), option.WithoutAuthentication())
	}
	return opts
}

func New(ctx context.Context, o Options) (*Store, error) {
	if o.Bucket == "" {
		return nil, fmt.Errorf("gcsmedia: bucket is required")
	}
	opts := append(ClientOptions(o), option.WithScopes(storage.ScopeReadWrite))
	cl, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcsmedia: create storage client: %w", err)
	}
	return &Store{client: cl, bucket: o.Bucket, prefix: strings.Trim(o.Prefix, "/")}, nil
}

func (s *Store) Close() error { return s.client.Close() }

// ObjectBase is the object name an identifier maps to, before the extension.
func ObjectBase(prefix, publicID string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return publicID
	}
	return path.Join(prefix, publicID)
}

// Destroy deletes the identifier's objects. Objects already gone count as deleted.
func (s *Store) Destroy(ctx context.Context, publicID string, kind domain.MediaKind) error {
	if publicID == "" {
		return fmt.Errorf("gcsmedia: empty public id")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	base := ObjectBase(s.prefix, publicID)
	bkt := s.client.Bucket(s.bucket)
	it := bkt.Objects(ctx, &storage.Query{Prefix: base})
	deleted := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			observability.ObserveMediaDelete("gcs", string(kind), "error")
			return fmt.Errorf("gcsmedia: list %q: %w", base, err)
		}
		if attrs.Name != base && !strings.HasPrefix(attrs.Name, base+".") {
			continue
		}
		if err := bkt.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			observability.ObserveMediaDelete("gcs", string(kind), "error")
			return fmt.Errorf("gcsmedia: delete GCS object %q in bucket %q: %w", attrs.Name, s.bucket, err)
		}
		log.Debug().Str("bucket", s.bucket).Str("object", attrs.Name).Msg("gcs object deleted")
		deleted++
	}
	if deleted == 0 {
		observability.ObserveMediaDelete("gcs", string(kind), "gone")
		return nil
	}
	observability.ObserveMediaDelete("gcs", string(kind), "ok")
	return nil
}
