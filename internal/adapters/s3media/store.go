// Package s3media deletes media kept in an S3-compatible bucket. Objects are
// keyed "<prefix>/<kind>s/<identifier>.<ext>" or "<prefix>/<identifier>.<ext>".
package s3media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"resort_hub/internal/adapters/observability"
	"resort_hub/internal/domain"
)

// API is the subset of the S3 client the store needs.
type API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Options struct {
	Bucket    string
	Region    string
	Endpoint  string // MinIO or other S3-compatible hosts
	AccessKey string
	SecretKey string
	Prefix    string
}

type Store struct {
	api    API
	bucket string
	prefix string
}

func New(ctx context.Context, o Options) (*Store, error) {
	if o.Bucket == "" {
		return nil, fmt.Errorf("s3media: bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3media: load aws config: %w", err)
	}
	cl := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	return NewWithAPI(cl, o.Bucket, o.Prefix), nil
}

func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Destroy deletes every object stored under the identifier, whatever its
// extension. S3 deletes are idempotent, so a missing object is not an error.
func (s *Store) Destroy(ctx context.Context, publicID string, kind domain.MediaKind) error {
	if publicID == "" {
		return fmt.Errorf("s3media: empty public id")
	}
	keys, err := s.keysFor(ctx, publicID)
	if err != nil {
		observability.ObserveMediaDelete("s3", string(kind), "error")
		return err
	}
	if len(keys) == 0 {
		observability.ObserveMediaDelete("s3", string(kind), "gone")
		return nil
	}
	for _, k := range keys {
		if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(k)}); err != nil {
			observability.ObserveMediaDelete("s3", string(kind), "error")
			return fmt.Errorf("s3media: delete %s/%s: %w", s.bucket, k, err)
		}
		log.Debug().Str("bucket", s.bucket).Str("key", k).Msg("s3 object deleted")
	}
	observability.ObserveMediaDelete("s3", string(kind), "ok")
	return nil
}

// keysFor lists the identifier's object and its extension variants.
func (s *Store) keysFor(ctx context.Context, publicID string) ([]string, error) {
	base := publicID
	if s.prefix != "" {
		base = path.Join(s.prefix, publicID)
	}
	var keys []string
	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(base),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3media: list %s/%s: %w", s.bucket, base, err)
		}
		for _, obj := range out.Contents {
			k := aws.ToString(obj.Key)
			if k == base || strings.HasPrefix(k, base+".") {
				keys = append(keys, k)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}
