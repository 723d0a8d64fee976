package s3media_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"resort_hub/internal/adapters/s3media"
	"resort_hub/internal/domain"
)

type fakeS3 struct {
	objects map[string]bool
	deleted []string
	failDel bool
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.failDel {
		return nil, errors.New("access denied")
	}
	k := aws.ToString(in.Key)
	f.deleted = append(f.deleted, k)
	delete(f.objects, k)
	return &s3.DeleteObjectOutput{}, nil
}

func TestDestroy_DeletesExtensionVariants(t *testing.T) {
	api := &fakeS3{objects: map[string]bool{
		"media/resorts/images/a.jpg":    true,
		"media/resorts/images/a.webp":   true,
		"media/resorts/images/ab.jpg":   true, // shares the prefix, different identifier
		"media/resorts/images/other.jp": true,
	}}
	st := s3media.NewWithAPI(api, "bucket", "/media/")

	if err := st.Destroy(context.Background(), "resorts/images/a", domain.KindImage); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if len(api.deleted) != 2 {
		t.Fatalf("expected 2 deletes, got %v", api.deleted)
	}
	if !api.objects["media/resorts/images/ab.jpg"] {
		t.Fatalf("deleted an unrelated object")
	}

	// second run finds nothing and still succeeds
	if err := st.Destroy(context.Background(), "resorts/images/a", domain.KindImage); err != nil {
		t.Fatalf("repeat Destroy: %v", err)
	}
}

func TestDestroy_DeleteFailure(t *testing.T) {
	api := &fakeS3{objects: map[string]bool{"v.mp4": true}, failDel: true}
	st := s3media.NewWithAPI(api, "bucket", "")
	if err := st.Destroy(context.Background(), "v", domain.KindVideo); err == nil {
		t.Fatalf("expected error")
	}
}
