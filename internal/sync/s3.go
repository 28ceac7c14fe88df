package sync

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultS3Key is the object key used when none is configured.
const DefaultS3Key = "agreements/agreements.jsonl"

// s3API is the subset of the S3 client used by S3Destination.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination writes JSONL backups to an S3-compatible bucket. Each write
// replaces the latest object and, when snapshots are enabled, also stores a
// dated copy next to it.
type S3Destination struct {
	client    s3API
	bucket    string
	key       string
	snapshots bool
	now       func() time.Time
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string, snapshots bool) (*S3Destination, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if key == "" {
		key = DefaultS3Key
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{
		client:    s3.NewFromConfig(cfg, s3opts...),
		bucket:    bucket,
		key:       key,
		snapshots: snapshots,
		now:       time.Now,
	}, nil
}

func (d *S3Destination) String() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads data to the configured object key.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	if err := d.put(ctx, d.key, data); err != nil {
		return err
	}
	if d.snapshots {
		if err := d.put(ctx, snapshotKey(d.key, d.now()), data); err != nil {
			return err
		}
	}
	return nil
}

func (d *S3Destination) put(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

// snapshotKey derives a dated key, e.g. "a/b.jsonl" -> "a/b-20260115T100000Z.jsonl".
func snapshotKey(key string, t time.Time) string {
	stamp := t.UTC().Format("20060102T150405Z")
	base, ext := key, ""
	if i := strings.LastIndex(key, "."); i > strings.LastIndex(key, "/") {
		base, ext = key[:i], key[i:]
	}
	return base + "-" + stamp + ext
}
