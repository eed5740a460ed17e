// Package backup uploads gzip-compressed JSON exports of the catalog to
// S3-compatible object storage and rotates old copies.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/wipacrepo/pubs/internal/export"
	"github.com/wipacrepo/pubs/internal/publication"
)

// keyTimeFormat sorts lexically in chronological order.
const keyTimeFormat = "2006-01-02T15-04-05Z"

// Uploader is the subset of the S3 API used for backups.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Target names the bucket credentials and layout.
type Target struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	Keep      int
}

// NewS3Client builds a client for t. A custom endpoint switches to
// path-style addressing, which most S3-compatible stores require.
func NewS3Client(ctx context.Context, t Target) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(t.Region),
	}
	if t.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(t.AccessKey, t.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if t.Endpoint != "" {
			o.BaseEndpoint = aws.String(t.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Result describes one backup run.
type Result struct {
	Key     string   `json:"key"`
	Records int      `json:"records"`
	Bytes   int      `json:"bytes"`
	Deleted []string `json:"deleted,omitempty"`
}

// Backup writes exports to a Target.
type Backup struct {
	client Uploader
	target Target
	log    *zap.Logger
	now    func() time.Time
}

// New returns a Backup writing through client.
func New(client Uploader, t Target, log *zap.Logger) *Backup {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backup{client: client, target: t, log: log, now: time.Now}
}

// Key returns the object key for a backup taken at ts.
func (b *Backup) Key(ts time.Time) string {
	return b.target.Prefix + "pubs-" + ts.UTC().Format(keyTimeFormat) + ".json.gz"
}

// Run uploads pubs and deletes the oldest backups beyond the keep count.
// Failed deletions are logged and do not fail the run.
func (b *Backup) Run(ctx context.Context, pubs []publication.Publication) (*Result, error) {
	if b.target.Bucket == "" {
		return nil, fmt.Errorf("backup bucket is not configured")
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := export.WriteJSON(zw, pubs); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing backup: %w", err)
	}

	res := &Result{Key: b.Key(b.now()), Records: len(pubs), Bytes: buf.Len()}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(b.target.Bucket),
		Key:             aws.String(res.Key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading s3://%s/%s: %w", b.target.Bucket, res.Key, err)
	}
	b.log.Info("backup uploaded",
		zap.String("bucket", b.target.Bucket),
		zap.String("key", res.Key),
		zap.Int("records", res.Records))

	deleted, err := b.rotate(ctx)
	if err != nil {
		return res, err
	}
	res.Deleted = deleted
	return res, nil
}

func (b *Backup) rotate(ctx context.Context) ([]string, error) {
	if b.target.Keep <= 0 {
		return nil, nil
	}

	var keys []string
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.target.Bucket),
		Prefix: aws.String(b.target.Prefix + "pubs-"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing backups: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, ".json.gz") {
				keys = append(keys, key)
			}
		}
	}
	if len(keys) <= b.target.Keep {
		return nil, nil
	}

	// Newest first.
	slices.Sort(keys)
	slices.Reverse(keys)

	var deleted []string
	for _, key := range keys[b.target.Keep:] {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.target.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			b.log.Warn("deleting old backup failed", zap.String("key", key), zap.Error(err))
			continue
		}
		b.log.Info("deleted old backup", zap.String("key", key))
		deleted = append(deleted, key)
	}
	return deleted, nil
}
