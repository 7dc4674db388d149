// Package archive stores uploaded résumé files, on local disk or in an
// S3-compatible bucket such as Cloudflare R2.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive persists an uploaded file and returns where it was stored.
type Archive interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName returns "<unix-ms>-<name>" with the name reduced to a safe
// base name.
func ObjectName(now time.Time, name string) string {
	base := unsafeChars.ReplaceAllString(filepath.Base(name), "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}

// Nop discards uploads.
type Nop struct{}

// Put implements Archive.
func (Nop) Put(context.Context, string, []byte, string) (string, error) { return "", nil }

// DirArchive writes uploads into a local directory.
type DirArchive struct {
	dir string
	now func() time.Time
}

// NewDir creates the directory if needed.
func NewDir(dir string) (*DirArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DirArchive{dir: dir, now: time.Now}, nil
}

// Put implements Archive.
func (a *DirArchive) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	path := filepath.Join(a.dir, ObjectName(a.now(), name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

// S3Config describes an S3-compatible bucket. An empty Endpoint uses AWS.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Archive uploads into a bucket.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3 creates an S3 archive with static credentials.
func NewS3(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 archive: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/"), now: time.Now}, nil
}

// Put implements Archive.
func (a *S3Archive) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := ObjectName(a.now(), name)
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
