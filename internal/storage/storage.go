// Package storage creates buckets and moves files in and out of them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chukul/capsulectl/internal/log"
)

// DefaultClassicRegion is the region where CreateBucket must not carry a
// location constraint.
const DefaultClassicRegion = "us-east-1"

// Bucket name length limits enforced before any remote call.
const (
	MinBucketNameLen = 3
	MaxBucketNameLen = 25
)

var (
	ErrInvalidBucketName = fmt.Errorf("bucket name must be between %d and %d characters", MinBucketNameLen, MaxBucketNameLen)
	ErrFileNotFound      = errors.New("file not found")
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ S3API = (*s3.Client)(nil)

// Bucket is a bucket as listed.
type Bucket struct {
	Name      string
	CreatedAt time.Time
}

// Object is an object as listed or uploaded.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Options tune a Manager.
type Options struct {
	// Region buckets are created in.
	Region string
	// ClassicRegion defaults to DefaultClassicRegion.
	ClassicRegion string
}

// Manager runs bucket and object operations against one S3 client.
type Manager struct {
	client S3API
	opts   Options
}

// New returns a Manager using client.
func New(client S3API, opts Options) *Manager {
	if opts.ClassicRegion == "" {
		opts.ClassicRegion = DefaultClassicRegion
	}
	return &Manager{client: client, opts: opts}
}

// NewFromConfig returns a Manager on a real S3 client in cfg's region.
func NewFromConfig(cfg aws.Config, opts Options) *Manager {
	if opts.Region == "" {
		opts.Region = cfg.Region
	}
	return New(s3.NewFromConfig(cfg), opts)
}

// NormalizeBucketName trims and lower-cases name and checks its length.
func NormalizeBucketName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if n := utf8.RuneCountInString(name); n < MinBucketNameLen || n > MaxBucketNameLen {
		return "", ErrInvalidBucketName
	}
	return name, nil
}

// CreateBucket creates a bucket in the configured region.
func (m *Manager) CreateBucket(ctx context.Context, name string) (*Bucket, error) {
	name, err := NormalizeBucketName(name)
	if err != nil {
		return nil, err
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if m.opts.Region != "" && m.opts.Region != m.opts.ClassicRegion {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(m.opts.Region),
		}
	}

	log.Debugf("create bucket %s region=%q", name, m.opts.Region)
	if _, err := m.client.CreateBucket(ctx, in); err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return &Bucket{Name: name, CreatedAt: time.Now()}, nil
}

// ListBuckets returns all buckets visible to the session.
func (m *Manager) ListBuckets(ctx context.Context) ([]Bucket, error) {
	out, err := m.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, Bucket{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}

// DeleteBucket deletes an empty bucket. Objects are not removed first, so
// a non-empty bucket is reported by the provider.
func (m *Manager) DeleteBucket(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	log.Debugf("delete bucket %s", name)
	if _, err := m.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		return fmt.Errorf("failed to delete bucket %s: %w", name, err)
	}
	return nil
}

// Upload puts the local file at path into bucket under key. A blank key
// uses the file's base name.
func (m *Manager) Upload(ctx context.Context, path, bucket, key string) (*Object, error) {
	path = strings.TrimSpace(path)
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		key = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	defer f.Close()

	log.WithField("bytes", fi.Size()).Debugf("put s3://%s/%s", bucket, key)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return &Object{Key: key, Size: fi.Size(), LastModified: time.Now()}, nil
}

// ListObjects returns every object in bucket.
func (m *Manager) ListObjects(ctx context.Context, bucket string) ([]Object, error) {
	var objects []Object
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in %s: %w", bucket, err)
		}
		log.Tracef("list objects page in %s: %d keys", bucket, len(page.Contents))
		for _, o := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	return objects, nil
}

// DefaultLocalName is the file name Download writes key to when no local
// name is given: the last path element of the key.
func DefaultLocalName(key string) string {
	return filepath.Base(key)
}

// Download writes bucket/key to localName, or to a file named after the
// key when localName is blank. It returns the path written.
func (m *Manager) Download(ctx context.Context, bucket, key, localName string) (string, error) {
	localName = strings.TrimSpace(localName)
	if localName == "" {
		localName = DefaultLocalName(key)
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	f, err := os.Create(localName)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(localName)
		return "", fmt.Errorf("failed to write %s: %w", localName, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	log.Debugf("wrote s3://%s/%s to %s", bucket, key, localName)
	return localName, nil
}

// DeleteObject removes bucket/key.
func (m *Manager) DeleteObject(ctx context.Context, bucket, key string) error {
	log.Debugf("delete s3://%s/%s", bucket, key)
	if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
