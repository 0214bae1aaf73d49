package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu         sync.Mutex
	buckets    map[string]map[string][]byte
	calls      []string
	lastCreate *s3.CreateBucketInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: make(map[string]map[string][]byte)}
}

func noSuchBucket(name string) error {
	return &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "The specified bucket does not exist: " + name}
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "CreateBucket")
	f.lastCreate = in
	name := aws.ToString(in.Bucket)
	if _, ok := f.buckets[name]; ok {
		return nil, &smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou", Message: "Your previous request to create the named bucket succeeded and you already own it."}
	}
	f.buckets[name] = make(map[string][]byte)
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ListBuckets")
	var names []string
	for n := range f.buckets {
		names = append(names, n)
	}
	sort.Strings(names)
	out := &s3.ListBucketsOutput{}
	for _, n := range names {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(n), CreationDate: aws.Time(time.Now())})
	}
	return out, nil
}

func (f *fakeS3) DeleteBucket(_ context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "DeleteBucket")
	name := aws.ToString(in.Bucket)
	objs, ok := f.buckets[name]
	if !ok {
		return nil, noSuchBucket(name)
	}
	if len(objs) > 0 {
		return nil, &smithy.GenericAPIError{Code: "BucketNotEmpty", Message: "The bucket you tried to delete is not empty"}
	}
	delete(f.buckets, name)
	return &s3.DeleteBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "PutObject")
	objs, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, noSuchBucket(aws.ToString(in.Bucket))
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	objs[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GetObject")
	objs, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, noSuchBucket(aws.ToString(in.Bucket))
	}
	b, ok := objs[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(b)),
		ContentLength: aws.Int64(int64(len(b))),
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "DeleteObject")
	objs, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, noSuchBucket(aws.ToString(in.Bucket))
	}
	delete(objs, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ListObjectsV2")
	objs, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, noSuchBucket(aws.ToString(in.Bucket))
	}
	var keys []string
	for k := range objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(objs[k]))),
			LastModified: aws.Time(time.Now()),
		})
	}
	return out, nil
}

func TestCreateBucketRejectsBadNamesLocally(t *testing.T) {
	tests := []string{"", "ab", "  ab  ", "éé", "this-name-is-far-too-long-for-us"}
	for _, name := range tests {
		f := newFakeS3()
		m := New(f, Options{Region: "eu-west-1"})
		_, err := m.CreateBucket(context.Background(), name)
		assert.True(t, errors.Is(err, ErrInvalidBucketName), "name %q", name)
		assert.Empty(t, f.calls, "name %q reached the provider", name)
	}
}

func TestNormalizeBucketNameCountsCharacters(t *testing.T) {
	// 13 characters, 26 bytes
	name, err := NormalizeBucketName("ééééééééééééé")
	require.NoError(t, err)
	assert.Equal(t, "ééééééééééééé", name)

	_, err = NormalizeBucketName("éé")
	assert.True(t, errors.Is(err, ErrInvalidBucketName))
}

func TestCreateBucketNormalizesName(t *testing.T) {
	f := newFakeS3()
	m := New(f, Options{Region: "us-east-1"})

	b, err := m.CreateBucket(context.Background(), "  TimeCapsule-Alice ")
	require.NoError(t, err)
	assert.Equal(t, "timecapsule-alice", b.Name)
	assert.Contains(t, f.buckets, "timecapsule-alice")
}

func TestCreateBucketLocationConstraint(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantConfig bool
	}{
		{name: "classic region", opts: Options{Region: "us-east-1"}},
		{name: "empty region", opts: Options{}},
		{name: "other region", opts: Options{Region: "eu-west-1"}, wantConfig: true},
		{name: "custom classic region", opts: Options{Region: "eu-west-1", ClassicRegion: "eu-west-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeS3()
			m := New(f, tt.opts)
			_, err := m.CreateBucket(context.Background(), "bucket")
			require.NoError(t, err)
			if !tt.wantConfig {
				assert.Nil(t, f.lastCreate.CreateBucketConfiguration)
				return
			}
			require.NotNil(t, f.lastCreate.CreateBucketConfiguration)
			assert.Equal(t, types.BucketLocationConstraint(tt.opts.Region), f.lastCreate.CreateBucketConfiguration.LocationConstraint)
		})
	}
}

func TestListAndDeleteBuckets(t *testing.T) {
	f := newFakeS3()
	m := New(f, Options{})
	ctx := context.Background()
	for _, n := range []string{"bbb", "aaa"} {
		_, err := m.CreateBucket(ctx, n)
		require.NoError(t, err)
	}

	list, err := m.ListBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "aaa", list[0].Name)

	require.NoError(t, m.DeleteBucket(ctx, "aaa"))
	err = m.DeleteBucket(ctx, "aaa")
	require.Error(t, err)
	var ae smithy.APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "NoSuchBucket", ae.ErrorCode())
}

func TestDeleteBucketDoesNotEmptyIt(t *testing.T) {
	f := newFakeS3()
	f.buckets["full"] = map[string][]byte{"a": []byte("x")}
	m := New(f, Options{})

	err := m.DeleteBucket(context.Background(), "full")
	require.Error(t, err)
	assert.Contains(t, f.buckets, "full")
	assert.NotContains(t, f.calls, "DeleteObject")
}

func TestUploadDefaultsKeyToBaseName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello capsule"), 0600))

	f := newFakeS3()
	f.buckets["timecapsule-alice"] = map[string][]byte{}
	m := New(f, Options{})

	obj, err := m.Upload(context.Background(), path, "timecapsule-alice", "  ")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", obj.Key)
	assert.Equal(t, int64(len("hello capsule")), obj.Size)
	assert.Equal(t, []byte("hello capsule"), f.buckets["timecapsule-alice"]["notes.txt"])

	list, err := m.ListObjects(context.Background(), "timecapsule-alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, obj.Size, list[0].Size)
}

func TestUploadMissingFile(t *testing.T) {
	dir := t.TempDir()
	f := newFakeS3()
	m := New(f, Options{})

	for _, path := range []string{filepath.Join(dir, "nope.txt"), dir} {
		_, err := m.Upload(context.Background(), path, "b", "")
		assert.True(t, errors.Is(err, ErrFileNotFound), path)
	}
	assert.Empty(t, f.calls)
}

func TestDownload(t *testing.T) {
	dir := t.TempDir()
	f := newFakeS3()
	f.buckets["b"] = map[string][]byte{"report.txt": []byte("contents")}
	m := New(f, Options{})
	ctx := context.Background()

	target := filepath.Join(dir, "copy.txt")
	got, err := m.Download(ctx, "b", "report.txt", target)
	require.NoError(t, err)
	assert.Equal(t, target, got)
	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(b))

	prevWD, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prevWD) })
	got, err = m.Download(ctx, "b", "report.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "report.txt", got)
	_, err = os.Stat(filepath.Join(dir, "report.txt"))
	assert.NoError(t, err)
}

func TestDownloadMissingKeyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	f := newFakeS3()
	f.buckets["b"] = map[string][]byte{}
	m := New(f, Options{})

	target := filepath.Join(dir, "x")
	_, err := m.Download(context.Background(), "b", "missing", target)
	require.Error(t, err)
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteObject(t *testing.T) {
	f := newFakeS3()
	f.buckets["b"] = map[string][]byte{"k": nil}
	m := New(f, Options{})

	require.NoError(t, m.DeleteObject(context.Background(), "b", "k"))
	assert.Empty(t, f.buckets["b"])
	assert.Error(t, m.DeleteObject(context.Background(), "nobucket", "k"))
}
