package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/codearc/blobstore"
)

// fakeS3Client is an in-memory S3 for testing, including enough of the
// multipart API to satisfy the upload manager.
type fakeS3Client struct {
	mu        sync.Mutex
	objects   map[string][]byte
	checksums map[string]string
	uploads   map[string]map[int32][]byte
	nextID    int
	completes int
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{
		objects:   make(map[string][]byte),
		checksums: make(map[string]string),
		uploads:   make(map[string]map[int32][]byte),
	}
}

func (f *fakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	start, end := int64(0), int64(len(data))-1
	if params.Range != nil {
		if _, err := fmt.Sscanf(*params.Range, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
	}

	body := make([]byte, end-start+1)
	copy(body, data[start:end+1])
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (f *fakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*params.Key] = data
	if params.ChecksumCRC32C != nil {
		f.checksums[*params.Key] = *params.ChecksumCRC32C
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if params.Prefix == nil || len(*params.Prefix) == 0 || (len(k) >= len(*params.Prefix) && k[:len(*params.Prefix)] == *params.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("upload-%d:%s", f.nextID, *params.Key)
	f.uploads[id] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.uploads[*params.UploadId]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	parts[*params.PartNumber] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", *params.PartNumber))}, nil
}

func (f *fakeS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts, ok := f.uploads[*params.UploadId]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}

	nums := make([]int32, 0, len(parts))
	for n := range parts {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	var buf bytes.Buffer
	for _, n := range nums {
		buf.Write(parts[n])
	}
	f.objects[*params.Key] = buf.Bytes()
	delete(f.uploads, *params.UploadId)
	f.completes++
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, *params.UploadId)
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestStoreOpenNotFound(t *testing.T) {
	store := NewStore(newFakeS3Client(), "test-bucket", "archives")

	_, err := store.Open(context.Background(), "missing.arc")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStorePutAndReadAt(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeS3Client(), "test-bucket", "archives")

	data := []byte("0123456789abcdef")
	require.NoError(t, store.Put(ctx, "app.arc", data))

	blob, err := store.Open(ctx, "app.arc")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(16), blob.Size())

	p := make([]byte, 4)
	n, err := blob.ReadAt(ctx, p, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("abcd"), p)

	// Short read reaching the exact end.
	p = make([]byte, 8)
	n, err = blob.ReadAt(ctx, p, 12)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("cdef"), p[:n])

	// Offset past the end.
	_, err = blob.ReadAt(ctx, p, 16)
	require.ErrorIs(t, err, io.EOF)
}

func TestStoreReadRangeClamps(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeS3Client(), "test-bucket", "archives")
	require.NoError(t, store.Put(ctx, "app.arc", []byte("0123456789")))

	blob, err := store.Open(ctx, "app.arc")
	require.NoError(t, err)
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 6, 100)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("6789"), got)
}

func TestStoreCreateStreams(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3Client()
	store := NewStore(fake, "test-bucket", "archives")

	w, err := store.Create(ctx, "app.arc")
	require.NoError(t, err)
	_, err = w.Write([]byte("first chunk, "))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	_, err = w.Write([]byte("second chunk"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, []byte("first chunk, second chunk"), fake.objects["archives/app.arc"])

	// Close is idempotent, Write after Close is not.
	require.NoError(t, w.Close())
	_, err = w.Write([]byte("late"))
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestStoreCreateMultipart(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3Client()
	store := NewStoreWithConfig(fake, "test-bucket", "archives", UploadConfig{
		PartSize:    5 * 1024 * 1024,
		Concurrency: 2,
	})

	payload := bytes.Repeat([]byte{0xC3}, 5*1024*1024+4096)

	w, err := store.Create(ctx, "big.arc")
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 1, fake.completes, "payload beyond one part should go multipart")
	assert.Equal(t, payload, fake.objects["archives/big.arc"])
}

func TestStorePutSendsChecksum(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3Client()
	store := NewStore(fake, "test-bucket", "archives")

	data := []byte("archive bytes")
	require.NoError(t, store.Put(ctx, "app.arc", data))
	assert.Equal(t, computeCRC32C(data), fake.checksums["archives/app.arc"])
}

func TestStoreListStripsPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeS3Client(), "test-bucket", "archives")
	require.NoError(t, store.Put(ctx, "app.arc", []byte("a")))
	require.NoError(t, store.Put(ctx, "lib.arc", []byte("b")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.arc", "lib.arc"}, names)

	names, err = store.List(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.arc"}, names)
}

func TestStoreDeleteMissing(t *testing.T) {
	store := NewStore(newFakeS3Client(), "test-bucket", "archives")
	require.NoError(t, store.Delete(context.Background(), "missing.arc"))
}
