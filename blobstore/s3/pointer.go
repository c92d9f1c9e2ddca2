package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/codearc/blobstore"
)

// LatestName is the virtual blob holding the name of the newest published
// archive. Reading it resolves through DynamoDB, writing it commits a new
// version atomically.
const LatestName = "LATEST"

// ErrConcurrentModification is returned when another publisher advanced the
// pointer first. The caller re-reads LATEST and decides whether its archive
// still needs publishing.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// PointerStore implements blobstore.Store backed by S3 with DynamoDB for
// atomic pointer commits. Archive images are immutable once published; the
// only mutable state is which image is current, and that is exactly what S3
// cannot swap atomically. DynamoDB conditional writes provide the
// compare-and-swap:
//
//   - Archive images go to S3 as usual
//   - Writing LATEST appends a conditional version row, so two publishers
//     racing on the same version cannot both win
//   - Reading LATEST returns the archive name of the highest version
//
// Table schema:
//   - Partition key: base_uri (string), the s3://bucket/prefix of the store
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name codearc-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type PointerStore struct {
	store   *Store
	ddb     DDBClient
	table   string
	baseURI string
}

// NewPointerStore wraps an S3 store with a DynamoDB commit log.
// baseURI should be the "s3://bucket/prefix" the store writes to; it keys
// the commit log so several stores can share one table.
func NewPointerStore(store *Store, ddb DDBClient, table, baseURI string) *PointerStore {
	return &PointerStore{
		store:   store,
		ddb:     ddb,
		table:   table,
		baseURI: baseURI,
	}
}

// Open opens a blob for reading. Opening LatestName resolves the pointer.
func (s *PointerStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == LatestName {
		archive, version, err := s.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &pointerBlob{content: []byte(archive)}, nil
	}
	return s.store.Open(ctx, name)
}

// Put writes a blob. Writing LatestName commits the named archive as the
// new current version.
func (s *PointerStore) Put(ctx context.Context, name string, data []byte) error {
	if name == LatestName {
		return s.commit(ctx, string(data))
	}
	return s.store.Put(ctx, name, data)
}

// Create creates a writable blob. Pointer updates go through Put.
func (s *PointerStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.store.Create(ctx, name)
}

// Delete deletes a blob.
func (s *PointerStore) Delete(ctx context.Context, name string) error {
	return s.store.Delete(ctx, name)
}

// List lists blobs with prefix.
func (s *PointerStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.store.List(ctx, prefix)
}

// Latest returns the archive name and version of the newest commit.
// Version 0 means nothing has been published yet.
func (s *PointerStore) Latest(ctx context.Context) (string, uint64, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // descending, newest first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to query DynamoDB: %w", err)
	}

	if len(resp.Items) == 0 {
		return "", 0, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return "", 0, errors.New("invalid version attribute in DynamoDB")
	}
	nameAttr, ok := item["archive_name"].(*types.AttributeValueMemberS)
	if !ok {
		return "", 0, errors.New("invalid archive_name attribute in DynamoDB")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return "", 0, fmt.Errorf("failed to parse version: %w", err)
	}

	return nameAttr.Value, version, nil
}

// commit atomically advances the pointer with a DynamoDB conditional write.
func (s *PointerStore) commit(ctx context.Context, archive string) error {
	_, current, err := s.Latest(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: s.baseURI},
			"version":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current+1)},
			"archive_name": &types.AttributeValueMemberS{Value: archive},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("failed to commit version to DynamoDB: %w", err)
	}

	return nil
}

// pointerBlob serves the resolved pointer content from memory.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Close() error {
	return nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.content)) {
		return nil, io.EOF
	}
	end := off + length
	if end > int64(len(b.content)) {
		end = int64(len(b.content))
	}
	return io.NopCloser(bytes.NewReader(b.content[off:end])), nil
}
