package drafts

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// objectPutter is the subset of *minio.Client used for uploads.
type objectPutter interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore keeps drafts as objects <user>/<itemid>/<filename> in one bucket.
type MinioStore struct {
	client objectPutter
	bucket string
}

// NewMinioStore connects to the endpoint and creates the bucket when missing.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

// CreateDraftFile uploads path as a new draft object.
func (s *MinioStore) CreateDraftFile(ctx context.Context, meta FileMeta, filePath string) (*DraftFile, error) {
	itemID := newItemID()
	filename := path.Base(strings.ReplaceAll(meta.Filename, "\\", "/"))
	key := objectKey(meta.UserID, itemID, filename)

	info, err := s.client.FPutObject(ctx, s.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: meta.MimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("minio upload: %w", err)
	}

	return &DraftFile{
		ItemID:    itemID,
		Filename:  filename,
		Location:  "s3://" + s.bucket + "/" + key,
		MimeType:  meta.MimeType,
		Size:      info.Size,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func objectKey(userID, itemID, filename string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return path.Join("drafts", userID, itemID, filename)
}

var _ Store = (*MinioStore)(nil)
