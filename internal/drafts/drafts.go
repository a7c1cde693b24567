// Package drafts stores generated images as draft files for the host.
//
// DESIGN: A draft is a per-user file handle the host can attach to content.
// Backends:
//   - LocalStore: files under a directory, one sub-directory per draft item
//   - MinioStore: objects in an S3-compatible bucket
package drafts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/compresr/bedrock-provider/internal/config"
)

// ImageMimeType is the mimetype of every generated image draft.
const ImageMimeType = "image/png"

// FileMeta describes a draft to create.
type FileMeta struct {
	UserID   string // pseudonymous owner id
	Filename string
	MimeType string
}

// DraftFile is the handle returned to the host.
type DraftFile struct {
	ItemID    string    `json:"itemid"`
	Filename  string    `json:"filename"`
	Location  string    `json:"location"`
	MimeType  string    `json:"mimetype"`
	Size      int64     `json:"filesize"`
	CreatedAt time.Time `json:"created_at"`
}

// Store creates draft files from local paths. The source file is copied,
// never moved; the caller removes it.
type Store interface {
	CreateDraftFile(ctx context.Context, meta FileMeta, path string) (*DraftFile, error)
}

// ImageFilename returns the draft filename for an image generated at t.
func ImageFilename(t time.Time) string {
	return fmt.Sprintf("bedrock_generated_image_%d.png", t.Unix())
}

func newItemID() string {
	return uuid.NewString()
}

// New creates the store selected by cfg.
func New(ctx context.Context, cfg config.DraftsConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "minio":
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown drafts backend %q", cfg.Backend)
	}
}
