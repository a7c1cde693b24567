package drafts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalStore keeps drafts under Dir/<itemid>/<filename>.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed. Empty dir uses
// <os temp>/bedrock-drafts.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "bedrock-drafts")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create drafts dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// CreateDraftFile copies path into a new draft item.
func (s *LocalStore) CreateDraftFile(ctx context.Context, meta FileMeta, path string) (*DraftFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	itemID := newItemID()
	itemDir := filepath.Join(s.dir, itemID)
	if err := os.MkdirAll(itemDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create draft item: %w", err)
	}

	target := filepath.Join(itemDir, filepath.Base(meta.Filename))
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.RemoveAll(itemDir)
		return nil, fmt.Errorf("failed to write draft file: %w", err)
	}

	return &DraftFile{
		ItemID:    itemID,
		Filename:  filepath.Base(meta.Filename),
		Location:  target,
		MimeType:  meta.MimeType,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}, nil
}

var _ Store = (*LocalStore)(nil)
