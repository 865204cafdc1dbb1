package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-notes/pkg/simplenotes"
	"github.com/tendant/simple-notes/pkg/simplenotes/multipart"
	"github.com/tendant/simple-notes/pkg/simplenotes/presigned"
)

const (
	objectsDir = "objects"
	metaDir    = "meta"
)

// Backend is a filesystem implementation of the simplenotes.AttachmentStore interface.
// Blob bytes live under <BaseDir>/objects/<key> and the content type under
// <BaseDir>/meta/<key>.
type Backend struct {
	baseDir string
	baseURL string
	signer  *presigned.Signer
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string            // Base directory for storing files
	BaseURL string            // Public base URL that serves presigned.Handler
	Signer  *presigned.Signer // Signs read URLs; SignedURL fails without one
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	for _, dir := range []string{objectsDir, metaDir} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	return &Backend{
		baseDir: baseDir,
		baseURL: config.BaseURL,
		signer:  config.Signer,
	}, nil
}

var (
	_ simplenotes.AttachmentStore = (*Backend)(nil)
	_ presigned.BlobOpener        = (*Backend)(nil)
)

// Put writes data under key, replacing any existing object
func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	objectPath, err := b.resolve(objectsDir, key)
	if err != nil {
		return err
	}
	metaPath, err := b.resolve(metaDir, key)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(objectPath, data); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := writeFileAtomic(metaPath, []byte(contentType)); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Delete removes the object. Missing keys are ignored.
func (b *Backend) Delete(ctx context.Context, key string) error {
	for _, dir := range []string{objectsDir, metaDir} {
		path, err := b.resolve(dir, key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		b.cleanupEmptyDirectories(filepath.Join(b.baseDir, dir), filepath.Dir(path))
	}
	return nil
}

// SignedURL returns a signed read URL served by presigned.Handler
func (b *Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if b.signer == nil {
		return "", errors.New("direct download required for filesystem backend")
	}
	if _, err := b.resolve(objectsDir, key); err != nil {
		return "", err
	}
	return b.signer.URLForKey(b.baseURL, key, ttl)
}

// Open opens the stored object for reading
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	objectPath, err := b.resolve(objectsDir, key)
	if err != nil {
		return nil, "", err
	}

	file, err := os.Open(objectPath)
	if os.IsNotExist(err) {
		return nil, "", fmt.Errorf("%w: %s", simplenotes.ErrBlobNotFound, key)
	} else if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	contentType := multipart.DefaultContentType
	if metaPath, err := b.resolve(metaDir, key); err == nil {
		if raw, err := os.ReadFile(metaPath); err == nil && len(raw) > 0 {
			contentType = string(raw)
		}
	}
	return file, contentType, nil
}

// resolve maps key to a path under baseDir/dir, rejecting keys that escape it
func (b *Backend) resolve(dir, key string) (string, error) {
	if key == "" {
		return "", errors.New("object key is required")
	}
	root := filepath.Join(b.baseDir, dir)
	path := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return path, nil
}

// cleanupEmptyDirectories removes empty directories from dir up to root
func (b *Backend) cleanupEmptyDirectories(root, dir string) {
	if dir == root || !strings.HasPrefix(dir, root) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(root, filepath.Dir(dir))
		}
	}
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
