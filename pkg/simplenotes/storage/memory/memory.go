package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-notes/pkg/simplenotes"
	"github.com/tendant/simple-notes/pkg/simplenotes/presigned"
)

// Backend is an in-memory implementation of the simplenotes.AttachmentStore interface
type Backend struct {
	mu              sync.RWMutex
	objects         map[string][]byte
	objectsMimeType map[string]string
	signer          *presigned.Signer
	baseURL         string
}

// Option configures the in-memory backend
type Option func(*Backend)

// WithSignedURLs enables SignedURL, issuing URLs under baseURL signed by signer
func WithSignedURLs(signer *presigned.Signer, baseURL string) Option {
	return func(b *Backend) {
		b.signer = signer
		b.baseURL = baseURL
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{
		objects:         make(map[string][]byte),
		objectsMimeType: make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	_ simplenotes.AttachmentStore = (*Backend)(nil)
	_ presigned.BlobOpener        = (*Backend)(nil)
)

// Put stores a copy of data under key
func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("object key is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = bytes.Clone(data)
	b.objectsMimeType[key] = contentType
	return nil
}

// Delete removes the object. Missing keys are ignored.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	delete(b.objectsMimeType, key)
	return nil
}

// SignedURL returns a signed read URL served by presigned.Handler
func (b *Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if b.signer == nil {
		return "", errors.New("direct download required for memory backend")
	}
	return b.signer.URLForKey(b.baseURL, key, ttl)
}

// Open returns a reader over the stored object and its content type
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, "", fmt.Errorf("%w: %s", simplenotes.ErrBlobNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), b.objectsMimeType[key], nil
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
