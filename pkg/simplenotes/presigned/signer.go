package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const keyPlaceholder = "{key}"

// Signer generates and validates HMAC-signed URLs
type Signer struct {
	secretKey         []byte
	defaultExpiration time.Duration
	urlPattern        string
	now               func() time.Time
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		defaultExpiration: 1 * time.Hour,
		urlPattern:        "/files/{key}",
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SignURL signs method and path and returns the escaped path with
// signature and expires query parameters appended.
//
// Example:
//
//	url, err := signer.SignURL("GET", "/files/notes/u/ab/cd_a b.txt", time.Hour)
//	// /files/notes/u/ab/cd_a%20b.txt?signature=abc123...&expires=1696789012
func (s *Signer) SignURL(method, path string, expiresIn time.Duration) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}

	if expiresIn <= 0 {
		expiresIn = s.defaultExpiration
	}
	expiresAt := s.now().Add(expiresIn).Unix()

	signature := s.generateSignature(s.createPayload(method, path, expiresAt))

	escaped := (&url.URL{Path: path}).EscapedPath()
	return fmt.Sprintf("%s?signature=%s&expires=%d", escaped, signature, expiresAt), nil
}

// SignURLWithBase is SignURL with baseURL prepended
func (s *Signer) SignURLWithBase(baseURL, method, path string, expiresIn time.Duration) (string, error) {
	signedPath, err := s.SignURL(method, path, expiresIn)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(baseURL, "/") + signedPath, nil
}

// URLForKey signs a GET URL for key under the configured URL pattern
func (s *Signer) URLForKey(baseURL, key string, expiresIn time.Duration) (string, error) {
	path := strings.Replace(s.urlPattern, keyPlaceholder, key, 1)
	return s.SignURLWithBase(baseURL, http.MethodGet, path, expiresIn)
}

// ValidateRequest validates the signature and expiration of an HTTP request
func (s *Signer) ValidateRequest(r *http.Request) error {
	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return ErrMissingSignature
	}
	if expiresStr == "" {
		return ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	return s.Validate(r.Method, r.URL.Path, signature, expiresAt)
}

// Validate checks signature and expiration for method and unescaped path
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if len(s.secretKey) == 0 {
		return ErrNoSecretKey
	}
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}

	expectedSignature := s.generateSignature(s.createPayload(method, path, expiresAt))
	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return ErrInvalidSignature
	}

	return nil
}

// ExtractObjectKey extracts the blob key from a request path based on the
// configured URL pattern
func (s *Signer) ExtractObjectKey(path string) (string, error) {
	idx := strings.Index(s.urlPattern, keyPlaceholder)
	if idx == -1 {
		return "", fmt.Errorf("URL pattern does not contain %s placeholder", keyPlaceholder)
	}

	prefix := s.urlPattern[:idx]
	suffix := s.urlPattern[idx+len(keyPlaceholder):]

	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("path does not match URL pattern prefix")
	}

	key := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if key == "" {
		return "", fmt.Errorf("path has an empty object key")
	}
	return key, nil
}

// IsEnabled returns true if a secret key is set
func (s *Signer) IsEnabled() bool {
	return len(s.secretKey) > 0
}

func (s *Signer) createPayload(method, path string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
}

func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
