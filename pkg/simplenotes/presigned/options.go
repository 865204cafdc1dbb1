package presigned

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithDefaultExpiration sets the lifetime used when SignURL is given no TTL
func WithDefaultExpiration(duration time.Duration) Option {
	return func(s *Signer) {
		s.defaultExpiration = duration
	}
}

// WithURLPattern sets the route used to map request paths back to blob keys.
// The pattern must contain the {key} placeholder, e.g. "/files/{key}".
func WithURLPattern(pattern string) Option {
	return func(s *Signer) {
		s.urlPattern = pattern
	}
}

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}
