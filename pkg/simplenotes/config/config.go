package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-notes/pkg/simplenotes"
	"github.com/tendant/simple-notes/pkg/simplenotes/objectkey"
	"github.com/tendant/simple-notes/pkg/simplenotes/presigned"
	"github.com/tendant/simple-notes/pkg/simplenotes/repo/dynamo"
	"github.com/tendant/simple-notes/pkg/simplenotes/repo/memory"
	repopg "github.com/tendant/simple-notes/pkg/simplenotes/repo/postgres"
	fsstorage "github.com/tendant/simple-notes/pkg/simplenotes/storage/fs"
	memorystorage "github.com/tendant/simple-notes/pkg/simplenotes/storage/memory"
	s3storage "github.com/tendant/simple-notes/pkg/simplenotes/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		OwnerID:            "demo-user",
		DatabaseType:       "memory",
		DBSchema:           "public",
		DynamoTable:        dynamo.DefaultTable,
		DynamoRegion:       "us-east-1",
		StorageType:        "memory",
		FSBaseDir:          "./data/attachments",
		S3Region:           "us-east-1",
		S3SSEAlgorithm:     "AES256",
		PublicBaseURL:      "http://localhost:8080",
		URLTTL:             simplenotes.DefaultURLTTL,
		KeyStrategy:        "unique",
		MaxBodySize:        "10MB",
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the notes service.
// Every field can be set from the environment through WithEnv.
type ServerConfig struct {
	Port        string `env:"PORT" env-description:"HTTP listen port"`
	Environment string `env:"ENVIRONMENT" env-description:"development, production or testing"`
	OwnerID     string `env:"NOTES_OWNER_ID" env-description:"owner every request is attributed to"`

	// Note metadata store
	DatabaseType string `env:"DATABASE_TYPE" env-description:"memory, postgres or dynamodb"`
	DatabaseURL  string `env:"DATABASE_URL" env-description:"postgres connection string"`
	DBSchema     string `env:"DB_SCHEMA" env-description:"postgres schema holding the notes table"`

	DynamoTable           string `env:"DYNAMODB_TABLE" env-description:"DynamoDB table name"`
	DynamoRegion          string `env:"DYNAMODB_REGION" env-description:"DynamoDB region"`
	DynamoEndpoint        string `env:"DYNAMODB_ENDPOINT" env-description:"DynamoDB endpoint override, e.g. DynamoDB Local"`
	DynamoAccessKeyID     string `env:"DYNAMODB_ACCESS_KEY_ID" env-description:"static DynamoDB access key"`
	DynamoSecretAccessKey string `env:"DYNAMODB_SECRET_ACCESS_KEY" env-description:"static DynamoDB secret key"`
	DynamoCreateTable     bool   `env:"DYNAMODB_CREATE_TABLE" env-description:"create the table on startup if missing"`

	// Attachment blob store
	StorageType string `env:"STORAGE_TYPE" env-description:"memory, fs or s3"`
	FSBaseDir   string `env:"FS_BASE_DIR" env-description:"root directory for the fs store"`

	S3Bucket          string `env:"S3_BUCKET" env-description:"S3 bucket name"`
	S3Region          string `env:"S3_REGION" env-description:"S3 region"`
	S3Endpoint        string `env:"S3_ENDPOINT" env-description:"S3 endpoint override for S3-compatible services"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID" env-description:"static S3 access key"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" env-description:"static S3 secret key"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-description:"use path-style bucket addressing"`
	S3EnableSSE       bool   `env:"S3_ENABLE_SSE" env-description:"enable server-side encryption"`
	S3SSEAlgorithm    string `env:"S3_SSE_ALGORITHM" env-description:"AES256 or aws:kms"`
	S3SSEKMSKeyID     string `env:"S3_SSE_KMS_KEY_ID" env-description:"KMS key for aws:kms"`
	S3CreateBucket    bool   `env:"S3_CREATE_BUCKET" env-description:"create the bucket on startup if missing"`

	// Attachment URLs
	PublicBaseURL     string        `env:"PUBLIC_BASE_URL" env-description:"base URL serving signed downloads for memory and fs stores"`
	SignatureSecret   string        `env:"SIGNATURE_SECRET" env-description:"HMAC secret for signed download URLs"`
	URLTTL            time.Duration `env:"URL_TTL" env-description:"lifetime of issued attachment URLs"`
	RefreshURLsOnRead bool          `env:"REFRESH_URLS_ON_READ" env-description:"re-sign attachment URLs on get and list"`
	KeyStrategy       string        `env:"KEY_STRATEGY" env-description:"blob key layout: unique or legacy"`

	// Server options
	MaxBodySize        string `env:"MAX_BODY_SIZE" env-description:"request body limit, e.g. 10MB"`
	APIKeySHA256       string `env:"API_KEY_SHA256" env-description:"hex SHA-256 of the accepted API key; empty disables the check"`
	EnableEventLogging bool   `env:"ENABLE_EVENT_LOGGING" env-description:"log note lifecycle events"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.OwnerID == "" {
		return errors.New("owner_id is required")
	}

	switch c.DatabaseType {
	case "memory", "dynamodb":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'dynamodb'")
	}

	switch c.StorageType {
	case "memory", "fs":
		if c.SignatureSecret == "" && c.Environment == "production" {
			return fmt.Errorf("signature_secret is required for %s storage in production", c.StorageType)
		}
		if c.PublicBaseURL == "" {
			return fmt.Errorf("public_base_url is required for %s storage", c.StorageType)
		}
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("s3_bucket is required when using s3 storage")
		}
	default:
		return errors.New("storage_type must be 'memory', 'fs' or 's3'")
	}

	if c.URLTTL <= 0 {
		return errors.New("url_ttl must be positive")
	}
	if _, err := objectkey.ForStrategy(c.KeyStrategy); err != nil {
		return err
	}
	if _, err := c.MaxBodyBytes(); err != nil {
		return err
	}

	return nil
}

// MaxBodyBytes parses MaxBodySize, e.g. "10MB" or "512k", into bytes
func (c *ServerConfig) MaxBodyBytes() (int64, error) {
	size, err := units.RAMInBytes(c.MaxBodySize)
	if err != nil {
		return 0, fmt.Errorf("invalid max_body_size %q: %w", c.MaxBodySize, err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("max_body_size must be positive, got %q", c.MaxBodySize)
	}
	return size, nil
}

// UsesSignedDownloads reports whether attachment URLs point back at this
// server's presigned download route rather than the object store.
func (c *ServerConfig) UsesSignedDownloads() bool {
	return c.StorageType == "memory" || c.StorageType == "fs"
}

// Stack is a fully wired notes service with the adapters behind it
type Stack struct {
	Service    simplenotes.Service
	Store      simplenotes.AttachmentStore
	Repository simplenotes.NoteRepository

	// Opener and Signer are set for stores served by presigned.Handler
	Opener presigned.BlobOpener
	Signer *presigned.Signer

	closers []func()
}

// Close releases connections held by the stack
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Build creates the repository, attachment store and service described by the configuration
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stack := &Stack{}

	repo, closer, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	if closer != nil {
		stack.closers = append(stack.closers, closer)
	}
	stack.Repository = repo

	if err := c.buildStore(stack); err != nil {
		stack.Close()
		return nil, fmt.Errorf("failed to build attachment store: %w", err)
	}

	keyGenerator, err := objectkey.ForStrategy(c.KeyStrategy)
	if err != nil {
		stack.Close()
		return nil, err
	}

	options := []simplenotes.Option{
		simplenotes.WithRepository(stack.Repository),
		simplenotes.WithAttachmentStore(stack.Store),
		simplenotes.WithKeyGenerator(keyGenerator),
		simplenotes.WithLogger(logger),
		simplenotes.WithURLTTL(c.URLTTL),
		simplenotes.WithURLRefreshOnRead(c.RefreshURLsOnRead),
	}
	if c.EnableEventLogging {
		options = append(options, simplenotes.WithEventSink(simplenotes.NewLoggingEventSink(logger)))
	}

	svc, err := simplenotes.New(options...)
	if err != nil {
		stack.Close()
		return nil, err
	}
	stack.Service = svc

	return stack, nil
}

// buildRepository creates a NoteRepository based on the configuration.
// The returned closer is nil when nothing needs releasing.
func (c *ServerConfig) buildRepository(ctx context.Context) (simplenotes.NoteRepository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		repo := repopg.NewWithPool(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate notes table: %w", err)
		}
		return repo, pool.Close, nil
	case "dynamodb":
		client, err := dynamo.NewClient(ctx, dynamo.Config{
			Table:           c.DynamoTable,
			Region:          c.DynamoRegion,
			Endpoint:        c.DynamoEndpoint,
			AccessKeyID:     c.DynamoAccessKeyID,
			SecretAccessKey: c.DynamoSecretAccessKey,
		})
		if err != nil {
			return nil, nil, err
		}
		if c.DynamoCreateTable {
			if err := dynamo.EnsureTable(ctx, client, c.DynamoTable); err != nil {
				return nil, nil, err
			}
		}
		return dynamo.New(client, c.DynamoTable), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildStore(stack *Stack) error {
	switch c.StorageType {
	case "memory":
		signer := c.newSigner()
		store := memorystorage.New(memorystorage.WithSignedURLs(signer, c.PublicBaseURL))
		stack.Store, stack.Opener, stack.Signer = store, store, signer
		return nil
	case "fs":
		signer := c.newSigner()
		store, err := fsstorage.New(fsstorage.Config{
			BaseDir: c.FSBaseDir,
			BaseURL: c.PublicBaseURL,
			Signer:  signer,
		})
		if err != nil {
			return err
		}
		stack.Store, stack.Opener, stack.Signer = store, store, signer
		return nil
	case "s3":
		store, err := s3storage.New(s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			EnableSSE:              c.S3EnableSSE,
			SSEAlgorithm:           c.S3SSEAlgorithm,
			SSEKMSKeyID:            c.S3SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3CreateBucket,
		})
		if err != nil {
			return err
		}
		stack.Store = store
		return nil
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}

// newSigner falls back to a per-process random secret outside production,
// so issued URLs stop validating after a restart.
func (c *ServerConfig) newSigner() *presigned.Signer {
	secret := c.SignatureSecret
	if secret == "" {
		secret = uuid.NewString()
	}
	return presigned.New(
		presigned.WithSecretKey(secret),
		presigned.WithDefaultExpiration(c.URLTTL),
	)
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the configured search_path.
// It fails if the schema (when provided) does not exist.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
