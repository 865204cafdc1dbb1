package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithOwnerID sets the owner every request is attributed to
func WithOwnerID(ownerID string) Option {
	return func(c *ServerConfig) error {
		if ownerID == "" {
			return fmt.Errorf("owner ID cannot be empty")
		}
		c.OwnerID = ownerID
		return nil
	}
}

// WithDatabase configures the relational or in-memory note repository
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the postgres schema holding the notes table
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithDynamoDB selects the DynamoDB note repository
func WithDynamoDB(table, region, endpoint string) Option {
	return func(c *ServerConfig) error {
		if table == "" {
			return fmt.Errorf("dynamodb table cannot be empty")
		}
		c.DatabaseType = "dynamodb"
		c.DynamoTable = table
		if region != "" {
			c.DynamoRegion = region
		}
		c.DynamoEndpoint = endpoint
		return nil
	}
}

// WithMemoryStorage keeps attachments in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage stores attachments under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.FSBaseDir = baseDir
		return nil
	}
}

// WithS3Storage stores attachments in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.StorageType = "s3"
		c.S3Bucket = bucket
		if region != "" {
			c.S3Region = region
		}
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.S3AccessKeyID = accessKeyID
		c.S3SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points the S3 store at an S3-compatible service such as MinIO
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.S3Endpoint = endpoint
		c.S3UsePathStyle = usePathStyle
		return nil
	}
}

// WithSignedURLs configures the URLs issued by the memory and fs stores
func WithSignedURLs(publicBaseURL, secret string) Option {
	return func(c *ServerConfig) error {
		if publicBaseURL == "" {
			return fmt.Errorf("public base URL cannot be empty")
		}
		c.PublicBaseURL = publicBaseURL
		c.SignatureSecret = secret
		return nil
	}
}

// WithURLTTL sets the lifetime of issued attachment URLs
func WithURLTTL(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if ttl <= 0 {
			return fmt.Errorf("URL TTL must be positive, got: %s", ttl)
		}
		c.URLTTL = ttl
		return nil
	}
}

// WithURLRefreshOnRead re-signs attachment URLs on get and list
func WithURLRefreshOnRead(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.RefreshURLsOnRead = enabled
		return nil
	}
}

// WithObjectKeyGenerator sets the blob key strategy ("unique" or "legacy")
func WithObjectKeyGenerator(strategy string) Option {
	return func(c *ServerConfig) error {
		c.KeyStrategy = strategy
		return nil
	}
}

// WithMaxBodySize sets the request body limit as a human readable size, e.g. "25MB"
func WithMaxBodySize(size string) Option {
	return func(c *ServerConfig) error {
		c.MaxBodySize = size
		return nil
	}
}

// WithAPIKeySHA256 requires requests to carry an API key hashing to sum
func WithAPIKeySHA256(sum string) Option {
	return func(c *ServerConfig) error {
		c.APIKeySHA256 = sum
		return nil
	}
}

// WithEventLogging toggles the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
