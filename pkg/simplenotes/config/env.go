package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies environment variable overrides using the env tags on
// ServerConfig. Variables that are unset leave the current value in place.
//
// DATABASE_URL with a postgres:// or postgresql:// scheme selects the
// postgres repository unless DATABASE_TYPE is set explicitly.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		if _, explicit := os.LookupEnv("DATABASE_TYPE"); !explicit && isPostgresURL(c.DatabaseURL) {
			c.DatabaseType = "postgres"
		}
		return nil
	}
}

// WriteEnvUsage writes a description of every environment variable WithEnv reads
func WriteEnvUsage(w io.Writer) error {
	var cfg ServerConfig
	help, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, help)
	return err
}

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}
