package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// WithEnv loads the given dotenv files (".env" when none are named) into
// the process environment and then reads every env-tagged field of
// ServerConfig. Missing dotenv files are ignored; variables already set in
// the environment win over the files.
//
// Fields without a variable fall back to their env-default, so WithEnv
// should come before programmatic options.
func WithEnv(files ...string) Option {
	return func(c *ServerConfig) error {
		if len(files) == 0 {
			files = []string{".env"}
		}
		for _, f := range files {
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}
