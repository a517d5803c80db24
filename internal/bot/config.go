package bot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the bot configuration loaded from environment variables.
type Config struct {
	DiscordToken  string     `env:"DISCORD_TOKEN,notEmpty"`
	CommandPrefix string     `env:"COMMAND_PREFIX"         envDefault:"!"`
	LogLevel      slog.Level `env:"LOG_LEVEL"              envDefault:"INFO"`
}

// LoadConfig loads configuration from a .env file (if present) and environment variables.
// Variables already set in the environment take precedence over the .env file.
// Returns an error if required fields are missing.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.CommandPrefix == "" {
		return nil, errors.New("COMMAND_PREFIX must not be empty")
	}

	return cfg, nil
}
