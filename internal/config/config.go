package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/novatra/novabot/internal/adapters/discord"
	"github.com/novatra/novabot/internal/adapters/linear"
	"github.com/novatra/novabot/internal/llm"
	"github.com/novatra/novabot/internal/logging"
)

// Config represents the main configuration
type Config struct {
	Version  string          `yaml:"version"`
	Discord  *discord.Config `yaml:"discord"`
	LLM      *llm.Config     `yaml:"llm"`
	Linear   *linear.Config  `yaml:"linear"`
	Store    *StoreConfig    `yaml:"store"`
	Review   *ReviewConfig   `yaml:"review"`
	Cooldown *CooldownConfig `yaml:"cooldown"`
	Logging  *logging.Config `yaml:"logging"`
}

// StoreConfig holds task database settings
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ReviewConfig holds review session settings
type ReviewConfig struct {
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CooldownConfig holds /todo cooldown settings. An empty RedisURL keeps the
// cooldown in process memory.
type CooldownConfig struct {
	Window   time.Duration `yaml:"window"`
	RedisURL string        `yaml:"redis_url"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Discord: discord.DefaultConfig(),
		LLM:     llm.DefaultConfig(),
		Linear:  linear.DefaultConfig(),
		Store: &StoreConfig{
			Path: filepath.Join("data", "tasks.db"),
		},
		Review: &ReviewConfig{
			PageSize: 5,
			Timeout:  15 * time.Minute,
		},
		Cooldown: &CooldownConfig{
			Window: 60 * time.Second,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err == nil {
		// Expand environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.fillNil()
	config.applyEnv()
	config.Store.Path = expandPath(config.Store.Path)

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".novabot", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// fillNil restores defaults for sections a config file set to null.
func (c *Config) fillNil() {
	d := DefaultConfig()
	if c.Discord == nil {
		c.Discord = d.Discord
	}
	if c.LLM == nil {
		c.LLM = d.LLM
	}
	if c.Linear == nil {
		c.Linear = d.Linear
	}
	if c.Store == nil {
		c.Store = d.Store
	}
	if c.Review == nil {
		c.Review = d.Review
	}
	if c.Cooldown == nil {
		c.Cooldown = d.Cooldown
	}
	if c.Logging == nil {
		c.Logging = d.Logging
	}
}

// applyEnv overrides file values with the environment variables the bot
// has always been deployed with.
func (c *Config) applyEnv() {
	setString(&c.Discord.BotToken, "TOKEN")
	setString(&c.Discord.BotToken, "DISCORD_TOKEN")
	setString(&c.Discord.ApplicationID, "DISCORD_APPLICATION_ID")
	setString(&c.Discord.GuildID, "DISCORD_GUILD_ID")
	if v, ok := lookup("DISCORD_ALLOWED_ROLE_IDS"); ok {
		c.Discord.AllowedRoleIDs = splitList(v)
	}

	setString(&c.LLM.APIKey, "OPENROUTER_API_KEY")
	setString(&c.LLM.BaseURL, "OPENROUTER_BASE_URL")
	setString(&c.LLM.Model, "OPENROUTER_MODEL")
	setString(&c.LLM.HTTPReferer, "OPENROUTER_HTTP_REFERER")
	setString(&c.LLM.AppTitle, "OPENROUTER_APP_TITLE")

	setString(&c.Linear.APIKey, "LINEAR_API_KEY")
	setString(&c.Linear.TeamID, "LINEAR_TEAM_ID")
	setString(&c.Linear.ProjectID, "LINEAR_PROJECT_ID")
	setString(&c.Linear.StateTodoID, "LINEAR_STATE_TODO_ID")
	setString(&c.Linear.StateBacklogID, "LINEAR_STATE_BACKLOG_ID")
	setString(&c.Linear.LabelUrgentID, "LINEAR_LABEL_URGENT_ID")
	setString(&c.Linear.LabelHighPriorityID, "LINEAR_LABEL_HIGH_PRIORITY_ID")
	setString(&c.Linear.LabelMediumPriorityID, "LINEAR_LABEL_MEDIUM_PRIORITY_ID")
	setString(&c.Linear.LabelLowPriorityID, "LINEAR_LABEL_LOW_PRIORITY_ID")

	setString(&c.Store.Path, "NOVABOT_DB_PATH")
	setString(&c.Cooldown.RedisURL, "NOVABOT_REDIS_URL")
	setString(&c.Logging.Level, "NOVABOT_LOG_LEVEL")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store == nil || c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.Review != nil {
		if c.Review.PageSize < 1 || c.Review.PageSize > 25 {
			return fmt.Errorf("invalid review page size: %d (must be 1-25)", c.Review.PageSize)
		}
		if c.Review.Timeout <= 0 {
			return fmt.Errorf("review timeout must be positive")
		}
	}
	if c.Cooldown != nil && c.Cooldown.Window < 0 {
		return fmt.Errorf("cooldown window cannot be negative")
	}
	if c.Logging != nil {
		switch c.Logging.Format {
		case "", "text", "json":
		default:
			return fmt.Errorf("invalid log format: %q", c.Logging.Format)
		}
	}
	return nil
}

// ValidateForStart additionally requires what the gateway needs to run.
func (c *Config) ValidateForStart() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Discord == nil || c.Discord.BotToken == "" {
		return fmt.Errorf("discord bot token is required (set DISCORD_TOKEN)")
	}
	return nil
}
