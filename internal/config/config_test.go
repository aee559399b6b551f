package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"TOKEN", "DISCORD_TOKEN", "DISCORD_APPLICATION_ID", "DISCORD_GUILD_ID", "DISCORD_ALLOWED_ROLE_IDS",
	"OPENROUTER_API_KEY", "OPENROUTER_BASE_URL", "OPENROUTER_MODEL", "OPENROUTER_HTTP_REFERER", "OPENROUTER_APP_TITLE",
	"LINEAR_API_KEY", "LINEAR_TEAM_ID", "LINEAR_PROJECT_ID", "LINEAR_STATE_TODO_ID", "LINEAR_STATE_BACKLOG_ID",
	"LINEAR_LABEL_URGENT_ID", "LINEAR_LABEL_HIGH_PRIORITY_ID", "LINEAR_LABEL_MEDIUM_PRIORITY_ID", "LINEAR_LABEL_LOW_PRIORITY_ID",
	"NOVABOT_DB_PATH", "NOVABOT_REDIS_URL", "NOVABOT_LOG_LEVEL",
}

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Version != "1.0" {
		t.Errorf("Version = %q, want %q", config.Version, "1.0")
	}
	if config.Store.Path != filepath.Join("data", "tasks.db") {
		t.Errorf("Store.Path = %q", config.Store.Path)
	}
	if config.Review.PageSize != 5 {
		t.Errorf("Review.PageSize = %d, want 5", config.Review.PageSize)
	}
	if config.Review.Timeout != 15*time.Minute {
		t.Errorf("Review.Timeout = %v, want 15m", config.Review.Timeout)
	}
	if config.Cooldown.Window != 60*time.Second {
		t.Errorf("Cooldown.Window = %v, want 60s", config.Cooldown.Window)
	}
	if config.LLM.Model != "openai/gpt-4o-mini" {
		t.Errorf("LLM.Model = %q", config.LLM.Model)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	config, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(config, DefaultConfig()) {
		t.Errorf("missing file should yield defaults, got %+v", config)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_LINEAR_KEY", "lin_api_from_env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
discord:
  bot_token: file-token
  allowed_role_ids: ["111", "222"]
linear:
  api_key: ${TEST_LINEAR_KEY}
  team_id: team-1
review:
  page_size: 8
  timeout: 30m
cooldown:
  window: 2m
logging: null
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Discord.BotToken != "file-token" {
		t.Errorf("BotToken = %q", config.Discord.BotToken)
	}
	if !reflect.DeepEqual(config.Discord.AllowedRoleIDs, []string{"111", "222"}) {
		t.Errorf("AllowedRoleIDs = %v", config.Discord.AllowedRoleIDs)
	}
	if config.Linear.APIKey != "lin_api_from_env" {
		t.Errorf("Linear.APIKey = %q, want expanded env value", config.Linear.APIKey)
	}
	if config.Review.PageSize != 8 || config.Review.Timeout != 30*time.Minute {
		t.Errorf("Review = %+v", config.Review)
	}
	if config.Cooldown.Window != 2*time.Minute {
		t.Errorf("Cooldown.Window = %v", config.Cooldown.Window)
	}
	if config.Logging == nil || config.Logging.Level != "info" {
		t.Errorf("null logging section should fall back to defaults, got %+v", config.Logging)
	}
	// Untouched sections keep defaults.
	if config.LLM.Model != "openai/gpt-4o-mini" {
		t.Errorf("LLM.Model = %q", config.LLM.Model)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("review: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("Load error = %v, want parse error", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOKEN", "legacy-token")
	t.Setenv("DISCORD_TOKEN", "discord-token")
	t.Setenv("DISCORD_ALLOWED_ROLE_IDS", " 1, 2 ,,3 ")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("OPENROUTER_MODEL", "anthropic/claude-3-haiku")
	t.Setenv("LINEAR_TEAM_ID", "team-env")
	t.Setenv("LINEAR_LABEL_URGENT_ID", "label-urgent")
	t.Setenv("NOVABOT_DB_PATH", "~/novabot/tasks.db")
	t.Setenv("NOVABOT_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("NOVABOT_LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("linear:\n  team_id: team-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DISCORD_TOKEN wins over TOKEN", config.Discord.BotToken, "discord-token"},
		{"openrouter key", config.LLM.APIKey, "sk-or-test"},
		{"openrouter model", config.LLM.Model, "anthropic/claude-3-haiku"},
		{"env beats file", config.Linear.TeamID, "team-env"},
		{"label id", config.Linear.LabelUrgentID, "label-urgent"},
		{"redis url", config.Cooldown.RedisURL, "redis://localhost:6379/1"},
		{"log level", config.Logging.Level, "debug"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}

	if !reflect.DeepEqual(config.Discord.AllowedRoleIDs, []string{"1", "2", "3"}) {
		t.Errorf("AllowedRoleIDs = %v", config.Discord.AllowedRoleIDs)
	}
	home, _ := os.UserHomeDir()
	if config.Store.Path != filepath.Join(home, "novabot", "tasks.db") {
		t.Errorf("Store.Path = %q, want ~ expanded", config.Store.Path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Linear.TeamID = "team-1"
	config.Review.Timeout = 5 * time.Minute
	if err := Save(config, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Linear.TeamID != "team-1" || loaded.Review.Timeout != 5*time.Minute {
		t.Errorf("round trip lost values: linear=%+v review=%+v", loaded.Linear, loaded.Review)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, "store path"},
		{"page size zero", func(c *Config) { c.Review.PageSize = 0 }, "page size"},
		{"page size too big", func(c *Config) { c.Review.PageSize = 26 }, "page size"},
		{"zero timeout", func(c *Config) { c.Review.Timeout = 0 }, "timeout"},
		{"negative cooldown", func(c *Config) { c.Cooldown.Window = -time.Second }, "cooldown"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForStart(t *testing.T) {
	c := DefaultConfig()
	if err := c.ValidateForStart(); err == nil {
		t.Error("expected missing token error")
	}
	c.Discord.BotToken = "token"
	if err := c.ValidateForStart(); err != nil {
		t.Errorf("ValidateForStart() = %v", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	if p := DefaultConfigPath(); !strings.HasSuffix(p, filepath.Join(".novabot", "config.yaml")) {
		t.Errorf("DefaultConfigPath() = %q", p)
	}
}
