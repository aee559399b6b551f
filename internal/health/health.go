package health

import (
	"os"
	"path/filepath"

	"github.com/novatra/novabot/internal/config"
)

// Status represents feature or dependency status
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusDisabled
)

// Check represents a health check result
type Check struct {
	Name    string
	Status  Status
	Message string
	Fix     string
}

// FeatureStatus represents a feature with its availability
type FeatureStatus struct {
	Name    string
	Enabled bool
	Status  Status
	Note    string
}

// HealthReport contains all health check results
type HealthReport struct {
	Dependencies []Check
	Features     []FeatureStatus
}

// OK reports whether no dependency check failed.
func (r *HealthReport) OK() bool {
	for _, c := range r.Dependencies {
		if c.Status == StatusError {
			return false
		}
	}
	return true
}

// RunChecks performs all health checks based on config
func RunChecks(cfg *config.Config) *HealthReport {
	return &HealthReport{
		Dependencies: checkDependencies(cfg),
		Features:     checkFeatures(cfg),
	}
}

// checkDependencies checks what the bot cannot start without
func checkDependencies(cfg *config.Config) []Check {
	var checks []Check

	if cfg.Discord != nil && cfg.Discord.BotToken != "" {
		checks = append(checks, Check{Name: "discord", Status: StatusOK, Message: "token set"})
	} else {
		checks = append(checks, Check{
			Name:    "discord",
			Status:  StatusError,
			Message: "no bot token",
			Fix:     "set DISCORD_TOKEN or discord.bot_token",
		})
	}

	checks = append(checks, checkStoreDir(cfg))
	return checks
}

func checkStoreDir(cfg *config.Config) Check {
	if cfg.Store == nil || cfg.Store.Path == "" {
		return Check{Name: "store", Status: StatusError, Message: "no path", Fix: "set store.path"}
	}
	dir := filepath.Dir(cfg.Store.Path)
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return Check{Name: "store", Status: StatusOK, Message: cfg.Store.Path}
	case os.IsNotExist(err):
		return Check{Name: "store", Status: StatusWarning, Message: dir + " will be created"}
	default:
		return Check{Name: "store", Status: StatusError, Message: dir + " is not a directory", Fix: "set store.path"}
	}
}

// checkFeatures checks feature availability
func checkFeatures(cfg *config.Config) []FeatureStatus {
	var features []FeatureStatus

	modelEnabled := cfg.LLM != nil && cfg.LLM.APIKey != ""
	features = append(features, FeatureStatus{
		Name:    "Extraction",
		Enabled: modelEnabled,
		Status:  warnIfOff(modelEnabled),
		Note:    noteIfOff(modelEnabled, "no model key, every run finds 0 tasks"),
	})

	linearEnabled := cfg.Linear != nil && cfg.Linear.APIKey != "" && cfg.Linear.TeamID != ""
	features = append(features, FeatureStatus{
		Name:    "Linear",
		Enabled: linearEnabled,
		Status:  warnIfOff(linearEnabled),
		Note:    noteIfOff(linearEnabled, "uploads will fail"),
	})

	redisEnabled := cfg.Cooldown != nil && cfg.Cooldown.RedisURL != ""
	features = append(features, FeatureStatus{
		Name:    "Redis",
		Enabled: redisEnabled,
		Status:  boolToStatus(redisEnabled),
	})

	gated := cfg.Discord != nil && len(cfg.Discord.AllowedRoleIDs) > 0
	features = append(features, FeatureStatus{
		Name:    "Role gate",
		Enabled: gated,
		Status:  boolToStatus(gated),
	})

	guild := cfg.Discord != nil && cfg.Discord.GuildID != ""
	features = append(features, FeatureStatus{
		Name:    "Guild cmds",
		Enabled: guild,
		Status:  boolToStatus(guild),
	})

	return features
}

func warnIfOff(enabled bool) Status {
	if enabled {
		return StatusOK
	}
	return StatusWarning
}

func noteIfOff(enabled bool, note string) string {
	if enabled {
		return ""
	}
	return note
}

// boolToStatus converts bool to Status
func boolToStatus(enabled bool) Status {
	if enabled {
		return StatusOK
	}
	return StatusDisabled
}

// Symbol returns the symbol for a status
func (s Status) Symbol() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusWarning:
		return "○"
	case StatusError:
		return "✗"
	case StatusDisabled:
		return "·"
	default:
		return "?"
	}
}

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
