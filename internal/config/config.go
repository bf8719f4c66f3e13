// Package config loads pipeline settings from an optional YAML file with
// environment variables taking precedence. Values read from env files often
// arrive wrapped in quotes, so every string passes through unquoting first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultModel          = "gemini-2.0-flash"
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 30 * time.Second
	DefaultEventsTable    = "funding_events"
	DefaultCompaniesTable = "companies"
	DefaultTelemetryTable = "pipeline_runs"
	DefaultJournalPath    = ".fundwatch/journal.db"
)

// Duration unmarshals from either a bare integer (seconds, matching the
// LLM_RETRY_BASE_DELAY env convention) or a Go duration string like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(unquote(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Tables names the remote destinations.
type Tables struct {
	Events    string `yaml:"events"`
	Companies string `yaml:"companies"`
	Telemetry string `yaml:"telemetry"`
}

// Config is the full pipeline configuration.
type Config struct {
	GeminiAPIKey           string `yaml:"gemini_api_key"`
	SupabaseURL            string `yaml:"supabase_url"`
	SupabaseServiceRoleKey string `yaml:"supabase_service_role_key"`

	Model          string   `yaml:"model"`
	ModelFallbacks []string `yaml:"model_fallbacks"`
	MaxRetries     int      `yaml:"max_retries"`
	RetryBaseDelay Duration `yaml:"retry_base_delay"`

	Tables      Tables `yaml:"tables"`
	JournalPath string `yaml:"journal_path"`
}

// Load reads the YAML file at path (missing file is fine), applies env
// overrides, and fills defaults. It does not validate credentials; commands
// that need them check at the call site.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No file is a valid setup; env carries everything.
		default:
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := envString("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := envString("SUPABASE_URL"); v != "" {
		cfg.SupabaseURL = v
	}
	if v := envString("SUPABASE_SERVICE_ROLE_KEY"); v != "" {
		cfg.SupabaseServiceRoleKey = v
	}
	if v := envString("MODEL"); v != "" {
		cfg.Model = v
	}
	if v := envString("LLM_MODEL_FALLBACKS"); v != "" {
		cfg.ModelFallbacks = splitModels(v)
	}
	if v := envString("LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}
	if v := envString("LLM_RETRY_BASE_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryBaseDelay = Duration(time.Duration(n) * time.Second)
		}
	}
	if v := envString("SUPABASE_TABLE"); v != "" {
		cfg.Tables.Events = v
	}
	if v := envString("SUPABASE_COMPANIES_TABLE"); v != "" {
		cfg.Tables.Companies = v
	}
	if v := envString("TELEMETRY_TABLE"); v != "" {
		cfg.Tables.Telemetry = v
	}
	if v := envString("FUNDWATCH_JOURNAL"); v != "" {
		cfg.JournalPath = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = Duration(DefaultRetryBaseDelay)
	}
	if cfg.Tables.Events == "" {
		cfg.Tables.Events = DefaultEventsTable
	}
	if cfg.Tables.Companies == "" {
		cfg.Tables.Companies = DefaultCompaniesTable
	}
	if cfg.Tables.Telemetry == "" {
		cfg.Tables.Telemetry = DefaultTelemetryTable
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = DefaultJournalPath
	}
}

// Models returns the ordered model chain: primary first, then fallbacks,
// deduplicated, quotes stripped.
func (c Config) Models() []string {
	raw := append([]string{c.Model}, c.ModelFallbacks...)
	var models []string
	for _, r := range raw {
		m := unquote(r)
		if m == "" {
			continue
		}
		dup := false
		for _, seen := range models {
			if seen == m {
				dup = true
				break
			}
		}
		if !dup {
			models = append(models, m)
		}
	}
	return models
}

func envString(name string) string {
	return unquote(os.Getenv(name))
}

func splitModels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if m := unquote(part); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// unquote trims whitespace and one layer of surrounding quotes. Docker
// env-files keep quote characters in values, so this runs on every input.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
