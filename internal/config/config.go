package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/jtriage/internal/jira"
	"github.com/Dicklesworthstone/jtriage/internal/logfilter"
	"github.com/Dicklesworthstone/jtriage/internal/util"
)

// Config holds all jtriage settings.
type Config struct {
	Jira        JiraConfig        `toml:"jira" yaml:"jira" json:"jira"`
	Filter      FilterConfig      `toml:"filter" yaml:"filter" json:"filter"`
	Attachments AttachmentsConfig `toml:"attachments" yaml:"attachments" json:"attachments"`
	Comments    CommentsConfig    `toml:"comments" yaml:"comments" json:"comments"`
	Agent       AgentConfig       `toml:"agent" yaml:"agent" json:"agent"`
	Output      OutputConfig      `toml:"output" yaml:"output" json:"output"`
	Logging     LoggingConfig     `toml:"logging" yaml:"logging" json:"logging"`
}

// JiraConfig holds connection settings for Jira Cloud.
type JiraConfig struct {
	SiteURL        string `toml:"site_url" yaml:"site_url" json:"site_url"`
	CloudID        string `toml:"cloud_id" yaml:"cloud_id" json:"cloud_id"`
	Email          string `toml:"email" yaml:"email" json:"email"`
	APIToken       string `toml:"api_token" yaml:"api_token" json:"-"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (j JiraConfig) Timeout() time.Duration {
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// ClientConfig converts the section into jira.Config.
func (j JiraConfig) ClientConfig(logger *slog.Logger) jira.Config {
	return jira.Config{
		SiteURL:  j.SiteURL,
		CloudID:  j.CloudID,
		Email:    j.Email,
		APIToken: j.APIToken,
		Timeout:  j.Timeout(),
		Logger:   logger,
	}
}

// FilterConfig controls log reduction.
type FilterConfig struct {
	Keywords           []string `toml:"keywords" yaml:"keywords" json:"keywords"`
	CaseSensitive      bool     `toml:"case_sensitive" yaml:"case_sensitive" json:"case_sensitive"`
	SeverityMarkers    []string `toml:"severity_markers" yaml:"severity_markers" json:"severity_markers"` // added to the built-in markers
	ContextBefore      int      `toml:"context_before" yaml:"context_before" json:"context_before"`
	ContextAfter       int      `toml:"context_after" yaml:"context_after" json:"context_after"`
	ErrorContextBefore int      `toml:"error_context_before" yaml:"error_context_before" json:"error_context_before"`
	ErrorContextAfter  int      `toml:"error_context_after" yaml:"error_context_after" json:"error_context_after"`
	HeadLines          int      `toml:"head_lines" yaml:"head_lines" json:"head_lines"`
	TailLines          int      `toml:"tail_lines" yaml:"tail_lines" json:"tail_lines"`
	MaxTokens          int      `toml:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	CharsPerToken      float64  `toml:"chars_per_token" yaml:"chars_per_token" json:"chars_per_token"`
}

// AttachmentsConfig controls where attachments go and which are read.
type AttachmentsConfig struct {
	Dir       string `toml:"dir" yaml:"dir" json:"dir"`
	MaxSizeMB int    `toml:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	Skip      bool   `toml:"skip" yaml:"skip" json:"skip"`
}

// CommentsConfig controls which comments reach the report.
type CommentsConfig struct {
	Max         int      `toml:"max" yaml:"max" json:"max"`
	BotAccounts []string `toml:"bot_accounts" yaml:"bot_accounts" json:"bot_accounts"`
}

// AgentConfig describes the external analysis CLI.
type AgentConfig struct {
	Command        string   `toml:"command" yaml:"command" json:"command"`
	Args           []string `toml:"args" yaml:"args" json:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
	Depth          string   `toml:"depth" yaml:"depth" json:"depth"`
}

// Timeout returns the analysis timeout.
func (a AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// OutputConfig sets the default report format.
type OutputConfig struct {
	Format string `toml:"format" yaml:"format" json:"format"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level" json:"level"`
}

// Defaults.
const (
	DefaultMaxTokens      = 4000
	DefaultAttachmentDir  = "./analysis_results"
	DefaultMaxSizeMB      = 50
	DefaultMaxComments    = 10
	DefaultAgentCommand   = "copilot"
	DefaultAgentTimeout   = 600
	DefaultJiraTimeout    = 30
	DefaultDepth          = "normal"
	PromptPlaceholder     = "{prompt}"
	defaultConfigDirName  = "jtriage"
	defaultConfigFileName = "config.toml"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Jira: JiraConfig{
			TimeoutSeconds: DefaultJiraTimeout,
		},
		Filter: FilterConfig{
			ContextBefore:      logfilter.DefaultContextLines,
			ContextAfter:       logfilter.DefaultContextLines,
			ErrorContextBefore: logfilter.DefaultErrorContextBefore,
			ErrorContextAfter:  logfilter.DefaultErrorContextAfter,
			HeadLines:          logfilter.DefaultHeadLines,
			TailLines:          logfilter.DefaultTailLines,
			MaxTokens:          DefaultMaxTokens,
			CharsPerToken:      logfilter.DefaultCharsPerToken,
		},
		Attachments: AttachmentsConfig{
			Dir:       DefaultAttachmentDir,
			MaxSizeMB: DefaultMaxSizeMB,
		},
		Comments: CommentsConfig{
			Max: DefaultMaxComments,
		},
		Agent: AgentConfig{
			Command:        DefaultAgentCommand,
			Args:           []string{"-p", PromptPlaceholder},
			TimeoutSeconds: DefaultAgentTimeout,
			Depth:          DefaultDepth,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// DefaultPath returns the default config file path
func DefaultPath() string {
	if env := os.Getenv("JTRIAGE_CONFIG"); env != "" {
		return ExpandHome(env)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, defaultConfigDirName, defaultConfigFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		// Fallback to /tmp when home directory is unavailable (e.g., containers)
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", defaultConfigDirName, defaultConfigFileName)
}

// Load reads configuration from path, falling back to DefaultPath when path
// is empty. Precedence is environment > .env file > config file > defaults.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	path = ExpandHome(path)

	// 1. Initialize with defaults
	cfg := Default()

	// 2. Read and unmarshal the file over defaults
	if data, err := os.ReadFile(path); err == nil {
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// 3. .env files only fill variables that are not already set
	if err := LoadDotEnv(".env", filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	// 4. Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// LoadDotEnv loads every existing file in paths into the process environment
// without overriding variables that are already set.
func LoadDotEnv(paths ...string) error {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATLASSIAN_CLOUD_ID"); v != "" {
		cfg.Jira.CloudID = v
	}
	if v := os.Getenv("ATLASSIAN_EMAIL"); v != "" {
		cfg.Jira.Email = v
	}
	if v := os.Getenv("ATLASSIAN_API_TOKEN"); v != "" {
		cfg.Jira.APIToken = v
	}
	if v := os.Getenv("JIRA_SITE_URL"); v != "" {
		cfg.Jira.SiteURL = v
	}
	if v := os.Getenv("JTRIAGE_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Filter.MaxTokens = n
		}
	}
	if v := os.Getenv("JTRIAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JTRIAGE_KEYWORDS"); v != "" {
		cfg.Filter.Keywords = logfilter.ParseKeywords(v, cfg.Filter.CaseSensitive).Terms
	}
}

// CreateDefault creates a default config file
func CreateDefault() (string, error) {
	path := DefaultPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists: %s", path)
	}

	var buffer strings.Builder
	if err := Print(Default(), &buffer); err != nil {
		return "", err
	}

	if err := util.AtomicWriteFile(path, []byte(buffer.String()), 0600); err != nil {
		return "", err
	}

	return path, nil
}

// Print writes cfg as a commented TOML document. The API token is never
// written; it belongs in the environment or a .env file.
func Print(cfg *Config, w io.Writer) error {
	fmt.Fprintln(w, "# jtriage configuration")
	fmt.Fprintln(w, "# Environment variables override these values:")
	fmt.Fprintln(w, "#   ATLASSIAN_CLOUD_ID, ATLASSIAN_EMAIL, ATLASSIAN_API_TOKEN, JIRA_SITE_URL,")
	fmt.Fprintln(w, "#   JTRIAGE_MAX_TOKENS, JTRIAGE_LOG_LEVEL, JTRIAGE_KEYWORDS")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[jira]")
	fmt.Fprintln(w, "# Site URL, e.g. https://acme.atlassian.net (derived from cloud_id when empty)")
	printString(w, "site_url", cfg.Jira.SiteURL)
	printString(w, "cloud_id", cfg.Jira.CloudID)
	printString(w, "email", cfg.Jira.Email)
	fmt.Fprintln(w, "# api_token is read from ATLASSIAN_API_TOKEN")
	fmt.Fprintf(w, "timeout_seconds = %d\n", cfg.Jira.TimeoutSeconds)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[filter]")
	fmt.Fprintln(w, "# Extra keywords to extract with context (severity markers are always used)")
	fmt.Fprintf(w, "keywords = %s\n", tomlStrings(cfg.Filter.Keywords))
	fmt.Fprintf(w, "case_sensitive = %t\n", cfg.Filter.CaseSensitive)
	fmt.Fprintln(w, "# Added to the built-in severity markers (error, fatal, panic, exception, ...)")
	fmt.Fprintf(w, "severity_markers = %s\n", tomlStrings(cfg.Filter.SeverityMarkers))
	fmt.Fprintf(w, "context_before = %d\n", cfg.Filter.ContextBefore)
	fmt.Fprintf(w, "context_after = %d\n", cfg.Filter.ContextAfter)
	fmt.Fprintf(w, "error_context_before = %d\n", cfg.Filter.ErrorContextBefore)
	fmt.Fprintf(w, "error_context_after = %d\n", cfg.Filter.ErrorContextAfter)
	fmt.Fprintf(w, "head_lines = %d\n", cfg.Filter.HeadLines)
	fmt.Fprintf(w, "tail_lines = %d\n", cfg.Filter.TailLines)
	fmt.Fprintln(w, "# Token budget per log file")
	fmt.Fprintf(w, "max_tokens = %d\n", cfg.Filter.MaxTokens)
	fmt.Fprintf(w, "chars_per_token = %s\n", strconv.FormatFloat(cfg.Filter.CharsPerToken, 'f', -1, 64))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[attachments]")
	fmt.Fprintln(w, "# Downloads go to <dir>/<ISSUE-KEY>/attachments")
	printString(w, "dir", cfg.Attachments.Dir)
	fmt.Fprintf(w, "max_size_mb = %d\n", cfg.Attachments.MaxSizeMB)
	fmt.Fprintf(w, "skip = %t\n", cfg.Attachments.Skip)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[comments]")
	fmt.Fprintf(w, "max = %d\n", cfg.Comments.Max)
	fmt.Fprintln(w, "# Added to the built-in automation accounts")
	fmt.Fprintf(w, "bot_accounts = %s\n", tomlStrings(cfg.Comments.BotAccounts))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[agent]")
	fmt.Fprintln(w, "# Analysis CLI; the document is piped on stdin and {prompt} is replaced in args")
	printString(w, "command", cfg.Agent.Command)
	fmt.Fprintf(w, "args = %s\n", tomlStrings(cfg.Agent.Args))
	fmt.Fprintf(w, "timeout_seconds = %d\n", cfg.Agent.TimeoutSeconds)
	fmt.Fprintln(w, "# quick, normal or deep")
	printString(w, "depth", cfg.Agent.Depth)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[output]")
	fmt.Fprintln(w, "# text, markdown, json or yaml")
	printString(w, "format", cfg.Output.Format)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[logging]")
	fmt.Fprintln(w, "# debug, info, warn or error")
	printString(w, "level", cfg.Logging.Level)

	return nil
}

func printString(w io.Writer, key, value string) {
	if value == "" {
		fmt.Fprintf(w, "# %s = \"\"\n", key)
		return
	}
	fmt.Fprintf(w, "%s = %q\n", key, value)
}

func tomlStrings(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	return path
}

// ReducerOptions converts the filter section into reducer options. Windows
// are taken as configured, so an explicit 0 means no context.
func (c *Config) ReducerOptions() logfilter.Options {
	f := c.Filter
	return logfilter.Options{
		Budget:             logfilter.Budget{MaxTokens: f.MaxTokens, CharsPerToken: f.CharsPerToken},
		SeverityMarkers:    logfilter.MergeTerms(logfilter.DefaultSeverityMarkers(), f.SeverityMarkers),
		ErrorContextBefore: f.ErrorContextBefore,
		ErrorContextAfter:  f.ErrorContextAfter,
		ContextBefore:      f.ContextBefore,
		ContextAfter:       f.ContextAfter,
		HeadLines:          f.HeadLines,
		TailLines:          f.TailLines,
	}
}

// KeywordSet returns the configured user keywords.
func (c *Config) KeywordSet() logfilter.KeywordSet {
	return logfilter.NewKeywordSet(c.Filter.CaseSensitive, c.Filter.Keywords...)
}

// BotAccounts returns the built-in bot names followed by configured ones.
func (c *Config) BotAccounts() []string {
	return logfilter.MergeTerms(jira.DefaultBotAccounts(), c.Comments.BotAccounts)
}

// MissingCredentials lists the environment variables needed to reach Jira
// that are not configured.
func MissingCredentials(cfg *Config) []string {
	var missing []string
	if cfg.Jira.CloudID == "" && cfg.Jira.SiteURL == "" {
		missing = append(missing, "ATLASSIAN_CLOUD_ID")
	}
	if cfg.Jira.APIToken == "" {
		missing = append(missing, "ATLASSIAN_API_TOKEN")
	}
	if cfg.Jira.Email == "" {
		missing = append(missing, "ATLASSIAN_EMAIL")
	}
	return missing
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

var validDepths = map[string]bool{"quick": true, "normal": true, "deep": true}

var validFormats = map[string]bool{
	"text": true, "txt": true, "terminal": true,
	"markdown": true, "md": true,
	"json": true,
	"yaml": true, "yml": true,
}

// Validate checks the configuration and returns every problem found.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	var errs []error

	if cfg.Jira.SiteURL != "" {
		u, err := url.Parse(jira.BaseURL(cfg.Jira.SiteURL, ""))
		if err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("jira.site_url: not a valid URL, got %q", cfg.Jira.SiteURL))
		}
	}
	if cfg.Jira.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("jira.timeout_seconds: must be non-negative, got %d", cfg.Jira.TimeoutSeconds))
	}

	// Budget
	if err := (logfilter.Budget{MaxTokens: cfg.Filter.MaxTokens, CharsPerToken: cfg.Filter.CharsPerToken}).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}
	for _, f := range []struct {
		key string
		v   int
	}{
		{"context_before", cfg.Filter.ContextBefore},
		{"context_after", cfg.Filter.ContextAfter},
		{"error_context_before", cfg.Filter.ErrorContextBefore},
		{"error_context_after", cfg.Filter.ErrorContextAfter},
		{"head_lines", cfg.Filter.HeadLines},
		{"tail_lines", cfg.Filter.TailLines},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("filter.%s: must be non-negative, got %d", f.key, f.v))
		}
	}

	if cfg.Attachments.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("attachments.max_size_mb: must be positive, got %d", cfg.Attachments.MaxSizeMB))
	}
	if cfg.Comments.Max < 0 {
		errs = append(errs, fmt.Errorf("comments.max: must be non-negative, got %d", cfg.Comments.Max))
	}

	if strings.TrimSpace(cfg.Agent.Command) == "" {
		errs = append(errs, fmt.Errorf("agent.command: must not be empty"))
	}
	if cfg.Agent.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("agent.timeout_seconds: must be non-negative, got %d", cfg.Agent.TimeoutSeconds))
	}
	if !validDepths[strings.ToLower(cfg.Agent.Depth)] {
		errs = append(errs, fmt.Errorf("agent.depth: must be \"quick\", \"normal\" or \"deep\", got %q", cfg.Agent.Depth))
	}

	if !validFormats[strings.ToLower(cfg.Output.Format)] {
		errs = append(errs, fmt.Errorf("output.format: must be text, markdown, json or yaml, got %q", cfg.Output.Format))
	}
	if _, err := ParseLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errs
}
