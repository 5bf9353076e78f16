// Package config provides configuration file support for autose.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/richhaase/autose/internal/domain"
	"github.com/richhaase/autose/internal/git"
	"github.com/richhaase/autose/internal/logger"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = ".autose.yaml"

// Duration is a custom type that handles YAML duration parsing.
// Supports both Go duration format ("5m", "300s") and numeric seconds.
type Duration time.Duration

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := parseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration type: %T", v)
	}
	return nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// parseDuration accepts "90s", "2m" and bare seconds.
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

// Config represents the .autose.yaml file. Nil fields were not set.
type Config struct {
	APIURL         *string       `yaml:"api_url"`
	APIKey         *string       `yaml:"api_key"`
	DevModel       *string       `yaml:"dev_model"`
	LintModel      *string       `yaml:"lint_model"`
	OutputDir      *string       `yaml:"output_dir"`
	LogLevel       *string       `yaml:"log_level"`
	RequestTimeout *Duration     `yaml:"request_timeout"`
	History        HistoryConfig `yaml:"history"`
}

// HistoryConfig tunes how a cut history stream is retried.
type HistoryConfig struct {
	MaxAttempts *int      `yaml:"max_attempts"`
	RetryDelay  *Duration `yaml:"retry_delay"`
}

// LoadResult contains the loaded config and any warnings encountered.
type LoadResult struct {
	Config    *Config
	Warnings  []string
	ConfigDir string
	// Path is the file that was read, or empty if none was found.
	Path string
}

// LoadWithWarnings reads .autose.yaml from the git repository root.
// Returns an empty config (not error) outside a repository or if the file
// doesn't exist.
func LoadWithWarnings() (*LoadResult, error) {
	repoRoot, err := git.GetRoot()
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}
	return LoadFromDirWithWarnings(repoRoot)
}

// LoadFromDirWithWarnings reads .autose.yaml from dir.
func LoadFromDirWithWarnings(dir string) (*LoadResult, error) {
	result, err := LoadFromPathWithWarnings(filepath.Join(dir, ConfigFileName))
	if result != nil {
		result.ConfigDir = dir
	}
	return result, err
}

// LoadFromPathWithWarnings reads a config file and returns warnings for unknown keys.
// Returns an empty config (not error) if the file doesn't exist.
// Returns an error if the file exists but is invalid YAML or holds invalid values.
func LoadFromPathWithWarnings(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &LoadResult{Config: &Config{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	warnings := checkUnknownKeys(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFileName, err)
	}

	return &LoadResult{Config: &cfg, Warnings: warnings, Path: path}, nil
}

// knownTopLevelKeys are the valid top-level keys in the config file.
var knownTopLevelKeys = []string{"api_url", "api_key", "dev_model", "lint_model", "output_dir", "log_level", "request_timeout", "history"}

// knownHistoryKeys are the valid keys under the "history" section.
var knownHistoryKeys = []string{"max_attempts", "retry_delay"}

// checkUnknownKeys checks for unknown keys in the YAML data and returns warnings.
func checkUnknownKeys(data []byte) []string {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Let the main parser report it.
		return nil
	}

	var warnings []string
	for _, key := range sortedKeys(raw) {
		if !slices.Contains(knownTopLevelKeys, key) {
			warnings = append(warnings, unknownKeyWarning(key, "", knownTopLevelKeys))
		}
	}
	if section, ok := raw["history"].(map[string]any); ok {
		for _, key := range sortedKeys(section) {
			if !slices.Contains(knownHistoryKeys, key) {
				warnings = append(warnings, unknownKeyWarning(key, "history", knownHistoryKeys))
			}
		}
	}
	return warnings
}

func unknownKeyWarning(key, section string, known []string) string {
	where := ConfigFileName
	if section != "" {
		where = fmt.Sprintf("%s section of %s", section, ConfigFileName)
	}
	warning := fmt.Sprintf("unknown key %q in %s", key, where)
	if suggestion := findSimilar(key, known); suggestion != "" {
		warning += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return warning
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// findSimilar returns the candidate closest to input, or "" if none is
// within three edits.
func findSimilar(input string, candidates []string) string {
	const maxDistance = 3
	best, bestDist := "", maxDistance+1
	for _, c := range candidates {
		if d := levenshtein(input, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// levenshtein computes the edit distance using two rolling rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Validate checks the values set in the file.
func (c *Config) Validate() error {
	if c.APIURL != nil {
		if err := validateURL(*c.APIURL); err != nil {
			return fmt.Errorf("api_url: %w", err)
		}
	}
	if c.DevModel != nil && !slices.Contains(domain.DevModels, *c.DevModel) {
		return fmt.Errorf("dev_model must be one of %v, got %q", domain.DevModels, *c.DevModel)
	}
	if c.LintModel != nil && !slices.Contains(domain.LintModels, *c.LintModel) {
		return fmt.Errorf("lint_model must be one of %v, got %q", domain.LintModels, *c.LintModel)
	}
	if c.LogLevel != nil && !slices.Contains(logger.Levels, strings.ToLower(*c.LogLevel)) {
		return fmt.Errorf("log_level must be one of %v, got %q", logger.Levels, *c.LogLevel)
	}
	if c.RequestTimeout != nil && *c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be >= 0, got %s", c.RequestTimeout.AsDuration())
	}
	if c.History.MaxAttempts != nil && *c.History.MaxAttempts < 1 {
		return fmt.Errorf("history.max_attempts must be >= 1, got %d", *c.History.MaxAttempts)
	}
	if c.History.RetryDelay != nil && *c.History.RetryDelay <= 0 {
		return fmt.Errorf("history.retry_delay must be > 0, got %s", c.History.RetryDelay.AsDuration())
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

// Defaults holds the built-in default values.
var Defaults = ResolvedConfig{
	APIURL:         "http://localhost:8000",
	APIKey:         "unknown",
	DevModel:       domain.DefaultDevModel,
	LintModel:      domain.DefaultLintModel,
	OutputDir:      ".",
	LogLevel:       logger.WarnLevel,
	RequestTimeout: 5 * time.Minute,
	MaxAttempts:    5,
	RetryDelay:     15 * time.Second,
}

// ResolvedConfig holds the final resolved configuration values.
type ResolvedConfig struct {
	APIURL         string
	APIKey         string
	DevModel       string
	LintModel      string
	OutputDir      string
	LogLevel       string
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
}

// ValidateAll reports every invalid resolved value.
func (r ResolvedConfig) ValidateAll() []string {
	var errs []string
	if err := validateURL(r.APIURL); err != nil {
		errs = append(errs, fmt.Sprintf("api url: %v", err))
	}
	if !slices.Contains(domain.DevModels, r.DevModel) {
		errs = append(errs, fmt.Sprintf("dev model must be one of %v, got %q", domain.DevModels, r.DevModel))
	}
	if !slices.Contains(domain.LintModels, r.LintModel) {
		errs = append(errs, fmt.Sprintf("lint model must be one of %v, got %q", domain.LintModels, r.LintModel))
	}
	if !slices.Contains(logger.Levels, strings.ToLower(r.LogLevel)) {
		errs = append(errs, fmt.Sprintf("log level must be one of %v, got %q", logger.Levels, r.LogLevel))
	}
	if r.OutputDir == "" {
		errs = append(errs, "output dir must not be empty")
	}
	if r.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("max attempts must be >= 1, got %d", r.MaxAttempts))
	}
	if r.RetryDelay <= 0 {
		errs = append(errs, fmt.Sprintf("retry delay must be > 0, got %s", r.RetryDelay))
	}
	return errs
}

// FlagState tracks whether a flag was explicitly set.
type FlagState struct {
	APIURLSet    bool
	APIKeySet    bool
	DevModelSet  bool
	LintModelSet bool
	OutputDirSet bool
	LogLevelSet  bool
}

// EnvState captures env var values and whether they were set.
type EnvState struct {
	APIURL            string
	APIURLSet         bool
	APIKey            string
	APIKeySet         bool
	DevModel          string
	DevModelSet       bool
	LintModel         string
	LintModelSet      bool
	OutputDir         string
	OutputDirSet      bool
	LogLevel          string
	LogLevelSet       bool
	RequestTimeout    time.Duration
	RequestTimeoutSet bool
}

// Environment variable names.
const (
	EnvAPIURL         = "API_URL"
	EnvAPIKey         = "API_KEY"
	EnvDevModel       = "AUTOSE_DEV_MODEL"
	EnvLintModel      = "AUTOSE_LINT_MODEL"
	EnvOutputDir      = "AUTOSE_OUTPUT_DIR"
	EnvLogLevel       = "AUTOSE_LOG_LEVEL"
	EnvRequestTimeout = "AUTOSE_REQUEST_TIMEOUT"
)

// LoadEnvState reads environment variables and returns their state along
// with warnings for values that could not be parsed. Unparseable values are
// ignored.
func LoadEnvState() (EnvState, []string) {
	var state EnvState
	var warnings []string

	str := func(name string, dst *string, set *bool) {
		if v := os.Getenv(name); v != "" {
			*dst, *set = v, true
		}
	}
	str(EnvAPIURL, &state.APIURL, &state.APIURLSet)
	str(EnvAPIKey, &state.APIKey, &state.APIKeySet)
	str(EnvDevModel, &state.DevModel, &state.DevModelSet)
	str(EnvLintModel, &state.LintModel, &state.LintModelSet)
	str(EnvOutputDir, &state.OutputDir, &state.OutputDirSet)
	str(EnvLogLevel, &state.LogLevel, &state.LogLevelSet)

	if v := os.Getenv(EnvRequestTimeout); v != "" {
		if d, err := parseDuration(v); err == nil && d >= 0 {
			state.RequestTimeout, state.RequestTimeoutSet = d, true
		} else {
			warnings = append(warnings, fmt.Sprintf("%s=%q is not a valid duration, ignoring", EnvRequestTimeout, v))
		}
	}

	return state, warnings
}

// Resolve merges config file values with env vars and flags.
// Precedence: flags > env vars > config file > defaults
func Resolve(cfg *Config, envState EnvState, flagState FlagState, flagValues ResolvedConfig) ResolvedConfig {
	result := Defaults

	if cfg != nil {
		setIf(&result.APIURL, cfg.APIURL)
		setIf(&result.APIKey, cfg.APIKey)
		setIf(&result.DevModel, cfg.DevModel)
		setIf(&result.LintModel, cfg.LintModel)
		setIf(&result.OutputDir, cfg.OutputDir)
		setIf(&result.LogLevel, cfg.LogLevel)
		if cfg.RequestTimeout != nil {
			result.RequestTimeout = cfg.RequestTimeout.AsDuration()
		}
		setIf(&result.MaxAttempts, cfg.History.MaxAttempts)
		if cfg.History.RetryDelay != nil {
			result.RetryDelay = cfg.History.RetryDelay.AsDuration()
		}
	}

	if envState.APIURLSet {
		result.APIURL = envState.APIURL
	}
	if envState.APIKeySet {
		result.APIKey = envState.APIKey
	}
	if envState.DevModelSet {
		result.DevModel = envState.DevModel
	}
	if envState.LintModelSet {
		result.LintModel = envState.LintModel
	}
	if envState.OutputDirSet {
		result.OutputDir = envState.OutputDir
	}
	if envState.LogLevelSet {
		result.LogLevel = envState.LogLevel
	}
	if envState.RequestTimeoutSet {
		result.RequestTimeout = envState.RequestTimeout
	}

	if flagState.APIURLSet {
		result.APIURL = flagValues.APIURL
	}
	if flagState.APIKeySet {
		result.APIKey = flagValues.APIKey
	}
	if flagState.DevModelSet {
		result.DevModel = flagValues.DevModel
	}
	if flagState.LintModelSet {
		result.LintModel = flagValues.LintModel
	}
	if flagState.OutputDirSet {
		result.OutputDir = flagValues.OutputDir
	}
	if flagState.LogLevelSet {
		result.LogLevel = flagValues.LogLevel
	}

	return result
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// StarterFile is written by "autose config init".
const StarterFile = `# autose configuration file

# Backend URL (default: http://localhost:8000, env: API_URL)
# api_url: http://localhost:8000

# API key sent in the Authorization header (env: API_KEY)
# api_key: unknown

# Model for dev tasks: openai:gpt4o, openai:gpt4, skylark2-32k
# dev_model: openai:gpt4

# Model for lint requests: openai:gpt3
# lint_model: openai:gpt3

# Directory where <task-id>.diff patches are saved (default: .)
# output_dir: .

# Diagnostic log level: debug, info, warn, error (default: warn)
# log_level: warn

# Timeout for non-streaming requests, 0 disables it (default: 5m)
# request_timeout: 5m

# Retrying a history stream that was cut off
# history:
#   max_attempts: 5
#   retry_delay: 15s
`
