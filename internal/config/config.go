// Package config handles Marcus configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Advisor modes.
const (
	ModeStructured = "structured"
	ModeSignal     = "signal"
)

// Provider names for the advisor model.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderCLI       = "cli"
)

// Research strategies.
const (
	StrategyCLI    = "cli"
	StrategyGemini = "gemini"
	StrategySearch = "search"
)

// PromptPlaceholder marks where the prompt goes in a CLI argument list.
// If no argument contains it, the prompt is appended as the last argument.
const PromptPlaceholder = "{prompt}"

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/marcus/config.yaml, /etc/marcus/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "marcus", "config.yaml"))
	}

	paths = append(paths, "/etc/marcus/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Marcus configuration. It is loaded once at startup
// and passed by value or pointer into constructors; nothing reads it
// from package state.
type Config struct {
	Listen      ListenConfig      `yaml:"listen"`
	Advisor     AdvisorConfig     `yaml:"advisor"`
	Anthropic   AnthropicConfig   `yaml:"anthropic"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	CLI         CLIConfig         `yaml:"cli"`
	Research    ResearchConfig    `yaml:"research"`
	Search      SearchConfig      `yaml:"search"`
	Reports     ReportsConfig     `yaml:"reports"`
	ResearchLog ResearchLogConfig `yaml:"research_log"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	LogLevel    string            `yaml:"log_level"`
	LogFormat   string            `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// AdvisorConfig controls the primary conversational model.
type AdvisorConfig struct {
	// Mode is "structured" (native tool calls) or "signal" (inline
	// [RESEARCH: topic] markers over a text-only interface).
	Mode string `yaml:"mode"`

	// Provider is anthropic, ollama, or cli. The cli provider only
	// supports signal mode.
	Provider string `yaml:"provider"`

	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`

	// MaxRounds bounds research round-trips per turn in structured mode.
	MaxRounds int `yaml:"max_rounds"`

	// Timeout applies to each individual primary-model call.
	Timeout time.Duration `yaml:"timeout"`

	// PersonaFile replaces the built-in persona when set.
	PersonaFile string `yaml:"persona_file"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Override for proxies and tests
}

// Configured reports whether an Anthropic API key is set.
func (c AnthropicConfig) Configured() bool {
	return c.APIKey != ""
}

// OllamaConfig defines the Ollama server location.
type OllamaConfig struct {
	URL string `yaml:"url"`
}

// GeminiConfig defines Google Gemini API settings used for hosted
// research and search-result synthesis.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// Grounding enables Google Search grounding for hosted research.
	Grounding bool   `yaml:"grounding"`
	BaseURL   string `yaml:"base_url"` // Override for tests
}

// Configured reports whether a Gemini API key is set.
func (c GeminiConfig) Configured() bool {
	return c.APIKey != ""
}

// CLIConfig describes the headless command-line tools Marcus can drive.
type CLIConfig struct {
	Advisor  CommandConfig `yaml:"advisor"`
	Research CommandConfig `yaml:"research"`
}

// CommandConfig is one command-line tool invocation template.
type CommandConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"` // May contain PromptPlaceholder
	// WorkingDir is the fixed directory the tool runs in. A leading ~/
	// is expanded to the user's home directory.
	WorkingDir string `yaml:"working_dir"`
}

// ResearchConfig controls the delegated research capability.
type ResearchConfig struct {
	// Strategy is cli, gemini, or search.
	Strategy string `yaml:"strategy"`

	// Timeout bounds a single topical research call.
	Timeout time.Duration `yaml:"timeout"`

	// ReportTimeout bounds a full trend report generation.
	ReportTimeout time.Duration `yaml:"report_timeout"`

	// MaxTokens caps synthesized topical research output.
	MaxTokens int `yaml:"max_tokens"`

	// ReportMaxTokens caps synthesized report output.
	ReportMaxTokens int `yaml:"report_max_tokens"`

	// ResultsPerQuery is the search result count per query (search strategy).
	ResultsPerQuery int `yaml:"results_per_query"`

	// Concurrency limits parallel search queries (search strategy).
	Concurrency int `yaml:"concurrency"`
}

// SearchConfig configures web search providers for the search strategy.
type SearchConfig struct {
	Primary    string           `yaml:"primary"` // brave, searxng, or duckduckgo
	Brave      BraveConfig      `yaml:"brave"`
	SearXNG    SearXNGConfig    `yaml:"searxng"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo"`
}

// BraveConfig holds configuration for the Brave Search provider.
type BraveConfig struct {
	APIKey string `yaml:"api_key"`
}

// Configured reports whether a Brave API key is set.
func (c BraveConfig) Configured() bool {
	return c.APIKey != ""
}

// SearXNGConfig holds configuration for the SearXNG provider.
type SearXNGConfig struct {
	URL string `yaml:"url"`
}

// Configured reports whether a SearXNG URL is set.
func (c SearXNGConfig) Configured() bool {
	return c.URL != ""
}

// DuckDuckGoConfig holds configuration for the keyless DuckDuckGo
// HTML endpoint.
type DuckDuckGoConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"` // Override for tests
}

// Configured reports whether DuckDuckGo search is enabled.
func (c DuckDuckGoConfig) Configured() bool {
	return c.Enabled
}

// ReportsConfig controls where trend reports are written.
type ReportsConfig struct {
	Dir string `yaml:"dir"`
	// SeedSessions pre-loads the newest report on disk as the latest
	// report of each new session.
	SeedSessions bool `yaml:"seed_sessions"`
}

// ResearchLogConfig enables the SQLite research audit log.
type ResearchLogConfig struct {
	Path string `yaml:"path"`
}

// Configured reports whether the research log is enabled.
func (c ResearchLogConfig) Configured() bool {
	return c.Path != ""
}

// MQTTConfig configures report announcements over MQTT.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. mqtt://localhost:1883
	Topic    string `yaml:"topic"`  // Prefix; reports go to <topic>/report
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
}

// Configured reports whether an MQTT broker is set.
func (c MQTTConfig) Configured() bool {
	return c.Broker != ""
}

// Load reads configuration from a YAML file. Environment variables
// (${VAR}) are expanded before parsing so secrets can stay out of the
// file. Unset fields receive defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration: Anthropic structured advisor
// with Gemini CLI research.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}

	if c.Advisor.Mode == "" {
		c.Advisor.Mode = ModeStructured
	}
	if c.Advisor.Provider == "" {
		c.Advisor.Provider = ProviderAnthropic
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = "claude-sonnet-4-5-20250929"
	}
	if c.Advisor.MaxTokens <= 0 {
		c.Advisor.MaxTokens = 1500
	}
	if c.Advisor.MaxRounds <= 0 {
		c.Advisor.MaxRounds = 5
	}
	if c.Advisor.Timeout <= 0 {
		c.Advisor.Timeout = 2 * time.Minute
	}

	if c.Ollama.URL == "" {
		c.Ollama.URL = "http://localhost:11434"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}

	if c.CLI.Advisor.Binary == "" {
		c.CLI.Advisor.Binary = "claude"
	}
	if len(c.CLI.Advisor.Args) == 0 {
		c.CLI.Advisor.Args = []string{"-p", PromptPlaceholder, "--output-format", "text"}
	}
	if c.CLI.Research.Binary == "" {
		c.CLI.Research.Binary = "gemini"
	}
	if len(c.CLI.Research.Args) == 0 {
		c.CLI.Research.Args = []string{"-p", PromptPlaceholder, "-o", "text", "--yolo"}
	}
	if c.CLI.Research.WorkingDir == "" {
		c.CLI.Research.WorkingDir = "~"
	}

	if c.Research.Strategy == "" {
		c.Research.Strategy = StrategyCLI
	}
	if c.Research.Timeout <= 0 {
		c.Research.Timeout = 120 * time.Second
	}
	if c.Research.ReportTimeout <= 0 {
		c.Research.ReportTimeout = 180 * time.Second
	}
	if c.Research.MaxTokens <= 0 {
		c.Research.MaxTokens = 1024
	}
	if c.Research.ReportMaxTokens <= 0 {
		c.Research.ReportMaxTokens = 2048
	}
	if c.Research.ResultsPerQuery <= 0 {
		c.Research.ResultsPerQuery = 5
	}
	if c.Research.Concurrency <= 0 {
		c.Research.Concurrency = 3
	}

	if c.Search.Primary == "" {
		c.Search.Primary = "duckduckgo"
		c.Search.DuckDuckGo.Enabled = true
	}

	if c.Reports.Dir == "" {
		c.Reports.Dir = filepath.Join("data", "trends")
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "marcus"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "marcus"
	}
}

// Validate reports configuration combinations that cannot run. All
// problems are returned together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Advisor.Mode {
	case ModeStructured, ModeSignal:
	default:
		errs = append(errs, fmt.Errorf("advisor.mode %q: want %s or %s", c.Advisor.Mode, ModeStructured, ModeSignal))
	}

	switch c.Advisor.Provider {
	case ProviderAnthropic:
		if !c.Anthropic.Configured() {
			errs = append(errs, errors.New("advisor.provider anthropic requires anthropic.api_key"))
		}
	case ProviderOllama:
	case ProviderCLI:
		if c.Advisor.Mode == ModeStructured {
			errs = append(errs, errors.New("advisor.provider cli only supports advisor.mode signal"))
		}
	default:
		errs = append(errs, fmt.Errorf("advisor.provider %q: want anthropic, ollama, or cli", c.Advisor.Provider))
	}

	switch c.Research.Strategy {
	case StrategyCLI:
	case StrategyGemini:
		if !c.Gemini.Configured() {
			errs = append(errs, errors.New("research.strategy gemini requires gemini.api_key"))
		}
	case StrategySearch:
		if !c.Gemini.Configured() && c.Advisor.Provider == ProviderCLI {
			errs = append(errs, errors.New("research.strategy search needs a synthesis model: set gemini.api_key or use an API advisor provider"))
		}
		switch c.Search.Primary {
		case "brave":
			if !c.Search.Brave.Configured() {
				errs = append(errs, errors.New("search.primary brave requires search.brave.api_key"))
			}
		case "searxng":
			if !c.Search.SearXNG.Configured() {
				errs = append(errs, errors.New("search.primary searxng requires search.searxng.url"))
			}
		case "duckduckgo":
		default:
			errs = append(errs, fmt.Errorf("search.primary %q: want brave, searxng, or duckduckgo", c.Search.Primary))
		}
	default:
		errs = append(errs, fmt.Errorf("research.strategy %q: want cli, gemini, or search", c.Research.Strategy))
	}

	return errors.Join(errs...)
}

// ExpandHome expands a leading ~ or ~/ to the user's home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
