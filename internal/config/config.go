// Package config loads citeq settings from a YAML file, a .env file and
// CITEQ_ environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CITEQ_DB_PATH.
const EnvPrefix = "CITEQ"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds every tunable setting.
type Config struct {
	DBPath  string `yaml:"db_path" envconfig:"DB_PATH"`
	PDFRoot string `yaml:"pdf_root,omitempty" envconfig:"PDF_ROOT"`

	OpenAlexURL   string `yaml:"openalex_url" envconfig:"OPENALEX_URL"`
	OpenAlexEmail string `yaml:"openalex_email,omitempty" envconfig:"OPENALEX_EMAIL"`
	S2URL         string `yaml:"s2_url" envconfig:"S2_URL"`
	S2APIKey      string `yaml:"s2_api_key,omitempty" envconfig:"S2_API_KEY"`

	MaxAttempts       int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	BaseDelay         time.Duration `yaml:"base_delay" envconfig:"BASE_DELAY"`
	MaxDelay          time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	PageSize          int           `yaml:"page_size" envconfig:"PAGE_SIZE"`
	BatchSize         int           `yaml:"batch_size" envconfig:"BATCH_SIZE"`

	OllamaURL       string `yaml:"ollama_url" envconfig:"OLLAMA_URL"`
	OllamaModel     string `yaml:"ollama_model" envconfig:"OLLAMA_MODEL"`
	ClassifyWorkers int    `yaml:"classify_workers" envconfig:"CLASSIFY_WORKERS"`

	LogMode string `yaml:"log_mode" envconfig:"LOG_MODE"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:            "citeq.db",
		OpenAlexURL:       "https://api.openalex.org",
		S2URL:             "https://api.semanticscholar.org/graph/v1",
		MaxAttempts:       8,
		BaseDelay:         time.Second,
		MaxDelay:          2 * time.Minute,
		RequestsPerSecond: 1,
		PageSize:          100,
		BatchSize:         400,
		OllamaURL:         "http://localhost:11434",
		OllamaModel:       "llama2",
		ClassifyWorkers:   4,
		LogMode:           "development",
	}
}

// Load builds the configuration. path names the YAML file; when empty the
// global file is used if present. An explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = GlobalConfigPath()
	}
	if path != "" {
		if err := readFile(ExpandPath(path), &cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	cfg.DBPath = ExpandPath(cfg.DBPath)
	cfg.PDFRoot = ExpandPath(cfg.PDFRoot)
	cfg.LogMode = normalizeLogMode(cfg.LogMode)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeLogMode maps the spellings the logger accepts onto the two
// canonical modes. Anything else is left for Validate to reject.
func normalizeLogMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "prod", "production":
		return "production"
	case "dev", "development":
		return "development"
	default:
		return mode
	}
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parsing %s: %w", ErrInvalid, path, err)
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	if c.DBPath == "" {
		problems = append(problems, "db_path is empty")
	}
	if c.MaxAttempts < 1 {
		problems = append(problems, "max_attempts must be at least 1")
	}
	if c.BaseDelay < 0 || c.MaxDelay < c.BaseDelay {
		problems = append(problems, "need 0 <= base_delay <= max_delay")
	}
	if c.RequestsPerSecond < 0 {
		problems = append(problems, "requests_per_second must not be negative")
	}
	if c.PageSize < 1 {
		problems = append(problems, "page_size must be positive")
	}
	if c.BatchSize < 1 || c.BatchSize > 400 {
		problems = append(problems, "batch_size must be in [1,400]")
	}
	if c.ClassifyWorkers < 1 {
		problems = append(problems, "classify_workers must be positive")
	}
	switch c.LogMode {
	case "development", "production":
	default:
		problems = append(problems, fmt.Sprintf("log_mode %q (want development or production)", c.LogMode))
	}
	if err := ValidatePDFRoot(c.PDFRoot); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ValidatePDFRoot checks that the PDF root path exists and is a directory.
func ValidatePDFRoot(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("pdf_root does not exist: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("pdf_root is not a directory: %s", path)
	}
	return nil
}
