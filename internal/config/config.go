package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/ctxpack/internal/compressor"
	"github.com/dshills/ctxpack/internal/contextpack"
	"github.com/dshills/ctxpack/internal/indexer"
	"github.com/dshills/ctxpack/internal/parser"
	"github.com/dshills/ctxpack/internal/tokens"
	"github.com/dshills/ctxpack/pkg/types"
)

// FileName is the project-level configuration file
const FileName = ".ctxpack.yaml"

// Environment overrides
const (
	EnvStateDir  = "CTXPACK_STATE_DIR"
	EnvTokenizer = "CTXPACK_TOKENIZER"
	EnvBudget    = "CTXPACK_BUDGET"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the in-memory representation of .ctxpack.yaml
type Config struct {
	Language      string             `yaml:"language"`
	Budget        int                `yaml:"budget"` // 0 means unlimited
	Depth         int                `yaml:"depth"`
	Tokenizer     string             `yaml:"tokenizer"`
	Workers       int                `yaml:"workers,omitempty"`
	StateDir      string             `yaml:"state_dir"`
	RespectIgnore bool               `yaml:"respect_ignore"`
	SnapshotCache bool               `yaml:"snapshot_cache"`
	Ignore        []string           `yaml:"ignore,omitempty"`
	Weights       compressor.Weights `yaml:"weights"`
	Scores        contextpack.Scores `yaml:"scores"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Language:      parser.LanguageAuto,
		Depth:         contextpack.DefaultDepth,
		Tokenizer:     tokens.NameHeuristic,
		StateDir:      ".ctxpack",
		RespectIgnore: true,
		SnapshotCache: true,
		Weights:       compressor.DefaultWeights(),
		Scores:        contextpack.DefaultScores(),
	}
}

// Load reads root/.ctxpack.yaml over the defaults and applies environment
// overrides. A missing file is not an error.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvStateDir); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv(EnvTokenizer); v != "" {
		c.Tokenizer = v
	}
	if v := os.Getenv(EnvBudget); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvBudget, v)
		}
		c.Budget = n
	}
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch strings.ToLower(c.Language) {
	case parser.LanguageAuto, parser.LanguageGo, parser.LanguagePython:
	default:
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidConfig, c.Language)
	}
	if c.Budget < 0 {
		return fmt.Errorf("%w: budget must be >= 0", ErrInvalidConfig)
	}
	if c.Depth < 0 {
		return fmt.Errorf("%w: depth must be >= 0", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	if c.Weights.DiffOverlap <= c.Weights.Adjacency+c.Weights.ControlFlow+c.Weights.Base {
		return fmt.Errorf("%w: weights.diff_overlap must exceed the other weights combined", ErrInvalidConfig)
	}
	return nil
}

// StatePath resolves the state directory against the project root
func (c *Config) StatePath(root string) string {
	if filepath.IsAbs(c.StateDir) {
		return c.StateDir
	}
	return filepath.Join(root, c.StateDir)
}

// DBPath is the state database inside the state directory
func (c *Config) DBPath(root string) string {
	return filepath.Join(c.StatePath(root), "state.db")
}

// TokenBudget converts the configured budget; zero is unlimited
func (c *Config) TokenBudget() types.Budget {
	if c.Budget <= 0 {
		return types.NoBudget()
	}
	return types.TokenBudget(c.Budget)
}

// Estimator builds the configured token estimator
func (c *Config) Estimator() (tokens.Estimator, error) {
	est, err := tokens.FromName(c.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenizer %q: %v", ErrInvalidConfig, c.Tokenizer, err)
	}
	return est, nil
}

// IndexerOptions maps the configuration onto index build options
func (c *Config) IndexerOptions(logger *slog.Logger) indexer.Options {
	return indexer.Options{
		Language:      strings.ToLower(c.Language),
		RespectIgnore: c.RespectIgnore,
		ExtraIgnore:   c.Ignore,
		Workers:       c.Workers,
		Logger:        logger,
	}
}
