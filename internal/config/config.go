package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/smartpdf/internal/postprocess"
	"github.com/jackzampolin/smartpdf/internal/preprocess"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return err
	}

	// Environment variables with SMARTPDF_ prefix, e.g. SMARTPDF_PIPELINE_PREFETCH_WINDOW
	v.SetEnvPrefix("SMARTPDF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.smartpdf")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf of cfg as a viper default. Leaf keys
// let a config file override single fields and let AutomaticEnv see
// every setting.
func setDefaults(v *viper.Viper, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to parse defaults: %w", err)
	}
	for key, value := range tree {
		setLeaves(v, key, value)
	}
	return nil
}

func setLeaves(v *viper.Viper, prefix string, value interface{}) {
	m, ok := value.(map[interface{}]interface{})
	if !ok {
		v.SetDefault(prefix, value)
		return
	}
	for k, child := range m {
		setLeaves(v, prefix+"."+fmt.Sprint(k), child)
	}
}

// load parses the current viper state into a validated Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the path of the loaded config file, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. Invalid edits are
// ignored and the previous configuration stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Validate checks value ranges and method names.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	// The classifier treats 0 as unset, so a zero threshold never applies.
	if c.Classify.TextThreshold < 1 {
		return invalid("classify.text_threshold must be >= 1")
	}
	if c.Classify.SampleCutoff < 1 || c.Classify.SampleWindow < 1 {
		return invalid("classify.sample_cutoff and classify.sample_window must be >= 1")
	}
	r := c.Render
	if r.MinDPI < 1 || r.MinDPI > r.MaxDPI {
		return invalid("render.min_dpi (%d) must be between 1 and render.max_dpi (%d)", r.MinDPI, r.MaxDPI)
	}
	if r.DPI < r.MinDPI || r.DPI > r.MaxDPI {
		return invalid("render.dpi (%d) must be within [%d, %d]", r.DPI, r.MinDPI, r.MaxDPI)
	}
	if c.Pipeline.PrefetchWindow < 1 {
		return invalid("pipeline.prefetch_window must be >= 1")
	}
	if c.OCR.ConfidenceThreshold < 0 || c.OCR.ConfidenceThreshold > 1 {
		return invalid("ocr.confidence_threshold must be within [0,1]")
	}
	switch c.OCR.Engine {
	case "tesseract", "remote":
	default:
		return invalid("ocr.engine %q (want tesseract or remote)", c.OCR.Engine)
	}
	if c.Postprocess.LineSpacingThreshold <= 0 {
		return invalid("postprocess.line_spacing_threshold must be > 0")
	}
	if c.Postprocess.HeaderFooterRepeatThreshold < 1 {
		return invalid("postprocess.header_footer_repeat_threshold must be >= 1")
	}
	if err := c.Margins().Validate(); err != nil {
		return invalid("postprocess.%v", err)
	}
	if c.Preprocess.BinarizeThreshold < 0 || c.Preprocess.BinarizeThreshold > 255 {
		return invalid("preprocess.binarize_threshold must be within [0,255]")
	}
	if c.Preprocess.Enabled {
		if err := c.PreprocessPlan().Validate(); err != nil {
			return invalid("preprocess: %v", err)
		}
	}
	if c.Reformat.MaxChunkChars < 0 {
		return invalid("reformat.max_chunk_chars must be >= 0")
	}
	return nil
}

// ClampDPI maps 0 to the configured DPI and clamps into [MinDPI, MaxDPI].
func (r RenderCfg) ClampDPI(dpi int) int {
	switch {
	case dpi == 0:
		return r.DPI
	case dpi < r.MinDPI:
		return r.MinDPI
	case dpi > r.MaxDPI:
		return r.MaxDPI
	}
	return dpi
}

// Margins converts the margin section for the post-processor.
func (c *Config) Margins() postprocess.Margins {
	m := c.Postprocess.Margins
	return postprocess.Margins{Top: m.Top, Bottom: m.Bottom, Left: m.Left, Right: m.Right}
}

// PreprocessPlan converts the preprocess section into a step plan. A
// disabled section yields an empty plan.
func (c *Config) PreprocessPlan() preprocess.Plan {
	p := c.Preprocess
	if !p.Enabled {
		return preprocess.Plan{Order: []string{}}
	}
	return preprocess.Plan{
		Order:    p.Order,
		Denoise:  preprocess.Toggle{Enabled: p.Denoise.Enabled, Method: p.Denoise.Method},
		Deskew:   preprocess.Toggle{Enabled: p.Deskew.Enabled, Method: p.Deskew.Method},
		Binarize: preprocess.Toggle{Enabled: p.Binarize.Enabled, Method: p.Binarize.Method},
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# smartpdf configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Any key can be overridden from the environment: SMARTPDF_PIPELINE_PREFETCH_WINDOW=4

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
