package config

// Config holds smartpdf configuration.
// Stored at: ~/.smartpdf/config.yaml
type Config struct {
	Classify    ClassifyCfg    `mapstructure:"classify" yaml:"classify"`
	Render      RenderCfg      `mapstructure:"render" yaml:"render"`
	Preprocess  PreprocessCfg  `mapstructure:"preprocess" yaml:"preprocess"`
	OCR         OCRCfg         `mapstructure:"ocr" yaml:"ocr"`
	Pipeline    PipelineCfg    `mapstructure:"pipeline" yaml:"pipeline"`
	Postprocess PostprocessCfg `mapstructure:"postprocess" yaml:"postprocess"`
	Reformat    ReformatCfg    `mapstructure:"reformat" yaml:"reformat"`
	History     HistoryCfg     `mapstructure:"history" yaml:"history"`
}

// ClassifyCfg controls text/image page detection.
type ClassifyCfg struct {
	TextThreshold int `mapstructure:"text_threshold" yaml:"text_threshold"` // Chars/page to skip OCR
	SampleCutoff  int `mapstructure:"sample_cutoff" yaml:"sample_cutoff"`   // Sample documents above this many pages
	SampleWindow  int `mapstructure:"sample_window" yaml:"sample_window"`   // Pages per sample window
}

// RenderCfg controls page rasterization.
type RenderCfg struct {
	DPI     int    `mapstructure:"dpi" yaml:"dpi"`
	MinDPI  int    `mapstructure:"min_dpi" yaml:"min_dpi"`
	MaxDPI  int    `mapstructure:"max_dpi" yaml:"max_dpi"`
	Command string `mapstructure:"command" yaml:"command"` // pdftoppm binary
}

// StepCfg toggles one preprocessing step.
type StepCfg struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Method  string `mapstructure:"method" yaml:"method"`
}

// PreprocessCfg controls image cleanup before recognition.
type PreprocessCfg struct {
	Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
	Order             []string `mapstructure:"order" yaml:"order"`
	Denoise           StepCfg  `mapstructure:"denoise" yaml:"denoise"`   // gaussian | median
	Deskew            StepCfg  `mapstructure:"deskew" yaml:"deskew"`     // projection
	Binarize          StepCfg  `mapstructure:"binarize" yaml:"binarize"` // simple | otsu | adaptive
	BinarizeThreshold int      `mapstructure:"binarize_threshold" yaml:"binarize_threshold"`
	MaxSkewAngle      float64  `mapstructure:"max_skew_angle" yaml:"max_skew_angle"`
}

// RemoteOCRCfg configures the HTTP recognition service.
type RemoteOCRCfg struct {
	URL            string `mapstructure:"url" yaml:"url"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	WarmupAttempts int    `mapstructure:"warmup_attempts" yaml:"warmup_attempts"`
}

// OCRCfg selects the recognition engine.
type OCRCfg struct {
	Engine              string       `mapstructure:"engine" yaml:"engine"` // tesseract | remote
	Languages           []string     `mapstructure:"languages" yaml:"languages"`
	ConfidenceThreshold float64      `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	Remote              RemoteOCRCfg `mapstructure:"remote" yaml:"remote"`
}

// PipelineCfg controls the page scheduler.
type PipelineCfg struct {
	PrefetchWindow int `mapstructure:"prefetch_window" yaml:"prefetch_window"` // Pages rendered ahead of recognition
}

// MarginsCfg are per-edge ignore bands in percent of the page.
type MarginsCfg struct {
	Top    float64 `mapstructure:"top" yaml:"top"`
	Bottom float64 `mapstructure:"bottom" yaml:"bottom"`
	Left   float64 `mapstructure:"left" yaml:"left"`
	Right  float64 `mapstructure:"right" yaml:"right"`
}

// PostprocessCfg controls layout reconstruction.
type PostprocessCfg struct {
	LineSpacingThreshold        float64    `mapstructure:"line_spacing_threshold" yaml:"line_spacing_threshold"`
	RemoveHeaderFooter          bool       `mapstructure:"remove_header_footer" yaml:"remove_header_footer"`
	HeaderFooterRepeatThreshold int        `mapstructure:"header_footer_repeat_threshold" yaml:"header_footer_repeat_threshold"`
	Margins                     MarginsCfg `mapstructure:"margins" yaml:"margins"`
}

// ReformatCfg configures the optional LLM reformatting pass.
type ReformatCfg struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"` // OpenAI-compatible endpoint (empty: api.openai.com)
	Model         string `mapstructure:"model" yaml:"model"`
	APIKey        string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	MaxChunkChars int    `mapstructure:"max_chunk_chars" yaml:"max_chunk_chars"`
}

// HistoryCfg configures the run history database.
type HistoryCfg struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // Empty: ~/.smartpdf/history.db
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Classify: ClassifyCfg{
			TextThreshold: 50,
			SampleCutoff:  50,
			SampleWindow:  15,
		},
		Render: RenderCfg{
			DPI:     300,
			MinDPI:  150,
			MaxDPI:  600,
			Command: "pdftoppm",
		},
		Preprocess: PreprocessCfg{
			Enabled:           true,
			Order:             []string{"denoise", "deskew", "binarize"},
			Denoise:           StepCfg{Enabled: true, Method: "gaussian"},
			Deskew:            StepCfg{Enabled: true, Method: "projection"},
			Binarize:          StepCfg{Enabled: false, Method: "otsu"},
			BinarizeThreshold: 127,
			MaxSkewAngle:      5,
		},
		OCR: OCRCfg{
			Engine:              "tesseract",
			Languages:           []string{"eng"},
			ConfidenceThreshold: 0.5,
			Remote: RemoteOCRCfg{
				APIKey:         "${SMARTPDF_OCR_API_KEY}",
				TimeoutSeconds: 120,
				WarmupAttempts: 30,
			},
		},
		Pipeline: PipelineCfg{
			PrefetchWindow: 3,
		},
		Postprocess: PostprocessCfg{
			LineSpacingThreshold:        1.5,
			RemoveHeaderFooter:          true,
			HeaderFooterRepeatThreshold: 3,
		},
		Reformat: ReformatCfg{
			Enabled:       false,
			Model:         "gpt-4o-mini",
			APIKey:        "${OPENAI_API_KEY}",
			MaxChunkChars: 2000,
		},
		History: HistoryCfg{
			Enabled: true,
		},
	}
}
