package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "SALES"

// Config represents the complete application configuration
type Config struct {
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Input       InputConfig       `yaml:"input" envconfig:"INPUT"`
	Columns     ColumnsConfig     `yaml:"columns" envconfig:"COLUMNS"`
	Cleaning    CleaningConfig    `yaml:"cleaning" envconfig:"CLEANING"`
	Aggregation AggregationConfig `yaml:"aggregation" envconfig:"AGGREGATION"`
	Report      ReportConfig      `yaml:"report" envconfig:"REPORT"`
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// InputConfig describes how the input file is read
type InputConfig struct {
	Path      string `yaml:"path" envconfig:"SOURCE_FILE"`
	Format    string `yaml:"format" envconfig:"FORMAT" validate:"oneof=auto csv tsv xlsx"`
	Delimiter string `yaml:"delimiter" envconfig:"DELIMITER" validate:"max=1"`
	Sheet     string `yaml:"sheet" envconfig:"SHEET"`
}

// ColumnsConfig maps semantic fields to header names in the input.
// Empty optional mappings disable the metrics that depend on them.
type ColumnsConfig struct {
	OrderID  string `yaml:"order_id" envconfig:"ORDER_ID"`
	Date     string `yaml:"date" envconfig:"DATE" validate:"required"`
	Category string `yaml:"category" envconfig:"CATEGORY"`
	Product  string `yaml:"product" envconfig:"PRODUCT"`
	Customer string `yaml:"customer" envconfig:"CUSTOMER"`
	Quantity string `yaml:"quantity" envconfig:"QUANTITY"`
	Amount   string `yaml:"amount" envconfig:"AMOUNT" validate:"required"`
}

// CleaningConfig controls missing values, type coercion and required columns
type CleaningConfig struct {
	MissingPolicy  string            `yaml:"missing_policy" envconfig:"MISSING_POLICY" validate:"oneof=drop fill_zero fill_forward fill_median fill_mode"`
	ColumnPolicies map[string]string `yaml:"column_policies" envconfig:"COLUMN_POLICIES" validate:"dive,oneof=drop fill_zero fill_forward fill_median fill_mode"`
	Required       []string          `yaml:"required" envconfig:"REQUIRED"`
	NumberColumns  []string          `yaml:"number_columns" envconfig:"NUMBER_COLUMNS"`
	DateColumns    []string          `yaml:"date_columns" envconfig:"DATE_COLUMNS"`
	DateLayouts    []string          `yaml:"date_layouts" envconfig:"DATE_LAYOUTS" validate:"min=1"`
	NullTokens     []string          `yaml:"null_tokens" envconfig:"NULL_TOKENS"`
}

// AggregationConfig controls period bucketing and histogram shape
type AggregationConfig struct {
	Granularity   string `yaml:"granularity" envconfig:"GRANULARITY" validate:"oneof=day week month quarter year"`
	FillGaps      bool   `yaml:"fill_gaps" envconfig:"FILL_GAPS"`
	HistogramBins int    `yaml:"histogram_bins" envconfig:"HISTOGRAM_BINS" validate:"min=1,max=500"`
}

// ReportConfig lists the requested artifacts. Unknown chart types or export
// formats are not rejected here; they surface as artifact failures.
type ReportConfig struct {
	OutputDir     string   `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	Charts        []string `yaml:"charts" envconfig:"CHARTS"`
	Exports       []string `yaml:"exports" envconfig:"EXPORTS"`
	ChartFormat   string   `yaml:"chart_format" envconfig:"CHART_FORMAT"`
	TopCategories int      `yaml:"top_categories" envconfig:"TOP_CATEGORIES" validate:"min=1"`
	SampleRows    int      `yaml:"sample_rows" envconfig:"SAMPLE_ROWS" validate:"min=0"`
	Strict        bool     `yaml:"strict" envconfig:"STRICT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxUploadBytes  int64           `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"min=1"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RunRetention    time.Duration   `yaml:"run_retention" envconfig:"RUN_RETENTION" validate:"gte=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (or the first file found in the usual locations when path is empty), then
// SALES_* environment variables. Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the first config file found, or ""
func getConfigFilePath() string {
	locations := []string{
		"sales.yaml",
		"configs/sales.yaml",
		"../configs/sales.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tag rules and normalises list values
func (c *Config) Validate() error {
	c.Report.Charts = normalizeList(c.Report.Charts)
	c.Report.Exports = normalizeList(c.Report.Exports)
	c.Report.ChartFormat = strings.ToLower(strings.TrimSpace(c.Report.ChartFormat))
	c.Input.Format = strings.ToLower(strings.TrimSpace(c.Input.Format))
	c.Aggregation.Granularity = strings.ToLower(strings.TrimSpace(c.Aggregation.Granularity))

	if err := validate.Struct(c); err != nil {
		return err
	}

	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when logging.output is %q", c.Logging.Output)
	}
	return nil
}

// RequiredColumns returns the columns the cleaner must see populated.
// An explicit list wins; otherwise the mapped date, amount and category.
func (c *Config) RequiredColumns() []string {
	if len(c.Cleaning.Required) > 0 {
		return c.Cleaning.Required
	}
	required := []string{c.Columns.Date, c.Columns.Amount}
	if c.Columns.Category != "" {
		required = append(required, c.Columns.Category)
	}
	return required
}

// Clone returns a copy of c that shares no slices or maps with it, so
// per-run overrides never leak into the base configuration
func (c *Config) Clone() *Config {
	out := *c
	out.Cleaning.Required = cloneStrings(c.Cleaning.Required)
	out.Cleaning.NumberColumns = cloneStrings(c.Cleaning.NumberColumns)
	out.Cleaning.DateColumns = cloneStrings(c.Cleaning.DateColumns)
	out.Cleaning.DateLayouts = cloneStrings(c.Cleaning.DateLayouts)
	out.Cleaning.NullTokens = cloneStrings(c.Cleaning.NullTokens)
	if c.Cleaning.ColumnPolicies != nil {
		out.Cleaning.ColumnPolicies = make(map[string]string, len(c.Cleaning.ColumnPolicies))
		for k, v := range c.Cleaning.ColumnPolicies {
			out.Cleaning.ColumnPolicies[k] = v
		}
	}
	out.Report.Charts = cloneStrings(c.Report.Charts)
	out.Report.Exports = cloneStrings(c.Report.Exports)
	out.Server.AllowedOrigins = cloneStrings(c.Server.AllowedOrigins)
	return &out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/sales.log",
		},
		Input: InputConfig{
			Format: "auto",
		},
		Columns: ColumnsConfig{
			OrderID:  "order_id",
			Date:     "order_date",
			Category: "category",
			Product:  "product_id",
			Customer: "customer_id",
			Quantity: "quantity",
			Amount:   "total_amount",
		},
		Cleaning: CleaningConfig{
			MissingPolicy: "drop",
			DateLayouts: []string{
				"2006-01-02",
				"2006-01-02 15:04:05",
				time.RFC3339,
				"2006/01/02",
				"01/02/2006",
				"02-Jan-2006",
				"2006-01",
			},
			NullTokens: []string{"na", "n/a", "null", "nan", "none", "-"},
		},
		Aggregation: AggregationConfig{
			Granularity:   "month",
			HistogramBins: 30,
		},
		Report: ReportConfig{
			OutputDir:     "output",
			Charts:        []string{"trend", "category", "distribution"},
			Exports:       []string{"xlsx", "csv"},
			ChartFormat:   "png",
			TopCategories: 10,
			SampleRows:    1000,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  32 << 20,
			AllowedOrigins:  []string{"http://localhost:8080"},
			RunRetention:    24 * time.Hour,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     5,
				Burst:   10,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "salescli",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
