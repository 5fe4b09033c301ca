package contract

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/huangsam/tnrpipe/schema"
)

// Default values for configuration.
const (
	DefaultTZOffsetHours = 5.0
	DefaultPrecision     = 3
	DefaultTaskTimeout   = 10 * time.Minute
)

// DefaultWorkers is the default number of concurrent reductions.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// Config holds the validated runtime configuration for every pipeline stage.
// Components receive it explicitly and never consult process-wide state.
type Config struct {
	// Extraction
	DataDir      string
	Pattern      string
	Exclude      string
	Resolution   schema.Resolution
	GapTolerance time.Duration
	HoldSlice    time.Duration
	SplitFile    string

	// Reduction
	EventFile      string
	TemplateFile   string
	ReducedDir     string
	ReducerCommand []string
	IncludeHolds   bool
	Workers        int `validate:"gte=1,lte=512"`
	TaskTimeout    time.Duration
	TZOffset       time.Duration
	ScanIndex      int `validate:"gte=0"`
	ThetaOffset    float64
	RunNumber      int `validate:"gte=0"`

	// Packaging
	PackageFile  string
	ValidateOnly bool

	// Reporting
	Output     schema.OutputMode
	OutputFile string
	Precision  int `validate:"gte=0,lte=9"`
	Width      int `validate:"gte=0"` // Terminal width override (0 = auto-detect)
	UseColors  bool

	LedgerBackend   schema.DatabaseBackend
	LedgerDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	SplitFile       string `mapstructure:"split-file"`
	TemplateFile    string `mapstructure:"template-file"`
	ReducedDir      string `mapstructure:"reduced-dir"`
	Output          string `mapstructure:"output"`
	OutputFile      string `mapstructure:"output-file"`
	Precision       int    `mapstructure:"precision"`
	Width           int    `mapstructure:"width"`
	Color           string `mapstructure:"color"`
	LedgerBackend   string `mapstructure:"ledger-backend"`
	LedgerDBConnect string `mapstructure:"ledger-db-connect"`

	// --- Fields from extractCmd.Flags() ---
	DataDir      string `mapstructure:"data-dir"`
	Pattern      string `mapstructure:"pattern"`
	Exclude      string `mapstructure:"exclude"`
	Resolution   string `mapstructure:"resolution"`
	GapTolerance string `mapstructure:"gap-tolerance"`
	HoldSlice    string `mapstructure:"hold-slice"`

	// --- Fields from reduceCmd.Flags() ---
	EventFile    string  `mapstructure:"event-file"`
	Reducer      string  `mapstructure:"reducer"`
	IncludeHolds bool    `mapstructure:"include-holds"`
	Workers      int     `mapstructure:"workers"`
	TaskTimeout  string  `mapstructure:"task-timeout"`
	TZOffset     float64 `mapstructure:"tz-offset"`
	ScanIndex    int     `mapstructure:"scan-index"`
	ThetaOffset  float64 `mapstructure:"theta-offset"`
	RunNumber    int     `mapstructure:"run-number"`

	// --- Fields from packageCmd.Flags() ---
	PackageFile  string `mapstructure:"package-file"`
	ValidateOnly bool   `mapstructure:"validate-only"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.ReducerCommand = slices.Clone(c.ReducerCommand)
	return &clone
}

// ReductionOptions returns the provenance record for a reduction batch.
func (c *Config) ReductionOptions(nIntervals int) schema.ReductionOptions {
	return schema.ReductionOptions{
		IntervalsFile:      c.SplitFile,
		EventFile:          c.EventFile,
		TemplateFile:       c.TemplateFile,
		OutputDir:          c.ReducedDir,
		ScanIndex:          c.ScanIndex,
		ThetaOffset:        c.ThetaOffset,
		TZOffsetHours:      c.TZOffset.Hours(),
		IncludeHolds:       c.IncludeHolds,
		Workers:            c.Workers,
		TaskTimeoutSeconds: c.TaskTimeout.Seconds(),
		NIntervals:         nIntervals,
		ReducerCommand:     slices.Clone(c.ReducerCommand),
	}
}

// RequireFor checks that the paths a stage cannot run without are set.
// Existence on disk is checked by the stage itself.
func (c *Config) RequireFor(stage schema.Stage) error {
	var missing []string
	need := func(flag, value string) {
		if value == "" {
			missing = append(missing, "--"+flag)
		}
	}
	switch stage {
	case schema.ExtractStage:
		need("data-dir", c.DataDir)
	case schema.ReduceStage:
		need("split-file", c.SplitFile)
		need("event-file", c.EventFile)
		need("template-file", c.TemplateFile)
		need("reduced-dir", c.ReducedDir)
		if len(c.ReducerCommand) == 0 {
			missing = append(missing, "--reducer")
		}
	case schema.PackageStage:
		need("split-file", c.SplitFile)
		need("reduced-dir", c.ReducedDir)
		need("template-file", c.TemplateFile)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s requires %s", stage, strings.Join(missing, ", "))
	}
	return nil
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processDurations(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return validateStruct(cfg)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("ledger-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' with host:port")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("ledger-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ParseSeconds parses a duration given either as a Go duration ("45s", "1m30s")
// or as a bare number of seconds ("45", "0.5"). An empty string is zero.
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return SecondsDuration(secs)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative (received %s)", s)
	}
	return d, nil
}

// maxSeconds is the largest number of seconds a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// SecondsDuration converts a non-negative, finite number of seconds that fits
// in a time.Duration.
func SecondsDuration(secs float64) (time.Duration, error) {
	switch {
	case math.IsNaN(secs) || math.IsInf(secs, 0):
		return 0, fmt.Errorf("duration must be a finite number of seconds (received %v)", secs)
	case secs < 0:
		return 0, fmt.Errorf("duration must not be negative (received %v)", secs)
	case secs >= maxSeconds:
		return 0, fmt.Errorf("duration of %v seconds is out of range", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// validateBackendConfigs validates the run ledger backend configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.LedgerBackend = schema.DatabaseBackend(strings.ToLower(input.LedgerBackend))
	if cfg.LedgerBackend == "" {
		cfg.LedgerBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.LedgerBackend]; !ok {
		return fmt.Errorf("invalid ledger backend '%s'. must be sqlite, mysql, postgresql, none", input.LedgerBackend)
	}
	cfg.LedgerDBConnect = input.LedgerDBConnect
	return ValidateDatabaseConnectionString(cfg.LedgerBackend, cfg.LedgerDBConnect)
}

// validateSimpleInputs processes and validates all non-duration fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.DataDir = input.DataDir
	cfg.Pattern = input.Pattern
	cfg.Exclude = input.Exclude
	cfg.SplitFile = input.SplitFile
	cfg.EventFile = input.EventFile
	cfg.TemplateFile = input.TemplateFile
	cfg.ReducedDir = input.ReducedDir
	cfg.IncludeHolds = input.IncludeHolds
	cfg.ScanIndex = input.ScanIndex
	cfg.ThetaOffset = input.ThetaOffset
	cfg.RunNumber = input.RunNumber
	cfg.PackageFile = input.PackageFile
	cfg.ValidateOnly = input.ValidateOnly
	cfg.OutputFile = input.OutputFile
	cfg.Precision = input.Precision
	cfg.Width = input.Width
	cfg.ReducerCommand = strings.Fields(input.Reducer)

	if cfg.Pattern == "" {
		cfg.Pattern = schema.DefaultPattern
	}

	// Parse color flag
	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Resolution Validation ---
	cfg.Resolution = schema.Resolution(strings.ToLower(input.Resolution))
	if cfg.Resolution == "" {
		cfg.Resolution = schema.PerFile
	}
	if _, ok := schema.ValidResolutions[cfg.Resolution]; !ok {
		return fmt.Errorf("invalid resolution '%s'. must be per-file, per-frequency", input.Resolution)
	}

	// --- 2. Workers Validation ---
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// --- 3. Output Validation ---
	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", cfg.Output)
	}

	return nil
}

// processDurations parses every duration-valued input.
func processDurations(cfg *Config, input *ConfigRawInput) error {
	var err error
	if cfg.GapTolerance, err = ParseSeconds(input.GapTolerance); err != nil {
		return fmt.Errorf("invalid --gap-tolerance: %w", err)
	}
	if cfg.HoldSlice, err = ParseSeconds(input.HoldSlice); err != nil {
		return fmt.Errorf("invalid --hold-slice: %w", err)
	}
	if cfg.TaskTimeout, err = ParseSeconds(input.TaskTimeout); err != nil {
		return fmt.Errorf("invalid --task-timeout: %w", err)
	}
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	cfg.TZOffset = time.Duration(input.TZOffset * float64(time.Hour))
	return nil
}

// configValidator caches struct metadata across calls.
var configValidator = validator.New(validator.WithRequiredStructEnabled())

// validateStruct applies the numeric bounds declared in Config tags.
func validateStruct(cfg *Config) error {
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (received %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
