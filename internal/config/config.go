// Package config loads the build configuration from defaults, an optional
// YAML file, DWBUILD_* environment variables and command-line flags.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"dwbuild/internal/common"
	"dwbuild/pkg/errors"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DWBUILD_OUTPUT_DIR
	EnvPrefix = "DWBUILD"

	// FileName is the config file name searched for without extension
	FileName = "dwbuild"
)

// Config is the complete build configuration
type Config struct {
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Warehouse WarehouseConfig `yaml:"warehouse" mapstructure:"warehouse"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// SourcesConfig locates both raw extract sets
type SourcesConfig struct {
	Relational  SourceConfig `yaml:"relational" mapstructure:"relational"`
	Spreadsheet SourceConfig `yaml:"spreadsheet" mapstructure:"spreadsheet"`
}

// SourceConfig locates one source. Empty file entries are discovered in Dir.
type SourceConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir" valid:"required"`
	Customers string `yaml:"customers,omitempty" mapstructure:"customers"`
	Employees string `yaml:"employees,omitempty" mapstructure:"employees"`
	Orders    string `yaml:"orders,omitempty" mapstructure:"orders"`
}

// OutputConfig names the published tables
type OutputConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir" valid:"required"`
	Customers string `yaml:"customers" mapstructure:"customers" valid:"required"`
	Employees string `yaml:"employees" mapstructure:"employees" valid:"required"`
	Dates     string `yaml:"dates" mapstructure:"dates" valid:"required"`
	Facts     string `yaml:"facts" mapstructure:"facts" valid:"required"`
}

// WarehouseConfig configures the optional SQL load after publishing
type WarehouseConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver     string `yaml:"driver" mapstructure:"driver" valid:"in(snowflake|pgx)"`
	DSN        string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Account    string `yaml:"account,omitempty" mapstructure:"account"`
	Username   string `yaml:"username,omitempty" mapstructure:"username"`
	Password   string `yaml:"password,omitempty" mapstructure:"password"`
	Database   string `yaml:"database,omitempty" mapstructure:"database"`
	Schema     string `yaml:"schema,omitempty" mapstructure:"schema"`
	Warehouse  string `yaml:"warehouse,omitempty" mapstructure:"warehouse"`
	Role       string `yaml:"role,omitempty" mapstructure:"role"`
	TimeoutSec int    `yaml:"timeout_sec" mapstructure:"timeout_sec"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// LoggingConfig configures the zerolog output
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" valid:"in(debug|info|warn|warning|error)"`
	Format string `yaml:"format" mapstructure:"format" valid:"in(console|json)"`
}

var (
	ErrDuplicateOutput = stderrors.New("output tables must have distinct file names")
	ErrMissingDSN      = stderrors.New("warehouse load needs a dsn or an account")
	ErrBatchSize       = stderrors.New("warehouse batch_size must be positive")
)

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Sources: SourcesConfig{
			Relational:  SourceConfig{Dir: filepath.Join("data", "raw", "sql_sources")},
			Spreadsheet: SourceConfig{Dir: filepath.Join("data", "raw", "excel_sources")},
		},
		Output: OutputConfig{
			Dir:       filepath.Join("data", "warehouse"),
			Customers: "dim_customers.csv",
			Employees: "dim_employees.csv",
			Dates:     "dim_temps.csv",
			Facts:     "fact_orders.csv",
		},
		Warehouse: WarehouseConfig{
			Driver:     "snowflake",
			Schema:     "PUBLIC",
			TimeoutSec: 60,
			BatchSize:  500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadOptions controls where Load looks
type LoadOptions struct {
	// ConfigFile is an explicit config path; when empty dwbuild.yaml is
	// searched in the working directory and ~/.dwbuild.
	ConfigFile string
	// EnvFile is loaded into the process environment first if it exists.
	EnvFile string
	// Flags maps config keys such as "output.dir" to command-line flags.
	// Only flags set by the user override other sources.
	Flags map[string]*pflag.Flag
}

// Load builds a Config from defaults, file, environment and flags, in
// increasing order of precedence, and validates it.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read env file").
				WithContext("path", opts.EnvFile)
		}
	}

	v := viper.New()
	setDefaults(v, Default())

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".dwbuild"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := stderrors.As(err, &notFound) || os.IsNotExist(err)
		switch {
		case missing && opts.ConfigFile == "":
		case missing:
			return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound, "Config file not found").
				WithContext("path", opts.ConfigFile).
				WithSuggestions("Run 'dwbuild init' to write a default configuration")
		default:
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse config file")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to bind flag").WithContext("key", key)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment lookups can find it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("sources.relational.dir", d.Sources.Relational.Dir)
	v.SetDefault("sources.relational.customers", "")
	v.SetDefault("sources.relational.employees", "")
	v.SetDefault("sources.relational.orders", "")
	v.SetDefault("sources.spreadsheet.dir", d.Sources.Spreadsheet.Dir)
	v.SetDefault("sources.spreadsheet.customers", "")
	v.SetDefault("sources.spreadsheet.employees", "")
	v.SetDefault("sources.spreadsheet.orders", "")

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.customers", d.Output.Customers)
	v.SetDefault("output.employees", d.Output.Employees)
	v.SetDefault("output.dates", d.Output.Dates)
	v.SetDefault("output.facts", d.Output.Facts)

	v.SetDefault("warehouse.enabled", d.Warehouse.Enabled)
	v.SetDefault("warehouse.driver", d.Warehouse.Driver)
	v.SetDefault("warehouse.dsn", "")
	v.SetDefault("warehouse.account", "")
	v.SetDefault("warehouse.username", "")
	v.SetDefault("warehouse.password", "")
	v.SetDefault("warehouse.database", "")
	v.SetDefault("warehouse.schema", d.Warehouse.Schema)
	v.SetDefault("warehouse.warehouse", "")
	v.SetDefault("warehouse.role", "")
	v.SetDefault("warehouse.timeout_sec", d.Warehouse.TimeoutSec)
	v.SetDefault("warehouse.batch_size", d.Warehouse.BatchSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate checks field formats and cross-field rules
func (c *Config) Validate() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		field := firstInvalidField(err)
		if field == "" {
			field = "config"
		}
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid configuration").
			WithContext("field", field)
	}

	names := map[string]bool{}
	for _, n := range []string{c.Output.Customers, c.Output.Employees, c.Output.Dates, c.Output.Facts} {
		key := strings.ToLower(filepath.Clean(n))
		if names[key] {
			return errors.ConfigError(ErrDuplicateOutput.Error(), "output").WithContext("file", n)
		}
		names[key] = true
	}

	if c.Warehouse.Enabled {
		if c.Warehouse.DSN == "" && c.Warehouse.Account == "" {
			return errors.ConfigError(ErrMissingDSN.Error(), "warehouse.dsn")
		}
		if c.Warehouse.BatchSize <= 0 {
			return errors.ConfigError(ErrBatchSize.Error(), "warehouse.batch_size")
		}
	}

	return nil
}

func firstInvalidField(err error) string {
	switch e := err.(type) {
	case govalidator.Errors:
		for _, inner := range e {
			if name := firstInvalidField(inner); name != "" {
				return name
			}
		}
	case govalidator.Error:
		return e.Name
	}
	return ""
}

// Save writes cfg as YAML to path, creating parent directories
func Save(cfg *Config, path string) error {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return fmt.Errorf("invalid config file path: %w", err)
	}

	if err := common.EnsureDir(filepath.Dir(cleaned)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cleaned, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists reports whether a file exists at path
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
