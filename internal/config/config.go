package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-form-filler/internal/errors"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort           = 8080
	DefaultHost           = "127.0.0.1"
	DefaultLogLevel       = "info"
	DefaultMaxFileSize    = 100 * 1024 * 1024 // 100MB
	DefaultFormID         = "eofficeForm"
	DefaultRequiredClass  = "asterisk"
	DefaultProbeTimeout   = 10 * time.Second
	DefaultRequestTimeout = 120 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultInitialDelay   = time.Second

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "FORM_FILLER"
)

// Config holds all configuration for the form filler
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Backend configuration
	APIEndpoint    string // overrides the persisted endpoint when set
	EndpointFile   string
	RequestTimeout time.Duration

	// Page configuration
	FormID        string
	RequiredClass string

	// Detection configuration
	ProbeTimeout time.Duration
	PollInterval time.Duration
	InitialDelay time.Duration

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:           ModeStdio, // Default to stdio mode for MCP compatibility
		Host:           DefaultHost,
		Port:           DefaultPort,
		EndpointFile:   DefaultEndpointFile(),
		RequestTimeout: DefaultRequestTimeout,
		FormID:         DefaultFormID,
		RequiredClass:  DefaultRequiredClass,
		ProbeTimeout:   DefaultProbeTimeout,
		PollInterval:   DefaultPollInterval,
		InitialDelay:   DefaultInitialDelay,
		Version:        "1.0.0",
		ServerName:     "mcp-form-filler",
		LogLevel:       DefaultLogLevel,
		MaxFileSize:    DefaultMaxFileSize,
	}
}

// DefaultEndpointFile returns ~/.mcp-form-filler/endpoint.json, or a file in
// the working directory when the home directory is unknown.
func DefaultEndpointFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mcp-form-filler", "endpoint.json")
	}
	return filepath.Join(home, ".mcp-form-filler", "endpoint.json")
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.EndpointFile != "" {
		if expandedPath, err := filepath.Abs(cfg.EndpointFile); err == nil {
			cfg.EndpointFile = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagKeys lists every flag, which doubles as its viper key and, upper-cased
// with the FORM_FILLER_ prefix, its environment variable.
var flagKeys = []string{
	"mode", "host", "port", "endpoint", "endpoint-file", "request-timeout",
	"form-id", "required-class", "probe-timeout", "poll-interval",
	"initial-delay", "loglevel", "maxfilesize",
}

// envKeyReplacer maps endpoint-file to FORM_FILLER_ENDPOINT_FILE.
var envKeyReplacer = strings.NewReplacer("-", "_")

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("endpoint", cfg.APIEndpoint)
	viper.SetDefault("endpoint-file", cfg.EndpointFile)
	viper.SetDefault("request-timeout", cfg.RequestTimeout)
	viper.SetDefault("form-id", cfg.FormID)
	viper.SetDefault("required-class", cfg.RequiredClass)
	viper.SetDefault("probe-timeout", cfg.ProbeTimeout)
	viper.SetDefault("poll-interval", cfg.PollInterval)
	viper.SetDefault("initial-delay", cfg.InitialDelay)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("endpoint", cfg.APIEndpoint, "Document processing API endpoint (overrides the saved endpoint)")
	pflag.String("endpoint-file", cfg.EndpointFile, "File the API endpoint is saved in")
	pflag.Duration("request-timeout", cfg.RequestTimeout, "Timeout of backend requests")
	pflag.String("form-id", cfg.FormID, "Id of the form element to extract, fill and reset")
	pflag.String("required-class", cfg.RequiredClass, "Label class marking a required field")
	pflag.Duration("probe-timeout", cfg.ProbeTimeout, "Timeout of PDF validation probes")
	pflag.Duration("poll-interval", cfg.PollInterval, "Interval between PDF detection checks")
	pflag.Duration("initial-delay", cfg.InitialDelay, "Delay before the first PDF detection check")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP Form Filler - fills web forms from PDF documents via a document processing API\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                                   "+
			"# stdio mode (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --endpoint=http://localhost:8000/process-pdf      "+
			"# stdio mode with an endpoint\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081          # HTTP API on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_MODE            Server mode\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_HOST            Server host\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_PORT            Server port\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_ENDPOINT        API endpoint\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_ENDPOINT_FILE   Saved endpoint file\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_FORM_ID         Form element id\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_POLL_INTERVAL   Detection interval\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_LOGLEVEL        Log level\n")
		fmt.Fprintf(os.Stderr, "  FORM_FILLER_MAXFILESIZE     Maximum file size\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.APIEndpoint = viper.GetString("endpoint")
	cfg.EndpointFile = viper.GetString("endpoint-file")
	cfg.RequestTimeout = viper.GetDuration("request-timeout")
	cfg.FormID = viper.GetString("form-id")
	cfg.RequiredClass = viper.GetString("required-class")
	cfg.ProbeTimeout = viper.GetDuration("probe-timeout")
	cfg.PollInterval = viper.GetDuration("poll-interval")
	cfg.InitialDelay = viper.GetDuration("initial-delay")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.NewConfigError("mode must be either 'stdio' or 'server'")
	}

	// Port only matters in server mode
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.NewConfigError("port must be between 1 and 65535")
	}

	if c.APIEndpoint != "" {
		if err := ValidateEndpoint(c.APIEndpoint); err != nil {
			return err
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.NewConfigError("maximum file size must be positive")
	}

	for name, d := range map[string]time.Duration{
		"request timeout": c.RequestTimeout,
		"probe timeout":   c.ProbeTimeout,
		"poll interval":   c.PollInterval,
		"initial delay":   c.InitialDelay,
	} {
		if d <= 0 {
			return errors.NewConfigError("%s must be positive", name)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.NewConfigError("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// ValidateEndpoint checks that raw is an absolute http or https URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.NewConfigError("invalid API endpoint %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewConfigError("invalid API endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return errors.NewConfigError("invalid API endpoint %q: missing host", raw)
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, APIEndpoint: %s, FormID: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.APIEndpoint, c.FormID, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
