package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	viper.Reset()
}

// Helper function to set os.Args for testing
func setArgs(args []string) {
	os.Args = args
}

var envVars = []string{
	"FORM_FILLER_MODE",
	"FORM_FILLER_HOST",
	"FORM_FILLER_PORT",
	"FORM_FILLER_ENDPOINT",
	"FORM_FILLER_ENDPOINT_FILE",
	"FORM_FILLER_FORM_ID",
	"FORM_FILLER_POLL_INTERVAL",
	"FORM_FILLER_LOGLEVEL",
	"FORM_FILLER_MAXFILESIZE",
}

// Helper function to clear environment variables
func clearEnvVars() {
	for _, name := range envVars {
		os.Unsetenv(name)
	}
}

// prepare isolates a LoadFromFlags call and restores global state afterwards.
func prepare(t *testing.T, args ...string) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	})
	setArgs(append([]string{"mcp-form-filler"}, args...))
	resetFlags()
	clearEnvVars()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	prepare(t)

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.FormID != DefaultFormID {
		t.Errorf("LoadFromFlags() FormID = %v, want %v", cfg.FormID, DefaultFormID)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("LoadFromFlags() PollInterval = %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
	if !filepath.IsAbs(cfg.EndpointFile) {
		t.Errorf("LoadFromFlags() EndpointFile = %v, want an absolute path", cfg.EndpointFile)
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != "server" || cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
					t.Errorf("LoadFromFlags() = %s", cfg)
				}
			},
		},
		{
			name: "endpoint",
			args: []string{"--endpoint=http://localhost:8000/process-pdf"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.APIEndpoint != "http://localhost:8000/process-pdf" {
					t.Errorf("LoadFromFlags() APIEndpoint = %v", cfg.APIEndpoint)
				}
			},
		},
		{
			name: "form settings",
			args: []string{"--form-id=inwardForm", "--required-class=req"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.FormID != "inwardForm" || cfg.RequiredClass != "req" {
					t.Errorf("LoadFromFlags() FormID = %v, RequiredClass = %v", cfg.FormID, cfg.RequiredClass)
				}
			},
		},
		{
			name: "debug logging and max file size",
			args: []string{"--loglevel=debug", "--maxfilesize=50000000"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsDebug() || cfg.MaxFileSize != 50000000 {
					t.Errorf("LoadFromFlags() LogLevel = %v, MaxFileSize = %v", cfg.LogLevel, cfg.MaxFileSize)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prepare(t, tt.args...)

			cfg, err := LoadFromFlags()
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFlags_Durations(t *testing.T) {
	prepare(t, "--poll-interval=500ms", "--initial-delay=250ms", "--probe-timeout=3s")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("LoadFromFlags() PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if cfg.InitialDelay != 250*time.Millisecond {
		t.Errorf("LoadFromFlags() InitialDelay = %v, want 250ms", cfg.InitialDelay)
	}
	if cfg.ProbeTimeout != 3*time.Second {
		t.Errorf("LoadFromFlags() ProbeTimeout = %v, want 3s", cfg.ProbeTimeout)
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	prepare(t)
	endpointFile := filepath.Join(t.TempDir(), "endpoint.json")

	os.Setenv("FORM_FILLER_MODE", "server")
	os.Setenv("FORM_FILLER_HOST", "192.168.1.1")
	os.Setenv("FORM_FILLER_PORT", "3000")
	os.Setenv("FORM_FILLER_ENDPOINT", "https://api.example.com/process-pdf")
	os.Setenv("FORM_FILLER_ENDPOINT_FILE", endpointFile)
	os.Setenv("FORM_FILLER_FORM_ID", "inwardForm")
	os.Setenv("FORM_FILLER_POLL_INTERVAL", "5s")
	os.Setenv("FORM_FILLER_LOGLEVEL", "warn")
	os.Setenv("FORM_FILLER_MAXFILESIZE", "200000000")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "server")
	}
	if cfg.Host != "192.168.1.1" {
		t.Errorf("LoadFromFlags() Host = %v, want %v", cfg.Host, "192.168.1.1")
	}
	if cfg.Port != 3000 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 3000)
	}
	if cfg.APIEndpoint != "https://api.example.com/process-pdf" {
		t.Errorf("LoadFromFlags() APIEndpoint = %v", cfg.APIEndpoint)
	}
	if cfg.EndpointFile != endpointFile {
		t.Errorf("LoadFromFlags() EndpointFile = %v, want %v", cfg.EndpointFile, endpointFile)
	}
	if cfg.FormID != "inwardForm" {
		t.Errorf("LoadFromFlags() FormID = %v, want %v", cfg.FormID, "inwardForm")
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("LoadFromFlags() PollInterval = %v, want %v", cfg.PollInterval, 5*time.Second)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if cfg.MaxFileSize != 200000000 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 200000000)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	prepare(t, "--mode=stdio", "--host=localhost", "--port=8888")

	os.Setenv("FORM_FILLER_MODE", "server")
	os.Setenv("FORM_FILLER_HOST", "192.168.1.1")
	os.Setenv("FORM_FILLER_PORT", "3000")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v (should override env)", cfg.Mode, "stdio")
	}
	if cfg.Host != "localhost" {
		t.Errorf("LoadFromFlags() Host = %v, want %v (should override env)", cfg.Host, "localhost")
	}
	if cfg.Port != 8888 {
		t.Errorf("LoadFromFlags() Port = %v, want %v (should override env)", cfg.Port, 8888)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"mode", []string{"--mode=invalid"}, "mode must be either 'stdio' or 'server'"},
		{"port", []string{"--mode=server", "--port=99999"}, "port must be between 1 and 65535"},
		{"log level", []string{"--loglevel=invalid"}, "invalid log level"},
		{"endpoint", []string{"--endpoint=localhost:8000"}, "invalid API endpoint"},
		{"initial delay", []string{"--initial-delay=0s"}, "initial delay must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prepare(t, tt.args...)

			_, err := LoadFromFlags()
			if err == nil {
				t.Fatalf("LoadFromFlags() expected error for invalid %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	prepare(t, "--version")

	_, err := LoadFromFlags()
	if err == nil {
		t.Error("LoadFromFlags() expected version error")
	}
	if err != nil && err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want 'version requested'", err)
	}
}
