package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const endpointKey = "api_endpoint"

// EndpointStore persists the API endpoint in a JSON file.
type EndpointStore struct {
	path     string
	override string

	mu sync.RWMutex
	v  *viper.Viper
}

// NewEndpointStore opens the store at path. A non-empty override takes
// precedence over the saved value until SetEndpoint or Clear is called.
func NewEndpointStore(path, override string) (*EndpointStore, error) {
	if path == "" {
		path = DefaultEndpointFile()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load endpoint from %s: %w", path, err)
		}
	}

	return &EndpointStore{path: path, override: override, v: v}, nil
}

// Path returns the backing file.
func (s *EndpointStore) Path() string {
	return s.path
}

// Endpoint returns the configured endpoint, or "" when none is set.
func (s *EndpointStore) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.override != "" {
		return s.override
	}
	return s.v.GetString(endpointKey)
}

// SetEndpoint validates raw and saves it.
func (s *EndpointStore) SetEndpoint(raw string) error {
	raw = strings.TrimSpace(raw)
	if err := ValidateEndpoint(raw); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.v.GetString(endpointKey)
	s.v.Set(endpointKey, raw)
	if err := s.save(); err != nil {
		s.v.Set(endpointKey, prev)
		return err
	}
	s.override = ""
	return nil
}

// Clear removes the saved endpoint.
func (s *EndpointStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.v.GetString(endpointKey)
	s.v.Set(endpointKey, "")
	if err := s.save(); err != nil {
		s.v.Set(endpointKey, prev)
		return err
	}
	s.override = ""
	return nil
}

func (s *EndpointStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create endpoint directory: %w", err)
	}
	tempPath := tempFile(s.path)
	if err := s.v.WriteConfigAs(tempPath); err != nil {
		return fmt.Errorf("failed to write endpoint file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace endpoint file: %w", err)
	}
	return nil
}

// tempFile keeps the extension so viper can infer the encoding.
func tempFile(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".tmp" + ext
}
