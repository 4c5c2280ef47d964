// Package config provides XML-based configuration for the bridge.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"PLCSignalBridge"`

	// HTTP server configuration
	Server ServerConfig `xml:"Server"`

	// Field-bus configuration
	FieldBus FieldBusConfig `xml:"FieldBus"`

	// Polling and heartbeat cadences
	Polling PollingConfig `xml:"Polling"`

	// Record store configuration
	Store StoreConfig `xml:"Store"`

	// Event distribution tuning
	Events EventsConfig `xml:"Events"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
}

// FieldBusConfig contains the Modbus TCP session settings
type FieldBusConfig struct {
	Host             string `xml:"Host"`
	Port             int    `xml:"Port"`
	UnitID           int    `xml:"UnitID"`
	TimeoutMs        int    `xml:"TimeoutMs"`
	ConnectionName   string `xml:"ConnectionName"` // optional: pin to a named store connection
	UseStoreEndpoint bool   `xml:"UseStoreEndpoint"`
}

// PollingConfig contains engine cadences
type PollingConfig struct {
	PollIntervalMs   int `xml:"PollIntervalMs"`
	StatusIntervalMs int `xml:"StatusIntervalMs"`
}

// StoreConfig selects and locates the record store backend
type StoreConfig struct {
	Backend string `xml:"Backend"` // "sqlite" or "file"
	Path    string `xml:"Path"`
}

// EventsConfig tunes the distribution boundary
type EventsConfig struct {
	SubscriberBufferSize int `xml:"SubscriberBufferSize"`
	EnableRequestLogging bool `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         7654,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
		},
		FieldBus: FieldBusConfig{
			Host:             "127.0.0.1",
			Port:             502,
			UnitID:           1,
			TimeoutMs:        1000,
			UseStoreEndpoint: true,
		},
		Polling: PollingConfig{
			PollIntervalMs:   200,
			StatusIntervalMs: 10000,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "./data/bridge.db",
		},
		Events: EventsConfig{
			SubscriberBufferSize: 256,
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from an XML file, creating the file
// with defaults if it does not exist.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- PLC Signal Bridge Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("PLC_HOST"); host != "" {
		c.FieldBus.Host = host
	}
	if port := os.Getenv("PLC_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.FieldBus.Port = p
		}
	}
	if path := os.Getenv("STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	if interval := os.Getenv("POLL_INTERVAL_MS"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			c.Polling.PollIntervalMs = v
		}
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.Store.Path != "" && !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(configDir, c.Store.Path)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}
