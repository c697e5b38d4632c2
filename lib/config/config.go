// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath selects the config file when no --config flag is given.
const EnvConfigPath = "MESHNET_CONFIG"

// DefaultPort is the signalling hub listen port when neither file nor
// environment sets one.
const DefaultPort = 8546

// DefaultSTUNServer is the stock STUN server URL. Peer connection
// configurations take it from channel.DefaultSTUNServer, which has the
// same value.
const DefaultSTUNServer = "stun:stun.l.google.com:19302"

// Config is the node's full configuration.
type Config struct {
	// Port is the signalling hub listen port.
	Port int `yaml:"port"`

	// PrivateKey is the node's hex signer key. Consumed once at startup
	// to build the local account, then dropped.
	PrivateKey string `yaml:"privateKey"`

	// TelemetryConnection is the Application Insights connection string.
	// The node records whether it is present; no telemetry component
	// lives in this repository.
	TelemetryConnection string `yaml:"telemetryConnection"`

	// ICEServers lists additional ICE servers appended after the stock
	// STUN server.
	ICEServers []ICEServer `yaml:"iceServers"`
}

// ICEServer is one STUN or TURN server entry.
type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// Load reads configuration. path may be empty, in which case the
// MESHNET_CONFIG environment variable is consulted; when that is empty
// too, only defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	configuration := &Config{Port: DefaultPort}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, configuration); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		if configuration.Port == 0 {
			configuration.Port = DefaultPort
		}
	}

	if err := applyEnvironment(configuration); err != nil {
		return nil, err
	}
	return configuration, nil
}

// applyEnvironment overlays the supported environment variables.
func applyEnvironment(configuration *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil || parsed <= 0 || parsed > 65535 {
			return fmt.Errorf("PORT=%q is not a valid port", port)
		}
		configuration.Port = parsed
	}
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		configuration.PrivateKey = key
	}
	if telemetry := os.Getenv("APPLICATION_INSIGHTS_CONNECTION_STRING"); telemetry != "" {
		configuration.TelemetryConnection = telemetry
	}
	return nil
}
