// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("PORT", "")
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("APPLICATION_INSIGHTS_CONNECTION_STRING", "")

	configuration, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if configuration.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", configuration.Port, DefaultPort)
	}
	if configuration.PrivateKey != "" {
		t.Errorf("PrivateKey = %q, want empty", configuration.PrivateKey)
	}
}

func TestLoad_FileAndEnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshnet.yaml")
	contents := `
port: 9000
privateKey: aabb
iceServers:
  - urls: ["turn:turn.example.org:3478"]
    username: mesh
    credential: s3cret
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "9100")
	t.Setenv("PRIVATE_KEY", "ccdd")
	t.Setenv("APPLICATION_INSIGHTS_CONNECTION_STRING", "InstrumentationKey=x")

	configuration, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if configuration.Port != 9100 {
		t.Errorf("Port = %d, want environment override 9100", configuration.Port)
	}
	if configuration.PrivateKey != "ccdd" {
		t.Errorf("PrivateKey = %q, want environment override", configuration.PrivateKey)
	}
	if configuration.TelemetryConnection != "InstrumentationKey=x" {
		t.Errorf("TelemetryConnection = %q", configuration.TelemetryConnection)
	}
	if len(configuration.ICEServers) != 1 || configuration.ICEServers[0].Username != "mesh" {
		t.Errorf("ICEServers = %+v", configuration.ICEServers)
	}
}

func TestLoad_RejectsBadPort(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("PORT", "not-a-port")
	if _, err := Load(""); err == nil {
		t.Error("Load accepted PORT=not-a-port")
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load accepted a missing config file")
	}
}
