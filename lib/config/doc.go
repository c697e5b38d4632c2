// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads node configuration from a YAML file plus a small
// set of environment overrides.
//
// The file is selected by the MESHNET_CONFIG environment variable or the
// --config flag. There is no search path and no automatic discovery: a
// node either runs on explicit configuration or on the documented
// defaults.
//
// Environment overrides (applied after the file):
//
//	PORT                                    signalling hub listen port
//	PRIVATE_KEY                             hex signer key material
//	APPLICATION_INSIGHTS_CONNECTION_STRING  telemetry sink (recorded only)
package config
