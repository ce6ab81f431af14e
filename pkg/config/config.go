// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the static YAML configuration the control plane
// process starts from.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of the control plane's config file.
type Config struct {
	// ServingPort is the TCP port the xDS gRPC server listens on.
	ServingPort int `yaml:"servingPort"`
	// HealthPort is the TCP port the standalone gRPC health-checking
	// service listens on.
	HealthPort int `yaml:"healthPort"`
	// ADS requires every state-of-the-world response to only name
	// resources the client's request explicitly asked for.
	ADS bool `yaml:"ads"`
	// LogVerbosity is the highest logr V-level whose log lines are emitted
	// (higher values are more verbose, matching klog/logr convention).
	LogVerbosity int `yaml:"logVerbosity"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		ServingPort:  16000,
		HealthPort:   16001,
		ADS:          true,
		LogVerbosity: 0,
	}
}

// Load reads and parses a YAML config file at path, starting from Default
// so a partial file only needs to override what it cares about.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return cfg, nil
}
