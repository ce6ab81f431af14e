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

// Command xds-control-plane runs the gRPC xDS management server against an
// in-memory snapshot cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/stdr"

	"github.com/flowmesh-io/xds-control-plane/pkg/config"
	"github.com/flowmesh-io/xds-control-plane/pkg/logging"
	"github.com/flowmesh-io/xds-control-plane/pkg/server"
	"github.com/flowmesh-io/xds-control-plane/pkg/xds/cache"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults baked in if omitted)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	stdr.SetVerbosity(cfg.LogVerbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	logging.SetGRPCLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logging.NewContext(ctx, logger)

	xdsCache := cache.NewSnapshotCache(cfg.ADS, logging.SnapshotCacheLogger(ctx))

	logger.Info("starting xDS control plane", "servingPort", cfg.ServingPort, "healthPort", cfg.HealthPort, "ads", cfg.ADS)
	if err := server.Run(ctx, cfg.ServingPort, cfg.HealthPort, xdsCache); err != nil {
		fmt.Fprintf(os.Stderr, "xds-control-plane: %v\n", err)
		os.Exit(1)
	}
}
