// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server wires a cache.Cache to a listening gRPC server: the xDS
// discovery services (per-type and aggregated), a standalone health
// service, reflection, and the admin (channelz/CSDS) services, following
// the same shape as the teacher's own pkg/server, minus the GKE-specific
// SPIFFE/mTLS bootstrapping this control plane has no use for.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/service/cluster/v3"
	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	endpointv3 "github.com/envoyproxy/go-control-plane/envoy/service/endpoint/v3"
	extensionv3 "github.com/envoyproxy/go-control-plane/envoy/service/extension/v3"
	listenerv3 "github.com/envoyproxy/go-control-plane/envoy/service/listener/v3"
	routev3 "github.com/envoyproxy/go-control-plane/envoy/service/route/v3"
	runtimev3 "github.com/envoyproxy/go-control-plane/envoy/service/runtime/v3"
	secretv3 "github.com/envoyproxy/go-control-plane/envoy/service/secret/v3"
	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/admin"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/flowmesh-io/xds-control-plane/pkg/interceptors"
	"github.com/flowmesh-io/xds-control-plane/pkg/logging"
	"github.com/flowmesh-io/xds-control-plane/pkg/xds/cache"
	xdsserver "github.com/flowmesh-io/xds-control-plane/pkg/xds/server"
)

// gRPC configuration based on https://github.com/envoyproxy/go-control-plane/blob/v0.11.1/internal/example/server.go
const (
	grpcKeepaliveTime        = 30 * time.Second
	grpcKeepaliveTimeout     = 5 * time.Second
	grpcKeepaliveMinTime     = 30 * time.Second
	grpcMaxConcurrentStreams = 1000000
)

// Run starts the xDS gRPC server on servingPort and a standalone health
// service on healthPort, serving c, until ctx is cancelled.
func Run(ctx context.Context, servingPort int, healthPort int, c cache.Cache) error {
	logger := logging.FromContext(ctx)

	grpcOptions := serverOptions(logger)
	grpcServer := grpc.NewServer(grpcOptions...)
	healthGRPCServer := grpc.NewServer()
	healthServer := health.NewServer()
	addServerStopBehavior(ctx, logger, grpcServer, healthGRPCServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthpb.RegisterHealthServer(healthGRPCServer, healthServer)

	cleanup, err := registerAdminServers(grpcServer, healthGRPCServer)
	if err != nil {
		return fmt.Errorf("could not register gRPC Channelz and CSDS admin services: %w", err)
	}
	defer cleanup()

	reflection.Register(grpcServer)
	reflection.Register(healthGRPCServer)

	xdsServer := xdsserver.NewXDSServer(c, logging.SnapshotCacheLogger(ctx))
	registerXDSServices(grpcServer, xdsServer)

	tcpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", servingPort))
	if err != nil {
		return fmt.Errorf("could not create TCP listener on port=%d: %w", servingPort, err)
	}
	healthTCPListener, err := net.Listen("tcp", fmt.Sprintf(":%d", healthPort))
	if err != nil {
		return fmt.Errorf("could not create TCP listener on port=%d: %w", healthPort, err)
	}
	logger.V(1).Info("xDS control plane management server listening", "port", servingPort, "healthPort", healthPort)
	go func() {
		if err := grpcServer.Serve(tcpListener); err != nil {
			healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		}
	}()
	return healthGRPCServer.Serve(healthTCPListener)
}

func registerAdminServers(servingGRPCServer *grpc.Server, healthGRPCServer *grpc.Server) (func(), error) {
	cleanupServing, err := admin.Register(servingGRPCServer)
	if err != nil {
		return func() {}, fmt.Errorf("could not register Channelz and CSDS admin services to serving server: %w", err)
	}
	cleanupHealth, err := admin.Register(healthGRPCServer)
	if err != nil {
		return func() {}, fmt.Errorf("could not register Channelz and CSDS admin services to health server: %w", err)
	}
	return func() {
		cleanupServing()
		cleanupHealth()
	}, nil
}

func registerXDSServices(grpcServer *grpc.Server, xdsServer *xdsserver.XDSServer) {
	discoveryv3.RegisterAggregatedDiscoveryServiceServer(grpcServer, xdsServer)
	clusterv3.RegisterClusterDiscoveryServiceServer(grpcServer, xdsServer)
	endpointv3.RegisterEndpointDiscoveryServiceServer(grpcServer, xdsServer)
	listenerv3.RegisterListenerDiscoveryServiceServer(grpcServer, xdsServer)
	routev3.RegisterRouteDiscoveryServiceServer(grpcServer, xdsServer)
	routev3.RegisterScopedRoutesDiscoveryServiceServer(grpcServer, xdsServer)
	routev3.RegisterVirtualHostDiscoveryServiceServer(grpcServer, xdsServer)
	secretv3.RegisterSecretDiscoveryServiceServer(grpcServer, xdsServer)
	runtimev3.RegisterRuntimeDiscoveryServiceServer(grpcServer, xdsServer)
	extensionv3.RegisterExtensionConfigDiscoveryServiceServer(grpcServer, xdsServer)
}

// serverOptions sets gRPC server options.
//
// gRPC golang library sets a very small upper bound for the number gRPC/h2
// streams over a single TCP connection. If a proxy multiplexes requests over
// a single connection to the management server, then it might lead to
// availability problems.
// Keepalive timeouts based on connection_keepalive parameter https://www.envoyproxy.io/docs/envoy/latest/configuration/overview/examples#dynamic
// Source: https://github.com/envoyproxy/go-control-plane/blob/v0.11.1/internal/example/server.go#L67
func serverOptions(logger logr.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainStreamInterceptor(interceptors.StreamServerLogging(logger)),
		grpc.ChainUnaryInterceptor(interceptors.UnaryServerLogging(logger)),
		grpc.Creds(insecure.NewCredentials()),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             grpcKeepaliveMinTime,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    grpcKeepaliveTime,
			Timeout: grpcKeepaliveTimeout,
		}),
		grpc.MaxConcurrentStreams(grpcMaxConcurrentStreams),
	}
}

func addServerStopBehavior(ctx context.Context, logger logr.Logger, servingGRPCServer *grpc.Server, healthGRPCServer *grpc.Server, healthServer *health.Server) {
	go func() {
		<-ctx.Done()
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopped := make(chan struct{})
		go func() {
			logger.Info("attempting to gracefully stop the xDS management server")
			servingGRPCServer.GracefulStop()
			close(stopped)
		}()
		t := time.NewTimer(5 * time.Second)
		select {
		case <-t.C:
			logger.Info("stopping the xDS management server immediately")
			servingGRPCServer.Stop()
			healthGRPCServer.Stop()
		case <-stopped:
			t.Stop()
		}
	}()
}
