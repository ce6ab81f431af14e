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

package server

import (
	"context"
	"errors"

	clusterservice "github.com/envoyproxy/go-control-plane/envoy/service/cluster/v3"
	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	endpointservice "github.com/envoyproxy/go-control-plane/envoy/service/endpoint/v3"
	extensionservice "github.com/envoyproxy/go-control-plane/envoy/service/extension/v3"
	listenerservice "github.com/envoyproxy/go-control-plane/envoy/service/listener/v3"
	routeservice "github.com/envoyproxy/go-control-plane/envoy/service/route/v3"
	runtimeservice "github.com/envoyproxy/go-control-plane/envoy/service/runtime/v3"
	secretservice "github.com/envoyproxy/go-control-plane/envoy/service/secret/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/cache"
	"github.com/flowmesh-io/xds-control-plane/pkg/xds/resource"
)

// XDSServer implements every per-resource-type and aggregated xDS gRPC
// service against a single cache.Cache, using the one generic stream loop
// in sotw.go/delta.go for all of them. Each method below differs only in
// which generated interface it satisfies and which fixed type URL it binds
// the stream to; Envoy's wire messages are identical across resource types,
// so there is nothing resource-type-specific left to implement per method.
type XDSServer struct {
	clusterservice.UnimplementedClusterDiscoveryServiceServer
	endpointservice.UnimplementedEndpointDiscoveryServiceServer
	listenerservice.UnimplementedListenerDiscoveryServiceServer
	routeservice.UnimplementedRouteDiscoveryServiceServer
	routeservice.UnimplementedScopedRoutesDiscoveryServiceServer
	routeservice.UnimplementedVirtualHostDiscoveryServiceServer
	secretservice.UnimplementedSecretDiscoveryServiceServer
	runtimeservice.UnimplementedRuntimeDiscoveryServiceServer
	extensionservice.UnimplementedExtensionConfigDiscoveryServiceServer
	discoveryv3.UnimplementedAggregatedDiscoveryServiceServer

	cache cache.Cache
	log   cache.Logger
}

// NewXDSServer builds a server backed by c that logs through log. log is
// stored as given and called unconditionally by the stream loops; a nil
// logger is not replaced with a no-op one.
func NewXDSServer(c cache.Cache, log cache.Logger) *XDSServer {
	return &XDSServer{cache: c, log: log}
}

// -- Clusters (CDS) --

func (s *XDSServer) StreamClusters(stream clusterservice.ClusterDiscoveryService_StreamClustersServer) error {
	return RunStream(stream.Context(), stream, resource.ClusterType, s.cache, s.log)
}

func (s *XDSServer) DeltaClusters(stream clusterservice.ClusterDiscoveryService_DeltaClustersServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.ClusterType, s.cache, s.log)
}

func (s *XDSServer) FetchClusters(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.ClusterType, req)
}

// -- Endpoints (EDS) --

func (s *XDSServer) StreamEndpoints(stream endpointservice.EndpointDiscoveryService_StreamEndpointsServer) error {
	return RunStream(stream.Context(), stream, resource.EndpointType, s.cache, s.log)
}

func (s *XDSServer) DeltaEndpoints(stream endpointservice.EndpointDiscoveryService_DeltaEndpointsServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.EndpointType, s.cache, s.log)
}

func (s *XDSServer) FetchEndpoints(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.EndpointType, req)
}

// -- Listeners (LDS) --

func (s *XDSServer) StreamListeners(stream listenerservice.ListenerDiscoveryService_StreamListenersServer) error {
	return RunStream(stream.Context(), stream, resource.ListenerType, s.cache, s.log)
}

func (s *XDSServer) DeltaListeners(stream listenerservice.ListenerDiscoveryService_DeltaListenersServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.ListenerType, s.cache, s.log)
}

func (s *XDSServer) FetchListeners(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.ListenerType, req)
}

// -- Routes (RDS) --

func (s *XDSServer) StreamRoutes(stream routeservice.RouteDiscoveryService_StreamRoutesServer) error {
	return RunStream(stream.Context(), stream, resource.RouteType, s.cache, s.log)
}

func (s *XDSServer) DeltaRoutes(stream routeservice.RouteDiscoveryService_DeltaRoutesServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.RouteType, s.cache, s.log)
}

func (s *XDSServer) FetchRoutes(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.RouteType, req)
}

// -- Scoped routes (SRDS) --

func (s *XDSServer) StreamScopedRoutes(stream routeservice.ScopedRoutesDiscoveryService_StreamScopedRoutesServer) error {
	return RunStream(stream.Context(), stream, resource.ScopedRouteType, s.cache, s.log)
}

func (s *XDSServer) DeltaScopedRoutes(stream routeservice.ScopedRoutesDiscoveryService_DeltaScopedRoutesServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.ScopedRouteType, s.cache, s.log)
}

func (s *XDSServer) FetchScopedRoutes(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.ScopedRouteType, req)
}

// -- Virtual hosts (VHDS) --

func (s *XDSServer) StreamVirtualHosts(stream routeservice.VirtualHostDiscoveryService_StreamVirtualHostsServer) error {
	return RunStream(stream.Context(), stream, resource.VirtualHostType, s.cache, s.log)
}

func (s *XDSServer) DeltaVirtualHosts(stream routeservice.VirtualHostDiscoveryService_DeltaVirtualHostsServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.VirtualHostType, s.cache, s.log)
}

func (s *XDSServer) FetchVirtualHosts(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.VirtualHostType, req)
}

// -- Secrets (SDS) --

func (s *XDSServer) StreamSecrets(stream secretservice.SecretDiscoveryService_StreamSecretsServer) error {
	return RunStream(stream.Context(), stream, resource.SecretType, s.cache, s.log)
}

func (s *XDSServer) DeltaSecrets(stream secretservice.SecretDiscoveryService_DeltaSecretsServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.SecretType, s.cache, s.log)
}

func (s *XDSServer) FetchSecrets(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.SecretType, req)
}

// -- Runtime (RTDS) --

func (s *XDSServer) StreamRuntime(stream runtimeservice.RuntimeDiscoveryService_StreamRuntimeServer) error {
	return RunStream(stream.Context(), stream, resource.RuntimeType, s.cache, s.log)
}

func (s *XDSServer) DeltaRuntime(stream runtimeservice.RuntimeDiscoveryService_DeltaRuntimeServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.RuntimeType, s.cache, s.log)
}

func (s *XDSServer) FetchRuntime(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.RuntimeType, req)
}

// -- Extension config (ECDS) --

func (s *XDSServer) StreamExtensionConfigs(stream extensionservice.ExtensionConfigDiscoveryService_StreamExtensionConfigsServer) error {
	return RunStream(stream.Context(), stream, resource.ExtensionConfigType, s.cache, s.log)
}

func (s *XDSServer) DeltaExtensionConfigs(stream extensionservice.ExtensionConfigDiscoveryService_DeltaExtensionConfigsServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.ExtensionConfigType, s.cache, s.log)
}

func (s *XDSServer) FetchExtensionConfigs(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	return fetch(ctx, s.cache, resource.ExtensionConfigType, req)
}

func fetch(ctx context.Context, c cache.Cache, typeURL string, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	if req.GetTypeUrl() == "" {
		req.TypeUrl = typeURL
	}
	resp, err := c.Fetch(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, cache.ErrNotFound):
			return nil, status.Error(codes.NotFound, "resource not found for node")
		case errors.Is(err, cache.ErrVersionUpToDate):
			return nil, status.Error(codes.AlreadyExists, "version already up to date")
		default:
			return nil, err
		}
	}
	return resp, nil
}
