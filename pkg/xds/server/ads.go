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
	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/resource"
)

// StreamAggregatedResources is the ADS entry point: every resource type is
// multiplexed over one stream, so unlike the per-type methods in
// discovery.go it cannot bind to a fixed type URL up front - each request
// carries its own, and RunStream enforces that none are missing one.
func (s *XDSServer) StreamAggregatedResources(stream discoveryv3.AggregatedDiscoveryService_StreamAggregatedResourcesServer) error {
	return RunStream(stream.Context(), stream, resource.AnyType, s.cache, s.log)
}

// DeltaAggregatedResources is ADS's incremental counterpart.
func (s *XDSServer) DeltaAggregatedResources(stream discoveryv3.AggregatedDiscoveryService_DeltaAggregatedResourcesServer) error {
	return RunDeltaStream(stream.Context(), stream, resource.AnyType, s.cache, s.log)
}
