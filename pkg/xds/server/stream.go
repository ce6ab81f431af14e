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

// Package server implements the SotW and delta/incremental xDS stream state
// machines and wires them to the generated per-resource-type and aggregated
// gRPC service interfaces from github.com/envoyproxy/go-control-plane.
//
// Every one of those generated interfaces - ClusterDiscoveryService_StreamClustersServer,
// EndpointDiscoveryService_StreamEndpointsServer, and so on, plus the
// *_DeltaAggregatedResourcesServer/_StreamAggregatedResourcesServer pair for
// ADS - shares the same two-method shape (Send one message type, Recv the
// other) because every xDS v3 service speaks the same DiscoveryRequest/
// DiscoveryResponse (or DeltaDiscoveryRequest/DeltaDiscoveryResponse) wire
// messages. That means a single generic Stream/DeltaStream interface,
// embedding grpc.ServerStream plus those two methods, is structurally
// satisfied by every generated interface without an adapter - so one
// implementation of the stream loop below serves all of them.
package server

import (
	"context"

	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"google.golang.org/grpc"
)

// Stream is the minimal surface RunStream needs from a state-of-the-world
// gRPC stream. Every generated *_Server stream interface for a SotW xDS
// service implements this structurally.
type Stream interface {
	grpc.ServerStream
	Send(*discoveryv3.DiscoveryResponse) error
	Recv() (*discoveryv3.DiscoveryRequest, error)
}

// DeltaStream is Stream's incremental counterpart.
type DeltaStream interface {
	grpc.ServerStream
	Send(*discoveryv3.DeltaDiscoveryResponse) error
	Recv() (*discoveryv3.DeltaDiscoveryRequest, error)
}

// recvLoop reads Recv() in its own goroutine and publishes each message (or
// the terminal error) on the returned channel, since Recv blocks and the
// stream's main loop needs to multiplex it against the cache's watch
// channel via select. The goroutine exits after the first error (including
// io.EOF) and closes the channel.
func recvLoop(ctx context.Context, recv func() (*discoveryv3.DiscoveryRequest, error)) <-chan recvResult {
	out := make(chan recvResult, 1)
	go func() {
		defer close(out)
		for {
			req, err := recv()
			select {
			case out <- recvResult{req: req, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

type recvResult struct {
	req *discoveryv3.DiscoveryRequest
	err error
}

func recvDeltaLoop(ctx context.Context, recv func() (*discoveryv3.DeltaDiscoveryRequest, error)) <-chan recvDeltaResult {
	out := make(chan recvDeltaResult, 1)
	go func() {
		defer close(out)
		for {
			req, err := recv()
			select {
			case out <- recvDeltaResult{req: req, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

type recvDeltaResult struct {
	req *discoveryv3.DeltaDiscoveryRequest
	err error
}
