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
	"io"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/cache"
	"github.com/flowmesh-io/xds-control-plane/pkg/xds/resource"
	"github.com/flowmesh-io/xds-control-plane/pkg/xds/streamstate"
)

// RunDeltaStream is RunStream's incremental counterpart: one per-type
// streamstate.DeltaStreamHandle tracks wildcard/subscribed names and the
// client's believed resource versions, independently for every type URL
// multiplexed over the stream.
func RunDeltaStream(ctx context.Context, stream DeltaStream, fixedTypeURL string, c cache.Cache, log cache.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handles := map[string]*streamstate.DeltaStreamHandle{}
	watches := map[string]cache.WatchId{}
	lastNonce := map[string]string{}
	nonces := &nonceGenerator{}
	var node *corev3.Node

	defer func() {
		for _, id := range watches {
			c.CancelDeltaWatch(id)
		}
	}()

	responses := make(chan cache.DeltaResponse, watchChannelCapacity)
	requests := recvDeltaLoop(ctx, stream.Recv)

	for {
		select {
		case result, ok := <-requests:
			if !ok {
				return nil
			}
			if result.err != nil {
				if errors.Is(result.err, io.EOF) {
					return nil
				}
				return result.err
			}
			req := result.req
			if req.GetNode() != nil {
				node = req.GetNode()
			} else {
				req.Node = node
			}

			typeURL := req.GetTypeUrl()
			if typeURL == "" {
				typeURL = fixedTypeURL
			}
			if typeURL == "" {
				return status.Error(codes.InvalidArgument, "delta discovery request on an aggregated stream is missing its type URL")
			}
			req.TypeUrl = typeURL

			if req.GetResponseNonce() != "" && req.GetResponseNonce() != lastNonce[typeURL] {
				log.Debugf("dropping stale delta ack/nack for %s: nonce %q, expected %q", resource.ShortName(typeURL), req.GetResponseNonce(), lastNonce[typeURL])
				continue
			}
			if req.GetErrorDetail() != nil {
				log.Warnf("node %s NACKed delta %s: %v", node.GetId(), resource.ShortName(typeURL), req.GetErrorDetail())
			}

			handle, exists := handles[typeURL]
			if !exists {
				handle = streamstate.NewDeltaStreamHandle(req)
				handles[typeURL] = handle
			}
			// ApplySubscriptions runs unconditionally, including for a
			// brand-new handle (§4.5d): the constructor only seeds
			// Wildcard/ResourceVersions/First, it doesn't fold the
			// request's own subscribe/unsubscribe lists in.
			handle.ApplySubscriptions(req)

			if id, ok := watches[typeURL]; ok {
				c.CancelDeltaWatch(id)
				delete(watches, typeURL)
			}

			if id, ok := c.CreateDeltaWatch(req, handle, responses); ok {
				watches[typeURL] = id
			}

		case resp, ok := <-responses:
			if !ok {
				return nil
			}
			typeURL := resp.Payload.GetTypeUrl()
			delete(watches, typeURL)

			if handle, ok := handles[typeURL]; ok {
				for name, version := range resp.NextVersionMap {
					handle.ResourceVersions[name] = version
				}
				for _, name := range resp.Payload.GetRemovedResources() {
					delete(handle.ResourceVersions, name)
				}
			}

			nonce := nonces.Next()
			resp.Payload.Nonce = nonce
			lastNonce[typeURL] = nonce

			if err := stream.Send(resp.Payload); err != nil {
				return err
			}
			log.Debugf("sent delta %s (%d added, %d removed) to node %s", resource.ShortName(typeURL), len(resp.Payload.GetResources()), len(resp.Payload.GetRemovedResources()), node.GetId())
		}
	}
}
