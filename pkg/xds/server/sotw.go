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

// watchChannelCapacity bounds how many pending pushes the cache may queue for
// one stream before CreateWatch/SetSnapshot's send blocks. A single,
// cooperatively-scheduled goroutine drains this per stream, so a slow peer
// applies backpressure all the way back to the publisher rather than letting
// an unbounded backlog accumulate in memory.
const watchChannelCapacity = 16

// RunStream drives one state-of-the-world xDS stream to completion. It owns
// exactly one goroutine of its own (recvLoop, to turn the blocking Recv call
// into a channel) and otherwise runs single-threaded: every watch it
// installs, cancels, or fires is handled from this one select loop, so there
// is never a data race on the per-stream bookkeeping below.
//
// fixedTypeURL is the resource type this stream is scoped to, e.g.
// resource.ClusterType for a plain StreamClusters call. Pass resource.AnyType
// for an aggregated (ADS) stream, where every request must carry its own
// type URL instead.
func RunStream(ctx context.Context, stream Stream, fixedTypeURL string, c cache.Cache, log cache.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := streamstate.NewStreamHandle()
	watches := map[string]cache.WatchId{}
	lastNonce := map[string]string{}
	lastResponseNames := map[string][]string{}
	nonces := &nonceGenerator{}
	var node *corev3.Node

	defer func() {
		for _, id := range watches {
			c.CancelWatch(id)
		}
	}()

	responses := make(chan cache.Response, watchChannelCapacity)
	requests := recvLoop(ctx, stream.Recv)

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
				return status.Error(codes.InvalidArgument, "discovery request on an aggregated stream is missing its type URL")
			}
			req.TypeUrl = typeURL

			// Ack bookkeeping (§4.4c): a response_nonce of "" matches the
			// implicit zero nonce of a type this stream has never responded
			// on yet; any other nonce must equal the one we last sent.
			// Either way this is a valid ack (or a fresh subscription, not a
			// nack) and the names from the request that produced the
			// acknowledged response become known. A mismatched nonce is
			// stale and contributes nothing to known_resource_names - a
			// later ack with the current nonce will.
			if req.GetResponseNonce() == "" || req.GetResponseNonce() == lastNonce[typeURL] {
				handle.SetKnownResourceNames(typeURL, lastResponseNames[typeURL])
			} else {
				log.Debugf("dropping stale ack/nack for %s: nonce %q, expected %q", resource.ShortName(typeURL), req.GetResponseNonce(), lastNonce[typeURL])
				continue
			}
			if req.GetErrorDetail() != nil {
				log.Warnf("node %s NACKed %s: %v", node.GetId(), resource.ShortName(typeURL), req.GetErrorDetail())
			}

			// Watch management (§4.4d): a valid ack/fresh subscription
			// replaces any existing watch for this type with one built from
			// the new request; a stale nack (already filtered out above)
			// would otherwise leave the existing watch untouched.
			if id, ok := watches[typeURL]; ok {
				c.CancelWatch(id)
				delete(watches, typeURL)
			}

			if id, ok := c.CreateWatch(req, handle, responses); ok {
				watches[typeURL] = id
			}

		case resp, ok := <-responses:
			if !ok {
				return nil
			}
			typeURL := resp.Payload.GetTypeUrl()
			delete(watches, typeURL)

			nonce := nonces.Next()
			resp.Payload.Nonce = nonce
			lastNonce[typeURL] = nonce
			lastResponseNames[typeURL] = resp.Request.GetResourceNames()

			if err := stream.Send(resp.Payload); err != nil {
				return err
			}
			log.Debugf("sent %s version %s to node %s", resource.ShortName(typeURL), resp.Payload.GetVersionInfo(), node.GetId())
		}
	}
}
