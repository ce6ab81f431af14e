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

package cache

import (
	"context"
	"errors"
	"time"

	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/streamstate"
)

// ErrNotFound is returned by Fetch when the cache holds no snapshot at all
// for the requesting node.
var ErrNotFound = errors.New("cache: no snapshot for node")

// ErrVersionUpToDate is returned by Fetch when the node's snapshot for the
// requested type exists but its version matches what the client already
// has, i.e. there is nothing to fetch.
var ErrVersionUpToDate = errors.New("cache: version already up to date")

// Response pairs a pushed DiscoveryResponse with the request that caused the
// watch to be installed, since framing a SotW response (resource names,
// nonce bookkeeping) depends on what the client originally asked for.
type Response struct {
	Request *discoveryv3.DiscoveryRequest
	Payload *discoveryv3.DiscoveryResponse
}

// DeltaResponse pairs a pushed DeltaDiscoveryResponse with the content-hash
// version map the receiving stream should fold into its remembered
// subscription state once it sends the response onward.
type DeltaResponse struct {
	Payload        *discoveryv3.DeltaDiscoveryResponse
	NextVersionMap map[string]string
}

// Cache is the interface the stream state machines in pkg/xds/server
// program against. SnapshotCache (simple.go) is the only implementation.
type Cache interface {
	// CreateWatch installs a watch for req, or responds on tx immediately
	// and returns ok=false if the cache already holds a version the client
	// doesn't have. handle records the peer's SotW subscription state.
	CreateWatch(req *discoveryv3.DiscoveryRequest, handle *streamstate.StreamHandle, tx chan<- Response) (id WatchId, ok bool)
	// CancelWatch evicts a previously installed watch. Safe to call more
	// than once, or with an id from a watch that already fired.
	CancelWatch(id WatchId)

	// CreateDeltaWatch installs an incremental watch, or responds
	// immediately and returns ok=false if there is already a delta to send.
	CreateDeltaWatch(req *discoveryv3.DeltaDiscoveryRequest, handle *streamstate.DeltaStreamHandle, tx chan<- DeltaResponse) (id WatchId, ok bool)
	// CancelDeltaWatch evicts a previously installed incremental watch.
	CancelDeltaWatch(id WatchId)

	// Fetch synchronously answers a single unary discovery request, without
	// installing a watch.
	Fetch(ctx context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error)

	// SetSnapshot publishes snapshot as the current state for nodeID,
	// immediately resolving any watch the new snapshot can satisfy.
	SetSnapshot(ctx context.Context, nodeID string, snapshot *Snapshot) error

	// NodeStatus reports the last request time seen for every known node.
	NodeStatus() map[string]time.Time
}

// Logger is the narrow logging surface the cache depends on, so that
// callers can adapt whatever structured logger they already use (this repo
// wires github.com/go-logr/logr via pkg/logging) without the cache package
// importing a concrete logging library itself.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}
