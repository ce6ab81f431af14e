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
	"time"

	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/streamstate"
)

// WatchId is an opaque, cancel-capable handle to a watch installed by
// CreateWatch or CreateDeltaWatch. It is safe to hold on to after the watch
// has already fired or been cancelled; cancelling it again is a no-op.
type WatchId struct {
	NodeID string
	delta  bool
	index  int
}

// watchEntry is a pending state-of-the-world watch: the request that
// produced it (recorded so the eventual push can be framed against it) and
// the sink the cache pushes the eventual Response on.
type watchEntry struct {
	req *discoveryv3.DiscoveryRequest
	tx  chan<- Response
}

// deltaWatchEntry is a pending incremental watch. state is a snapshot of the
// stream's subscription bookkeeping taken at watch-creation time, per
// streamstate.DeltaStreamHandle.Clone.
type deltaWatchEntry struct {
	req   *discoveryv3.DeltaDiscoveryRequest
	tx    chan<- DeltaResponse
	state *streamstate.DeltaStreamHandle
}

// NodeStatus is the cache's bookkeeping for one node: when it was last
// heard from, and every watch currently open on its behalf. There is no
// internal lock; every access happens while the owning SnapshotCache holds
// its own mutex.
type NodeStatus struct {
	LastRequestTime time.Time

	watches      *slab[watchEntry]
	deltaWatches *slab[deltaWatchEntry]
}

func newNodeStatus() *NodeStatus {
	return &NodeStatus{
		LastRequestTime: time.Now(),
		watches:         newSlab[watchEntry](),
		deltaWatches:    newSlab[deltaWatchEntry](),
	}
}
