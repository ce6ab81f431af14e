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
	"fmt"
	"sync"
	"time"

	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/resource"
	"github.com/flowmesh-io/xds-control-plane/pkg/xds/streamstate"
)

// SnapshotCache is the sole Cache implementation: one mutex guards a
// per-node map of published Snapshots and a per-node map of NodeStatus
// bookkeeping. Every public method takes the lock for its whole body, which
// keeps "install a watch, or respond immediately" atomic with respect to
// concurrent SetSnapshot calls from a different goroutine (the control
// plane's config-ingestion side) - exactly the race the design exists to
// close.
type SnapshotCache struct {
	mu sync.Mutex

	ads       bool
	log       Logger
	snapshots map[string]*Snapshot
	status    map[string]*NodeStatus
}

// NewSnapshotCache constructs an empty cache. ads enables the aggregated
// discovery service consistency check (a SotW response may never name a
// resource the client's request didn't ask for). A nil logger disables
// logging.
func NewSnapshotCache(ads bool, log Logger) *SnapshotCache {
	if log == nil {
		log = noopLogger{}
	}
	return &SnapshotCache{
		ads:       ads,
		log:       log,
		snapshots: map[string]*Snapshot{},
		status:    map[string]*NodeStatus{},
	}
}

func (c *SnapshotCache) nodeStatusLocked(nodeID string) *NodeStatus {
	st, ok := c.status[nodeID]
	if !ok {
		st = newNodeStatus()
		c.status[nodeID] = st
	}
	return st
}

// CreateWatch implements Cache.
func (c *SnapshotCache) CreateWatch(req *discoveryv3.DiscoveryRequest, handle *streamstate.StreamHandle, tx chan<- Response) (WatchId, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodeID := req.GetNode().GetId()
	st := c.nodeStatusLocked(nodeID)
	st.LastRequestTime = time.Now()

	typeURL := req.GetTypeUrl()
	snapshot, haveSnapshot := c.snapshots[nodeID]
	if haveSnapshot {
		if resp, ok := c.createWatchResponse(typeURL, snapshot, req, handle); ok {
			tx <- Response{Request: req, Payload: resp}
			return WatchId{}, false
		}
	}

	idx := st.watches.Insert(watchEntry{req: req, tx: tx})
	return WatchId{NodeID: nodeID, delta: false, index: idx}, true
}

// createWatchResponse implements spec §4.2.1's resource-diff-then-version
// decision for CreateWatch: it differs from trySotwResponse (used by Fetch
// and SetSnapshot, which only ever compare versions) because a brand-new
// request can name resources the peer has never acked, and those must be
// answered immediately even when the client's version_info already matches
// the snapshot's version.
func (c *SnapshotCache) createWatchResponse(typeURL string, snapshot *Snapshot, req *discoveryv3.DiscoveryRequest, handle *streamstate.StreamHandle) (*discoveryv3.DiscoveryResponse, bool) {
	bundle, ok := snapshot.Resources(typeURL)
	if !ok {
		return nil, false
	}
	version := bundle.Version
	known := handle.KnownResourceNames(typeURL)

	// Resource-diff check: does the peer's already-known set cover every
	// name it's asking about that actually exists in the snapshot? If not,
	// it's asking about something new and must be brought current
	// regardless of whether its version_info otherwise matches.
	stale := false
	for _, name := range req.GetResourceNames() {
		if _, present := bundle.Items[name]; !present {
			continue
		}
		if _, ok := known[name]; !ok {
			stale = true
			break
		}
	}

	if stale {
		if c.ads && !checkAdsConsistency(req.GetResourceNames(), resourceNames(bundle)) {
			// Responding now would push a superset the client hasn't
			// subscribed to on this ADS stream; wait instead.
			return nil, false
		}
		return c.buildSotwResponse(typeURL, version, bundle, req.GetResourceNames())
	}

	if req.GetVersionInfo() == version {
		return nil, false
	}

	if c.ads && !checkAdsConsistency(req.GetResourceNames(), resourceNames(bundle)) {
		return nil, false
	}
	return c.buildSotwResponse(typeURL, version, bundle, req.GetResourceNames())
}

func resourceNames(bundle Resources) []string {
	names := make([]string, 0, len(bundle.Items))
	for name := range bundle.Items {
		names = append(names, name)
	}
	return names
}

// CancelWatch implements Cache.
func (c *SnapshotCache) CancelWatch(id WatchId) {
	if id.delta {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.status[id.NodeID]; ok {
		st.watches.Remove(id.index)
	}
}

// CreateDeltaWatch implements Cache.
func (c *SnapshotCache) CreateDeltaWatch(req *discoveryv3.DeltaDiscoveryRequest, handle *streamstate.DeltaStreamHandle, tx chan<- DeltaResponse) (WatchId, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodeID := req.GetNode().GetId()
	st := c.nodeStatusLocked(nodeID)
	st.LastRequestTime = time.Now()

	typeURL := req.GetTypeUrl()
	if snapshot, ok := c.snapshots[nodeID]; ok {
		if resp, ok := c.tryDeltaResponse(typeURL, snapshot, handle); ok {
			tx <- *resp
			return WatchId{}, false
		}
	}

	idx := st.deltaWatches.Insert(deltaWatchEntry{req: req, tx: tx, state: handle.Clone()})
	return WatchId{NodeID: nodeID, delta: true, index: idx}, true
}

// CancelDeltaWatch implements Cache.
func (c *SnapshotCache) CancelDeltaWatch(id WatchId) {
	if !id.delta {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.status[id.NodeID]; ok {
		st.deltaWatches.Remove(id.index)
	}
}

// Fetch implements Cache.
func (c *SnapshotCache) Fetch(_ context.Context, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodeID := req.GetNode().GetId()
	snapshot, ok := c.snapshots[nodeID]
	if !ok {
		return nil, ErrNotFound
	}
	resp, ok := c.trySotwResponse(req.GetTypeUrl(), snapshot, req)
	if !ok {
		return nil, ErrVersionUpToDate
	}
	return resp, nil
}

// SetSnapshot implements Cache.
func (c *SnapshotCache) SetSnapshot(_ context.Context, nodeID string, snapshot *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := snapshot.BuildVersionMap(); err != nil {
		return fmt.Errorf("building version map for node %q: %w", nodeID, err)
	}
	c.snapshots[nodeID] = snapshot

	st, ok := c.status[nodeID]
	if !ok {
		return nil
	}

	var fired []int
	st.watches.Each(func(idx int, w watchEntry) bool {
		resp, ok := c.trySotwResponse(w.req.GetTypeUrl(), snapshot, w.req)
		if !ok {
			return true
		}
		w.tx <- Response{Request: w.req, Payload: resp}
		fired = append(fired, idx)
		return true
	})
	for _, idx := range fired {
		st.watches.Remove(idx)
	}

	var firedDelta []int
	st.deltaWatches.Each(func(idx int, w deltaWatchEntry) bool {
		resp, ok := c.tryDeltaResponse(w.req.GetTypeUrl(), snapshot, w.state)
		if !ok {
			return true
		}
		w.tx <- *resp
		firedDelta = append(firedDelta, idx)
		return true
	})
	for _, idx := range firedDelta {
		st.deltaWatches.Remove(idx)
	}

	c.log.Debugf("published snapshot for node %q (%d watches, %d delta watches fired)", nodeID, len(fired), len(firedDelta))
	return nil
}

// NodeStatus implements Cache.
func (c *SnapshotCache) NodeStatus() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Time, len(c.status))
	for nodeID, st := range c.status {
		out[nodeID] = st.LastRequestTime
	}
	return out
}

// trySotwResponse reports whether the snapshot has something newer than
// what req's VersionInfo already reflects, and if so builds the push. Used
// by Fetch and SetSnapshot, neither of which does CreateWatch's
// resource-diff check (§4.2.3, §4.2.4: a plain version comparison).
func (c *SnapshotCache) trySotwResponse(typeURL string, snapshot *Snapshot, req *discoveryv3.DiscoveryRequest) (*discoveryv3.DiscoveryResponse, bool) {
	bundle, ok := snapshot.Resources(typeURL)
	if !ok {
		return nil, false
	}
	if bundle.Version == req.GetVersionInfo() {
		return nil, false
	}
	if c.ads && !checkAdsConsistency(req.GetResourceNames(), resourceNames(bundle)) {
		c.log.Errorf("ADS consistency violation for type %s: requested %v", resource.ShortName(typeURL), req.GetResourceNames())
		return nil, false
	}
	return c.buildSotwResponse(typeURL, bundle.Version, bundle, req.GetResourceNames())
}

// buildSotwResponse packages bundle (filtered by requested, or all items
// when requested is empty) into a DiscoveryResponse at version. It is the
// terminal step shared by trySotwResponse and createWatchResponse once
// they've decided a response should be sent.
func (c *SnapshotCache) buildSotwResponse(typeURL, version string, bundle Resources, requested []string) (*discoveryv3.DiscoveryResponse, bool) {
	var wire []*anypb.Any
	for name, res := range bundle.Items {
		if len(requested) > 0 && !containsName(requested, name) {
			continue
		}
		any, err := res.ToWire()
		if err != nil {
			c.log.Warnf("dropping %s resource %q from response: %v", typeURL, name, err)
			continue
		}
		wire = append(wire, any)
	}
	return &discoveryv3.DiscoveryResponse{
		VersionInfo: version,
		TypeUrl:     typeURL,
		Resources:   wire,
	}, true
}

func (c *SnapshotCache) tryDeltaResponse(typeURL string, snapshot *Snapshot, handle *streamstate.DeltaStreamHandle) (*DeltaResponse, bool) {
	bundle, _ := snapshot.Resources(typeURL)
	versions := snapshot.versionMapFor(typeURL)
	return buildDeltaResponse(typeURL, snapshot.Version(typeURL), bundle, versions, handle)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
