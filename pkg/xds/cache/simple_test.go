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
	"testing"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/resource"
	"github.com/flowmesh-io/xds-control-plane/pkg/xds/streamstate"
)

func sotwRequest(nodeID, typeURL, versionInfo string, names ...string) *discoveryv3.DiscoveryRequest {
	return &discoveryv3.DiscoveryRequest{
		Node:          &corev3.Node{Id: nodeID},
		TypeUrl:       typeURL,
		VersionInfo:   versionInfo,
		ResourceNames: names,
	}
}

func TestCreateWatchInstalledThenFiredBySetSnapshot(t *testing.T) {
	c := NewSnapshotCache(false, nil)
	tx := make(chan Response, 1)

	req := sotwRequest("node-1", resource.ClusterType, "")
	id, ok := c.CreateWatch(req, streamstate.NewStreamHandle(), tx)
	if !ok {
		t.Fatalf("CreateWatch with no snapshot yet should install a watch, not respond immediately")
	}
	select {
	case <-tx:
		t.Fatalf("no response should be queued before SetSnapshot")
	default:
	}

	snap := NewSnapshot()
	snap.Insert(resource.ClusterType, NewResources("v1", map[string]resource.Resource{"foo": clusterResource("foo")}))
	if err := c.SetSnapshot(context.Background(), "node-1", snap); err != nil {
		t.Fatalf("SetSnapshot: %v", err)
	}

	select {
	case resp := <-tx:
		if resp.Payload.GetVersionInfo() != "v1" {
			t.Fatalf("pushed VersionInfo = %q, want \"v1\"", resp.Payload.GetVersionInfo())
		}
	case <-time.After(time.Second):
		t.Fatalf("expected SetSnapshot to fire the pending watch")
	}

	// The watch fired and was consumed; cancelling its id again must be a
	// harmless no-op (IV3/IV7).
	c.CancelWatch(id)
}

func TestCreateWatchRespondsImmediatelyWhenVersionDiffers(t *testing.T) {
	c := NewSnapshotCache(false, nil)
	snap := NewSnapshot()
	snap.Insert(resource.ClusterType, NewResources("v1", map[string]resource.Resource{"foo": clusterResource("foo")}))
	if err := c.SetSnapshot(context.Background(), "node-1", snap); err != nil {
		t.Fatalf("SetSnapshot: %v", err)
	}

	tx := make(chan Response, 1)
	req := sotwRequest("node-1", resource.ClusterType, "")
	if _, ok := c.CreateWatch(req, streamstate.NewStreamHandle(), tx); ok {
		t.Fatalf("CreateWatch should respond immediately, not install a watch, when the cache already has a newer version")
	}
	select {
	case resp := <-tx:
		if resp.Payload.GetVersionInfo() != "v1" {
			t.Fatalf("VersionInfo = %q, want \"v1\"", resp.Payload.GetVersionInfo())
		}
	default:
		t.Fatalf("expected an immediate response on tx")
	}
}

func TestCreateWatchNoResponseWhenVersionMatches(t *testing.T) {
	c := NewSnapshotCache(false, nil)
	snap := NewSnapshot()
	snap.Insert(resource.ClusterType, NewResources("v1", map[string]resource.Resource{"foo": clusterResource("foo")}))
	if err := c.SetSnapshot(context.Background(), "node-1", snap); err != nil {
		t.Fatalf("SetSnapshot: %v", err)
	}

	tx := make(chan Response, 1)
	req := sotwRequest("node-1", resource.ClusterType, "v1")
	if _, ok := c.CreateWatch(req, streamstate.NewStreamHandle(), tx); !ok {
		t.Fatalf("CreateWatch should install a watch when the client's version already matches")
	}
}

func TestCreateWatchRespondsImmediatelyOnUnknownResourceNameEvenWhenVersionMatches(t *testing.T) {
	c := NewSnapshotCache(false, nil)
	snap := NewSnapshot()
	snap.Insert(resource.ClusterType, NewResources("v1", map[string]resource.Resource{
		"foo": clusterResource("foo"),
		"bar": clusterResource("bar"),
	}))
	if err := c.SetSnapshot(context.Background(), "node-1", snap); err != nil {
		t.Fatalf("SetSnapshot: %v", err)
	}

	// The peer already knows "foo" but is now asking about "bar" too, with
	// a version_info that otherwise already matches the snapshot. Per
	// §4.2.1(b), this resource-diff must trigger an immediate response
	// rather than a watch, even though (c) would otherwise apply.
	handle := streamstate.NewStreamHandle()
	handle.SetKnownResourceNames(resource.ClusterType, []string{"foo"})

	tx := make(chan Response, 1)
	req := sotwRequest("node-1", resource.ClusterType, "v1", "foo", "bar")
	if _, ok := c.CreateWatch(req, handle, tx); ok {
		t.Fatalf("CreateWatch should respond immediately when the request names a resource outside the known set")
	}
	select {
	case resp := <-tx:
		if len(resp.Payload.GetResources()) != 2 {
			t.Fatalf("Resources = %d, want 2 (foo and bar)", len(resp.Payload.GetResources()))
		}
	default:
		t.Fatalf("expected an immediate response on tx")
	}
}

func TestCreateWatchWithAdsDeclinesToRespondOnResourceDiffWhenInconsistent(t *testing.T) {
	c := NewSnapshotCache(true, nil)
	snap := NewSnapshot()
	snap.Insert(resource.ClusterType, NewResources("v1", map[string]resource.Resource{
		"foo": clusterResource("foo"),
		"bar": clusterResource("bar"),
	}))
	if err := c.SetSnapshot(context.Background(), "node-1", snap); err != nil {
		t.Fatalf("SetSnapshot: %v", err)
	}

	// Under ADS, the snapshot holds "bar" too, which the client didn't ask
	// for: responding now would violate IV4, so the cache must install a
	// watch instead of pushing an inconsistent subset.
	handle := streamstate.NewStreamHandle()
	tx := make(chan Response, 1)
	req := sotwRequest("node-1", resource.ClusterType, "v1", "foo")
	if _, ok := c.CreateWatch(req, handle, tx); !ok {
		t.Fatalf("CreateWatch should install a watch rather than push an ADS-inconsistent response")
	}
	select {
	case resp := <-tx:
		t.Fatalf("unexpected response sent: %+v", resp)
	default:
	}
}

func TestFetchNotFoundAndVersionUpToDate(t *testing.T) {
	c := NewSnapshotCache(false, nil)

	_, err := c.Fetch(context.Background(), sotwRequest("unknown", resource.ClusterType, ""))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Fetch on unknown node: err = %v, want ErrNotFound", err)
	}

	snap := NewSnapshot()
	snap.Insert(resource.ClusterType, NewResources("v1", map[string]resource.Resource{"foo": clusterResource("foo")}))
	if err := c.SetSnapshot(context.Background(), "node-1", snap); err != nil {
		t.Fatalf("SetSnapshot: %v", err)
	}

	// R2: Fetch with a VersionInfo that already matches the published
	// snapshot's version reports up-to-date rather than resending.
	_, err = c.Fetch(context.Background(), sotwRequest("node-1", resource.ClusterType, "v1"))
	if !errors.Is(err, ErrVersionUpToDate) {
		t.Fatalf("Fetch at current version: err = %v, want ErrVersionUpToDate", err)
	}

	resp, err := c.Fetch(context.Background(), sotwRequest("node-1", resource.ClusterType, ""))
	if err != nil {
		t.Fatalf("Fetch at stale version: unexpected error %v", err)
	}
	if resp.GetVersionInfo() != "v1" {
		t.Fatalf("Fetch response VersionInfo = %q, want \"v1\"", resp.GetVersionInfo())
	}
}

func TestCreateDeltaWatchFiredBySetSnapshot(t *testing.T) {
	c := NewSnapshotCache(false, nil)
	tx := make(chan DeltaResponse, 1)

	req := &discoveryv3.DeltaDiscoveryRequest{
		Node:    &corev3.Node{Id: "node-1"},
		TypeUrl: resource.ClusterType,
	}
	handle := streamstate.NewDeltaStreamHandle(req)
	id, ok := c.CreateDeltaWatch(req, handle, tx)
	if !ok {
		t.Fatalf("CreateDeltaWatch with no snapshot yet should install a watch")
	}

	snap := NewSnapshot()
	snap.Insert(resource.ClusterType, NewResources("v1", map[string]resource.Resource{"foo": clusterResource("foo")}))
	if err := c.SetSnapshot(context.Background(), "node-1", snap); err != nil {
		t.Fatalf("SetSnapshot: %v", err)
	}

	select {
	case resp := <-tx:
		if len(resp.Payload.Resources) != 1 || resp.Payload.Resources[0].Name != "foo" {
			t.Fatalf("delta Resources = %+v, want [foo]", resp.Payload.Resources)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected SetSnapshot to fire the pending delta watch")
	}

	c.CancelDeltaWatch(id)
	c.CancelDeltaWatch(id) // idempotent
}

func TestNodeStatusTracksLastRequestTime(t *testing.T) {
	c := NewSnapshotCache(false, nil)
	tx := make(chan Response, 1)
	c.CreateWatch(sotwRequest("node-1", resource.ClusterType, ""), streamstate.NewStreamHandle(), tx)

	status := c.NodeStatus()
	if _, ok := status["node-1"]; !ok {
		t.Fatalf("NodeStatus() = %v, want an entry for node-1", status)
	}
}
