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
	"testing"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/resource"
	"github.com/flowmesh-io/xds-control-plane/pkg/xds/streamstate"
)

func snapshotWithClusters(names ...string) (*Snapshot, Resources) {
	items := map[string]resource.Resource{}
	for _, name := range names {
		items[name] = clusterResource(name)
	}
	snap := NewSnapshot()
	bundle := NewResources("v1", items)
	snap.Insert(resource.ClusterType, bundle)
	if err := snap.BuildVersionMap(); err != nil {
		panic(err)
	}
	return snap, bundle
}

func TestBuildDeltaResponseFirstIsAlwaysSent(t *testing.T) {
	snap, bundle := snapshotWithClusters()
	handle := &streamstate.DeltaStreamHandle{
		Wildcard:                true,
		SubscribedResourceNames: map[string]struct{}{},
		ResourceVersions:        map[string]string{},
		First:                   true,
	}

	_, ok := buildDeltaResponse(resource.ClusterType, snap.Version(resource.ClusterType), bundle, snap.versionMapFor(resource.ClusterType), handle)
	if !ok {
		t.Fatalf("first response on an empty snapshot should still be sent, got ok=false")
	}
}

func TestBuildDeltaResponseNoChangeIsSuppressedAfterFirst(t *testing.T) {
	snap, bundle := snapshotWithClusters("foo")
	versions := snap.versionMapFor(resource.ClusterType)
	handle := &streamstate.DeltaStreamHandle{
		Wildcard:                true,
		SubscribedResourceNames: map[string]struct{}{},
		ResourceVersions:        map[string]string{"foo": versions["foo"]},
		First:                   false,
	}

	_, ok := buildDeltaResponse(resource.ClusterType, snap.Version(resource.ClusterType), bundle, versions, handle)
	if ok {
		t.Fatalf("response built when nothing changed and this isn't the first response")
	}
}

func TestBuildDeltaResponseWildcardSendsNewAndRemoved(t *testing.T) {
	snap, bundle := snapshotWithClusters("foo")
	versions := snap.versionMapFor(resource.ClusterType)
	handle := &streamstate.DeltaStreamHandle{
		Wildcard:                true,
		SubscribedResourceNames: map[string]struct{}{},
		ResourceVersions:        map[string]string{"bar": "stale-version"},
		First:                   false,
	}

	resp, ok := buildDeltaResponse(resource.ClusterType, snap.Version(resource.ClusterType), bundle, versions, handle)
	if !ok {
		t.Fatalf("expected a response: foo is new and bar was removed")
	}
	if len(resp.Payload.Resources) != 1 || resp.Payload.Resources[0].Name != "foo" {
		t.Fatalf("Resources = %+v, want exactly [foo]", resp.Payload.Resources)
	}
	if len(resp.Payload.RemovedResources) != 1 || resp.Payload.RemovedResources[0] != "bar" {
		t.Fatalf("RemovedResources = %v, want [bar]", resp.Payload.RemovedResources)
	}
}

func TestBuildDeltaResponseNonWildcardIgnoresUnsubscribedNames(t *testing.T) {
	snap, bundle := snapshotWithClusters("foo", "baz")
	versions := snap.versionMapFor(resource.ClusterType)
	handle := &streamstate.DeltaStreamHandle{
		Wildcard:                false,
		SubscribedResourceNames: map[string]struct{}{"foo": {}},
		ResourceVersions:        map[string]string{},
		First:                   false,
	}

	resp, ok := buildDeltaResponse(resource.ClusterType, snap.Version(resource.ClusterType), bundle, versions, handle)
	if !ok {
		t.Fatalf("expected a response for the subscribed-but-unseen foo resource")
	}
	if len(resp.Payload.Resources) != 1 || resp.Payload.Resources[0].Name != "foo" {
		t.Fatalf("Resources = %+v, want exactly [foo] (baz is not subscribed)", resp.Payload.Resources)
	}
}

func TestBuildDeltaResponseWildcardDemotionSuppressesRemoval(t *testing.T) {
	// A name demoted to an empty remembered version (because it was
	// unsubscribed while wildcard was active) must not be reported as
	// removed - the client was already told to forget it.
	snap, bundle := snapshotWithClusters()
	versions := snap.versionMapFor(resource.ClusterType)
	handle := &streamstate.DeltaStreamHandle{
		Wildcard:                true,
		SubscribedResourceNames: map[string]struct{}{},
		ResourceVersions:        map[string]string{"demoted": ""},
		First:                   false,
	}

	_, ok := buildDeltaResponse(resource.ClusterType, snap.Version(resource.ClusterType), bundle, versions, handle)
	if ok {
		t.Fatalf("a demoted (already-forgotten) name should not trigger a removal response")
	}
}

func TestCheckAdsConsistency(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		response  []string
		want      bool
	}{
		{"no request names means wildcard, anything allowed", nil, []string{"a", "b"}, true},
		{"subset of requested is fine", []string{"a", "b"}, []string{"a"}, true},
		{"exact match is fine", []string{"a"}, []string{"a"}, true},
		{"name outside requested set violates consistency", []string{"a"}, []string{"a", "b"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := checkAdsConsistency(tc.requested, tc.response); got != tc.want {
				t.Fatalf("checkAdsConsistency(%v, %v) = %v, want %v", tc.requested, tc.response, got, tc.want)
			}
		})
	}
}
