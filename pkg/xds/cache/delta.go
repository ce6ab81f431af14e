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
	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/streamstate"
)

// buildDeltaResponse is the pure resources-to-send/resources-to-remove
// computation for one type URL against one peer's subscription state. It
// never touches a channel or the cache's lock; callers (CreateDeltaWatch,
// SetSnapshot) decide what to do with the result.
//
// ok is false when there is nothing worth telling the client: no resource
// it's interested in changed, and this isn't the first response on the
// type (the first response is always sent, even empty, so the client's
// delta stream can start tracking a system_version_info baseline).
func buildDeltaResponse(typeURL, systemVersionInfo string, bundle Resources, versions map[string]string, handle *streamstate.DeltaStreamHandle) (*DeltaResponse, bool) {
	var added []*discoveryv3.Resource
	var removed []string
	nextVersions := make(map[string]string, len(handle.ResourceVersions))

	interested := func(name string) bool {
		if handle.Wildcard {
			return true
		}
		_, ok := handle.SubscribedResourceNames[name]
		return ok
	}

	for name, res := range bundle.Items {
		if !interested(name) {
			continue
		}
		version := versions[name]
		nextVersions[name] = version
		if known, ok := handle.ResourceVersions[name]; ok && known == version {
			continue
		}
		wire, err := res.ToWire()
		if err != nil {
			// A resource that cannot be marshalled to wire format is
			// dropped from this response rather than failing the whole
			// push; it will be retried on the next snapshot publish.
			continue
		}
		added = append(added, &discoveryv3.Resource{
			Name:     name,
			Version:  version,
			Resource: wire,
		})
	}

	for name, knownVersion := range handle.ResourceVersions {
		if _, stillPresent := bundle.Items[name]; stillPresent {
			continue
		}
		if !interested(name) {
			continue
		}
		if knownVersion == "" {
			// Demoted by a prior unsubscribe-under-wildcard; the client
			// has already been told to forget it.
			continue
		}
		removed = append(removed, name)
	}

	if len(added) == 0 && len(removed) == 0 && !handle.First {
		return nil, false
	}

	return &DeltaResponse{
		Payload: &discoveryv3.DeltaDiscoveryResponse{
			TypeUrl:           typeURL,
			SystemVersionInfo: systemVersionInfo,
			Resources:         added,
			RemovedResources:  removed,
		},
		NextVersionMap: nextVersions,
	}, true
}

// checkAdsConsistency enforces the aggregated-stream invariant: under ADS, a
// state-of-the-world response must never push a resource the client didn't
// ask for by name. When the requested name set is non-empty, every name in
// the response must be a subset of it.
func checkAdsConsistency(requestedNames []string, responseNames []string) bool {
	if len(requestedNames) == 0 {
		return true
	}
	allowed := make(map[string]struct{}, len(requestedNames))
	for _, name := range requestedNames {
		allowed[name] = struct{}{}
	}
	for _, name := range responseNames {
		if _, ok := allowed[name]; !ok {
			return false
		}
	}
	return true
}
