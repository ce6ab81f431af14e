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

// Package streamstate holds the per-peer subscription bookkeeping that the
// cache consults when deciding whether a client's view of a resource type is
// stale. It is a leaf package: it knows nothing about the cache, the stream
// state machines, or the transport, so that the cache can depend on it
// without creating an import cycle with the stream packages that also
// depend on the cache.
package streamstate

import (
	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
)

// StreamHandle tracks, for one state-of-the-world stream, which resource
// names the peer has acknowledged receiving for each type URL.
type StreamHandle struct {
	knownResourceNames map[string]map[string]struct{}
}

// NewStreamHandle returns an empty handle.
func NewStreamHandle() *StreamHandle {
	return &StreamHandle{knownResourceNames: map[string]map[string]struct{}{}}
}

// KnownResourceNames returns the set of acknowledged names for typeURL, or
// nil if the client has never acked anything of that type.
func (h *StreamHandle) KnownResourceNames(typeURL string) map[string]struct{} {
	return h.knownResourceNames[typeURL]
}

// SetKnownResourceNames replaces the tracked name set for typeURL with
// names. Per OQ1, RunStream passes the resource names of the request that
// produced the response now being acked, not an accumulation across every
// request the client has ever sent - an ADS consistency check against stale
// history would be wrong as soon as a client narrows its subscription.
func (h *StreamHandle) SetKnownResourceNames(typeURL string, names []string) {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	h.knownResourceNames[typeURL] = set
}

// DeltaStreamHandle tracks, for one incremental (delta) stream and one
// type URL, the client's wildcard/explicit subscription state and its
// belief about each subscribed resource's version.
type DeltaStreamHandle struct {
	// Wildcard is set when the client subscribes to "*", or an initial
	// request carried neither a subscribe nor an unsubscribe list.
	Wildcard bool
	// SubscribedResourceNames is the explicit subscription set (meaningless
	// under Wildcard, but kept up to date regardless so that demotion back
	// to explicit subscriptions behaves correctly).
	SubscribedResourceNames map[string]struct{}
	// ResourceVersions is what the client currently believes about each
	// resource's content version.
	ResourceVersions map[string]string
	// First is true until the first apply_subscriptions call completes.
	First bool
}

// NewDeltaStreamHandle builds the initial handle for a type URL's first
// DeltaDiscoveryRequest on a stream.
func NewDeltaStreamHandle(req *discoveryv3.DeltaDiscoveryRequest) *DeltaStreamHandle {
	versions := make(map[string]string, len(req.GetInitialResourceVersions()))
	for name, version := range req.GetInitialResourceVersions() {
		versions[name] = version
	}
	return &DeltaStreamHandle{
		Wildcard:                len(req.GetResourceNamesSubscribe()) == 0 && len(req.GetResourceNamesUnsubscribe()) == 0,
		SubscribedResourceNames: map[string]struct{}{},
		ResourceVersions:        versions,
		First:                   true,
	}
}

// ApplySubscriptions folds a request's subscribe/unsubscribe lists into the
// handle. Preserve this exactly: the "wildcard demotion" branch (forcing a
// resource's remembered version to empty when it's unsubscribed while
// wildcard is on) makes the resource re-send the next time it re-enters the
// explicit subscription set under wildcard, instead of being silently
// treated as already-known.
func (h *DeltaStreamHandle) ApplySubscriptions(req *discoveryv3.DeltaDiscoveryRequest) {
	h.First = false
	for _, name := range req.GetResourceNamesSubscribe() {
		if name == "*" {
			h.Wildcard = true
			continue
		}
		h.SubscribedResourceNames[name] = struct{}{}
	}
	for _, name := range req.GetResourceNamesUnsubscribe() {
		if name == "*" {
			h.Wildcard = false
			continue
		}
		if _, subscribed := h.SubscribedResourceNames[name]; subscribed && h.Wildcard {
			h.ResourceVersions[name] = ""
		}
		delete(h.SubscribedResourceNames, name)
	}
}

// Clone deep-copies the handle so the cache can keep a snapshot of
// subscription state at watch-creation time, independent of further
// mutation by the owning stream.
func (h *DeltaStreamHandle) Clone() *DeltaStreamHandle {
	names := make(map[string]struct{}, len(h.SubscribedResourceNames))
	for name := range h.SubscribedResourceNames {
		names[name] = struct{}{}
	}
	versions := make(map[string]string, len(h.ResourceVersions))
	for name, version := range h.ResourceVersions {
		versions[name] = version
	}
	return &DeltaStreamHandle{
		Wildcard:                h.Wildcard,
		SubscribedResourceNames: names,
		ResourceVersions:        versions,
		First:                   h.First,
	}
}
