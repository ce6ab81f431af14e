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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Snapshot is one node's complete, versioned view of every resource type it
// is configured to receive. A Snapshot is conceptually immutable once handed
// to SetSnapshot: the cache never mutates a published snapshot's resource
// bundles, only (lazily, once) its derived content-hash version map.
//
// There is deliberately no mutex here. The only mutation a Snapshot ever
// undergoes post-construction is BuildVersionMap, and the cache only ever
// calls that while holding its own lock (see simple.go), so Snapshot itself
// doesn't need to be safe for concurrent use on its own.
type Snapshot struct {
	resources  map[string]Resources
	versionMap map[string]map[string]string
}

// NewSnapshot returns an empty snapshot ready to be populated with Insert.
func NewSnapshot() *Snapshot {
	return &Snapshot{resources: map[string]Resources{}}
}

// Insert replaces the resource bundle for typeURL.
func (s *Snapshot) Insert(typeURL string, r Resources) {
	s.resources[typeURL] = r
}

// Version returns the publisher-assigned version string for typeURL, or the
// empty string if the snapshot carries nothing of that type.
func (s *Snapshot) Version(typeURL string) string {
	if r, ok := s.resources[typeURL]; ok {
		return r.Version
	}
	return ""
}

// Resources returns the resource bundle for typeURL.
func (s *Snapshot) Resources(typeURL string) (Resources, bool) {
	r, ok := s.resources[typeURL]
	return r, ok
}

// BuildVersionMap computes, once, the per-resource content-hash version used
// by delta responses to decide whether a client's remembered version of a
// resource is stale. It is idempotent: a second call on an already-built
// snapshot returns immediately without recomputing anything, which is what
// lets SetSnapshot call it unconditionally on every publish.
func (s *Snapshot) BuildVersionMap() error {
	if s.versionMap != nil {
		return nil
	}
	versionMap := make(map[string]map[string]string, len(s.resources))
	for typeURL, bundle := range s.resources {
		perType := make(map[string]string, len(bundle.Items))
		for name, res := range bundle.Items {
			serialized, err := res.Serialize()
			if err != nil {
				return fmt.Errorf("serializing %s resource %q for version hash: %w", typeURL, name, err)
			}
			sum := sha256.Sum256(serialized)
			perType[name] = hex.EncodeToString(sum[:])
		}
		versionMap[typeURL] = perType
	}
	s.versionMap = versionMap
	return nil
}

// versionMapFor returns the content-hash versions for typeURL, or nil if
// BuildVersionMap has not run yet or the type carries no resources.
func (s *Snapshot) versionMapFor(typeURL string) map[string]string {
	if s.versionMap == nil {
		return nil
	}
	return s.versionMap[typeURL]
}
