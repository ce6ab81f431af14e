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

// Package cache implements the versioned, per-node resource cache and the
// state-of-the-world/delta watch bookkeeping that the xDS stream state
// machines in pkg/xds/server consult.
package cache

import "github.com/flowmesh-io/xds-control-plane/pkg/xds/resource"

// Resources is an immutable-by-convention bundle of every resource of one
// type, at one coarse-grained publisher-assigned version.
type Resources struct {
	Version string
	Items   map[string]resource.Resource
}

// NewResources builds a Resources bundle, defaulting a nil items map to
// empty so callers never need a nil check.
func NewResources(version string, items map[string]resource.Resource) Resources {
	if items == nil {
		items = map[string]resource.Resource{}
	}
	return Resources{Version: version, Items: items}
}
