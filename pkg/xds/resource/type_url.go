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

// Package resource defines the closed set of xDS resource types this
// control plane serves, and the Resource variant that every concrete
// resource type implements.
package resource

const prefix = "type.googleapis.com/"

// Type URLs for every resource kind this control plane recognizes. This is
// a closed registry: new resource kinds extend this set rather than
// opening it up to arbitrary types.
const (
	ClusterType          = prefix + "envoy.config.cluster.v3.Cluster"
	EndpointType         = prefix + "envoy.config.endpoint.v3.ClusterLoadAssignment"
	RouteType            = prefix + "envoy.config.route.v3.RouteConfiguration"
	ScopedRouteType      = prefix + "envoy.config.route.v3.ScopedRouteConfiguration"
	VirtualHostType      = prefix + "envoy.config.route.v3.VirtualHost"
	ListenerType         = prefix + "envoy.config.listener.v3.Listener"
	SecretType           = prefix + "envoy.extensions.transport_sockets.tls.v3.Secret"
	RuntimeType          = prefix + "envoy.service.runtime.v3.Runtime"
	ExtensionConfigType  = prefix + "envoy.config.core.v3.TypedExtensionConfig"

	// AnyType is the distinguished empty type URL used to multiplex all
	// resource types over a single ADS stream.
	AnyType = ""
)

// shortName strips the type.googleapis.com/ prefix for compact logging.
func shortName(typeURL string) string {
	if len(typeURL) > len(prefix) && typeURL[:len(prefix)] == prefix {
		return typeURL[len(prefix):]
	}
	return typeURL
}

// ShortName is the exported form of shortName, used by callers outside this
// package (stream and cache logging) that want the same compact rendering.
func ShortName(typeURL string) string {
	return shortName(typeURL)
}
