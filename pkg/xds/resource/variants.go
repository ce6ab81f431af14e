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

package resource

import (
	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	endpointv3 "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	listenerv3 "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	routev3 "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	tlsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"
	runtimev3 "github.com/envoyproxy/go-control-plane/envoy/service/runtime/v3"
	"google.golang.org/protobuf/types/known/anypb"
)

// Cluster wraps envoy.config.cluster.v3.Cluster.
type Cluster struct{ *clusterv3.Cluster }

func (c Cluster) Name() string                    { return c.GetName() }
func (c Cluster) TypeURL() string                  { return ClusterType }
func (c Cluster) Serialize() ([]byte, error)       { return serialize(c.Cluster) }
func (c Cluster) ToWire() (*anypb.Any, error)      { return toWire(c.Cluster) }

// Endpoint wraps envoy.config.endpoint.v3.ClusterLoadAssignment. Its
// identity field is ClusterName rather than Name, unlike every other
// variant here.
type Endpoint struct{ *endpointv3.ClusterLoadAssignment }

func (e Endpoint) Name() string               { return e.GetClusterName() }
func (e Endpoint) TypeURL() string            { return EndpointType }
func (e Endpoint) Serialize() ([]byte, error) { return serialize(e.ClusterLoadAssignment) }
func (e Endpoint) ToWire() (*anypb.Any, error) { return toWire(e.ClusterLoadAssignment) }

// Route wraps envoy.config.route.v3.RouteConfiguration.
type Route struct{ *routev3.RouteConfiguration }

func (r Route) Name() string               { return r.GetName() }
func (r Route) TypeURL() string            { return RouteType }
func (r Route) Serialize() ([]byte, error) { return serialize(r.RouteConfiguration) }
func (r Route) ToWire() (*anypb.Any, error) { return toWire(r.RouteConfiguration) }

// ScopedRoute wraps envoy.config.route.v3.ScopedRouteConfiguration.
type ScopedRoute struct{ *routev3.ScopedRouteConfiguration }

func (s ScopedRoute) Name() string               { return s.GetName() }
func (s ScopedRoute) TypeURL() string            { return ScopedRouteType }
func (s ScopedRoute) Serialize() ([]byte, error) { return serialize(s.ScopedRouteConfiguration) }
func (s ScopedRoute) ToWire() (*anypb.Any, error) { return toWire(s.ScopedRouteConfiguration) }

// VirtualHost wraps envoy.config.route.v3.VirtualHost, served independently
// of its owning RouteConfiguration via VHDS.
type VirtualHost struct{ *routev3.VirtualHost }

func (v VirtualHost) Name() string                { return v.GetName() }
func (v VirtualHost) TypeURL() string             { return VirtualHostType }
func (v VirtualHost) Serialize() ([]byte, error)  { return serialize(v.VirtualHost) }
func (v VirtualHost) ToWire() (*anypb.Any, error) { return toWire(v.VirtualHost) }

// Listener wraps envoy.config.listener.v3.Listener.
type Listener struct{ *listenerv3.Listener }

func (l Listener) Name() string               { return l.GetName() }
func (l Listener) TypeURL() string            { return ListenerType }
func (l Listener) Serialize() ([]byte, error) { return serialize(l.Listener) }
func (l Listener) ToWire() (*anypb.Any, error) { return toWire(l.Listener) }

// Secret wraps envoy.extensions.transport_sockets.tls.v3.Secret.
type Secret struct{ *tlsv3.Secret }

func (s Secret) Name() string               { return s.GetName() }
func (s Secret) TypeURL() string            { return SecretType }
func (s Secret) Serialize() ([]byte, error) { return serialize(s.Secret) }
func (s Secret) ToWire() (*anypb.Any, error) { return toWire(s.Secret) }

// Runtime wraps envoy.service.runtime.v3.Runtime.
type Runtime struct{ *runtimev3.Runtime }

func (r Runtime) Name() string               { return r.GetName() }
func (r Runtime) TypeURL() string            { return RuntimeType }
func (r Runtime) Serialize() ([]byte, error) { return serialize(r.Runtime) }
func (r Runtime) ToWire() (*anypb.Any, error) { return toWire(r.Runtime) }

// ExtensionConfig wraps envoy.config.core.v3.TypedExtensionConfig, served
// over ECDS.
type ExtensionConfig struct{ *corev3.TypedExtensionConfig }

func (e ExtensionConfig) Name() string               { return e.GetName() }
func (e ExtensionConfig) TypeURL() string            { return ExtensionConfigType }
func (e ExtensionConfig) Serialize() ([]byte, error) { return serialize(e.TypedExtensionConfig) }
func (e ExtensionConfig) ToWire() (*anypb.Any, error) { return toWire(e.TypedExtensionConfig) }
