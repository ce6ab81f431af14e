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
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// Resource is a tagged variant over the resource categories this control
// plane serves. Every concrete resource type is a thin wrapper around a
// generated protobuf message from github.com/envoyproxy/go-control-plane.
//
// There is no open-ended inheritance here: new resource kinds are added by
// extending the tag set in type_url.go and adding a wrapper type in this
// package, not by implementing arbitrary new Resource values elsewhere.
type Resource interface {
	// Name is the resource's identity, unique within a bundle of one type
	// for one node.
	Name() string
	// TypeURL identifies which variant this is.
	TypeURL() string
	// Serialize returns a deterministic byte encoding used as the input to
	// the content hash that backs delta version tracking.
	Serialize() ([]byte, error)
	// ToWire packages the resource for transport as a typed Any payload.
	ToWire() (*anypb.Any, error)
}

// marshalOpts forces deterministic field ordering so that two protobuf
// messages that are logically equal always serialize to the same bytes,
// which is the contract Serialize()'s callers (content hashing) rely on.
var marshalOpts = proto.MarshalOptions{Deterministic: true}

func serialize(m proto.Message) ([]byte, error) {
	return marshalOpts.Marshal(m)
}

func toWire(m proto.Message) (*anypb.Any, error) {
	return anypb.New(m)
}
