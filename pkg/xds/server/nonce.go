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

package server

import (
	"strconv"
	"sync/atomic"
)

// nonceGenerator hands out strictly increasing nonces for one stream. A
// fresh generator per stream is enough: nonces only need to be unique and
// ordered within the scope of one client connection, not globally.
type nonceGenerator struct {
	next atomic.Int64
}

func (g *nonceGenerator) Next() string {
	return strconv.FormatInt(g.next.Add(1), 10)
}
