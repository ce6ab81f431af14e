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

package logging

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/flowmesh-io/xds-control-plane/pkg/xds/cache"
)

const (
	cacheLoggerCallDepth = 1
)

// xdsCacheLogger implements cache.Logger, the narrow logging interface
// pkg/xds/cache depends on instead of importing logr directly.
type xdsCacheLogger struct {
	logr.Logger
}

// SnapshotCacheLogger adapts the logr.Logger stored in ctx for use as a
// cache.SnapshotCache's Logger.
func SnapshotCacheLogger(ctx context.Context) cache.Logger {
	return &xdsCacheLogger{
		FromContext(ctx).WithCallDepth(cacheLoggerCallDepth),
	}
}

func (l xdsCacheLogger) Debugf(format string, args ...interface{}) {
	l.V(4).Info(fmt.Sprintf(format, args...))
}

func (l xdsCacheLogger) Infof(format string, args ...interface{}) {
	l.V(2).Info(fmt.Sprintf(format, args...))
}

func (l xdsCacheLogger) Warnf(format string, args ...interface{}) {
	l.V(1).Info(fmt.Sprintf(format, args...))
}

func (l xdsCacheLogger) Errorf(format string, args ...interface{}) {
	l.Error(nil, fmt.Sprintf(format, args...))
}
