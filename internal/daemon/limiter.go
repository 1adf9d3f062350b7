// Copyright (c) 2026 dotandev
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

package daemon

import (
	"context"
	"runtime"

	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/atomic"

	"github.com/dotandev/preflight/internal/logger"
)

var (
	errQueueFull = &json2.Error{Code: json2.E_SERVER, Message: "preflight queue is full"}
	errCancelled = &json2.Error{Code: json2.E_SERVER, Message: "preflight request cancelled while queued"}
)

// workerLimiter runs at most workers preflights at once and lets up to
// queueSize more wait for a slot. Anything beyond that is rejected.
type workerLimiter struct {
	slots    chan struct{}
	capacity int64
	pending  *atomic.Int64
}

func newWorkerLimiter(workers, queueSize int) *workerLimiter {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = runtime.NumCPU()
	}
	return &workerLimiter{
		slots:    make(chan struct{}, workers),
		capacity: int64(workers + queueSize),
		pending:  atomic.NewInt64(0),
	}
}

// acquire blocks until a worker slot is free. The returned release must be
// called once the preflight is done.
func (l *workerLimiter) acquire(ctx context.Context) (func(), error) {
	if l.pending.Inc() > l.capacity {
		l.pending.Dec()
		logger.Logger.Warn("Rejecting preflight, queue is full", "capacity", l.capacity)
		return nil, errQueueFull
	}
	select {
	case l.slots <- struct{}{}:
		return func() {
			<-l.slots
			l.pending.Dec()
		}, nil
	case <-ctx.Done():
		l.pending.Dec()
		return nil, errCancelled
	}
}
