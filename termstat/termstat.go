// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package termstat provides a stats implementation which periodically writes
// counters to a terminal. It is what `pds4kit migrate --progress` shows while
// a batch runs. Counts are summed, gauges keep their latest value, and
// timings are totalled.
package termstat

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Collector collects stats and prints them to the terminal
type Collector struct {
	lock    sync.Mutex
	indexes map[string]int
	names   []string
	stats   []int64
	gauges  map[string]float64
	timings map[string]time.Duration
	changed bool
	out     io.Writer

	done    chan struct{}
	stopped chan struct{}
}

// NewCollector initializes a Collector which writes every interval until it
// is closed.
func NewCollector(out io.Writer, interval time.Duration) *Collector {
	ts := &Collector{
		indexes: make(map[string]int),
		gauges:  make(map[string]float64),
		timings: make(map[string]time.Duration),
		out:     out,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go func() {
		defer close(ts.stopped)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				ts.write(false)
			case <-ts.done:
				return
			}
		}
	}()
	return ts
}

func (t *Collector) index(name string) int {
	idx, ok := t.indexes[name]
	if !ok {
		idx = len(t.stats)
		t.stats = append(t.stats, 0)
		t.names = append(t.names, name)
		t.indexes[name] = idx
	}
	return idx
}

// Count adds value to the named stat. Sampling rates are ignored since every
// call is counted.
func (t *Collector) Count(name string, value int64, rate float64, tags ...string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.changed = true
	t.stats[t.index(name)] += value
}

// Timing accumulates the total time spent under name.
func (t *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.changed = true
	t.timings[name] += value
}

// Gauge records the latest value of name.
func (t *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.changed = true
	t.gauges[name] = value
}

// Line formats the counters, in the order they were first seen, followed by
// the gauges and then the timings.
func (t *Collector) Line() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.line()
}

func (t *Collector) line() string {
	parts := make([]string, 0, len(t.stats))
	for i, name := range t.names {
		parts = append(parts, fmt.Sprintf("%s: %d", name, t.stats[i]))
	}
	gauged := make([]string, 0, len(t.gauges))
	for name := range t.gauges {
		gauged = append(gauged, name)
	}
	sort.Strings(gauged)
	for _, name := range gauged {
		parts = append(parts, fmt.Sprintf("%s: %g", name, t.gauges[name]))
	}
	timed := make([]string, 0, len(t.timings))
	for name := range t.timings {
		timed = append(timed, name)
	}
	sort.Strings(timed)
	for _, name := range timed {
		parts = append(parts, fmt.Sprintf("%s: %s", name, t.timings[name].Round(time.Millisecond)))
	}
	return strings.Join(parts, " ")
}

func (t *Collector) write(final bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.changed && !final {
		return
	}
	t.changed = false
	end := ""
	if final {
		end = "\n"
	}
	fmt.Fprintf(t.out, "\r%s%s", t.line(), end)
}

// Close stops the periodic writes and prints the final counters on their
// own line.
func (t *Collector) Close() error {
	close(t.done)
	<-t.stopped
	t.write(true)
	return nil
}
