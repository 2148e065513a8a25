// Package mock holds in-memory stand-ins for the pipeline stages, for tests.
package mock

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/label"
	"github.com/rms-node/pds4kit/template"
)

// RecordingStatter records counts and gauges. It is safe for concurrent use.
type RecordingStatter struct {
	mu     sync.Mutex
	Counts map[string]int64
	// Gauges holds the latest value of each gauge and GaugeMax the highest.
	Gauges   map[string]float64
	GaugeMax map[string]float64
}

// Count adds value to the count under name.
func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Counts == nil {
		r.Counts = make(map[string]int64)
	}
	r.Counts[name] += value
}

// Get returns the count recorded under name.
func (r *RecordingStatter) Get(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counts[name]
}

// Gauge records value as the latest for name.
func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Gauges == nil {
		r.Gauges = make(map[string]float64)
		r.GaugeMax = make(map[string]float64)
	}
	r.Gauges[name] = value
	if value > r.GaugeMax[name] {
		r.GaugeMax[name] = value
	}
}

// Timing does nothing.
func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {}

// RecordingLogger keeps every Printf message.
type RecordingLogger struct {
	mu       sync.Mutex
	Messages []string
}

// Printf records the formatted message.
func (r *RecordingLogger) Printf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, fmt.Sprintf(format, v...))
}

// Debugf does nothing.
func (r *RecordingLogger) Debugf(format string, v ...interface{}) {}

// Sink keeps labels in memory, keyed by output path.
type Sink struct {
	mu     sync.Mutex
	Labels map[string][]byte
}

// Exists reports whether a label was written for item.
func (s *Sink) Exists(item *pds4kit.Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Labels[item.OutputPath]
	return ok, nil
}

// Write stores data under the item's output path.
func (s *Sink) Write(item *pds4kit.Item, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Labels == nil {
		s.Labels = make(map[string][]byte)
	}
	s.Labels[item.OutputPath] = data
	return nil
}

// Get returns the label stored at path.
func (s *Sink) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Labels[path]
	return data, ok
}

// Source returns items from a slice.
type Source struct {
	mu    sync.Mutex
	Items []*pds4kit.Item
	next  int
}

// Record returns the next item, or io.EOF after the last.
func (s *Source) Record() (*pds4kit.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.Items) {
		return nil, io.EOF
	}
	item := s.Items[s.next]
	s.next++
	return item, nil
}

// LabelReader parses labels held in memory, keyed by data path.
type LabelReader map[string]string

// ReadLabel parses the label text held for the item's data path.
func (r LabelReader) ReadLabel(item *pds4kit.Item) (*label.Label, error) {
	text, ok := r[item.DataPath]
	if !ok {
		return nil, errors.Errorf("no label for %s", item.DataPath)
	}
	return label.ParseBytes([]byte(text))
}

// MapperFunc adapts a function to pds4kit.Mapper.
type MapperFunc func(l *label.Label, item *pds4kit.Item) (template.Dict, error)

// Map calls f.
func (f MapperFunc) Map(l *label.Label, item *pds4kit.Item) (template.Dict, error) {
	return f(l, item)
}
