package termstat

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestCollector(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewCollector(buf, time.Hour)
	c.Count("migrate.written", 1, 1)
	c.Count("migrate.failed", 1, 1)
	c.Count("migrate.written", 2, 0.5)
	c.Timing("migrate.duration", time.Second, 1)

	if got := c.Line(); got != "migrate.written: 3 migrate.failed: 1 migrate.duration: 1s" {
		t.Fatalf("unexpected line: %q", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "migrate.failed: 1 migrate.duration: 1s\n") {
		t.Fatalf("final line not written: %q", buf.String())
	}
}

func TestCollectorGauge(t *testing.T) {
	c := NewCollector(&bytes.Buffer{}, time.Hour)
	defer c.Close()
	c.Count("migrate.written", 1, 1)
	c.Gauge("migrate.inflight", 4, 1)
	c.Gauge("migrate.inflight", 2, 1)
	c.Timing("migrate.duration", 1500*time.Millisecond, 1)
	if got := c.Line(); got != "migrate.written: 1 migrate.inflight: 2 migrate.duration: 1.5s" {
		t.Fatalf("unexpected line: %q", got)
	}
}
