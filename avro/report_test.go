package avro

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rms-node/pds4kit"
)

func TestWriteReport(t *testing.T) {
	at := time.Date(2019, 3, 14, 1, 2, 3, 456000000, time.UTC)
	report := &pds4kit.Report{Results: []pds4kit.Result{
		{Path: "/d/N1.IMG", Output: "/d/N1.xml", Status: pds4kit.Written, Bytes: 4096, Duration: 3 * time.Millisecond, At: at},
		{Path: "/d/N2.IMG", Output: "/d/N2.xml", Status: pds4kit.Skipped, At: at},
		{Path: "/d/N3.IMG", Status: pds4kit.Failed, Message: "reading label: unexpected EOF", At: at},
	}}
	buf := &bytes.Buffer{}
	if err := WriteReport(buf, report); err != nil {
		t.Fatalf("writing report: %v", err)
	}
	got, err := ReadResults(buf)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if diff := cmp.Diff(report.Results, got); diff != "" {
		t.Fatalf("results differ (-want +got):\n%s", diff)
	}
}

func TestWriteEmptyReport(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteReport(buf, &pds4kit.Report{}); err != nil {
		t.Fatalf("writing report: %v", err)
	}
	got, err := ReadResults(buf)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
}
