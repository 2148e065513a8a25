package file

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/avro"
	"github.com/rms-node/pds4kit/test"
)

func setupVolume(t *testing.T) (dir string) {
	t.Helper()
	dir = test.MustTempDir(t, "testmain")
	lbl, err := ioutil.ReadFile(filepath.Join("..", "label", "testdata", "N1454725799_1.LBL"))
	test.ErrNil(t, err, "reading label")
	test.MustWriteFile(t, dir, "COISS_2001/data/N1454725799_1.LBL", string(lbl))
	test.MustWriteFile(t, dir, "COISS_2001/data/N1454725799_1.IMG", "pixels")
	test.MustWriteFile(t, dir, "COISS_2001/data/N1454725800_1.IMG", "no label here")
	return dir
}

func TestMainRun(t *testing.T) {
	dir := setupVolume(t)
	out := filepath.Join(dir, "out")
	stdout := &bytes.Buffer{}

	m := NewMain()
	m.Paths = []string{filepath.Join(dir, "COISS_2001")}
	m.Template = filepath.Join("..", "templates", "iss.xml")
	m.OutputRoot = out
	m.Ledger = filepath.Join(dir, "ledger")
	m.JSONReport = filepath.Join(dir, "report.json")
	m.AvroReport = filepath.Join(dir, "report.avro")
	m.Log = pds4kit.NopLogger{}
	m.Stdout = stdout

	report, err := m.Run(context.Background())
	test.ErrNil(t, err, "running")
	written, skipped, failed := report.Counts()
	if written != 1 || skipped != 0 || failed != 1 {
		t.Fatalf("unexpected counts %d %d %d:\n%s", written, skipped, failed, stdout)
	}
	if report.ExitCode() != 1 {
		t.Fatalf("expected a failing exit code")
	}
	if report.Results[1].Path != filepath.Join(dir, "COISS_2001/data/N1454725800_1.IMG") {
		t.Fatalf("unexpected failure: %+v", report.Results[1])
	}

	xml, err := ioutil.ReadFile(filepath.Join(out, "data", "N1454725799_1.xml"))
	test.ErrNil(t, err, "reading generated label")
	for _, want := range []string{
		"<logical_identifier>urn:nasa:pds:cassini_iss:data_raw:n1454725799_1</logical_identifier>",
		"<title>Cassini ISS Narrow Angle Camera image N1454725799_1</title>",
		"<start_date_time>2004-02-06T02:07:05.418Z</start_date_time>",
		"<wavelength_range>Visible</wavelength_range>",
		"<lid_reference>urn:nasa:pds:context:target:planet.saturn</lid_reference>",
		"<file_name>N1454725799_1.IMG</file_name>",
	} {
		if !bytes.Contains(xml, []byte(want)) {
			t.Errorf("generated label lacks %s", want)
		}
	}
	if !strings.Contains(stdout.String(), "1 written, 0 skipped, 1 failed") {
		t.Fatalf("unexpected text report:\n%s", stdout)
	}

	data, err := ioutil.ReadFile(m.JSONReport)
	test.ErrNil(t, err, "reading JSON report")
	var decoded pds4kit.Report
	test.ErrNil(t, json.Unmarshal(data, &decoded), "decoding JSON report")
	if len(decoded.Results) != 2 || decoded.Results[1].Message == "" {
		t.Fatalf("unexpected JSON report: %s", data)
	}
	f, err := os.Open(m.AvroReport)
	test.ErrNil(t, err, "opening Avro report")
	defer f.Close()
	results, err := avro.ReadResults(f)
	test.ErrNil(t, err, "reading Avro report")
	if len(results) != 2 || results[0].Status != pds4kit.Written {
		t.Fatalf("unexpected Avro report: %+v", results)
	}

	stdout.Reset()
	m.JSONReport, m.AvroReport = "", ""
	report, err = m.Run(context.Background())
	test.ErrNil(t, err, "running again")
	if _, skipped, _ := report.Counts(); skipped != 1 {
		t.Fatalf("existing label was not skipped:\n%s", stdout)
	}

	rm := NewReportMain()
	rm.Ledger = m.Ledger
	rm.Failed = true
	rm.Stdout = &bytes.Buffer{}
	report, err = rm.Run()
	test.ErrNil(t, err, "reporting")
	if len(report.Results) != 1 || report.Results[0].Status != pds4kit.Failed {
		t.Fatalf("unexpected ledger report: %+v", report.Results)
	}
}

func TestMainErrors(t *testing.T) {
	m := NewMain()
	m.Log = pds4kit.NopLogger{}
	if _, err := m.Run(context.Background()); err == nil {
		t.Fatalf("expected an error without paths")
	}
	m.Paths = []string{setupVolume(t)}
	if _, err := m.Run(context.Background()); err == nil {
		t.Fatalf("expected an error without a template")
	}
	m.Template = filepath.Join("..", "templates", "iss.xml")
	m.Instrument = "rss"
	if _, err := m.Run(context.Background()); err == nil {
		t.Fatalf("expected an error for an unknown instrument")
	}
	if _, err := OpenLedger("sqlite", "x"); err == nil {
		t.Fatalf("expected an error for an unknown ledger kind")
	}
}

func TestMainCancelled(t *testing.T) {
	m := NewMain()
	m.Paths = []string{setupVolume(t)}
	m.Template = filepath.Join("..", "templates", "iss.xml")
	m.Log = pds4kit.NopLogger{}
	m.Stdout = &bytes.Buffer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := m.Run(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Results) != 0 {
		t.Fatalf("expected no results, got %+v", report.Results)
	}
}
