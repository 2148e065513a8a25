package file

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/avro"
	"github.com/rms-node/pds4kit/aws/s3"
	"github.com/rms-node/pds4kit/boltdb"
	"github.com/rms-node/pds4kit/instrument"
	"github.com/rms-node/pds4kit/leveldb"
	"github.com/rms-node/pds4kit/target"
	"github.com/rms-node/pds4kit/termstat"
)

// Main contains the configuration for a migration of data files on disk.
type Main struct {
	Paths       []string `help:"Files or directories to migrate."`
	Extensions  []string `help:"Data file extensions to look for in directories (case insensitive)."`
	Template    string   `help:"PDS4 label template file."`
	Instrument  string   `help:"Instrument of the data files: iss, uvis, vims or cirs."`
	Bundle      string   `help:"Bundle part of generated logical identifiers. Defaults to cassini_<instrument>."`
	Collection  string   `help:"Collection part of generated logical identifiers."`
	OutputRoot  string   `help:"Write labels under this directory, mirroring the input tree, instead of next to the data."`
	Replace     bool     `help:"Replace labels which already exist."`
	Concurrency int      `help:"Number of files to migrate at once."`
	Targets     string   `help:"TOML file of additional targets, CIMS codes and label corrections."`
	Ledger      string   `help:"Record every result in a ledger at this path."`
	LedgerKind  string   `help:"Ledger storage: leveldb or bolt."`
	S3Bucket    string   `help:"Upload labels to this S3 bucket instead of writing them to disk."`
	S3Region    string   `help:"AWS region of the S3 bucket."`
	S3Prefix    string   `help:"Prefix for S3 object keys."`
	JSONReport  string   `help:"Write the batch report as JSON to this file."`
	AvroReport  string   `help:"Write the batch report as an Avro container file to this file."`
	Progress    bool     `help:"Print running counts to stderr."`
	Verbose     bool     `help:"Log every file, not only failures."`

	Log    pds4kit.Logger `flag:"-"`
	Stdout io.Writer      `flag:"-"`
	Stderr io.Writer      `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Extensions:  append([]string(nil), DefaultExtensions...),
		Instrument:  "iss",
		Collection:  "data_raw",
		Concurrency: 1,
		LedgerKind:  "leveldb",
		S3Region:    "us-west-2",
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Run migrates every data file found under Paths and writes the reports. The
// report is returned even when some files failed; the error is for problems
// with the run as a whole.
func (m *Main) Run(ctx context.Context) (report *pds4kit.Report, err error) {
	if len(m.Paths) == 0 {
		return nil, errors.New("no paths to migrate")
	}
	if m.Template == "" {
		return nil, errors.New("no template given")
	}
	log := m.Log
	if log == nil {
		zl, err := pds4kit.NewZapLogger(m.Verbose)
		if err != nil {
			return nil, errors.Wrap(err, "building logger")
		}
		defer zl.Sync()
		log = zl
	}

	tables := target.NewTables()
	if m.Targets != "" {
		extra, err := target.LoadTOML(m.Targets)
		if err != nil {
			return nil, errors.Wrap(err, "loading targets")
		}
		if tables, err = tables.Merge(extra); err != nil {
			return nil, errors.Wrap(err, "merging targets")
		}
	}
	mapper, err := instrument.New(m.Instrument, instrument.Common{
		Bundle:     m.Bundle,
		Collection: m.Collection,
		Resolver:   target.NewResolver(tables, log),
	})
	if err != nil {
		return nil, err
	}
	renderer, err := pds4kit.NewTemplateRenderer(m.Template, instrument.Funcs(tables), log)
	if err != nil {
		return nil, err
	}
	src, err := NewSource(
		OptSrcPaths(m.Paths...),
		OptSrcExtensions(m.Extensions...),
		OptSrcOutputRoot(m.OutputRoot),
	)
	if err != nil {
		return nil, errors.Wrap(err, "getting file source")
	}
	log.Printf("found %d data files", src.Len())

	var sink pds4kit.Sink = &Sink{}
	if m.S3Bucket != "" {
		sink, err = s3.NewSink(
			s3.OptSinkBucket(m.S3Bucket),
			s3.OptSinkRegion(m.S3Region),
			s3.OptSinkPrefix(m.S3Prefix),
			s3.OptSinkRoot(m.OutputRoot),
		)
		if err != nil {
			return nil, errors.Wrap(err, "getting s3 sink")
		}
	}

	migrator := pds4kit.NewMigrator(src, pds4kit.LabelFileReader{}, mapper, renderer, sink)
	migrator.Concurrency = m.Concurrency
	migrator.Replace = m.Replace
	migrator.Log = log
	if m.Ledger != "" {
		ledger, err := OpenLedger(m.LedgerKind, m.Ledger)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := ledger.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "closing ledger")
			}
		}()
		migrator.Ledger = ledger
	}
	if m.Progress {
		stats := termstat.NewCollector(m.Stderr, time.Second)
		defer stats.Close()
		migrator.Stats = stats
	}

	report, runErr := migrator.Run(ctx)
	if err := m.writeReports(report); err != nil {
		return report, err
	}
	return report, runErr
}

func (m *Main) writeReports(report *pds4kit.Report) error {
	var errs pds4kit.Errors
	if m.Stdout != nil {
		if err := report.WriteText(m.Stdout); err != nil {
			errs = append(errs, err)
		}
	}
	if m.JSONReport != "" {
		errs = append(errs, writeFile(m.JSONReport, report.WriteJSON))
	}
	if m.AvroReport != "" {
		errs = append(errs, writeFile(m.AvroReport, func(w io.Writer) error {
			return avro.WriteReport(w, report)
		}))
	}
	var ret pds4kit.Errors
	for _, err := range errs {
		if err != nil {
			ret = append(ret, err)
		}
	}
	return ret.Err()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating report")
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}

// Ledger is a ledger that can also be read back.
type Ledger interface {
	pds4kit.Ledger
	pds4kit.LedgerReader
}

// OpenLedger opens a leveldb ledger directory or a bolt ledger file.
func OpenLedger(kind, path string) (Ledger, error) {
	switch strings.ToLower(kind) {
	case "", "leveldb":
		l, err := leveldb.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening leveldb ledger")
		}
		return l, nil
	case "bolt", "boltdb":
		l, err := boltdb.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening bolt ledger")
		}
		return l, nil
	}
	return nil, errors.Errorf("unknown ledger kind %q", kind)
}

// ReportMain contains the configuration for reporting on earlier runs from
// their ledger.
type ReportMain struct {
	Ledger     string `help:"Ledger path."`
	LedgerKind string `help:"Ledger storage: leveldb or bolt."`
	Prefix     string `help:"Only report data files whose path starts with this."`
	Failed     bool   `help:"Only report failures."`
	JSON       bool   `help:"Write JSON instead of text."`

	Stdout io.Writer `flag:"-"`
}

// NewReportMain gets a new ReportMain with the default configuration.
func NewReportMain() *ReportMain {
	return &ReportMain{
		LedgerKind: "leveldb",
		Stdout:     os.Stdout,
	}
}

// Run writes the results kept in the ledger.
func (m *ReportMain) Run() (*pds4kit.Report, error) {
	if m.Ledger == "" {
		return nil, errors.New("no ledger given")
	}
	ledger, err := OpenLedger(m.LedgerKind, m.Ledger)
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	report := &pds4kit.Report{}
	err = ledger.Each(m.Prefix, func(res pds4kit.Result) error {
		if m.Failed && res.Status != pds4kit.Failed {
			return nil
		}
		report.Add(res)
		if report.Started.IsZero() || res.At.Before(report.Started) {
			report.Started = res.At
		}
		if end := res.At.Add(res.Duration); end.After(report.Finished) {
			report.Finished = end
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading ledger")
	}
	if m.JSON {
		return report, report.WriteJSON(m.Stdout)
	}
	return report, report.WriteText(m.Stdout)
}
