package pds4kit

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit/label"
	"golang.org/x/sync/errgroup"
)

// Migrator moves items from a Source through a LabelReader, a Mapper and a
// Renderer into a Sink.
type Migrator struct {
	// Concurrency is the number of items migrated at once. The report is in
	// source order regardless.
	Concurrency int
	// Replace overwrites labels which already exist in the sink.
	Replace bool

	Ledger Ledger
	Log    Logger
	Stats  Statter

	src      Source
	reader   LabelReader
	mapper   Mapper
	renderer Renderer
	sink     Sink
}

// NewMigrator gets a new Migrator with a concurrency of one, no ledger, and
// no logging.
func NewMigrator(source Source, reader LabelReader, mapper Mapper, renderer Renderer, sink Sink) *Migrator {
	return &Migrator{
		Concurrency: 1,
		Log:         NopLogger{},
		Stats:       NopStatter{},
		src:         source,
		reader:      reader,
		mapper:      mapper,
		renderer:    renderer,
		sink:        sink,
	}
}

type sequenced struct {
	seq int
	res Result
}

// Run migrates every item of the source. A failing item is logged, recorded
// in the report, and does not stop the run. Run stops early when ctx is done
// or the source fails, and returns the partial report along with the error.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{Started: time.Now()}
	var (
		mu       sync.Mutex
		seq      int
		srcErr   error
		found    []sequenced
		inflight int
	)
	next := func() (*Item, int, error) {
		mu.Lock()
		defer mu.Unlock()
		if srcErr != nil {
			return nil, 0, srcErr
		}
		item, err := m.src.Record()
		if err != nil {
			srcErr = err
			return nil, 0, err
		}
		seq++
		inflight++
		m.Stats.Gauge("migrate.inflight", float64(inflight), 1)
		return item, seq, nil
	}

	workers := m.Concurrency
	if workers < 1 {
		workers = 1
	}
	eg := errgroup.Group{}
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			for ctx.Err() == nil {
				item, n, err := next()
				if err != nil {
					return nil
				}
				res := m.Migrate(item)
				m.record(res)
				mu.Lock()
				found = append(found, sequenced{seq: n, res: res})
				inflight--
				m.Stats.Gauge("migrate.inflight", float64(inflight), 1)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	for _, f := range found {
		report.Add(f.res)
	}
	report.Finished = time.Now()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if srcErr != io.EOF {
		return report, errors.Wrap(srcErr, "getting next item")
	}
	return report, nil
}

// record logs and counts a result and writes it to the ledger.
func (m *Migrator) record(res Result) {
	switch res.Status {
	case Written:
		m.Log.Debugf("wrote %s (%s)", res.Output, Bytes(res.Bytes))
		m.Stats.Count("migrate.written", 1, 1)
		m.Stats.Count("migrate.bytes", res.Bytes, 1)
		m.Stats.Timing("migrate.duration", res.Duration, 1)
	case Skipped:
		m.Log.Debugf("skipped %s: %s exists", res.Path, res.Output)
		m.Stats.Count("migrate.skipped", 1, 1)
	case Failed:
		m.Log.Printf("migrating %s: %v", res.Path, res.Err)
		m.Log.Debugf("%+v", res.Err)
		m.Stats.Count("migrate.failed", 1, 1)
	}
	if m.Ledger != nil {
		if err := m.Ledger.Put(res); err != nil {
			m.Log.Printf("recording result for %s: %v", res.Path, err)
		}
	}
}

// Migrate runs a single item through the pipeline. A panic in any stage is
// recovered and reported as a failure of the item.
func (m *Migrator) Migrate(item *Item) (res Result) {
	start := time.Now()
	res = Result{Path: item.DataPath, Output: item.OutputPath, At: start}
	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Status = Failed
			res.Message = res.Err.Error()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			res.Err = errors.Errorf("panic: %v", r)
		}
	}()

	if !m.Replace {
		exists, err := m.sink.Exists(item)
		if err != nil {
			res.Err = errors.Wrap(err, "checking for existing label")
			return res
		}
		if exists {
			res.Status = Skipped
			return res
		}
	}
	l, err := m.reader.ReadLabel(item)
	if err != nil {
		res.Err = errors.Wrap(err, "reading label")
		return res
	}
	dict, err := m.mapper.Map(l, item)
	if err != nil {
		res.Err = errors.Wrap(err, "mapping label")
		return res
	}
	data, err := m.renderer.Render(dict)
	if err != nil {
		res.Err = errors.Wrap(err, "rendering label")
		return res
	}
	if err := m.sink.Write(item, data); err != nil {
		res.Err = errors.Wrap(err, "writing label")
		return res
	}
	res.Status = Written
	res.Bytes = int64(len(data))
	return res
}

// LabelFileReader reads detached PDS3 labels from disk. Items without a
// label file, such as cubes with attached labels, are read from the data
// file instead.
type LabelFileReader struct{}

// ReadLabel implements LabelReader.
func (LabelFileReader) ReadLabel(item *Item) (*label.Label, error) {
	path := item.LabelPath
	if path == "" {
		path = item.DataPath
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		path = item.DataPath
	}
	return label.ParseFile(path)
}
