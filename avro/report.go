// Package avro writes migration reports as Avro object container files, so
// batch results can be loaded by the same tools that read the rest of the
// archive's bookkeeping.
package avro

import (
	"io"
	"time"

	"github.com/linkedin/goavro"
	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
)

// ResultSchema describes one migrated item. Times are milliseconds since the
// Unix epoch and durations are nanoseconds.
const ResultSchema = `{
  "type": "record",
  "name": "Result",
  "namespace": "pds4kit",
  "fields": [
    {"name": "path", "type": "string"},
    {"name": "output", "type": "string"},
    {"name": "status", "type": {"type": "enum", "name": "Status", "symbols": ["written", "skipped", "failed"]}},
    {"name": "error", "type": "string"},
    {"name": "bytes", "type": "long"},
    {"name": "duration", "type": "long"},
    {"name": "at", "type": "long"}
  ]
}`

// WriteReport writes every result of the report to w as a deflate compressed
// object container file.
func WriteReport(w io.Writer, r *pds4kit.Report) error {
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Schema:          ResultSchema,
		CompressionName: "deflate",
	})
	if err != nil {
		return errors.Wrap(err, "creating container writer")
	}
	batch := make([]interface{}, 0, len(r.Results))
	for _, res := range r.Results {
		batch = append(batch, map[string]interface{}{
			"path":     res.Path,
			"output":   res.Output,
			"status":   res.Status.String(),
			"error":    res.Message,
			"bytes":    res.Bytes,
			"duration": int64(res.Duration),
			"at":       res.At.UnixNano() / int64(time.Millisecond),
		})
	}
	return errors.Wrap(ocf.Append(batch), "appending results")
}

// ReadResults reads back a file written by WriteReport.
func ReadResults(r io.Reader) ([]pds4kit.Result, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "creating container reader")
	}
	var ret []pds4kit.Result
	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return nil, errors.Wrap(err, "reading result")
		}
		rec, ok := datum.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("unexpected datum type %T", datum)
		}
		res, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		ret = append(ret, res)
	}
	return ret, errors.Wrap(ocf.Err(), "scanning results")
}

func fromRecord(rec map[string]interface{}) (res pds4kit.Result, err error) {
	str := func(name string) string {
		s, _ := rec[name].(string)
		return s
	}
	long := func(name string) int64 {
		n, _ := rec[name].(int64)
		return n
	}
	res.Path = str("path")
	res.Output = str("output")
	res.Message = str("error")
	if err := res.Status.UnmarshalText([]byte(str("status"))); err != nil {
		return res, err
	}
	res.Bytes = long("bytes")
	res.Duration = time.Duration(long("duration"))
	ms := long("at")
	res.At = time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
	return res, nil
}
