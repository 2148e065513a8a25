package pds4kit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
)

// Status is the outcome of migrating one item.
type Status int

// Item outcomes.
const (
	Written Status = iota
	Skipped
	Failed
)

var statusNames = []string{"written", "skipped", "failed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if string(text) == name {
			*s = Status(i)
			return nil
		}
	}
	return errors.Errorf("unknown status %q", text)
}

// Result records what happened to one item.
type Result struct {
	Path     string        `json:"path"`
	Output   string        `json:"output,omitempty"`
	Status   Status        `json:"status"`
	Err      error         `json:"-"`
	Message  string        `json:"error,omitempty"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Report collects the results of a migration run in source order.
type Report struct {
	Results  []Result  `json:"results"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Add appends a result.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Counts returns the number of items written, skipped and failed.
func (r *Report) Counts() (written, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case Written:
			written++
		case Skipped:
			skipped++
		case Failed:
			failed++
		}
	}
	return written, skipped, failed
}

// Failures returns the failed results.
func (r *Report) Failures() []Result {
	var ret []Result
	for _, res := range r.Results {
		if res.Status == Failed {
			ret = append(ret, res)
		}
	}
	return ret
}

// Bytes is the total size of the labels written.
func (r *Report) Bytes() int64 {
	var n int64
	for _, res := range r.Results {
		n += res.Bytes
	}
	return n
}

// ExitCode is 0 when no item failed and 1 otherwise.
func (r *Report) ExitCode() int {
	if _, _, failed := r.Counts(); failed > 0 {
		return 1
	}
	return 0
}

// WriteText writes one line per item followed by a summary.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, res := range r.Results {
		var detail string
		switch res.Status {
		case Written:
			detail = fmt.Sprintf("%s\t%s\t%s", res.Output, Bytes(res.Bytes), res.Duration.Round(time.Millisecond))
		case Skipped:
			detail = res.Output + "\t\t"
		case Failed:
			detail = oneLine(res.Message) + "\t\t"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Status, res.Path, detail); err != nil {
			return errors.Wrap(err, "writing report")
		}
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "writing report")
	}
	written, skipped, failed := r.Counts()
	_, err := fmt.Fprintf(w, "%d written, %d skipped, %d failed (%s in %s)\n",
		written, skipped, failed, Bytes(r.Bytes()), r.Finished.Sub(r.Started).Round(time.Millisecond))
	return errors.Wrap(err, "writing report")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WriteJSON writes the report as an indented JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(r), "encoding report")
}

// Errors collects several errors into one.
type Errors []error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil if e holds no errors, and e otherwise.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
