package qube

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit/label"
)

// Main contains the configuration for stripping the suffix planes from a
// cube.
type Main struct {
	In      string `help:"Cube file to read."`
	Out     string `help:"File to write the core to."`
	Label   string `help:"Detached label of the cube. Without one the label attached to the cube is read."`
	Replace bool   `help:"Replace the output file if it exists."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{}
}

// Run writes the core of In to Out and returns its layout and the number of
// bytes written.
func (m *Main) Run() (*Layout, int64, error) {
	if m.In == "" || m.Out == "" {
		return nil, 0, errors.New("need both an input and an output file")
	}
	lblPath := m.Label
	if lblPath == "" {
		lblPath = m.In
	}
	l, err := label.ParseFile(lblPath)
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading cube label")
	}
	lay, err := NewLayout(l)
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading cube layout")
	}

	in, err := os.Open(m.In)
	if err != nil {
		return nil, 0, errors.Wrap(err, "opening cube")
	}
	defer in.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if m.Replace {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	out, err := os.OpenFile(m.Out, flags, 0644)
	if err != nil {
		return nil, 0, errors.Wrap(err, "creating output")
	}
	n, err := lay.ExtractCore(in, out)
	if err != nil {
		out.Close()
		os.Remove(m.Out)
		return nil, n, err
	}
	return lay, n, errors.Wrap(out.Close(), "closing output")
}
