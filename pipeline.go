package pds4kit

import (
	"github.com/rms-node/pds4kit/label"
	"github.com/rms-node/pds4kit/template"
)

// Item is one data product to migrate: the data file, the PDS3 label that
// describes it, and where its PDS4 label should go.
type Item struct {
	DataPath   string
	LabelPath  string
	OutputPath string
}

// Source is the interface for getting items one at a time. Record returns
// io.EOF once every item has been returned. Implementations of Source should
// be thread safe.
type Source interface {
	Record() (*Item, error)
}

// LabelReader reads the PDS3 label of an item.
type LabelReader interface {
	ReadLabel(item *Item) (*label.Label, error)
}

// Mapper is the interface for turning a parsed PDS3 label into the lookup
// dictionary a template is expanded against. Mappers usually consult a
// target.Resolver and carry the instrument specific knowledge needed to
// derive PDS4 values, such as wavelength ranges, from PDS3 keywords.
// Implementations of Mapper should be thread safe.
type Mapper interface {
	Map(l *label.Label, item *Item) (template.Dict, error)
}

// Renderer turns a lookup dictionary into the bytes of a PDS4 label.
type Renderer interface {
	Render(dict template.Dict) ([]byte, error)
}

// Sink stores generated labels.
type Sink interface {
	// Exists reports whether a label is already stored for the item.
	Exists(item *Item) (bool, error)
	Write(item *Item, data []byte) error
}

// Ledger keeps a durable record of results across runs.
type Ledger interface {
	Put(r Result) error
	Close() error
}

// LedgerReader walks the results kept by a Ledger in path order, visiting
// only paths that start with prefix.
type LedgerReader interface {
	Each(prefix string, fn func(Result) error) error
}
