// Package qube computes the byte layout of ISIS2 spectral cubes, as written
// for Cassini VIMS, and rewrites them without their suffix planes.
//
// A cube has three axes. Each axis holds CORE_ITEMS core values followed by
// SUFFIX_ITEMS suffix values (sideplanes, backplanes and bottomplanes). Core
// values are CORE_ITEM_BYTES wide. Every value lying in the suffix region of
// any axis is SUFFIX_BYTES wide. The first axis varies fastest.
package qube

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit/label"
)

// Layout describes where the pieces of a cube sit within its file.
type Layout struct {
	RecordBytes int64
	// Offset is the byte offset of the first cube value.
	Offset int64

	Axes        [3]string
	Core        [3]int64
	Suffix      [3]int64
	CoreBytes   int64
	SuffixBytes int64
}

// NewLayout reads the layout from a parsed cube label. The label must carry
// RECORD_BYTES, a ^QUBE pointer, and a QUBE (or SPECTRAL_QUBE) object.
func NewLayout(l *label.Label) (*Layout, error) {
	lay := &Layout{SuffixBytes: 4}
	var ok bool
	if lay.RecordBytes, ok = l.Int("RECORD_BYTES"); !ok || lay.RecordBytes <= 0 {
		return nil, errors.New("missing RECORD_BYTES")
	}
	v, ok := l.Get("^QUBE")
	if !ok {
		if v, ok = l.Get("^SPECTRAL_QUBE"); !ok {
			return nil, errors.New("missing ^QUBE pointer")
		}
	}
	ptr, ok := v.(label.Pointer)
	if !ok {
		return nil, errors.Errorf("^QUBE is not a pointer: %v", v)
	}
	lay.Offset = ptr.ByteOffset(lay.RecordBytes)

	q, ok := l.Object("QUBE")
	if !ok {
		if q, ok = l.Object("SPECTRAL_QUBE"); !ok {
			return nil, errors.New("missing QUBE object")
		}
	}
	names := q.Strings("AXIS_NAME")
	if len(names) != 3 {
		return nil, errors.Errorf("expected 3 axes, got %v", names)
	}
	copy(lay.Axes[:], names)

	core, err := triple(q, "CORE_ITEMS", true)
	if err != nil {
		return nil, err
	}
	lay.Core = core
	if lay.Suffix, err = triple(q, "SUFFIX_ITEMS", false); err != nil {
		return nil, err
	}
	if lay.CoreBytes, ok = q.Int("CORE_ITEM_BYTES"); !ok || lay.CoreBytes <= 0 {
		return nil, errors.New("missing CORE_ITEM_BYTES")
	}
	if n, ok := q.Int("SUFFIX_BYTES"); ok {
		lay.SuffixBytes = n
	}
	if err := lay.validate(); err != nil {
		return nil, err
	}
	return lay, nil
}

// Limits on the cubes a Layout handles. Larger values in a label are taken
// to be corrupt.
const (
	MaxSize     = 1 << 40
	MaxRowBytes = 1 << 26
)

// validate checks that every size derived from the layout is positive where
// it must be and fits within MaxSize, so that none of them overflow.
func (l *Layout) validate() error {
	if l.RecordBytes <= 0 || l.CoreBytes <= 0 || l.SuffixBytes < 0 || l.Offset < 0 {
		return errors.Errorf("invalid cube layout: record bytes %d, core item bytes %d, suffix bytes %d, offset %d",
			l.RecordBytes, l.CoreBytes, l.SuffixBytes, l.Offset)
	}
	for i := range l.Core {
		if l.Core[i] < 0 || l.Suffix[i] < 0 {
			return errors.Errorf("invalid item counts on axis %d: %d core, %d suffix", i, l.Core[i], l.Suffix[i])
		}
	}
	var err error
	mul := func(a, b int64) int64 {
		if err != nil || a == 0 || b == 0 {
			return 0
		}
		if a > MaxSize/b {
			err = errors.Errorf("cube larger than %d bytes", int64(MaxSize))
			return 0
		}
		return a * b
	}
	add := func(a, b int64) int64 {
		if err == nil && a+b > MaxSize {
			err = errors.Errorf("cube larger than %d bytes", int64(MaxSize))
		}
		return a + b
	}
	row := mul(l.Core[0], l.CoreBytes)
	rowCore := add(row, mul(l.Suffix[0], l.SuffixBytes))
	rowSuffix := mul(add(l.Core[0], l.Suffix[0]), l.SuffixBytes)
	planeCore := add(mul(l.Core[1], rowCore), mul(l.Suffix[1], rowSuffix))
	planeSuffix := mul(add(l.Core[1], l.Suffix[1]), rowSuffix)
	add(mul(l.Core[2], planeCore), mul(l.Suffix[2], planeSuffix))
	if err != nil {
		return err
	}
	if row > MaxRowBytes {
		return errors.Errorf("cube rows of %d bytes exceed %d", row, int64(MaxRowBytes))
	}
	return nil
}

func triple(q *label.Label, key string, required bool) (ret [3]int64, err error) {
	v, ok := q.Get(key)
	if !ok {
		if required {
			return ret, errors.Errorf("missing %s", key)
		}
		return ret, nil
	}
	list, ok := v.([]interface{})
	if !ok || len(list) != 3 {
		return ret, errors.Errorf("%s should hold 3 values, got %v", key, v)
	}
	for i, item := range list {
		n, ok := item.(int64)
		if !ok || n < 0 {
			return ret, errors.Errorf("%s[%d] is not a count: %v", key, i, item)
		}
		ret[i] = n
	}
	return ret, nil
}

// Order names the storage order, BSQ, BIL or BIP, or returns the axis names
// joined with commas for anything else.
func (l *Layout) Order() string {
	switch strings.Join(l.Axes[:], ",") {
	case "SAMPLE,LINE,BAND":
		return "BSQ"
	case "SAMPLE,BAND,LINE":
		return "BIL"
	case "BAND,SAMPLE,LINE":
		return "BIP"
	}
	return strings.Join(l.Axes[:], ",")
}

func (l *Layout) rowCore() int64 {
	return l.Core[0]*l.CoreBytes + l.Suffix[0]*l.SuffixBytes
}

func (l *Layout) rowSuffix() int64 {
	return (l.Core[0] + l.Suffix[0]) * l.SuffixBytes
}

func (l *Layout) planeCore() int64 {
	return l.Core[1]*l.rowCore() + l.Suffix[1]*l.rowSuffix()
}

func (l *Layout) planeSuffix() int64 {
	return (l.Core[1] + l.Suffix[1]) * l.rowSuffix()
}

// Size is the number of bytes the cube occupies, suffixes included.
func (l *Layout) Size() int64 {
	return l.Core[2]*l.planeCore() + l.Suffix[2]*l.planeSuffix()
}

// CoreSize is the number of bytes of core values alone.
func (l *Layout) CoreSize() int64 {
	return l.Core[0] * l.Core[1] * l.Core[2] * l.CoreBytes
}

// Records is the number of whole records needed to hold n bytes.
func (l *Layout) Records(n int64) int64 {
	return (n + l.RecordBytes - 1) / l.RecordBytes
}

// ExtractCore copies the core values of the cube in r to w in their stored
// order, dropping all suffix values, then pads w with zeros to a whole
// number of records. It returns the number of bytes written.
func (l *Layout) ExtractCore(r io.ReaderAt, w io.Writer) (int64, error) {
	if err := l.validate(); err != nil {
		return 0, err
	}
	row := make([]byte, l.Core[0]*l.CoreBytes)
	var written int64
	for k := int64(0); k < l.Core[2]; k++ {
		for j := int64(0); j < l.Core[1]; j++ {
			off := l.Offset + k*l.planeCore() + j*l.rowCore()
			n, err := r.ReadAt(row, off)
			if n < len(row) {
				if err == nil || err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return written, errors.Wrapf(err, "reading cube row at byte %d", off)
			}
			m, err := w.Write(row)
			written += int64(m)
			if err != nil {
				return written, errors.Wrap(err, "writing core row")
			}
		}
	}
	pad := l.Records(written)*l.RecordBytes - written
	if pad > 0 {
		m, err := w.Write(make([]byte, pad))
		written += int64(m)
		if err != nil {
			return written, errors.Wrap(err, "padding final record")
		}
	}
	return written, nil
}
