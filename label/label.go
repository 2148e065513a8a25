// Package label reads PDS3 labels into an ordered, nested keyword/value
// structure.
//
// A label is a sequence of "KEYWORD = value" statements terminated by END.
// OBJECT and GROUP statements open nested blocks which are closed by the
// matching END_OBJECT or END_GROUP. Values are decoded into a small set of Go
// types:
//
//	string         quoted text, 'symbols', bare symbolic literals and dates
//	int64          integers, including radix integers such as 16#FF#
//	float64        reals
//	Quantity       a number followed by a unit, e.g. 12.5 <km>
//	[]interface{}  sequences ( ... ) and sets { ... }
//	Pointer        the value of a ^NAME pointer statement
//	*Label         a nested OBJECT or GROUP block
package label

import (
	"fmt"
	"strconv"
	"strings"
)

// Label is an ordered set of keyword/value pairs. Labels are immutable once
// Parse has returned them.
type Label struct {
	// Kind is OBJECT or GROUP for nested blocks and empty at the top level.
	Kind string
	// Name is the value given to the OBJECT or GROUP statement.
	Name string

	keys []string
	vals map[string]interface{}
}

func newLabel(kind, name string) *Label {
	return &Label{
		Kind: kind,
		Name: name,
		vals: make(map[string]interface{}),
	}
}

// set stores val under key. A key which is already present gets a numeric
// suffix, so a second IMAGE object is stored as IMAGE_2.
func (l *Label) set(key string, val interface{}) {
	k := key
	for n := 2; ; n++ {
		if _, ok := l.vals[k]; !ok {
			break
		}
		k = key + "_" + strconv.Itoa(n)
	}
	l.keys = append(l.keys, k)
	l.vals[k] = val
}

// Keys returns the keywords of the label in source order.
func (l *Label) Keys() []string {
	ret := make([]string, len(l.keys))
	copy(ret, l.keys)
	return ret
}

// Len is the number of keywords at this level.
func (l *Label) Len() int { return len(l.keys) }

// Get walks the nested blocks named by path and returns the value found at
// the end of it.
func (l *Label) Get(path ...string) (interface{}, bool) {
	if len(path) == 0 {
		return l, true
	}
	cur := l
	for i, p := range path {
		v, ok := cur.vals[strings.ToUpper(p)]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		if cur, ok = v.(*Label); !ok {
			return nil, false
		}
	}
	return nil, false
}

// Object returns the nested block at path.
func (l *Label) Object(path ...string) (*Label, bool) {
	v, ok := l.Get(path...)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Label)
	return sub, ok
}

// String returns the value at path formatted as text. Quoted strings are
// returned without their quotes and with surrounding whitespace removed.
func (l *Label) String(path ...string) (string, bool) {
	v, ok := l.Get(path...)
	if !ok {
		return "", false
	}
	switch vt := v.(type) {
	case string:
		return strings.TrimSpace(vt), true
	case *Label:
		return vt.Name, true
	default:
		return FormatValue(v), true
	}
}

// Int returns the value at path as an integer. Reals are truncated.
func (l *Label) Int(path ...string) (int64, bool) {
	v, ok := l.Get(path...)
	if !ok {
		return 0, false
	}
	switch vt := v.(type) {
	case int64:
		return vt, true
	case float64:
		return int64(vt), true
	case Quantity:
		return int64(vt.Value), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(vt), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// Float returns the value at path as a real number.
func (l *Label) Float(path ...string) (float64, bool) {
	v, ok := l.Get(path...)
	if !ok {
		return 0, false
	}
	switch vt := v.(type) {
	case int64:
		return float64(vt), true
	case float64:
		return vt, true
	case Quantity:
		return vt.Value, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(vt), 64)
		return f, err == nil
	}
	return 0, false
}

// Strings returns the value at path as a list of strings. A scalar value is
// returned as a list of one.
func (l *Label) Strings(path ...string) []string {
	v, ok := l.Get(path...)
	if !ok {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		ret := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				ret = append(ret, strings.TrimSpace(s))
			} else {
				ret = append(ret, FormatValue(item))
			}
		}
		return ret
	}
	s, _ := l.String(path...)
	return []string{s}
}

// AsMap flattens the label into plain maps. Nested blocks become nested maps
// which also carry their block name under the key "NAME" unless the block
// itself defines NAME.
func (l *Label) AsMap() map[string]interface{} {
	ret := make(map[string]interface{}, len(l.keys)+1)
	for _, k := range l.keys {
		ret[k] = asPlain(l.vals[k])
	}
	if l.Kind != "" {
		if _, ok := ret["NAME"]; !ok {
			ret["NAME"] = l.Name
		}
	}
	return ret
}

func asPlain(v interface{}) interface{} {
	switch vt := v.(type) {
	case *Label:
		return vt.AsMap()
	case []interface{}:
		ret := make([]interface{}, len(vt))
		for i, item := range vt {
			ret[i] = asPlain(item)
		}
		return ret
	case string:
		return strings.TrimSpace(vt)
	}
	return v
}

// Quantity is a number with a unit.
type Quantity struct {
	Value float64
	Unit  string
}

// Float returns the numeric part of the quantity.
func (q Quantity) Float() float64 { return q.Value }

func (q Quantity) String() string {
	return strconv.FormatFloat(q.Value, 'g', -1, 64) + " <" + q.Unit + ">"
}

// Pointer is the value of a ^NAME statement. Offset is a 1-based record
// number unless Bytes is set, in which case it is a 1-based byte position.
// Offset is zero when the pointer names a file only.
type Pointer struct {
	File   string
	Offset int64
	Bytes  bool
}

// ByteOffset converts the pointer to a 0-based byte offset within its file.
func (p Pointer) ByteOffset(recordBytes int64) int64 {
	if p.Offset <= 0 {
		return 0
	}
	if p.Bytes {
		return p.Offset - 1
	}
	return (p.Offset - 1) * recordBytes
}

func (p Pointer) String() string {
	switch {
	case p.File == "":
		return strconv.FormatInt(p.Offset, 10)
	case p.Offset == 0:
		return strconv.Quote(p.File)
	}
	return fmt.Sprintf("(%q, %d)", p.File, p.Offset)
}

// FormatValue renders a decoded value back into its label text form.
func FormatValue(v interface{}) string {
	switch vt := v.(type) {
	case string:
		return vt
	case int64:
		return strconv.FormatInt(vt, 10)
	case float64:
		return strconv.FormatFloat(vt, 'g', -1, 64)
	case []interface{}:
		parts := make([]string, len(vt))
		for i, item := range vt {
			parts[i] = FormatValue(item)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Label:
		return vt.Name
	case fmt.Stringer:
		return vt.String()
	}
	return fmt.Sprintf("%v", v)
}
