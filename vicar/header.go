// Package vicar reads the ASCII label at the front of a VICAR image file.
//
// The label starts with LBLSIZE=n, where n is the size in bytes of the whole
// label, followed by whitespace separated KEY=value items. History tasks
// repeat keys such as TASK, USER and DAT_TIM, so the header keeps every
// occurrence in order.
package vicar

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Item is a single KEY=value pair from the label.
type Item struct {
	Key   string
	Value interface{}
}

// Header holds the items of a VICAR label.
type Header struct {
	Size  int
	Items []Item
}

// MaxLabelSize is the largest LBLSIZE ReadHeader accepts.
const MaxLabelSize = 1 << 20

// ReadHeader reads the label from the start of r. On return r has been
// consumed up to at least the end of the label.
func ReadHeader(r io.Reader) (*Header, error) {
	br := bufio.NewReader(r)
	prefix, err := br.Peek(40)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, errors.Wrap(err, "reading label prefix")
	}
	size, err := lblsize(prefix)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, errors.Wrapf(err, "reading %d byte label", size)
	}
	items, err := parseItems(buf)
	if err != nil {
		return nil, err
	}
	return &Header{Size: size, Items: items}, nil
}

func lblsize(prefix []byte) (int, error) {
	if !bytes.HasPrefix(prefix, []byte("LBLSIZE=")) {
		return 0, errors.New("not a VICAR file: missing LBLSIZE")
	}
	rest := prefix[len("LBLSIZE="):]
	end := bytes.IndexAny(rest, " \x00")
	if end < 0 {
		end = len(rest)
	}
	size, err := strconv.Atoi(string(rest[:end]))
	if err != nil || size <= 0 {
		return 0, errors.Errorf("bad LBLSIZE %q", rest[:end])
	}
	if size > MaxLabelSize {
		return 0, errors.Errorf("LBLSIZE %d exceeds %d", size, MaxLabelSize)
	}
	return size, nil
}

// Get returns the first value stored under key.
func (h *Header) Get(key string) (interface{}, bool) {
	key = strings.ToUpper(key)
	for _, it := range h.Items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return nil, false
}

// GetAll returns every value stored under key, in label order.
func (h *Header) GetAll(key string) []interface{} {
	key = strings.ToUpper(key)
	var ret []interface{}
	for _, it := range h.Items {
		if it.Key == key {
			ret = append(ret, it.Value)
		}
	}
	return ret
}

// Int returns the first value under key as an integer.
func (h *Header) Int(key string) (int64, bool) {
	v, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch vt := v.(type) {
	case int64:
		return vt, true
	case float64:
		return int64(vt), true
	}
	return 0, false
}

// String returns the first value under key as text.
func (h *Header) String(key string) (string, bool) {
	v, ok := h.Get(key)
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return formatValue(v), true
}

// Strings returns the first value under key as a list of strings.
func (h *Header) Strings(key string) []string {
	v, ok := h.Get(key)
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return []string{formatValue(v)}
	}
	ret := make([]string, len(list))
	for i, item := range list {
		ret[i] = formatValue(item)
	}
	return ret
}

// RecordSize is the size of one image record, RECSIZE.
func (h *Header) RecordSize() int64 {
	n, _ := h.Int("RECSIZE")
	return n
}

// ImageOffset is the byte offset of the first image line, past the label
// and any binary header records.
func (h *Header) ImageOffset() int64 {
	nlb, _ := h.Int("NLB")
	return int64(h.Size) + nlb*h.RecordSize()
}

// AsMap returns the first value of every key.
func (h *Header) AsMap() map[string]interface{} {
	ret := make(map[string]interface{}, len(h.Items))
	for _, it := range h.Items {
		if _, ok := ret[it.Key]; !ok {
			ret[it.Key] = it.Value
		}
	}
	return ret
}

func formatValue(v interface{}) string {
	switch vt := v.(type) {
	case string:
		return vt
	case int64:
		return strconv.FormatInt(vt, 10)
	case float64:
		return strconv.FormatFloat(vt, 'g', -1, 64)
	}
	return ""
}

type scanner struct {
	buf []byte
	pos int
}

func parseItems(buf []byte) ([]Item, error) {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	s := &scanner{buf: buf}
	var items []Item
	for {
		s.skipSpace()
		if s.pos >= len(s.buf) {
			return items, nil
		}
		eq := bytes.IndexByte(s.buf[s.pos:], '=')
		if eq < 0 {
			return nil, errors.Errorf("item without '=' at byte %d", s.pos)
		}
		key := strings.ToUpper(strings.TrimSpace(string(s.buf[s.pos : s.pos+eq])))
		if key == "" || strings.ContainsAny(key, " '") {
			return nil, errors.Errorf("bad key %q at byte %d", key, s.pos)
		}
		s.pos += eq + 1
		s.skipSpace()
		v, err := s.value()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", key)
		}
		items = append(items, Item{Key: key, Value: v})
	}
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.buf) && (s.buf[s.pos] == ' ' || s.buf[s.pos] == '\n' || s.buf[s.pos] == '\t') {
		s.pos++
	}
}

func (s *scanner) value() (interface{}, error) {
	if s.pos >= len(s.buf) {
		return nil, errors.New("missing value")
	}
	switch s.buf[s.pos] {
	case '\'':
		return s.quoted()
	case '(':
		s.pos++
		list := make([]interface{}, 0)
		for {
			s.skipSpace()
			v, err := s.value()
			if err != nil {
				return nil, err
			}
			list = append(list, v)
			s.skipSpace()
			if s.pos >= len(s.buf) {
				return nil, errors.New("unterminated list")
			}
			c := s.buf[s.pos]
			s.pos++
			if c == ')' {
				return list, nil
			}
			if c != ',' {
				return nil, errors.Errorf("unexpected %q in list", c)
			}
		}
	}
	start := s.pos
	for s.pos < len(s.buf) && !strings.ContainsRune(" \t\n,)", rune(s.buf[s.pos])) {
		s.pos++
	}
	tok := string(s.buf[start:s.pos])
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f, nil
	}
	return tok, nil
}

// quoted reads a single quoted string. A doubled quote inside it stands for
// one quote character.
func (s *scanner) quoted() (string, error) {
	s.pos++
	var sb strings.Builder
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		s.pos++
		if c != '\'' {
			sb.WriteByte(c)
			continue
		}
		if s.pos < len(s.buf) && s.buf[s.pos] == '\'' {
			sb.WriteByte('\'')
			s.pos++
			continue
		}
		return sb.String(), nil
	}
	return "", errors.New("unterminated string")
}
