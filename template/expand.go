package template

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// RawPrefix marks a string that is written to the output without escaping.
// Use Raw rather than building such strings by hand.
const RawPrefix = "\x00raw\x00"

// Raw returns s marked for verbatim output. It is meant for XML fragments
// produced by hooks.
func Raw(s string) string {
	if strings.HasPrefix(s, RawPrefix) {
		return s
	}
	return RawPrefix + s
}

// IsRaw reports whether s was marked by Raw.
func IsRaw(s string) bool {
	return strings.HasPrefix(s, RawPrefix)
}

// EvalError describes a slot that failed during expansion.
type EvalError struct {
	Template string
	Line     int
	Column   int
	Source   string
	Err      error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s:%d:%d: evaluating $%s$: %v", e.Template, e.Line, e.Column, e.Source, e.Err)
}

// Expand evaluates the template against dict, which assignment slots may
// modify, and returns the generated text. The first failing slot stops the
// expansion; it is logged to t.Log if set and returned as an *EvalError.
func (t *Template) Expand(dict Dict, funcs FuncMap) (string, error) {
	if dict == nil {
		dict = Dict{}
	}
	s := &state{dict: dict, funcs: funcs}
	var sb strings.Builder
	for _, sec := range t.Sections {
		if err := t.section(&sb, s, sec); err != nil {
			if t.Log != nil {
				t.Log.Printf("template error: %v", err)
			}
			return "", err
		}
	}
	return sb.String(), nil
}

func (t *Template) section(sb *strings.Builder, s *state, sec *Section) error {
	switch sec.Kind {
	case Once:
		return t.lines(sb, s, sec.Lines)
	case If:
		v, err := t.eval(s, sec.Guard)
		if err != nil {
			return err
		}
		if !Truth(v) {
			return nil
		}
		return t.lines(sb, s, sec.Lines)
	case ForEach:
		v, err := t.eval(s, sec.Guard)
		if err != nil {
			return err
		}
		items, err := iterate(v)
		if err != nil {
			return t.wrap(sec.Guard, err)
		}
		defer func() { s.iter = nil }()
		for i, item := range items {
			s.iter = map[string]interface{}{
				"VALUE":  item,
				"INDEX":  int64(i),
				"LENGTH": int64(len(items)),
			}
			if err := t.lines(sb, s, sec.Lines); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Template) lines(sb *strings.Builder, s *state, lines []Line) error {
	var lb strings.Builder
	for _, line := range lines {
		lb.Reset()
		for _, p := range line.Pieces {
			if p.Slot == nil {
				lb.WriteString(p.Text)
				continue
			}
			v, err := t.eval(s, p.Slot)
			if err != nil {
				return err
			}
			if p.Slot.Assign != "" {
				s.dict[p.Slot.Assign] = v
				continue
			}
			text, err := Format(v, true)
			if err != nil {
				return t.wrap(p.Slot, err)
			}
			lb.WriteString(text)
		}
		if !line.quiet {
			sb.WriteString(lb.String())
		}
	}
	return nil
}

func (t *Template) eval(s *state, slot *Slot) (interface{}, error) {
	v, err := slot.Expr.eval(s)
	if err != nil {
		return nil, t.wrap(slot, err)
	}
	return v, nil
}

func (t *Template) wrap(slot *Slot, err error) error {
	return &EvalError{
		Template: t.Name,
		Line:     slot.Line,
		Column:   slot.Column,
		Source:   slot.Source,
		Err:      err,
	}
}

// Format renders a value as label text. Lists are joined with ", ". When
// escape is set strings are XML-escaped unless marked Raw.
func Format(v interface{}, escape bool) (string, error) {
	switch x := normalize(v).(type) {
	case nil:
		return "", nil
	case bool:
		return strconv.FormatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return FormatFloat(x), nil
	case string:
		if IsRaw(x) {
			return x[len(RawPrefix):], nil
		}
		if escape {
			return Escape(x), nil
		}
		return x, nil
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			s, err := Format(e, escape)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ", "), nil
	case map[string]interface{}:
		return "", errors.New("cannot write a dict into a label")
	case Floater:
		return FormatFloat(x.Float()), nil
	case fmt.Stringer:
		return Format(x.String(), escape)
	default:
		return Format(fmt.Sprint(x), escape)
	}
}

// FormatFloat writes f in plain notation where that is reasonable, always
// with a decimal point, and in exponent notation otherwise.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	a := math.Abs(f)
	if a != 0 && (a < 1e-4 || a >= 1e15) {
		return strconv.FormatFloat(f, 'E', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape makes s safe for XML character data and attribute values. Markup
// characters become entities. Characters XML does not allow and bytes that
// are not valid UTF-8 are dropped.
func Escape(s string) string {
	if strings.IndexFunc(s, invalidXML) >= 0 || !utf8.ValidString(s) {
		var b strings.Builder
		b.Grow(len(s))
		for i := 0; i < len(s); {
			r, size := utf8.DecodeRuneInString(s[i:])
			if !(r == utf8.RuneError && size == 1) && !invalidXML(r) {
				b.WriteString(s[i : i+size])
			}
			i += size
		}
		s = b.String()
	}
	return xmlEscaper.Replace(s)
}

func invalidXML(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r < 0x20:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r == 0xFFFE || r == 0xFFFF:
		return true
	}
	return false
}
