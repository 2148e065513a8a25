package label

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseError reports a syntax error in a label along with the line on which
// it was found.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ParseFile parses the label at path. Only the label itself is read from
// files which carry an attached label followed by binary data.
func ParseFile(path string) (*Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening label")
	}
	defer f.Close()
	l, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return l, nil
}

// Parse reads a label from r, stopping after the END statement.
func Parse(r io.Reader) (*Label, error) {
	data, err := readUntilEnd(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading label")
	}
	return ParseBytes(data)
}

// ParseBytes parses a label held in memory.
func ParseBytes(data []byte) (*Label, error) {
	p := &parser{src: clean(data), line: 1}
	return p.parse()
}

func readUntilEnd(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var buf bytes.Buffer
	for {
		line, err := br.ReadBytes('\n')
		buf.Write(line)
		if string(bytes.TrimSpace(bytes.Trim(line, "\x00"))) == "END" {
			return buf.Bytes(), nil
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// clean normalises line endings and drops NUL padding, both of which show up
// in labels written by older archive tooling.
func clean(data []byte) []byte {
	data = bytes.Replace(data, []byte("\r\n"), []byte("\n"), -1)
	data = bytes.Replace(data, []byte("\r"), []byte("\n"), -1)
	return bytes.Replace(data, []byte{0}, []byte{' '}, -1)
}

type parser struct {
	src  []byte
	pos  int
	line int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) next() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
	}
	return c
}

// skipSpace skips blanks and /* */ comments. With inline set it stops at the
// end of the current line.
func (p *parser) skipSpace(inline bool) error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\n':
			if inline {
				return nil
			}
			p.next()
		case c == ' ' || c == '\t' || c == '\f' || c == '\v':
			p.next()
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
			end := bytes.Index(p.src[p.pos+2:], []byte("*/"))
			if end < 0 {
				return p.errorf("unterminated comment")
			}
			for i := 0; i < end+4; i++ {
				p.next()
			}
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) parse() (*Label, error) {
	root := newLabel("", "")
	stack := []*Label{root}
	for {
		if err := p.skipSpace(false); err != nil {
			return nil, err
		}
		if p.pos >= len(p.src) {
			break
		}
		key := p.keyword()
		if key == "" {
			return nil, p.errorf("expected keyword, found %q", p.peek())
		}
		ukey := strings.ToUpper(key)
		if ukey == "END" {
			break
		}
		if err := p.skipSpace(true); err != nil {
			return nil, err
		}
		if p.peek() != '=' {
			if ukey == "END_OBJECT" || ukey == "END_GROUP" {
				var err error
				if stack, err = p.closeBlock(stack, ukey, ""); err != nil {
					return nil, err
				}
				continue
			}
			return nil, p.errorf("expected '=' after %s", key)
		}
		p.next()
		if err := p.skipSpace(false); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		switch ukey {
		case "OBJECT", "GROUP":
			name := p.bare()
			if name == "" {
				return nil, p.errorf("%s without a name", ukey)
			}
			sub := newLabel(ukey, strings.ToUpper(name))
			top.set(sub.Name, sub)
			stack = append(stack, sub)
		case "END_OBJECT", "END_GROUP":
			var err error
			if stack, err = p.closeBlock(stack, ukey, p.bare()); err != nil {
				return nil, err
			}
		default:
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(ukey, "^") {
				if v, err = toPointer(v); err != nil {
					return nil, p.errorf("%s: %v", ukey, err)
				}
			}
			top.set(ukey, v)
		}
	}
	if len(stack) > 1 {
		top := stack[len(stack)-1]
		return nil, p.errorf("%s %s is never closed", top.Kind, top.Name)
	}
	return root, nil
}

func (p *parser) closeBlock(stack []*Label, ukey, name string) ([]*Label, error) {
	kind := strings.TrimPrefix(ukey, "END_")
	if len(stack) == 1 {
		return nil, p.errorf("%s outside of any %s", ukey, kind)
	}
	top := stack[len(stack)-1]
	if top.Kind != kind {
		return nil, p.errorf("%s closes %s %s", ukey, top.Kind, top.Name)
	}
	if name != "" && strings.ToUpper(name) != top.Name {
		return nil, p.errorf("%s = %s closes %s %s", ukey, name, top.Kind, top.Name)
	}
	return stack[:len(stack)-1], nil
}

func (p *parser) keyword() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '=' || c == ' ' || c == '\t' || c == '\n' {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// bare reads an unquoted token. Symbolic literals, numbers, dates and the
// unquoted N/A which many Cassini labels carry all come through here.
func (p *parser) bare() string {
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', ',', ')', '}', '<', '=':
			return string(p.src[start:p.pos])
		case '/':
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '*' {
				return string(p.src[start:p.pos])
			}
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) value() (interface{}, error) {
	switch p.peek() {
	case '"':
		return p.quoted('"')
	case '\'':
		return p.quoted('\'')
	case '(':
		return p.list(')')
	case '{':
		return p.list('}')
	case 0:
		return nil, p.errorf("unexpected end of label")
	}
	tok := p.bare()
	if tok == "" {
		return nil, p.errorf("expected value, found %q", p.peek())
	}
	v := scalar(tok)

	pos, line := p.pos, p.line
	if err := p.skipSpace(true); err != nil {
		return nil, err
	}
	if p.peek() != '<' {
		p.pos, p.line = pos, line
		return v, nil
	}
	end := bytes.IndexByte(p.src[p.pos:], '>')
	if end < 0 {
		return nil, p.errorf("unterminated unit")
	}
	unit := strings.TrimSpace(string(p.src[p.pos+1 : p.pos+end]))
	p.pos += end + 1
	switch vt := v.(type) {
	case int64:
		return Quantity{Value: float64(vt), Unit: unit}, nil
	case float64:
		return Quantity{Value: vt, Unit: unit}, nil
	}
	return v, nil
}

func (p *parser) quoted(q byte) (string, error) {
	line := p.line
	p.next()
	start := p.pos
	for p.pos < len(p.src) {
		if p.src[p.pos] == q {
			s := string(p.src[start:p.pos])
			p.next()
			return s, nil
		}
		p.next()
	}
	return "", &ParseError{Line: line, Msg: "unterminated string"}
}

func (p *parser) list(closer byte) (interface{}, error) {
	p.next()
	items := make([]interface{}, 0)
	for {
		if err := p.skipSpace(false); err != nil {
			return nil, err
		}
		if p.peek() == closer {
			p.next()
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if err := p.skipSpace(false); err != nil {
			return nil, err
		}
		switch c := p.peek(); c {
		case ',':
			p.next()
		case closer:
			p.next()
			return items, nil
		default:
			return nil, p.errorf("expected ',' or %q in list, found %q", closer, c)
		}
	}
}

var radixInt = regexp.MustCompile(`^([0-9]+)#([0-9A-Fa-f]+)#$`)

func scalar(tok string) interface{} {
	if m := radixInt.FindStringSubmatch(tok); m != nil {
		base, _ := strconv.Atoi(m[1])
		if i, err := strconv.ParseInt(m[2], base, 64); err == nil {
			return i
		}
		return tok
	}
	c := tok[0]
	if !(c >= '0' && c <= '9') && c != '-' && c != '+' && c != '.' {
		return tok
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	return tok
}

func toPointer(v interface{}) (Pointer, error) {
	switch vt := v.(type) {
	case int64:
		return Pointer{Offset: vt}, nil
	case Quantity:
		if strings.ToUpper(vt.Unit) != "BYTES" {
			return Pointer{}, errors.Errorf("unexpected pointer unit <%s>", vt.Unit)
		}
		return Pointer{Offset: int64(vt.Value), Bytes: true}, nil
	case string:
		return Pointer{File: vt}, nil
	case []interface{}:
		if len(vt) != 2 {
			break
		}
		file, ok := vt[0].(string)
		if !ok {
			break
		}
		ptr, err := toPointer(vt[1])
		if err != nil {
			return Pointer{}, err
		}
		ptr.File = file
		return ptr, nil
	}
	return Pointer{}, errors.Errorf("cannot interpret %v as a pointer", v)
}
