package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Expr is a parsed slot expression.
type Expr interface {
	eval(s *state) (interface{}, error)
	String() string
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNum
	tokStr
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	val  interface{}
	pos  int
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true,
	"True": true, "False": true, "None": true,
	"true": true, "false": true, "none": true,
}

var twoCharOps = map[string]bool{"==": true, "!=": true, "<=": true, ">=": true}

func lex(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			j, isFloat := i, false
			for j < len(src) && (isDigit(src[j]) || src[j] == '.' || src[j] == 'e' || src[j] == 'E' ||
				((src[j] == '+' || src[j] == '-') && (src[j-1] == 'e' || src[j-1] == 'E'))) {
				if !isDigit(src[j]) {
					isFloat = true
				}
				j++
			}
			text := src[i:j]
			var val interface{}
			var err error
			if isFloat {
				val, err = strconv.ParseFloat(text, 64)
			} else {
				val, err = strconv.ParseInt(text, 10, 64)
			}
			if err != nil {
				return nil, errors.Errorf("bad number %q at %d", text, i)
			}
			toks = append(toks, token{kind: tokNum, text: text, val: val, pos: i})
			i = j
		case c == '"' || c == '\'':
			s, n, err := lexString(src[i:])
			if err != nil {
				return nil, errors.Wrapf(err, "at %d", i)
			}
			toks = append(toks, token{kind: tokStr, text: src[i : i+n], val: s, pos: i})
			i += n
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && (isIdentStart(src[j]) || isDigit(src[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], pos: i})
			i = j
		default:
			if i+1 < len(src) && twoCharOps[src[i:i+2]] {
				toks = append(toks, token{kind: tokOp, text: src[i : i+2], pos: i})
				i += 2
				continue
			}
			if !strings.ContainsRune("+-*/%<>()[],.", rune(c)) {
				return nil, errors.Errorf("unexpected character %q at %d", c, i)
			}
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func lexString(src string) (string, int, error) {
	quote := src[0]
	var sb strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		switch c {
		case quote:
			return sb.String(), i + 1, nil
		case '\\':
			i++
			if i == len(src) {
				break
			}
			switch src[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(src[i])
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated string")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ParseExpr parses a single expression. The grammar, loosest binding first:
//
//	or:      and ("or" and)*
//	and:     not ("and" not)*
//	not:     "not" not | compare
//	compare: sum [("==" | "!=" | "<" | "<=" | ">" | ">=" | "in" | "not in") sum]
//	sum:     product (("+" | "-") product)*
//	product: unary (("*" | "/" | "%") unary)*
//	unary:   "-" unary | postfix
//	postfix: primary ("." name | "." name "(" args ")" | "[" or "]")*
//	primary: number | string | name | name "(" args ")" | "(" or ")" | "[" args "]"
//
// x.f(args) calls the hook f with x as its first argument.
func ParseExpr(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errors.Errorf("unexpected %q at %d", t.text, t.pos)
	}
	return e, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// accept consumes the next token if it is the operator or keyword text.
func (p *parser) accept(text string) bool {
	t := p.peek()
	if (t.kind == tokOp || t.kind == tokIdent) && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		t := p.peek()
		if t.kind == tokEOF {
			return errors.Errorf("expected %q at end of expression", text)
		}
		return errors.Errorf("expected %q at %d, got %q", text, t.pos, t.text)
	}
	return nil
}

func (p *parser) or() (Expr, error) {
	x, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept("or") {
		y, err := p.and()
		if err != nil {
			return nil, err
		}
		x = &logical{op: "or", x: x, y: y}
	}
	return x, nil
}

func (p *parser) and() (Expr, error) {
	x, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.accept("and") {
		y, err := p.not()
		if err != nil {
			return nil, err
		}
		x = &logical{op: "and", x: x, y: y}
	}
	return x, nil
}

func (p *parser) not() (Expr, error) {
	if p.accept("not") {
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return &unary{op: "not", x: x}, nil
	}
	return p.compare()
}

func (p *parser) compare() (Expr, error) {
	x, err := p.sum()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	op := ""
	switch {
	case t.kind == tokOp && (t.text == "==" || t.text == "!=" || t.text == "<" || t.text == "<=" || t.text == ">" || t.text == ">="):
		op = t.text
		p.next()
	case t.kind == tokIdent && t.text == "in":
		op = "in"
		p.next()
	case t.kind == tokIdent && t.text == "not" && p.toks[p.pos+1].kind == tokIdent && p.toks[p.pos+1].text == "in":
		op = "not in"
		p.pos += 2
	default:
		return x, nil
	}
	y, err := p.sum()
	if err != nil {
		return nil, err
	}
	return &binary{op: op, x: x, y: y}, nil
}

func (p *parser) sum() (Expr, error) {
	x, err := p.product()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return x, nil
		}
		p.next()
		y, err := p.product()
		if err != nil {
			return nil, err
		}
		x = &binary{op: t.text, x: x, y: y}
	}
}

func (p *parser) product() (Expr, error) {
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/" && t.text != "%") {
			return x, nil
		}
		p.next()
		y, err := p.unary()
		if err != nil {
			return nil, err
		}
		x = &binary{op: t.text, x: x, y: y}
	}
}

func (p *parser) unary() (Expr, error) {
	if p.accept("-") {
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unary{op: "-", x: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("."):
			t := p.next()
			if t.kind != tokIdent {
				return nil, errors.Errorf("expected name after '.' at %d", t.pos)
			}
			if p.accept("(") {
				args, err := p.args(")")
				if err != nil {
					return nil, err
				}
				x = &call{name: t.text, args: append([]Expr{x}, args...)}
				continue
			}
			x = &attr{x: x, name: t.text}
		case p.accept("["):
			i, err := p.or()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &index{x: x, i: i}
		default:
			return x, nil
		}
	}
}

func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNum, tokStr:
		return &literal{val: t.val, text: t.text}, nil
	case tokIdent:
		switch t.text {
		case "True", "true":
			return &literal{val: true, text: t.text}, nil
		case "False", "false":
			return &literal{val: false, text: t.text}, nil
		case "None", "none":
			return &literal{val: nil, text: t.text}, nil
		}
		if keywords[t.text] {
			return nil, errors.Errorf("unexpected %q at %d", t.text, t.pos)
		}
		if p.accept("(") {
			args, err := p.args(")")
			if err != nil {
				return nil, err
			}
			return &call{name: t.text, args: args}, nil
		}
		return &ident{name: t.text}, nil
	case tokOp:
		switch t.text {
		case "(":
			x, err := p.or()
			if err != nil {
				return nil, err
			}
			return x, p.expect(")")
		case "[":
			elems, err := p.args("]")
			if err != nil {
				return nil, err
			}
			return &listLit{elems: elems}, nil
		}
	case tokEOF:
		return nil, errors.New("unexpected end of expression")
	}
	return nil, errors.Errorf("unexpected %q at %d", t.text, t.pos)
}

// args parses a comma separated list up to and including the closing token.
func (p *parser) args(closing string) ([]Expr, error) {
	var ret []Expr
	if p.accept(closing) {
		return ret, nil
	}
	for {
		x, err := p.or()
		if err != nil {
			return nil, err
		}
		ret = append(ret, x)
		if p.accept(closing) {
			return ret, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		if p.accept(closing) {
			return ret, nil
		}
	}
}

type literal struct {
	val  interface{}
	text string
}

type ident struct{ name string }

type attr struct {
	x    Expr
	name string
}

type index struct{ x, i Expr }

type call struct {
	name string
	args []Expr
}

type unary struct {
	op string
	x  Expr
}

type binary struct {
	op   string
	x, y Expr
}

type logical struct {
	op   string
	x, y Expr
}

type listLit struct{ elems []Expr }

func (e *literal) String() string { return e.text }
func (e *ident) String() string   { return e.name }
func (e *attr) String() string    { return e.x.String() + "." + e.name }
func (e *index) String() string   { return e.x.String() + "[" + e.i.String() + "]" }
func (e *call) String() string    { return e.name + "(" + joinExprs(e.args) + ")" }
func (e *listLit) String() string { return "[" + joinExprs(e.elems) + "]" }

func (e *unary) String() string {
	if e.op == "not" {
		return "not " + e.x.String()
	}
	return e.op + e.x.String()
}

func (e *binary) String() string  { return fmt.Sprintf("(%s %s %s)", e.x, e.op, e.y) }
func (e *logical) String() string { return fmt.Sprintf("(%s %s %s)", e.x, e.op, e.y) }

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
