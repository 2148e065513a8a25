// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package template expands PDS4 label templates.
//
// A template is XML text with embedded slots. $expr$ is replaced by the value
// of expr, XML-escaped. $name=expr$ evaluates expr and stores it under name
// for later slots, emitting nothing; a line holding only assignments is
// dropped from the output. $$ is a literal dollar sign.
//
// A line consisting of a single header starts a new section:
//
//	$ONCE$             plain text, expanded once (the default)
//	$IF(expr)$         expanded once if expr is true, otherwise skipped
//	$FOR_EACH(expr)$   expanded once per element of expr, with VALUE,
//	                   INDEX and LENGTH set for each pass
//	$END_IF$, $END_FOR_EACH$
//	                   return to ONCE
//
// Sections do not nest. Expressions are evaluated by a small interpreter
// (see Compile) against a Dict and a FuncMap of caller supplied hooks.
package template

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Dict is the lookup dictionary a template is expanded against. Assignment
// slots write into it.
type Dict map[string]interface{}

// SectionKind identifies how a section is expanded.
type SectionKind int

// Section kinds.
const (
	Once SectionKind = iota
	If
	ForEach
)

func (k SectionKind) String() string {
	switch k {
	case Once:
		return "ONCE"
	case If:
		return "IF"
	case ForEach:
		return "FOR_EACH"
	}
	return "UNKNOWN"
}

// Section is a run of template lines expanded together.
type Section struct {
	Kind SectionKind
	// Guard is the IF condition or the FOR_EACH iterable; nil for ONCE.
	Guard *Slot
	Lines []Line
}

// Line is one line of template text split into literal text and slots.
type Line struct {
	Num    int
	Pieces []Piece
	// quiet is set when the line holds only assignments and blanks.
	quiet bool
}

// Piece is either literal text or a slot.
type Piece struct {
	Text string
	Slot *Slot
}

// Slot is a compiled $...$ expression.
type Slot struct {
	Line   int
	Column int
	Source string
	// Assign is the name written by an assignment slot.
	Assign string
	Expr   Expr
}

// Logger receives expansion errors as they happen.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Template is a compiled template. It is safe to expand concurrently with
// different dictionaries.
type Template struct {
	Name     string
	Sections []*Section
	Log      Logger
}

var (
	headerPattern = regexp.MustCompile(`^\$(ONCE|END_IF|END_FOR_EACH)\$$`)
	guardPattern  = regexp.MustCompile(`^\$(IF|FOR_EACH)\((.*)\)\$$`)
	assignPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)?$`)
)

// Compile parses template text. name is used in error messages.
func Compile(name, text string) (*Template, error) {
	t := &Template{Name: name}
	cur := &Section{Kind: Once}
	lines := strings.SplitAfter(text, "\n")
	for i, raw := range lines {
		if raw == "" {
			continue
		}
		num := i + 1
		trimmed := strings.TrimSpace(raw)
		if headerPattern.MatchString(trimmed) {
			t.push(cur)
			cur = &Section{Kind: Once}
			continue
		}
		if m := guardPattern.FindStringSubmatch(trimmed); m != nil {
			slot, err := compileSlot(name, num, strings.Index(raw, "$")+1, m[2], false)
			if err != nil {
				return nil, err
			}
			t.push(cur)
			cur = &Section{Kind: If, Guard: slot}
			if m[1] == "FOR_EACH" {
				cur.Kind = ForEach
			}
			continue
		}
		line, err := compileLine(name, num, raw)
		if err != nil {
			return nil, err
		}
		cur.Lines = append(cur.Lines, line)
	}
	t.push(cur)
	return t, nil
}

// push keeps non-empty sections. An empty IF or FOR_EACH section is kept
// anyway so that its guard is still evaluated and checked.
func (t *Template) push(s *Section) {
	if len(s.Lines) == 0 && s.Kind == Once {
		return
	}
	t.Sections = append(t.Sections, s)
}

func compileLine(name string, num int, raw string) (Line, error) {
	line := Line{Num: num}
	var lit strings.Builder
	quiet, slots := true, 0
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '$' {
			lit.WriteByte(c)
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				quiet = false
			}
			i++
			continue
		}
		if i+1 < len(raw) && raw[i+1] == '$' {
			lit.WriteByte('$')
			quiet = false
			i += 2
			continue
		}
		end := closingDollar(raw, i+1)
		if end < 0 {
			return line, errors.Errorf("%s:%d:%d: unterminated $ slot", name, num, i+1)
		}
		slot, err := compileSlot(name, num, i+1, raw[i+1:end], true)
		if err != nil {
			return line, err
		}
		if lit.Len() > 0 {
			line.Pieces = append(line.Pieces, Piece{Text: lit.String()})
			lit.Reset()
		}
		line.Pieces = append(line.Pieces, Piece{Slot: slot})
		slots++
		if slot.Assign == "" {
			quiet = false
		}
		i = end + 1
	}
	if lit.Len() > 0 {
		line.Pieces = append(line.Pieces, Piece{Text: lit.String()})
	}
	line.quiet = quiet && slots > 0
	return line, nil
}

// closingDollar finds the $ ending a slot which started at from, skipping
// over quoted strings inside the expression.
func closingDollar(s string, from int) int {
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '$':
			return i
		case c == '\n':
			return -1
		}
	}
	return -1
}

func compileSlot(name string, line, col int, src string, allowAssign bool) (*Slot, error) {
	slot := &Slot{Line: line, Column: col, Source: src}
	exprSrc := src
	if allowAssign {
		if m := assignPattern.FindStringSubmatch(src); m != nil && !keywords[m[1]] {
			slot.Assign = m[1]
			exprSrc = m[2]
		}
	}
	expr, err := ParseExpr(exprSrc)
	if err != nil {
		return nil, errors.Wrapf(err, "%s:%d:%d: compiling $%s$", name, line, col, src)
	}
	slot.Expr = expr
	return slot, nil
}
