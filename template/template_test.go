package template

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustCompile(t *testing.T, text string) *Template {
	t.Helper()
	tmpl, err := Compile("test.xml", text)
	if err != nil {
		t.Fatalf("compiling: %v", err)
	}
	return tmpl
}

func expand(t *testing.T, text string, dict Dict) string {
	t.Helper()
	out, err := mustCompile(t, text).Expand(dict, DefaultFuncs())
	if err != nil {
		t.Fatalf("expanding: %v", err)
	}
	return out
}

func TestExpandOnce(t *testing.T) {
	out := expand(t, "<title>$TITLE$</title>\n<n>$N + 1$</n>\n<cost>$$5</cost>\n",
		Dict{"TITLE": `Rings & "moons" <2>`, "N": 41})
	exp := "<title>Rings &amp; &quot;moons&quot; &lt;2&gt;</title>\n<n>42</n>\n<cost>$5</cost>\n"
	if out != exp {
		t.Fatalf("unexpected output:\n%s", cmp.Diff(exp, out))
	}
}

func TestForEach(t *testing.T) {
	text := `<list>
$FOR_EACH(TARGETS)$
  <t i="$INDEX$" of="$LENGTH$">$VALUE.name$</t>
$END_FOR_EACH$
</list>
`
	out := expand(t, text, Dict{"TARGETS": []Dict{{"name": "Saturn"}, {"name": "Titan"}, {"name": "A Ring"}}})
	exp := `<list>
  <t i="0" of="3">Saturn</t>
  <t i="1" of="3">Titan</t>
  <t i="2" of="3">A Ring</t>
</list>
`
	if out != exp {
		t.Fatalf("unexpected output:\n%s", cmp.Diff(exp, out))
	}

	out = expand(t, text, Dict{"TARGETS": []interface{}{}})
	if out != "<list>\n</list>\n" {
		t.Fatalf("empty list should expand to nothing: %q", out)
	}
}

func TestForEachDictKeysSorted(t *testing.T) {
	text := "$FOR_EACH(M)$\n$VALUE$=$M[VALUE]$\n"
	dict := Dict{"M": map[string]interface{}{"b": 2, "a": 1, "c": 3}}
	first := expand(t, text, dict)
	if first != "a=1\nb=2\nc=3\n" {
		t.Fatalf("unexpected output: %q", first)
	}
	for i := 0; i < 20; i++ {
		if got := expand(t, text, dict); got != first {
			t.Fatalf("expansion %d differs: %q", i, got)
		}
	}
}

func TestIf(t *testing.T) {
	text := `<a/>
$IF(FILTERS and "CL1" in FILTERS)$
<clear/>
$END_IF$
$IF(not FILTERS)$
<none/>
$END_IF$
<b/>
`
	if out := expand(t, text, Dict{"FILTERS": []string{"CL1", "GRN"}}); out != "<a/>\n<clear/>\n<b/>\n" {
		t.Fatalf("unexpected output: %q", out)
	}
	if out := expand(t, text, Dict{"FILTERS": nil}); out != "<a/>\n<none/>\n<b/>\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestAssignment(t *testing.T) {
	text := `$LID = "urn:nasa:pds:" + lower(BUNDLE)$
  $N = len(ITEMS)$ $M = N * 2$
<lid>$LID$</lid>
<count>$N$ $M$</count>
`
	dict := Dict{"BUNDLE": "CASSINI_ISS", "ITEMS": []int{1, 2, 3}}
	out := expand(t, text, dict)
	exp := "<lid>urn:nasa:pds:cassini_iss</lid>\n<count>3 6</count>\n"
	if out != exp {
		t.Fatalf("unexpected output:\n%s", cmp.Diff(exp, out))
	}
	if dict["LID"] != "urn:nasa:pds:cassini_iss" {
		t.Fatalf("assignment not written back to the dictionary: %v", dict["LID"])
	}
	if out := expand(t, "x$A=1$y\n", Dict{}); out != "xy\n" {
		t.Fatalf("mixed line should be kept: %q", out)
	}
}

func TestAssignmentVisibleInLaterSections(t *testing.T) {
	text := `$FOR_EACH(L)$
$LAST = VALUE$
$END_FOR_EACH$
<last>$LAST$</last>
`
	if out := expand(t, text, Dict{"L": []string{"x", "y"}}); out != "<last>y</last>\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRaw(t *testing.T) {
	out := expand(t, "$raw(X)$|$X$|$Y$\n", Dict{"X": "<b>1</b>", "Y": Raw("<i/>")})
	if out != "<b>1</b>|&lt;b&gt;1&lt;/b&gt;|<i/>\n" {
		t.Fatalf("unexpected output: %q", out)
	}
	out = expand(t, "$upper(raw(X))$|$strip(Y)$|$\"a&\" + raw(X)$|$X + \"&\"$\n", Dict{"X": "<b>1</b>", "Y": Raw(" <i/> ")})
	if out != "<B>1</B>|<i/>|a&amp;<b>1</b>|&lt;b&gt;1&lt;/b&gt;&amp;\n" {
		t.Fatalf("unexpected output: %q", out)
	}
	if Raw(Raw("x")) != Raw("x") {
		t.Fatalf("Raw should be idempotent")
	}
}

type quantity float64

func (q quantity) Float() float64 { return float64(q) }

func TestExpressions(t *testing.T) {
	dict := Dict{
		"L":    []interface{}{"a", "b", "c"},
		"M":    map[string]interface{}{"KEY": "v", "n": 3},
		"S":    "Saturn",
		"Q":    quantity(2.5),
		"ZERO": 0,
	}
	tests := []struct {
		expr string
		exp  interface{}
	}{
		{"1 + 2 * 3", int64(7)},
		{"(1 + 2) * 3", int64(9)},
		{"7 / 2", 3.5},
		{"-7 % 3", int64(2)},
		{"2 - -1", int64(3)},
		{"1.5e3", 1500.0},
		{"'a' + \"b\"", "ab"},
		{"'b' in L", true},
		{"'z' not in L", true},
		{"'tur' in S", true},
		{"'KEY' in M", true},
		{"L[-1]", "c"},
		{"L[0] + S[0]", "aS"},
		{"M.key", "v"},
		{"M['n'] >= 3", true},
		{"S.lower()", "saturn"},
		{"S.replace('n', 'N')", "SaturN"},
		{"len(L) == 3", true},
		{"join(L, '/')", "a/b/c"},
		{"True and None", nil},
		{"ZERO or 'fallback'", "fallback"},
		{"not ZERO", true},
		{"1 < 2.5", true},
		{"1 == 1.0", true},
		{"'a' < 'b'", true},
		{"Q * 2", 5.0},
		{"Q > 2", true},
		{"round(Q * 1.5, 1)", 3.8},
		{"int('42') + int(2.9)", int64(44)},
		{"float('0.5')", 0.5},
		{"[1, 2] + [3]", []interface{}{int64(1), int64(2), int64(3)}},
		{"sorted(['b', 'a'])", []interface{}{"a", "b"}},
		{"first([])", nil},
		{"default(None, 'x')", "x"},
		{"title('a RING')", "A Ring"},
		{"sprintf('%05.1f', Q)", "002.5"},
		{"basename('/data/N1454725799_1.IMG')", "N1454725799_1.IMG"},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			e, err := ParseExpr(test.expr)
			if err != nil {
				t.Fatalf("parsing: %v", err)
			}
			got, err := e.eval(&state{dict: dict, funcs: DefaultFuncs()})
			if err != nil {
				t.Fatalf("evaluating: %v", err)
			}
			if !Equal(got, test.exp) {
				t.Fatalf("got %#v, want %#v", got, test.exp)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in  interface{}
		exp string
	}{
		{nil, ""},
		{true, "true"},
		{int64(-3), "-3"},
		{634.0, "634.0"},
		{0.25, "0.25"},
		{1e-7, "1E-07"},
		{[]interface{}{"a", int64(1)}, "a, 1"},
		{quantity(12), "12.0"},
		{"a\x01b", "ab"},
	}
	for _, test := range tests {
		got, err := Format(test.in, true)
		if err != nil {
			t.Fatalf("%v: %v", test.in, err)
		}
		if got != test.exp {
			t.Errorf("Format(%#v) = %q, want %q", test.in, got, test.exp)
		}
	}
	if _, err := Format(map[string]interface{}{}, true); err == nil {
		t.Fatalf("expected an error formatting a dict")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		text string
		msg  string
	}{
		{"<a>$X</a>\n", "unterminated"},
		{"<a>$1 +$</a>\n", "test.xml:1:4"},
		{"ok\n$IF(X ==)$\n", "test.xml:2"},
		{"$X = $\n", "unexpected end"},
		{"$'unclosed$\n", "unterminated"},
		{"$a b$\n", "unexpected"},
	}
	for _, test := range tests {
		_, err := Compile("test.xml", test.text)
		if err == nil || !strings.Contains(err.Error(), test.msg) {
			t.Errorf("%q: expected error containing %q, got %v", test.text, test.msg, err)
		}
	}
}

func TestQuotedDollar(t *testing.T) {
	if out := expand(t, `$join(L, " $ ")$`+"\n", Dict{"L": []string{"a", "b"}}); out != "a $ b\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestEvalError(t *testing.T) {
	tmpl := mustCompile(t, "<a/>\n<b>$MISSING$</b>\n")
	log := &recordingLogger{}
	tmpl.Log = log
	_, err := tmpl.Expand(Dict{}, DefaultFuncs())
	evalErr, ok := err.(*EvalError)
	if !ok {
		t.Fatalf("expected *EvalError, got %T: %v", err, err)
	}
	if evalErr.Line != 2 || evalErr.Column != 4 || evalErr.Source != "MISSING" {
		t.Fatalf("unexpected position: %+v", evalErr)
	}
	if len(log.lines) != 1 || !strings.Contains(log.lines[0], "undefined name MISSING") {
		t.Fatalf("unexpected log: %v", log.lines)
	}

	for _, text := range []string{
		"$FOR_EACH(3)$\nx\n",
		"$L[5]$\n",
		"$nosuch(1)$\n",
		"$'a' - 1$\n",
		"$1 / 0$\n",
		"$M$\n",
	} {
		_, err := mustCompile(t, text).Expand(Dict{"L": []int{1}, "M": Dict{}}, DefaultFuncs())
		if _, ok := err.(*EvalError); !ok {
			t.Errorf("%q: expected *EvalError, got %v", text, err)
		}
	}
}

func TestWellFormed(t *testing.T) {
	text := `<?xml version="1.0" encoding="UTF-8"?>
<Product title="$TITLE$">
$FOR_EACH(NAMES)$
  <name index="$INDEX$">$VALUE$</name>
$END_FOR_EACH$
  <note>$NOTE$</note>
</Product>
`
	dict := Dict{
		"TITLE": `a "quoted" <title> & more`,
		"NAMES": []string{"<S/2004 S 1>", "A & B", "bell\x07", "tab\tand\nnewline", "'apos'"},
		"NOTE":  "]]> \x00 \xff",
	}
	out := expand(t, text, dict)
	dec := xml.NewDecoder(strings.NewReader(out))
	var names []string
	var inName bool
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("output is not well formed: %v\n%s", err, out)
		}
		switch x := tok.(type) {
		case xml.StartElement:
			inName = x.Name.Local == "name"
		case xml.CharData:
			if inName {
				names = append(names, string(x))
			}
		case xml.EndElement:
			inName = false
		}
	}
	exp := []string{"<S/2004 S 1>", "A & B", "bell", "tab\tand\nnewline", "'apos'"}
	if diff := cmp.Diff(exp, names); diff != "" {
		t.Fatalf("round trip mismatch:\n%s", diff)
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in, exp string
	}{
		{in: `a<b & "c">`, exp: "a&lt;b &amp; &quot;c&quot;&gt;"},
		{in: "tab\there\x01\x1f", exp: "tab\there"},
		{in: "bad\xffbyte", exp: "badbyte"},
		{in: "kept � char", exp: "kept � char"},
		{in: "�\xfe<", exp: "�&lt;"},
	}
	for _, test := range tests {
		if got := Escape(test.in); got != test.exp {
			t.Errorf("Escape(%q) = %q, want %q", test.in, got, test.exp)
		}
	}
}

func TestManyAssignmentLines(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 2000; i++ {
		sb.WriteString("$N = N + 1$\n")
	}
	sb.WriteString("<n>$N$</n>\n")
	if out := expand(t, sb.String(), Dict{"N": 0}); out != "<n>2000</n>\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}
