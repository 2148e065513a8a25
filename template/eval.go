package template

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Floater is implemented by numeric values with units, such as label
// quantities. They take part in arithmetic and comparison as floats.
type Floater interface {
	Float() float64
}

// state is the evaluation context of one expansion.
type state struct {
	dict  Dict
	funcs FuncMap
	// iter holds VALUE, INDEX and LENGTH during a FOR_EACH pass.
	iter map[string]interface{}
}

func (s *state) lookup(name string) (interface{}, bool) {
	if s.iter != nil {
		if v, ok := s.iter[name]; ok {
			return v, true
		}
	}
	v, ok := s.dict[name]
	return v, ok
}

// normalize maps Go values onto the interpreter's value set: nil, bool,
// int64, float64, string, []interface{} and map[string]interface{}.
// Anything else is passed through untouched.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, bool, int64, float64, string, []interface{}, map[string]interface{}:
		return v
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case Dict:
		return map[string]interface{}(x)
	case []string:
		ret := make([]interface{}, len(x))
		for i, s := range x {
			ret[i] = s
		}
		return ret
	case []int:
		ret := make([]interface{}, len(x))
		for i, n := range x {
			ret[i] = int64(n)
		}
		return ret
	case []Dict:
		ret := make([]interface{}, len(x))
		for i, d := range x {
			ret[i] = map[string]interface{}(d)
		}
		return ret
	case []map[string]interface{}:
		ret := make([]interface{}, len(x))
		for i, d := range x {
			ret[i] = d
		}
		return ret
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		ret := make([]interface{}, rv.Len())
		for i := range ret {
			ret[i] = rv.Index(i).Interface()
		}
		return ret
	}
	return v
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "None"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "dict"
	}
	return fmt.Sprintf("%T", v)
}

// Truth reports whether a value counts as true in an IF guard or a boolean
// operator. None, false, zero and empty strings, lists and dicts are false.
func Truth(v interface{}) bool {
	switch x := normalize(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	case Floater:
		return x.Float() != 0
	}
	return true
}

func (e *literal) eval(s *state) (interface{}, error) { return e.val, nil }

func (e *ident) eval(s *state) (interface{}, error) {
	v, ok := s.lookup(e.name)
	if !ok {
		return nil, errors.Errorf("undefined name %s", e.name)
	}
	return normalize(v), nil
}

func (e *attr) eval(s *state) (interface{}, error) {
	x, err := e.x.eval(s)
	if err != nil {
		return nil, err
	}
	m, ok := x.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("%s is a %s, not a dict", e.x, typeName(x))
	}
	if v, ok := m[e.name]; ok {
		return normalize(v), nil
	}
	if v, ok := m[strings.ToUpper(e.name)]; ok {
		return normalize(v), nil
	}
	return nil, errors.Errorf("%s has no key %s", e.x, e.name)
}

func (e *index) eval(s *state) (interface{}, error) {
	x, err := e.x.eval(s)
	if err != nil {
		return nil, err
	}
	i, err := e.i.eval(s)
	if err != nil {
		return nil, err
	}
	switch c := x.(type) {
	case []interface{}:
		n, err := position(i, len(c))
		if err != nil {
			return nil, errors.Wrap(err, e.String())
		}
		return normalize(c[n]), nil
	case string:
		n, err := position(i, len(c))
		if err != nil {
			return nil, errors.Wrap(err, e.String())
		}
		return c[n : n+1], nil
	case map[string]interface{}:
		key, ok := i.(string)
		if !ok {
			return nil, errors.Errorf("%s: dict keys are strings, not %s", e, typeName(i))
		}
		v, ok := c[key]
		if !ok {
			return nil, errors.Errorf("%s: no key %q", e, key)
		}
		return normalize(v), nil
	}
	return nil, errors.Errorf("cannot index a %s", typeName(x))
}

// position turns a possibly negative index into an offset into a sequence
// of length n.
func position(i interface{}, n int) (int, error) {
	k, ok := i.(int64)
	if !ok {
		return 0, errors.Errorf("index must be an int, not %s", typeName(i))
	}
	if k < 0 {
		k += int64(n)
	}
	if k < 0 || k >= int64(n) {
		return 0, errors.Errorf("index %d out of range for length %d", i, n)
	}
	return int(k), nil
}

func (e *call) eval(s *state) (interface{}, error) {
	f, ok := s.funcs[e.name]
	if !ok {
		return nil, errors.Errorf("undefined function %s", e.name)
	}
	args := make([]interface{}, len(e.args))
	for i, a := range e.args {
		v, err := a.eval(s)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := f(args...)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", e.name)
	}
	return normalize(v), nil
}

func (e *listLit) eval(s *state) (interface{}, error) {
	ret := make([]interface{}, len(e.elems))
	for i, x := range e.elems {
		v, err := x.eval(s)
		if err != nil {
			return nil, err
		}
		ret[i] = v
	}
	return ret, nil
}

func (e *unary) eval(s *state) (interface{}, error) {
	x, err := e.x.eval(s)
	if err != nil {
		return nil, err
	}
	if e.op == "not" {
		return !Truth(x), nil
	}
	switch n := x.(type) {
	case int64:
		return -n, nil
	case float64:
		return -n, nil
	case Floater:
		return -n.Float(), nil
	}
	return nil, errors.Errorf("cannot negate a %s", typeName(x))
}

func (e *logical) eval(s *state) (interface{}, error) {
	x, err := e.x.eval(s)
	if err != nil {
		return nil, err
	}
	if e.op == "and" && !Truth(x) || e.op == "or" && Truth(x) {
		return x, nil
	}
	return e.y.eval(s)
}

func (e *binary) eval(s *state) (interface{}, error) {
	x, err := e.x.eval(s)
	if err != nil {
		return nil, err
	}
	y, err := e.y.eval(s)
	if err != nil {
		return nil, err
	}
	var v interface{}
	switch e.op {
	case "==":
		v = Equal(x, y)
	case "!=":
		v = !Equal(x, y)
	case "<", "<=", ">", ">=":
		v, err = order(e.op, x, y)
	case "in":
		v, err = contains(y, x)
	case "not in":
		var in bool
		in, err = contains(y, x)
		v = !in
	default:
		v, err = arith(e.op, x, y)
	}
	if err != nil {
		return nil, errors.Wrap(err, e.String())
	}
	return v, nil
}

// number reports a value as a float when it is numeric. isInt is set when
// the value is an int64.
func number(v interface{}) (f float64, isInt bool, ok bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true, true
	case float64:
		return n, false, true
	case Floater:
		return n.Float(), false, true
	}
	return 0, false, false
}

// Equal compares two values, treating ints and floats as numbers.
func Equal(x, y interface{}) bool {
	x, y = normalize(x), normalize(y)
	if xi, ok := x.(int64); ok {
		if yi, ok := y.(int64); ok {
			return xi == yi
		}
	}
	if xf, _, ok := number(x); ok {
		if yf, _, ok := number(y); ok {
			return xf == yf
		}
		return false
	}
	switch a := x.(type) {
	case []interface{}:
		b, ok := y.([]interface{})
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		b, ok := y.(map[string]interface{})
		if !ok || len(a) != len(b) {
			return false
		}
		for k, v := range a {
			w, ok := b[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(x, y)
}

func order(op string, x, y interface{}) (bool, error) {
	var c int
	if xf, _, ok := number(x); ok {
		yf, _, ok := number(y)
		if !ok {
			return false, errors.Errorf("cannot compare %s with %s", typeName(x), typeName(y))
		}
		switch {
		case xf < yf:
			c = -1
		case xf > yf:
			c = 1
		}
	} else if xs, ok := x.(string); ok {
		ys, ok := y.(string)
		if !ok {
			return false, errors.Errorf("cannot compare string with %s", typeName(y))
		}
		c = strings.Compare(xs, ys)
	} else {
		return false, errors.Errorf("cannot order a %s", typeName(x))
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	}
	return c >= 0, nil
}

func contains(container, x interface{}) (bool, error) {
	switch c := container.(type) {
	case []interface{}:
		for _, v := range c {
			if Equal(v, x) {
				return true, nil
			}
		}
		return false, nil
	case string:
		sub, ok := x.(string)
		if !ok {
			return false, errors.Errorf("'in <string>' needs a string, not %s", typeName(x))
		}
		return strings.Contains(c, sub), nil
	case map[string]interface{}:
		key, ok := x.(string)
		if !ok {
			return false, nil
		}
		_, ok = c[key]
		return ok, nil
	case nil:
		return false, nil
	}
	return false, errors.Errorf("cannot search a %s", typeName(container))
}

// concat joins two strings. When either is marked Raw the result is Raw too,
// with the unmarked side escaped.
func concat(x, y string) string {
	xr, yr := IsRaw(x), IsRaw(y)
	if !xr && !yr {
		return x + y
	}
	if xr {
		x = x[len(RawPrefix):]
	} else {
		x = Escape(x)
	}
	if yr {
		y = y[len(RawPrefix):]
	} else {
		y = Escape(y)
	}
	return Raw(x + y)
}

func arith(op string, x, y interface{}) (interface{}, error) {
	if op == "+" {
		if xs, ok := x.(string); ok {
			if ys, ok := y.(string); ok {
				return concat(xs, ys), nil
			}
		}
		if xl, ok := x.([]interface{}); ok {
			if yl, ok := y.([]interface{}); ok {
				ret := make([]interface{}, 0, len(xl)+len(yl))
				return append(append(ret, xl...), yl...), nil
			}
		}
	}
	xf, xInt, ok1 := number(x)
	yf, yInt, ok2 := number(y)
	if !ok1 || !ok2 {
		return nil, errors.Errorf("unsupported operands %s %s %s", typeName(x), op, typeName(y))
	}
	if xInt && yInt && op != "/" {
		a, b := x.(int64), y.(int64)
		switch op {
		case "+":
			return a + b, nil
		case "-":
			return a - b, nil
		case "*":
			return a * b, nil
		case "%":
			if b == 0 {
				return nil, errors.New("modulo by zero")
			}
			m := a % b
			if m != 0 && (m < 0) != (b < 0) {
				m += b
			}
			return m, nil
		}
	}
	switch op {
	case "+":
		return xf + yf, nil
	case "-":
		return xf - yf, nil
	case "*":
		return xf * yf, nil
	case "/":
		if yf == 0 {
			return nil, errors.New("division by zero")
		}
		return xf / yf, nil
	case "%":
		if yf == 0 {
			return nil, errors.New("modulo by zero")
		}
		return xf - yf*math.Floor(xf/yf), nil
	}
	return nil, errors.Errorf("unknown operator %s", op)
}

// iterate returns the elements a FOR_EACH section runs over. Dicts yield
// their keys in sorted order and None yields nothing.
func iterate(v interface{}) ([]interface{}, error) {
	switch c := normalize(v).(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return c, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ret := make([]interface{}, len(keys))
		for i, k := range keys {
			ret[i] = k
		}
		return ret, nil
	}
	return nil, errors.Errorf("cannot iterate over a %s", typeName(v))
}
