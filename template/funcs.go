package template

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit/pdstime"
)

// Func is a hook callable from template expressions.
type Func func(args ...interface{}) (interface{}, error)

// FuncMap maps hook names to hooks.
type FuncMap map[string]Func

// Merge returns a new FuncMap holding fm overlaid with other.
func (fm FuncMap) Merge(other FuncMap) FuncMap {
	ret := make(FuncMap, len(fm)+len(other))
	for k, f := range fm {
		ret[k] = f
	}
	for k, f := range other {
		ret[k] = f
	}
	return ret
}

// DefaultFuncs returns the general purpose hooks every template gets.
func DefaultFuncs() FuncMap {
	return FuncMap{
		"lower":      stringFunc(strings.ToLower),
		"upper":      stringFunc(strings.ToUpper),
		"strip":      stringFunc(strings.TrimSpace),
		"title":      stringFunc(titleCase),
		"basename":   stringFunc(path.Base),
		"raw":        stringFunc(Raw),
		"escape":     stringFunc(func(s string) string { return Raw(Escape(s)) }),
		"lid_suffix": stringFunc(LIDSuffix),
		"date":       dateFunc,
		"et":         etFunc,
		"str":        strFunc,
		"len":        lenFunc,
		"join":       joinFunc,
		"int":        intFunc,
		"float":      floatFunc,
		"round":      roundFunc,
		"first":      firstFunc,
		"sorted":     sortedFunc,
		"replace":    replaceFunc,
		"default":    defaultFunc,
		"sprintf":    sprintfFunc,
	}
}

func arity(args []interface{}, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return errors.Errorf("takes %d argument(s), got %d", min, len(args))
		}
		return errors.Errorf("takes %d to %d arguments, got %d", min, max, len(args))
	}
	return nil
}

func stringArg(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	}
	return Format(v, false)
}

func stringFunc(f func(string) string) Func {
	return func(args ...interface{}) (interface{}, error) {
		if err := arity(args, 1, 1); err != nil {
			return nil, err
		}
		s, err := stringArg(args[0])
		if err != nil {
			return nil, err
		}
		if !IsRaw(s) {
			return f(s), nil
		}
		return Raw(f(s[len(RawPrefix):])), nil
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// LIDSuffix lower-cases s and replaces every character not allowed in a
// PDS4 logical identifier component with an underscore.
func LIDSuffix(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			return r
		}
		return '_'
	}, s)
}

func dateFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	s, err := stringArg(args[0])
	if err != nil {
		return nil, err
	}
	return pdstime.Normalize(s)
}

func etFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	s, err := stringArg(args[0])
	if err != nil {
		return nil, err
	}
	t, err := pdstime.Parse(s)
	if err != nil {
		return nil, err
	}
	return pdstime.ET(t), nil
}

func strFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	return stringArg(args[0])
}

func lenFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	switch x := normalize(args[0]).(type) {
	case string:
		return int64(len(x)), nil
	case []interface{}:
		return int64(len(x)), nil
	case map[string]interface{}:
		return int64(len(x)), nil
	case nil:
		return int64(0), nil
	}
	return nil, errors.Errorf("%s has no length", typeName(args[0]))
}

func joinFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 2); err != nil {
		return nil, err
	}
	sep := ", "
	if len(args) == 2 {
		s, ok := args[1].(string)
		if !ok {
			return nil, errors.New("separator must be a string")
		}
		sep = s
	}
	list, ok := normalize(args[0]).([]interface{})
	if !ok {
		return nil, errors.Errorf("cannot join a %s", typeName(args[0]))
	}
	parts := make([]string, len(list))
	for i, v := range list {
		s, err := stringArg(v)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

func intFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	switch x := normalize(args[0]).(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 0, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if ferr != nil {
				return nil, errors.Errorf("cannot convert %q to int", x)
			}
			return int64(f), nil
		}
		return n, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	}
	f, _, ok := number(normalize(args[0]))
	if !ok {
		return nil, errors.Errorf("cannot convert %s to int", typeName(args[0]))
	}
	return int64(f), nil
}

func floatFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, errors.Errorf("cannot convert %q to float", s)
		}
		return f, nil
	}
	f, _, ok := number(normalize(args[0]))
	if !ok {
		return nil, errors.Errorf("cannot convert %s to float", typeName(args[0]))
	}
	return f, nil
}

func roundFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 2); err != nil {
		return nil, err
	}
	f, _, ok := number(normalize(args[0]))
	if !ok {
		return nil, errors.Errorf("cannot round a %s", typeName(args[0]))
	}
	if len(args) == 1 {
		return int64(math.Round(f)), nil
	}
	digits, ok := args[1].(int64)
	if !ok {
		return nil, errors.New("digits must be an int")
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(f*scale) / scale, nil
}

func firstFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	switch x := normalize(args[0]).(type) {
	case []interface{}:
		if len(x) == 0 {
			return nil, nil
		}
		return x[0], nil
	case nil:
		return nil, nil
	}
	return args[0], nil
}

func sortedFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	ret := append([]interface{}(nil), items...)
	var sortErr error
	sort.SliceStable(ret, func(i, j int) bool {
		less, err := order("<", normalize(ret[i]), normalize(ret[j]))
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return ret, nil
}

func replaceFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 3, 3); err != nil {
		return nil, err
	}
	strs := make([]string, 3)
	for i, a := range args {
		s, err := stringArg(a)
		if err != nil {
			return nil, err
		}
		strs[i] = s
	}
	return strings.Replace(strs[0], strs[1], strs[2], -1), nil
}

func defaultFunc(args ...interface{}) (interface{}, error) {
	if err := arity(args, 2, 2); err != nil {
		return nil, err
	}
	if Truth(args[0]) {
		return args[0], nil
	}
	return args[1], nil
}

func sprintfFunc(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("needs a format")
	}
	format, ok := args[0].(string)
	if !ok {
		return nil, errors.New("format must be a string")
	}
	rest := make([]interface{}, len(args)-1)
	for i, a := range args[1:] {
		if f, ok := a.(Floater); ok {
			a = f.Float()
		}
		rest[i] = a
	}
	return fmt.Sprintf(format, rest...), nil
}
