package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()

	// errShapeMismatch means the arguments do not fit the callable's signature.
	// It is never a real call failure.
	errShapeMismatch = errors.New("argument shape mismatch")
)

// surface is the reflected view of an external client. Callables are looked up by alias among
// the value's methods, its exported func fields, or the func entries of a map[string]any.
type surface struct {
	v reflect.Value
}

func newSurface(client any) surface {
	return surface{v: reflect.ValueOf(client)}
}

// goName normalizes camelCase and snake_case aliases to an exported Go identifier:
// "get_hrv_data" and "getHrvData" both become "GetHrvData".
func goName(alias string) string {
	var b strings.Builder
	upper := true
	for _, r := range alias {
		if r == '_' || r == '-' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s surface) valid() bool {
	if !s.v.IsValid() {
		return false
	}
	switch s.v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map:
		return !s.v.IsNil()
	}
	return true
}

// member resolves an alias to a method, field or map entry. Names are matched exactly first,
// then case-insensitively, so "getHrvData" also finds GetHRVData.
func (s surface) member(alias string) (reflect.Value, bool) {
	if !s.valid() {
		return reflect.Value{}, false
	}
	name := goName(alias)

	if m := s.v.MethodByName(name); m.IsValid() {
		return m, true
	}
	t := s.v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if strings.EqualFold(t.Method(i).Name, name) {
			return s.v.Method(i), true
		}
	}

	target := s.v
	for target.Kind() == reflect.Ptr || target.Kind() == reflect.Interface {
		if target.IsNil() {
			return reflect.Value{}, false
		}
		target = target.Elem()
	}

	switch target.Kind() {
	case reflect.Struct:
		tt := target.Type()
		for i := 0; i < tt.NumField(); i++ {
			f := tt.Field(i)
			if !f.IsExported() {
				continue
			}
			if strings.EqualFold(f.Name, name) {
				return unwrapInterface(target.Field(i))
			}
		}
	case reflect.Map:
		if target.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		iter := target.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			if strings.EqualFold(key, alias) || strings.EqualFold(goName(key), name) {
				return unwrapInterface(iter.Value())
			}
		}
	}
	return reflect.Value{}, false
}

func unwrapInterface(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	if v.Kind() == reflect.Func && v.IsNil() {
		return reflect.Value{}, false
	}
	return v, true
}

// method resolves the first alias that names a callable.
func (s surface) method(alias string) (reflect.Value, bool) {
	m, ok := s.member(alias)
	if !ok || m.Kind() != reflect.Func {
		return reflect.Value{}, false
	}
	return m, true
}

func (s surface) hasAny(aliases []string) bool {
	for _, a := range aliases {
		if _, ok := s.method(a); ok {
			return true
		}
	}
	return false
}

// value resolves an alias to a plain value: a field, a map entry, or the result of a
// zero-argument (optionally ctx-taking) method.
func (s surface) value(ctx context.Context, alias string) (any, bool) {
	m, ok := s.member(alias)
	if !ok {
		return nil, false
	}
	if m.Kind() != reflect.Func {
		if isZero(m) {
			return nil, false
		}
		return m.Interface(), true
	}
	res, err := callFunc(ctx, m, nil)
	if err != nil || res == nil {
		return nil, false
	}
	return res, true
}

func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return v.IsZero()
}

// callFunc calls fn with args, prepending ctx when the first parameter is a context.Context.
// A trailing error result becomes the returned error; the first other result is the value.
func callFunc(ctx context.Context, fn reflect.Value, args []any) (result any, err error) {
	t := fn.Type()
	if t.NumIn() > 0 && t.In(0) == contextType {
		args = append([]any{ctx}, args...)
	}

	in, err := buildArgs(t, args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("client panicked: %v", r)
		}
	}()

	return splitResults(fn.Call(in))
}

func buildArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	numIn := t.NumIn()
	if t.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, errShapeMismatch
		}
	} else if len(args) != numIn {
		return nil, errShapeMismatch
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var paramType reflect.Type
		if t.IsVariadic() && i >= numIn-1 {
			paramType = t.In(numIn - 1).Elem()
		} else {
			paramType = t.In(i)
		}
		v, ok := convertArg(arg, paramType)
		if !ok {
			return nil, errShapeMismatch
		}
		in[i] = v
	}
	return in, nil
}

func convertArg(arg any, paramType reflect.Type) (reflect.Value, bool) {
	if arg == nil {
		switch paramType.Kind() {
		case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
			return reflect.Zero(paramType), true
		}
		return reflect.Value{}, false
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(paramType) {
		return v, true
	}
	if sameFamily(v.Kind(), paramType.Kind()) && v.Type().ConvertibleTo(paramType) {
		return v.Convert(paramType), true
	}

	// object-shaped arguments are re-decoded into the parameter's struct or map type
	if isObjectKind(v) && isObjectType(paramType) {
		data, err := json.Marshal(arg)
		if err != nil {
			return reflect.Value{}, false
		}
		target := reflect.New(paramType)
		if err := json.Unmarshal(data, target.Interface()); err != nil {
			return reflect.Value{}, false
		}
		return target.Elem(), true
	}
	return reflect.Value{}, false
}

func sameFamily(a, b reflect.Kind) bool {
	family := func(k reflect.Kind) int {
		switch k {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return 1
		case reflect.String:
			return 2
		case reflect.Slice:
			return 3
		case reflect.Struct:
			return 4
		}
		return 0
	}
	return family(a) != 0 && family(a) == family(b)
}

func isObjectKind(v reflect.Value) bool {
	k := v.Kind()
	if k == reflect.Ptr {
		k = v.Type().Elem().Kind()
	}
	return k == reflect.Map || k == reflect.Struct
}

func isObjectType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct || (t.Kind() == reflect.Map && t.Key().Kind() == reflect.String)
}

func splitResults(out []reflect.Value) (any, error) {
	var result any
	var err error
	for i, o := range out {
		if i == len(out)-1 && o.Type().Implements(errorType) && o.Type().Kind() == reflect.Interface {
			if !o.IsNil() {
				err = o.Interface().(error)
			}
			continue
		}
		if result == nil && o.IsValid() && o.CanInterface() {
			result = o.Interface()
		}
	}
	return result, err
}

// normalize turns a raw client result into generic JSON values (map[string]any, []any, ...).
func normalize(result any) (any, error) {
	switch r := result.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return decodeJSON(r)
	case []byte:
		return decodeJSON(r)
	case string:
		var v any
		if err := json.Unmarshal([]byte(r), &v); err == nil {
			return v, nil
		}
		return r, nil
	case map[string]any, []any:
		return r, nil
	}

	rv := reflect.ValueOf(result)
	if (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, errUnexpectedResponse(err)
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errUnexpectedResponse(err)
	}
	return v, nil
}
