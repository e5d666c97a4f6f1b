package param

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Field is one key of a flat object value.
type Field struct {
	Key   string
	Value any
}

// Object is an ordered flat object. Order is preserved through encoding.
type Object []Field

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, f := range o {
		keys[i] = f.Key
	}
	return keys
}

var (
	ErrParse  = errors.New("parameter parse failed")
	ErrDecode = errors.New("parameter decode failed")
	ErrValue  = errors.New("parameter value does not match its type")
)

// ParseError reports a scalar that could not be parsed as its declared type.
type ParseError struct {
	Name   string
	Value  string
	Scalar Scalar
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parameter %q: cannot parse %q as %s", e.Name, e.Value, e.Scalar)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// DecodeError reports serialized text that does not follow the parameter's style.
type DecodeError struct {
	Name   string
	Input  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("parameter %q: cannot decode %q: %s", e.Name, e.Input, e.Reason)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ValueError reports a Go value whose shape does not match the parameter type.
type ValueError struct {
	Name string
	Want string
	Got  any
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("parameter %q: expected %s, got %T", e.Name, e.Want, e.Got)
}

func (e *ValueError) Is(target error) bool { return target == ErrValue }

// formatScalar renders a scalar value as text, before escaping.
func formatScalar(spec Spec, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", &ValueError{Name: spec.Name, Want: "finite number", Got: v}
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", &ValueError{Name: spec.Name, Want: "scalar", Got: v}
	}
}

// parseScalar converts decoded text into the declared scalar type.
// Numbers parse strictly; booleans accept only "true" and "false".
func parseScalar(spec Spec, s string) (any, error) {
	switch spec.Scalar {
	case ScalarInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &ParseError{Name: spec.Name, Value: s, Scalar: spec.Scalar}
		}
		return n, nil
	case ScalarNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &ParseError{Name: spec.Name, Value: s, Scalar: spec.Scalar}
		}
		return f, nil
	case ScalarBoolean:
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, &ParseError{Name: spec.Name, Value: s, Scalar: spec.Scalar}
	default:
		return s, nil
	}
}

// items normalizes any slice value to []any.
func items(spec Spec, v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []string:
		return anySlice(x), nil
	case []int64:
		return anySlice(x), nil
	case []int:
		return anySlice(x), nil
	case []float64:
		return anySlice(x), nil
	case []bool:
		return anySlice(x), nil
	case nil:
		return nil, nil
	default:
		return nil, &ValueError{Name: spec.Name, Want: "array", Got: v}
	}
}

func anySlice[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// fields normalizes an object value. Plain maps are accepted but encode in
// sorted key order since Go maps carry none.
func fields(spec Spec, v any) (Object, error) {
	switch x := v.(type) {
	case Object:
		return x, nil
	case []Field:
		return Object(x), nil
	case map[string]string:
		return objectFromMap(x), nil
	case map[string]any:
		return objectFromMap(x), nil
	case nil:
		return nil, nil
	default:
		return nil, &ValueError{Name: spec.Name, Want: "object", Got: v}
	}
}

func objectFromMap[V any](m map[string]V) Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := make(Object, 0, len(keys))
	for _, k := range keys {
		obj = append(obj, Field{Key: k, Value: m[k]})
	}
	return obj
}
