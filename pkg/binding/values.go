package binding

import (
	"fmt"

	"github.com/artpar/channelgen/domain/param"
)

// Primitive is the set of Go types a scalar parameter decodes into.
type Primitive interface {
	string | int64 | float64 | bool
}

// Scalar extracts a required scalar from recovered values.
func Scalar[T Primitive](values map[string]any, name string) (T, error) {
	var zero T
	v, ok := values[name]
	if !ok || v == nil {
		return zero, fmt.Errorf("parameter %q: no value", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, &param.ValueError{Name: name, Want: fmt.Sprintf("%T", zero), Got: v}
	}
	return t, nil
}

// Optional extracts a scalar that may be absent.
func Optional[T Primitive](values map[string]any, name string) (*T, error) {
	if v, ok := values[name]; !ok || v == nil {
		return nil, nil
	}
	t, err := Scalar[T](values, name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List extracts an array parameter. Absent arrays yield nil.
func List[T Primitive](values map[string]any, name string) ([]T, error) {
	v, ok := values[name]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, &param.ValueError{Name: name, Want: "array", Got: v}
	}
	out := make([]T, len(raw))
	for i, item := range raw {
		t, ok := item.(T)
		if !ok {
			return nil, &param.ValueError{Name: fmt.Sprintf("%s[%d]", name, i), Want: fmt.Sprintf("%T", out[i]), Got: item}
		}
		out[i] = t
	}
	return out, nil
}

// Fields extracts an object parameter. Absent objects yield nil.
func Fields(values map[string]any, name string) (param.Object, error) {
	v, ok := values[name]
	if !ok || v == nil {
		return nil, nil
	}
	obj, ok := v.(param.Object)
	if !ok {
		return nil, &param.ValueError{Name: name, Want: "object", Got: v}
	}
	return obj, nil
}

// Items converts a typed slice for Channel.Resolve and Channel.Query.
// A nil slice stays nil so that absent optional arrays are skipped.
func Items[T any](xs []T) any {
	if xs == nil {
		return nil
	}
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
