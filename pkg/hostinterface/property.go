package hostinterface

import (
	"fmt"
	"strings"
)

// PropertyName joins node, family and field into a host property name.
func PropertyName(node, family, field string) string {
	return node + "." + family + "." + field
}

// SplitPropertyName breaks a name into node, family and field. Family may
// hold colons but never dots.
func SplitPropertyName(name string) (node, family, field string, ok bool) {
	first := strings.Index(name, ".")
	last := strings.LastIndex(name, ".")
	if first < 0 || first == last {
		return "", "", "", false
	}
	return name[:first], name[first+1 : last], name[last+1:], true
}

// detect picks a property type from a Go value.
func detect(v any) (PropertyType, error) {
	switch v.(type) {
	case int, []int:
		return IntType, nil
	case float64, []float64:
		return FloatType, nil
	case string, []string:
		return StringType, nil
	}
	return 0, fmt.Errorf("unsupported property value %T", v)
}

// GetProperty reads a property as []int, []float64 or []string.
func GetProperty(h Host, name string) (any, error) {
	info, err := h.PropertyInfo(name)
	if err != nil {
		return nil, err
	}
	switch info.Type {
	case IntType:
		return h.IntProperty(name)
	case FloatType:
		return h.FloatProperty(name)
	default:
		return h.StringProperty(name)
	}
}

// SetProperty writes v, creating the property with width dim when absent.
// v may be a scalar or a slice of int, float64 or string.
func SetProperty(h Host, name string, v any, dim int) error {
	t, err := detect(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHostCall, name, err)
	}
	if err := ensure(h, name, t, dim); err != nil {
		return err
	}
	switch x := v.(type) {
	case int:
		return h.SetIntProperty(name, []int{x})
	case []int:
		return h.SetIntProperty(name, x)
	case float64:
		return h.SetFloatProperty(name, []float64{x})
	case []float64:
		return h.SetFloatProperty(name, x)
	case string:
		return h.SetStringProperty(name, []string{x})
	default:
		return h.SetStringProperty(name, v.([]string))
	}
}

// AppendProperty appends v, creating the property when absent.
func AppendProperty(h Host, name string, v any, dim int) error {
	t, err := detect(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHostCall, name, err)
	}
	if err := ensure(h, name, t, dim); err != nil {
		return err
	}
	switch x := v.(type) {
	case int:
		return h.InsertIntProperty(name, []int{x})
	case []int:
		return h.InsertIntProperty(name, x)
	case float64:
		return h.InsertFloatProperty(name, []float64{x})
	case []float64:
		return h.InsertFloatProperty(name, x)
	case string:
		return h.InsertStringProperty(name, []string{x})
	default:
		return h.InsertStringProperty(name, v.([]string))
	}
}

// DeleteProperty removes a property when it exists.
func DeleteProperty(h Host, name string) error {
	if !h.PropertyExists(name) {
		return nil
	}
	return h.DeleteProperty(name)
}

func ensure(h Host, name string, t PropertyType, dim int) error {
	if dim < 1 {
		dim = 1
	}
	if h.PropertyExists(name) {
		info, err := h.PropertyInfo(name)
		if err != nil {
			return err
		}
		if info.Type != t {
			return fmt.Errorf("%w: %s holds %s, not %s", ErrHostCall, name, info.Type, t)
		}
		return nil
	}
	return h.NewProperty(name, t, dim)
}

// IntValue reads the first element of an int property.
func IntValue(h Host, name string) (int, error) {
	v, err := h.IntProperty(name)
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, fmt.Errorf("%w: %s is empty", ErrHostCall, name)
	}
	return v[0], nil
}

// StringValue reads the first element of a string property.
func StringValue(h Host, name string) (string, error) {
	v, err := h.StringProperty(name)
	if err != nil {
		return "", err
	}
	if len(v) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrHostCall, name)
	}
	return v[0], nil
}

// Reshape turns a flat array into rows of dim values. A trailing partial row
// is dropped.
func Reshape[T any](flat []T, dim int) [][]T {
	if dim < 1 {
		return nil
	}
	out := make([][]T, 0, len(flat)/dim)
	for i := 0; i+dim <= len(flat); i += dim {
		out = append(out, flat[i:i+dim])
	}
	return out
}
