package types

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNotCloneable indicates the request carries state that cannot be
// safely deep-copied. Callers should abandon the multi-architecture path
// and fall back to a plain single-architecture build.
var ErrNotCloneable = errors.New("request is not cloneable")

// Clone returns a deep, independent copy of the request. Mutations to the
// copy's maps, slices and option values are invisible to the original, so
// per-architecture workers can adjust their configuration freely.
//
// Option values that are not plain data (functions, channels, pointers,
// open handles) make the whole request non-cloneable.
func (r *Request) Clone() (*Request, error) {
	clone := *r

	if r.Archs != nil {
		clone.Archs = make(FatArchSet, len(r.Archs))
		copy(clone.Archs, r.Archs)
	}

	if r.Environment != nil {
		clone.Environment = make(map[string]string, len(r.Environment))
		for k, v := range r.Environment {
			clone.Environment[k] = v
		}
	}

	if r.ArchInPackageID != nil {
		v := *r.ArchInPackageID
		clone.ArchInPackageID = &v
	}

	if r.Notifications != nil {
		n := *r.Notifications
		if r.Notifications.Enabled != nil {
			enabled := *r.Notifications.Enabled
			n.Enabled = &enabled
		}
		clone.Notifications = &n
	}

	if r.Options != nil {
		opts := make(map[string]interface{}, len(r.Options))
		for k, v := range r.Options {
			copied, err := cloneValue(v)
			if err != nil {
				return nil, fmt.Errorf("option %q: %w", k, err)
			}
			opts[k] = copied
		}
		clone.Options = opts
	}

	return &clone, nil
}

// cloneValue deep-copies a plain-data value: scalars, and slices or
// string-keyed maps thereof, recursively.
func cloneValue(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v, nil

	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			copied, err := cloneValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = copied
		}
		return out, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keyed by %s", ErrNotCloneable, rv.Type().Key())
		}
		out := make(map[string]interface{}, rv.Len())
		for _, key := range rv.MapKeys() {
			copied, err := cloneValue(rv.MapIndex(key).Interface())
			if err != nil {
				return nil, err
			}
			out[key.String()] = copied
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: value of type %T", ErrNotCloneable, v)
	}
}
