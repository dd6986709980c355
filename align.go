package dbus

import "reflect"

// UnixFdIndex is the wire type of the DBus "h" kind: a uint32 index
// into an out-of-band array of file descriptors sent alongside a
// message. This library does not transfer real file descriptors (see
// doc.go); UnixFdIndex only lets a type declare the field and round
// trip its index value.
type UnixFdIndex uint32

// alignOf returns the DBus alignment, in bytes, of the basic kind k.
// Composite kinds (struct, array, map, variant) are not covered here;
// see alignAsStruct and the per-kind Writer/Reader methods.
func alignOf(k reflect.Kind) int {
	switch k {
	case reflect.Uint8:
		return 1
	case reflect.Bool:
		return 4
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32:
		return 4
	case reflect.Int64, reflect.Uint64:
		return 8
	case reflect.Float64:
		return 8
	case reflect.String:
		return 4
	default:
		return 1
	}
}

// derefType strips every layer of pointer indirection from t.
func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// derefZero dereferences v through any pointers, returning the zero
// Value if it passes through a nil pointer. The result is not
// settable.
func derefZero(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// derefAlloc dereferences v through any pointers, allocating zero
// values for nil pointers along the way. The result is settable.
func derefAlloc(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	return v
}
