package dbus

import (
	"cmp"
	"context"
	"maps"
	"strings"
)

// Object is a handle to an object exported by a [Peer] at a given
// path.
type Object struct {
	p    Peer
	path ObjectPath
}

func (o Object) Conn() *Conn       { return o.p.Conn() }
func (o Object) Peer() Peer        { return o.p }
func (o Object) Path() ObjectPath  { return o.path }

func (o Object) String() string {
	return o.p.String() + string(o.path)
}

// Child returns the Object at the given path relative to o.
func (o Object) Child(relative string) Object {
	return o.p.Object(o.path.Append(relative))
}

// Compare orders two Objects by peer name, then by path. It is
// suitable for use with heaps and sorted containers when walking an
// object tree.
func Compare(a, b Object) int {
	if c := cmp.Compare(a.p.name, b.p.name); c != 0 {
		return c
	}
	return cmp.Compare(a.path, b.path)
}

func (o Object) Interface(name string) Interface {
	return Interface{
		o:    o,
		name: name,
	}
}

// Introspect returns the object's introspection data, as reported by
// its org.freedesktop.DBus.Introspectable interface.
func (o Object) Introspect(ctx context.Context, opts ...CallOption) (*ObjectDescription, error) {
	var xml string
	if err := o.Interface(ifaceIntrospectable).Call(ctx, "Introspect", nil, &xml, opts...); err != nil {
		return nil, err
	}
	desc, err := parseIntrospection(xml)
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// Interfaces returns the interfaces implemented by the object,
// according to its own introspection data.
func (o Object) Interfaces(ctx context.Context, opts ...CallOption) ([]Interface, error) {
	desc, err := o.Introspect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	ret := make([]Interface, 0, len(desc.Interfaces))
	for n := range desc.Interfaces {
		ret = append(ret, o.Interface(n))
	}
	return ret, nil
}

// ManagedObjects returns the object's managed subtree, as reported by
// its org.freedesktop.DBus.ObjectManager interface.
func (o Object) ManagedObjects(ctx context.Context, opts ...CallOption) (map[Object][]Interface, error) {
	// object path -> interface name -> map[property name]value
	var resp map[ObjectPath]map[string]map[string]Variant
	err := o.Interface(ifaceObjectManager).Call(ctx, "GetManagedObjects", nil, &resp, opts...)
	if err != nil {
		return nil, err
	}
	ret := make(map[Object][]Interface, len(resp))
	for path, ifs := range resp {
		if !strings.HasPrefix(string(path), string(o.path)) {
			continue
		}
		child := o.Peer().Object(path)
		ifaces := make([]Interface, 0, len(ifs))
		for ifname := range maps.Keys(ifs) {
			ifaces = append(ifaces, child.Interface(ifname))
		}
		ret[child] = ifaces
	}
	return ret, nil
}
