package dbus

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/havenfold/dbus/fragments"
)

// Exportable marks a Go value that can be exported on the bus at a
// fixed object path with [Conn.RegisterObject].
//
// Exported methods whose signature matches one of the shapes
// documented on [Conn.RegisterObject] become DBus methods on
// DBusInterface. Exported fields tagged `dbus:"property"` or
// `dbus:"property,readonly"` become DBus properties.
type Exportable interface {
	// DBusInterface returns the name of the interface the object's
	// methods and properties are exported under.
	DBusInterface() string
}

// registeredObject is the local bookkeeping for one object exported
// with [Conn.RegisterObject].
type registeredObject struct {
	path  ObjectPath
	iface string
	value reflect.Value // addressable struct value backing obj

	methods map[string]handlerFunc
	props   map[string]*registeredProperty
	desc    *InterfaceDescription
}

// registeredProperty ties a PropertyDescription to the exported
// field that backs it.
type registeredProperty struct {
	desc  *PropertyDescription
	index []int
}

func (p *registeredProperty) get(objVal reflect.Value) reflect.Value {
	return objVal.FieldByIndex(p.index)
}

// RegisterObject exports obj as a DBus object at path on busName,
// claiming busName with [Conn.RequestName] if it isn't already owned
// by this connection.
//
// obj's exported methods are scanned for the following shapes, where
// ReqT and RespT determine the method's [Signature]. Methods that
// don't match any of these shapes are not exported:
//
//	func(context.Context) error
//	func(context.Context) (RespT, error)
//	func(context.Context, ReqT) error
//	func(context.Context, ReqT) (RespT, error)
//
// obj's exported fields tagged `dbus:"property"` become readable and
// writable properties; `dbus:"property,readonly"` fields become
// read-only properties. Setting a writable property via
// org.freedesktop.DBus.Properties.Set emits PropertiesChanged.
//
// The registered object also automatically answers
// org.freedesktop.DBus.Introspectable.Introspect and the
// org.freedesktop.DBus.Properties methods; obj does not need to
// implement these itself.
func (c *Conn) RegisterObject(ctx context.Context, busName string, path ObjectPath, obj Exportable) error {
	if busName != "" {
		if _, err := c.RequestName(ctx, busName, NameRequestNoQueue|NameRequestReplace); err != nil {
			return fmt.Errorf("requesting bus name %s: %w", busName, err)
		}
	}

	ro, err := newRegisteredObject(path, obj)
	if err != nil {
		return err
	}
	c.objects[path.Clean()] = ro
	return nil
}

// UnregisterObject removes the object previously exported at path
// with [Conn.RegisterObject]. It does not release any bus name.
func (c *Conn) UnregisterObject(path ObjectPath) {
	delete(c.objects, path.Clean())
}

func newRegisteredObject(path ObjectPath, obj Exportable) (*registeredObject, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: object registered at %s must be a pointer to struct, got %s", ErrInvalidHandle, path, v.Type())
	}

	ro := &registeredObject{
		path:    path.Clean(),
		iface:   obj.DBusInterface(),
		value:   v.Elem(),
		methods: map[string]handlerFunc{},
		props:   map[string]*registeredProperty{},
	}
	desc := &InterfaceDescription{Name: ro.iface}

	t := v.Type()
	for i := range t.NumMethod() {
		m := t.Method(i)
		if m.Name == "DBusInterface" {
			continue
		}
		handler, mdesc, ok := methodHandlerForFunc(v.Method(i).Interface())
		if !ok {
			continue
		}
		mdesc.Name = m.Name
		ro.methods[m.Name] = handler
		desc.Methods = append(desc.Methods, mdesc)
	}

	et := v.Elem().Type()
	for i := range et.NumField() {
		f := et.Field(i)
		if !f.IsExported() {
			continue
		}
		readonly, ok := propertyTag(f)
		if !ok {
			continue
		}
		sig, err := signatureFor(f.Type, nil)
		if err != nil {
			return nil, fmt.Errorf("property %s.%s: %w", ro.iface, f.Name, err)
		}
		pdesc := &PropertyDescription{
			Name:                f.Name,
			Type:                sig,
			Readable:            true,
			Writable:            !readonly,
			EmitsSignal:         !readonly,
			SignalIncludesValue: !readonly,
		}
		ro.props[f.Name] = &registeredProperty{desc: pdesc, index: f.Index}
		desc.Properties = append(desc.Properties, pdesc)
	}

	slices.SortFunc(desc.Methods, func(a, b *MethodDescription) int { return strings.Compare(a.Name, b.Name) })
	slices.SortFunc(desc.Properties, func(a, b *PropertyDescription) int { return strings.Compare(a.Name, b.Name) })
	ro.desc = desc

	return ro, nil
}

// propertyTag reports whether f is tagged as a DBus property, and if
// so, whether it's read-only.
func propertyTag(f reflect.StructField) (readonly, ok bool) {
	tag, hasTag := f.Tag.Lookup("dbus")
	if !hasTag {
		return false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "property" {
		return false, false
	}
	return slices.Contains(parts[1:], "readonly"), true
}

// methodHandlerForFunc adapts fn, a bound method value, into a
// handlerFunc, if fn has one of the shapes documented on
// [Conn.RegisterObject]. ok is false if fn doesn't match.
func methodHandlerForFunc(fn any) (handler handlerFunc, desc *MethodDescription, ok bool) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	ni, no := t.NumIn(), t.NumOut()

	if ni < 1 || ni > 2 || no < 1 || no > 2 {
		return nil, nil, false
	}
	if !t.In(0).Implements(reflect.TypeFor[context.Context]()) {
		return nil, nil, false
	}
	if !t.Out(no - 1).Implements(reflect.TypeFor[error]()) {
		return nil, nil, false
	}

	desc = &MethodDescription{}

	var (
		reqDec fragments.DecoderFunc
		err    error
	)
	if ni == 2 {
		reqDec, err = decoderFor(t.In(1))
		if err != nil {
			return nil, nil, false
		}
		sig, err := signatureFor(t.In(1), nil)
		if err != nil {
			return nil, nil, false
		}
		desc.In = argsOf(sig)
	}
	if no == 2 {
		if _, err = encoderFor(t.Out(0)); err != nil {
			return nil, nil, false
		}
		sig, err := signatureFor(t.Out(0), nil)
		if err != nil {
			return nil, nil, false
		}
		desc.Out = argsOf(sig)
	}

	type s struct{ numIn, numOut int }
	switch (s{ni, no}) {
	case s{1, 1}:
		return func(ctx context.Context, obj ObjectPath, req *fragments.Decoder) (any, error) {
			rets := v.Call([]reflect.Value{reflect.ValueOf(ctx)})
			if err, ok := rets[0].Interface().(error); ok && err != nil {
				return nil, err
			}
			return nil, nil
		}, desc, true
	case s{1, 2}:
		return func(ctx context.Context, obj ObjectPath, req *fragments.Decoder) (any, error) {
			rets := v.Call([]reflect.Value{reflect.ValueOf(ctx)})
			if err, ok := rets[1].Interface().(error); ok && err != nil {
				return nil, err
			}
			return rets[0].Interface(), nil
		}, desc, true
	case s{2, 1}:
		return func(ctx context.Context, obj ObjectPath, req *fragments.Decoder) (any, error) {
			body := reflect.New(t.In(1))
			if err := reqDec(ctx, req, body.Elem()); err != nil {
				return nil, err
			}
			rets := v.Call([]reflect.Value{reflect.ValueOf(ctx), body.Elem()})
			if err, ok := rets[0].Interface().(error); ok && err != nil {
				return nil, err
			}
			return nil, nil
		}, desc, true
	case s{2, 2}:
		return func(ctx context.Context, obj ObjectPath, req *fragments.Decoder) (any, error) {
			body := reflect.New(t.In(1))
			if err := reqDec(ctx, req, body.Elem()); err != nil {
				return nil, err
			}
			rets := v.Call([]reflect.Value{reflect.ValueOf(ctx), body.Elem()})
			if err, ok := rets[1].Interface().(error); ok && err != nil {
				return nil, err
			}
			return rets[0].Interface(), nil
		}, desc, true
	default:
		return nil, nil, false
	}
}

// argsOf splits a struct signature into its member ArgumentDescriptions.
func argsOf(sig Signature) []ArgumentDescription {
	t := sig.asStruct().Type()
	if t == nil {
		return nil
	}
	ret := make([]ArgumentDescription, t.NumField())
	for i := range t.NumField() {
		fsig, err := signatureFor(t.Field(i).Type, nil)
		if err != nil {
			continue
		}
		ret[i] = ArgumentDescription{Type: fsig}
	}
	return ret
}

// dispatchError is an error carrying a specific DBus error name,
// reported to the caller instead of the generic
// org.freedesktop.DBus.Error.Failed.
type dispatchError struct {
	name string
	err  error
}

func (e *dispatchError) Error() string { return e.err.Error() }
func (e *dispatchError) Unwrap() error { return e.err }

func errNameFor(err error) string {
	var de *dispatchError
	if errors.As(err, &de) {
		return de.name
	}
	return "org.freedesktop.DBus.Error.Failed"
}

var introspectableInterfaceDesc = &InterfaceDescription{
	Name: ifaceIntrospectable,
	Methods: []*MethodDescription{
		{Name: "Introspect", Out: []ArgumentDescription{{Name: "xml_data", Type: mustParseSignature("s")}}},
	},
}

var propertiesInterfaceDesc = &InterfaceDescription{
	Name: ifaceProps,
	Methods: []*MethodDescription{
		{
			Name: "Get",
			In: []ArgumentDescription{
				{Name: "interface_name", Type: mustParseSignature("s")},
				{Name: "property_name", Type: mustParseSignature("s")},
			},
			Out: []ArgumentDescription{{Name: "value", Type: mustParseSignature("v")}},
		},
		{
			Name: "GetAll",
			In:   []ArgumentDescription{{Name: "interface_name", Type: mustParseSignature("s")}},
			Out:  []ArgumentDescription{{Name: "properties", Type: mustParseSignature("a{sv}")}},
		},
		{
			Name: "Set",
			In: []ArgumentDescription{
				{Name: "interface_name", Type: mustParseSignature("s")},
				{Name: "property_name", Type: mustParseSignature("s")},
				{Name: "value", Type: mustParseSignature("v")},
			},
		},
	},
	Signals: []*SignalDescription{
		{
			Name: "PropertiesChanged",
			Args: []ArgumentDescription{
				{Name: "interface_name", Type: mustParseSignature("s")},
				{Name: "changed_properties", Type: mustParseSignature("a{sv}")},
				{Name: "invalidated_properties", Type: mustParseSignature("as")},
			},
		},
	},
}

func invalidArgs(format string, args ...any) error {
	return &dispatchError{"org.freedesktop.DBus.Error.InvalidArgs", fmt.Errorf(format, args...)}
}

func unknownMethod(format string, args ...any) error {
	return &dispatchError{"org.freedesktop.DBus.Error.UnknownMethod", fmt.Errorf(format, args...)}
}

// dispatchObjectCall routes m to a registered object at m.Path, or to
// the dynamic Introspectable fallback for an unregistered ancestor of
// one or more registered objects. handled is false if neither applies
// and the caller should fall back to [Conn.handlers].
func (c *Conn) dispatchObjectCall(ctx context.Context, m *msg) (resp any, handled bool, err error) {
	ro := c.objects[m.Path.Clean()]
	if ro == nil {
		if m.Interface == ifaceIntrospectable && m.Member == "Introspect" {
			if children := c.childrenOf(m.Path); len(children) > 0 {
				return introspectionXML(&ObjectDescription{Children: children}), true, nil
			}
		}
		return nil, false, nil
	}

	switch m.Interface {
	case ifaceIntrospectable:
		if m.Member != "Introspect" {
			return nil, true, unknownMethod("no method %s on interface %s", m.Member, m.Interface)
		}
		return introspectionXML(&ObjectDescription{
			Interfaces: map[string]*InterfaceDescription{
				ro.iface:            ro.desc,
				ifaceIntrospectable: introspectableInterfaceDesc,
				ifaceProps:          propertiesInterfaceDesc,
			},
			Children: c.childrenOf(m.Path),
		}), true, nil

	case ifaceProps:
		resp, err = c.dispatchProperties(ctx, ro, m)
		return resp, true, err

	case ro.iface:
		h := ro.methods[m.Member]
		if h == nil {
			return nil, true, unknownMethod("no method %s on interface %s", m.Member, m.Interface)
		}
		resp, err = h(ctx, m.Path, m.decoder())
		return resp, true, err
	}

	return nil, false, nil
}

func (c *Conn) dispatchProperties(ctx context.Context, ro *registeredObject, m *msg) (any, error) {
	switch m.Member {
	case "Get":
		var req struct {
			InterfaceName string
			PropertyName  string
		}
		if err := m.decoder().Value(ctx, &req); err != nil {
			return nil, err
		}
		if req.InterfaceName != "" && req.InterfaceName != ro.iface {
			return nil, &dispatchError{"org.freedesktop.DBus.Error.UnknownInterface", fmt.Errorf("no interface %s", req.InterfaceName)}
		}
		p := ro.props[req.PropertyName]
		if p == nil || !p.desc.Readable {
			return nil, invalidArgs("no readable property %s", req.PropertyName)
		}
		return Variant{Value: p.get(ro.value).Interface()}, nil

	case "GetAll":
		var iface string
		if err := m.decoder().Value(ctx, &iface); err != nil {
			return nil, err
		}
		all := map[string]Variant{}
		if iface == "" || iface == ro.iface {
			for name, p := range ro.props {
				if p.desc.Readable {
					all[name] = Variant{Value: p.get(ro.value).Interface()}
				}
			}
		}
		return all, nil

	case "Set":
		var req struct {
			InterfaceName string
			PropertyName  string
			Value         Variant
		}
		if err := m.decoder().Value(ctx, &req); err != nil {
			return nil, err
		}
		if req.InterfaceName != "" && req.InterfaceName != ro.iface {
			return nil, &dispatchError{"org.freedesktop.DBus.Error.UnknownInterface", fmt.Errorf("no interface %s", req.InterfaceName)}
		}
		p := ro.props[req.PropertyName]
		if p == nil || !p.desc.Writable {
			return nil, invalidArgs("no writable property %s", req.PropertyName)
		}
		fv := p.get(ro.value)
		nv := reflect.ValueOf(req.Value.Value)
		if !nv.IsValid() || !nv.Type().AssignableTo(fv.Type()) {
			return nil, invalidArgs("property %s expects type %s", req.PropertyName, fv.Type())
		}
		fv.Set(nv)
		if p.desc.EmitsSignal {
			changed := map[string]Variant{}
			if p.desc.SignalIncludesValue {
				changed[req.PropertyName] = Variant{Value: fv.Interface()}
			}
			var invalidated []string
			if !p.desc.SignalIncludesValue {
				invalidated = []string{req.PropertyName}
			}
			if err := c.EmitSignal(ctx, m.Path, PropertiesChanged{
				Interface:         ro.iface,
				ChangedProperties: changed,
				InvalidatedProps:  invalidated,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return nil, unknownMethod("no method %s on interface %s", m.Member, m.Interface)
}

// childrenOf returns the immediate child path segments, among every
// currently registered object, of the given path.
func (c *Conn) childrenOf(path ObjectPath) []string {
	base := path.Clean()
	seen := map[string]bool{}
	for p := range maps.Keys(c.objects) {
		if p == base || !p.IsChildOf(base) {
			continue
		}
		rest := strings.TrimPrefix(strings.TrimPrefix(string(p), string(base)), "/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[rest] = true
		}
	}
	ret := slices.Sorted(maps.Keys(seen))
	return ret
}

const introspectionHeader = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
`

// introspectionXML renders desc as the XML document expected as the
// body of an Introspectable.Introspect reply.
func introspectionXML(desc *ObjectDescription) string {
	var b strings.Builder
	b.WriteString(introspectionHeader)
	b.WriteString("<node>\n")
	for _, name := range slices.Sorted(maps.Keys(desc.Interfaces)) {
		writeInterfaceXML(&b, desc.Interfaces[name])
	}
	for _, child := range desc.Children {
		fmt.Fprintf(&b, "  <node name=%q/>\n", child)
	}
	b.WriteString("</node>\n")
	return b.String()
}

func writeInterfaceXML(b *strings.Builder, d *InterfaceDescription) {
	fmt.Fprintf(b, "  <interface name=%q>\n", d.Name)
	for _, m := range d.Methods {
		writeMethodXML(b, m)
	}
	for _, s := range d.Signals {
		writeSignalXML(b, s)
	}
	for _, p := range d.Properties {
		writePropertyXML(b, p)
	}
	b.WriteString("  </interface>\n")
}

func writeMethodXML(b *strings.Builder, m *MethodDescription) {
	fmt.Fprintf(b, "    <method name=%q>\n", m.Name)
	for _, a := range m.In {
		writeArgXML(b, a, "in")
	}
	for _, a := range m.Out {
		writeArgXML(b, a, "out")
	}
	if m.Deprecated {
		b.WriteString("      <annotation name=\"org.freedesktop.DBus.Deprecated\" value=\"true\"/>\n")
	}
	if m.NoReply {
		b.WriteString("      <annotation name=\"org.freedesktop.DBus.Method.NoReply\" value=\"true\"/>\n")
	}
	b.WriteString("    </method>\n")
}

func writeSignalXML(b *strings.Builder, s *SignalDescription) {
	fmt.Fprintf(b, "    <signal name=%q>\n", s.Name)
	for _, a := range s.Args {
		writeArgXML(b, a, "")
	}
	if s.Deprecated {
		b.WriteString("      <annotation name=\"org.freedesktop.DBus.Deprecated\" value=\"true\"/>\n")
	}
	b.WriteString("    </signal>\n")
}

func writeArgXML(b *strings.Builder, a ArgumentDescription, direction string) {
	b.WriteString("      <arg")
	if a.Name != "" {
		fmt.Fprintf(b, " name=%q", a.Name)
	}
	fmt.Fprintf(b, " type=%q", a.Type.String())
	if direction != "" {
		fmt.Fprintf(b, " direction=%q", direction)
	}
	b.WriteString("/>\n")
}

func writePropertyXML(b *strings.Builder, p *PropertyDescription) {
	access := "read"
	switch {
	case p.Readable && p.Writable:
		access = "readwrite"
	case p.Writable:
		access = "write"
	}
	fmt.Fprintf(b, "    <property name=%q type=%q access=%q>\n", p.Name, p.Type.String(), access)
	switch {
	case p.Constant:
		b.WriteString("      <annotation name=\"org.freedesktop.DBus.Property.EmitsChangedSignal\" value=\"const\"/>\n")
	case !p.EmitsSignal:
		b.WriteString("      <annotation name=\"org.freedesktop.DBus.Property.EmitsChangedSignal\" value=\"false\"/>\n")
	case !p.SignalIncludesValue:
		b.WriteString("      <annotation name=\"org.freedesktop.DBus.Property.EmitsChangedSignal\" value=\"invalidates\"/>\n")
	}
	if p.Deprecated {
		b.WriteString("      <annotation name=\"org.freedesktop.DBus.Deprecated\" value=\"true\"/>\n")
	}
	b.WriteString("    </property>\n")
}
