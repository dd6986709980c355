package dbus

import (
	"context"
	"path"
	"reflect"
	"strings"

	"github.com/havenfold/dbus/fragments"
)

type ObjectPath string

// Clean returns the object path with any trailing slash removed,
// except for the root path "/" itself.
func (p ObjectPath) Clean() ObjectPath {
	if p == "" {
		return "/"
	}
	c := path.Clean(string(p))
	return ObjectPath(c)
}

// IsChildOf reports whether p is equal to parent, or nested under it.
func (p ObjectPath) IsChildOf(parent ObjectPath) bool {
	p, parent = p.Clean(), parent.Clean()
	if p == parent {
		return true
	}
	if parent == "/" {
		return true
	}
	return strings.HasPrefix(string(p), string(parent)+"/")
}

// Append returns the object path formed by appending the relative
// path segment to p.
func (p ObjectPath) Append(relative string) ObjectPath {
	base := strings.TrimSuffix(string(p), "/")
	relative = strings.TrimPrefix(relative, "/")
	return ObjectPath(base + "/" + relative).Clean()
}

func (p ObjectPath) MarshalDBus(ctx context.Context, st *fragments.Encoder) error {
	st.Value(ctx, string(p))
	return nil
}

func (p *ObjectPath) UnmarshalDBus(ctx context.Context, st *fragments.Decoder) error {
	var s string
	if err := st.Value(ctx, &s); err != nil {
		return err
	}
	*p = ObjectPath(s)
	return nil
}

func (p ObjectPath) IsDBusStruct() bool { return false }

var objectPathSignature = mkSignature(reflect.TypeFor[ObjectPath](), "o")

func (p ObjectPath) SignatureDBus() Signature { return objectPathSignature }
