package dbus

import (
	"context"
)

type senderContextKey struct{}

func withContextSender(ctx context.Context, iface Interface) context.Context {
	return context.WithValue(ctx, senderContextKey{}, iface)
}

// ContextSender returns the Interface that sent the method call
// being handled by the current [Conn.Handle] callback, if ctx was
// derived from one.
func ContextSender(ctx context.Context) (Interface, bool) {
	v := ctx.Value(senderContextKey{})
	if v == nil {
		return Interface{}, false
	}
	if ret, ok := v.(Interface); ok {
		return ret, true
	}
	return Interface{}, false
}
