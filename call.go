package dbus

import "context"

// callOpts holds the accumulated effect of a Call's options.
type callOpts struct {
	noAutoStart bool
	interactive bool
}

// CallOption adjusts the behavior of a single method call.
type CallOption func(*callOpts)

// NoAutoStart prevents the bus from auto-starting a service to
// satisfy the call, if the named peer is not currently running.
func NoAutoStart() CallOption {
	return func(o *callOpts) { o.noAutoStart = true }
}

// Interactive tells the bus that the caller is prepared to wait for an
// interactive authorization prompt, if the destination requires
// additional privileges to service the call.
func Interactive() CallOption {
	return func(o *callOpts) { o.interactive = true }
}

func (o callOpts) flags() byte {
	var f byte
	if o.noAutoStart {
		f |= 0x2
	}
	if o.interactive {
		f |= 0x4
	}
	return f
}

// Call invokes method on iface, marshaling req as the request body
// (req may be nil) and returning the decoded response.
func Call[T any](ctx context.Context, iface Interface, method string, req any, opts ...CallOption) (T, error) {
	var resp T
	if err := iface.Call(ctx, method, req, &resp, opts...); err != nil {
		var zero T
		return zero, err
	}
	return resp, nil
}

// GetProperty reads and returns the value of the named property on
// iface.
func GetProperty[T any](ctx context.Context, iface Interface, name string, opts ...CallOption) (T, error) {
	var resp T
	if err := iface.GetProperty(ctx, name, &resp); err != nil {
		var zero T
		return zero, err
	}
	return resp, nil
}
