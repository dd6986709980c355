package dbus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/creachadair/mds/queue"
	"github.com/havenfold/dbus/fragments"
	"github.com/havenfold/dbus/transport"
)

// SystemBus connects to the system bus.
//
// The bus address is read from DBUS_SYSTEM_BUS_ADDRESS if set,
// otherwise the well-known system bus socket path is used.
func SystemBus(ctx context.Context) (*Conn, error) {
	if path := os.Getenv("DBUS_SYSTEM_BUS_ADDRESS"); path != "" {
		for _, uri := range strings.Split(path, ";") {
			addr, ok := strings.CutPrefix(uri, "unix:path=")
			if !ok {
				continue
			}
			return newConn(ctx, addr)
		}
	}
	return newConn(ctx, "/var/run/dbus/system_bus_socket")
}

// SessionBus connects to the current user's session bus.
func SessionBus(ctx context.Context) (*Conn, error) {
	path := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if path == "" {
		return nil, fmt.Errorf("%w: DBUS_SESSION_BUS_ADDRESS", ErrEnvVarNotFound)
	}
	for _, uri := range strings.Split(path, ";") {
		addr, ok := strings.CutPrefix(uri, "unix:path=")
		if !ok {
			continue
		}
		return newConn(ctx, addr)
	}
	return nil, fmt.Errorf("%w: no usable address in DBUS_SESSION_BUS_ADDRESS value %q", ErrInvalidAddressFormat, path)
}

// AccessibilityBus connects to the current user's accessibility bus.
//
// The bus address is read from AT_SPI_BUS_ADDRESS if set, otherwise
// the well-known per-user accessibility socket path is used.
func AccessibilityBus(ctx context.Context) (*Conn, error) {
	if path := os.Getenv("AT_SPI_BUS_ADDRESS"); path != "" {
		for _, uri := range strings.Split(path, ";") {
			addr, ok := strings.CutPrefix(uri, "unix:path=")
			if !ok {
				continue
			}
			return newConn(ctx, addr)
		}
	}
	return newConn(ctx, fmt.Sprintf("/run/user/%d/at-spi/bus_0", os.Getuid()))
}

func newConn(ctx context.Context, path string) (*Conn, error) {
	t, err := transport.DialUnix(ctx, path)
	if err != nil {
		if errors.Is(err, transport.ErrAuthFailed) {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFail, err)
		}
		return nil, err
	}
	return newConnFromTransport(ctx, t)
}

// newConnFromTransport builds a Conn around an already-authenticated
// transport. It is split out from newConn so that tests can drive a
// Conn over an in-process pipe instead of a real bus socket.
func newConnFromTransport(ctx context.Context, t transport.Transport) (*Conn, error) {
	ret := &Conn{
		t: t,
		enc: fragments.Encoder{
			Order:  fragments.NativeEndian,
			Mapper: mapEncoderFunc,
		},
		pending:  queue.New[*msg](),
		handlers: map[interfaceMember]handlerFunc{},
		objects:  map[ObjectPath]*registeredObject{},
	}
	ret.bus = ret.
		Peer("org.freedesktop.DBus").
		Object("/org/freedesktop/DBus")

	if err := ret.busIface().Call(ctx, "Hello", nil, &ret.clientID); err != nil {
		ret.Close()
		return nil, fmt.Errorf("getting DBus client ID: %w", err)
	}

	ret.Handle(ifacePeer, "Ping", func(context.Context, ObjectPath) error {
		return nil
	})
	uuid := sync.OnceValues(func() (string, error) {
		bs, err := os.ReadFile("/etc/machine-id")
		if errors.Is(err, fs.ErrNotExist) {
			bs, err = os.ReadFile("/var/lib/dbus/machine-id")
		}
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bs)), nil
	})
	ret.Handle(ifacePeer, "GetMachineId", func(context.Context, ObjectPath) (string, error) {
		return uuid()
	})

	return ret, nil
}

// Conn is a DBus connection.
//
// A Conn is not safe for concurrent use. All of its methods, and any
// handler registered with [Conn.Handle], must be driven from a single
// goroutine: method calls, incoming method dispatch, and signal
// delivery are all serviced cooperatively on whichever goroutine is
// currently blocked reading from the connection.
type Conn struct {
	t        transport.Transport
	clientID string

	bus Object

	// writeMu serializes writes of a header and its body as one
	// logical message. Conn's calling convention is single-threaded,
	// but a caller that chooses to hold a Conn across goroutines for
	// writes only (e.g. a Handle callback emitting a signal while the
	// main goroutine is blocked in a call) still needs this to avoid
	// interleaving two messages on the wire.
	writeMu sync.Mutex
	enc     fragments.Encoder
	encBody []byte
	encHdr  []byte

	closed bool

	// pending holds messages read off the wire that did not match the
	// reply being waited for at the time they arrived. A later call
	// takes its reply from here before reading the wire, and
	// [Conn.WaitMessage] drains it before its next blocking read;
	// [Conn.RunOnce] does not consult it.
	pending    *queue.Queue[*msg]
	lastSerial uint32

	handlers       map[interfaceMember]handlerFunc
	signalHandlers []signalHandler

	// objects holds the objects exported with [Conn.RegisterObject],
	// keyed by their cleaned path.
	objects map[ObjectPath]*registeredObject
}

type signalHandler struct {
	match *Match
	fn    func(ctx context.Context, hdr *header, body reflect.Value)
}

// Close closes the DBus connection.
//
// Every object registered with [Conn.RegisterObject] that implements
// io.Closer is closed first, in unspecified order.
func (c *Conn) Close() error {
	for _, ro := range c.objects {
		if closer, ok := ro.value.Addr().Interface().(io.Closer); ok {
			closer.Close()
		}
	}
	c.closed = true
	return c.t.Close()
}

// LocalName returns the connection's unique bus name.
func (c *Conn) LocalName() string {
	return c.clientID
}

// Peer returns a Peer for the given bus name.
//
// The returned value is a purely local handle. It does not indicate
// that the requested peer exists, or that it is currently reachable.
func (c *Conn) Peer(name string) Peer {
	return Peer{
		c:    c,
		name: name,
	}
}

// msg is one complete DBus message read off the wire: the decoded
// header, plus the still-encoded body bytes and the byte order used to
// write them.
type msg struct {
	header
	order fragments.ByteOrder
	body  []byte
}

func (m *msg) decoder() *fragments.Decoder {
	return &fragments.Decoder{
		Order:  m.order,
		Mapper: mapDecoderFunc,
		In:     bytes.NewBuffer(m.body),
	}
}

func (c *Conn) writeMsg(ctx context.Context, hdr *header, body any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.encBody = c.encBody[:0]
	if body != nil {
		c.enc.Out = c.encBody
		if err := c.enc.Value(ctx, body); err != nil {
			return err
		}
		sig, err := SignatureOf(body)
		if err != nil {
			return err
		}
		hdr.Length = uint32(len(c.enc.Out))
		hdr.Signature = sig.asMsgBody()
		c.encBody = c.enc.Out
	}

	c.enc.Out = c.encHdr[:0]
	if err := c.enc.Value(ctx, hdr); err != nil {
		return err
	}
	c.encHdr = c.enc.Out

	if _, err := c.t.Write(c.encHdr); err != nil {
		return err
	}
	if _, err := c.t.Write(c.encBody); err != nil {
		return err
	}

	return nil
}

// readMsg reads exactly one complete DBus message from the transport.
func (c *Conn) readMsg() (*msg, error) {
	dec := fragments.Decoder{
		Order:  fragments.NativeEndian,
		Mapper: mapDecoderFunc,
		In:     c.t,
	}
	var ret msg
	if err := dec.Value(context.Background(), &ret.header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: reading message header: %v", ErrUnexpectedEOF, err)
		}
		return nil, err
	}
	if err := ret.Valid(); err != nil {
		return nil, fmt.Errorf("received invalid header: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(c.t, int64(ret.header.Length)))
	if err != nil {
		return nil, fmt.Errorf("%w: reading message body: %v", ErrUnexpectedEOF, err)
	}
	ret.body = body
	ret.order = dec.Order
	return &ret, nil
}

// takePending removes and returns the first buffered message that is
// a reply to serial, preserving the relative order of everything else
// still waiting.
func (c *Conn) takePending(serial uint32) *msg {
	n := c.pending.Len()
	for range n {
		m, ok := c.pending.Pop()
		if !ok {
			return nil
		}
		if (m.Type == msgTypeReturn || m.Type == msgTypeError) && m.ReplySerial == serial {
			return m
		}
		c.pending.Add(m)
	}
	return nil
}

// call implements the blocking method-call/reply correlation described
// in the connection's design: write the request, then read messages
// one at a time -- dispatching any signal that matches a registered
// handler, and buffering everything else, incoming calls included, in
// c.pending -- until the matching reply arrives.
func (c *Conn) call(ctx context.Context, destination string, path ObjectPath, iface, method string, body any, response any, noReply bool, opts []CallOption) error {
	if c.closed {
		return net.ErrClosed
	}
	if response != nil && reflect.TypeOf(response).Kind() != reflect.Pointer {
		return errors.New("response parameter in Call must be a pointer, or nil")
	}

	var co callOpts
	for _, o := range opts {
		o(&co)
	}

	c.lastSerial++
	serial := c.lastSerial

	hdr := header{
		Type:        msgTypeCall,
		Flags:       co.flags(),
		Version:     1,
		Serial:      serial,
		Destination: destination,
		Path:        path,
		Interface:   iface,
		Member:      method,
	}
	if noReply {
		hdr.Flags |= 0x1
	}
	if err := hdr.Valid(); err != nil {
		return err
	}

	if err := c.writeMsg(ctx, &hdr, body); err != nil {
		return err
	}

	if !hdr.WantReply() {
		return nil
	}

	return c.waitReply(ctx, serial, response)
}

func (c *Conn) waitReply(ctx context.Context, serial uint32, response any) error {
	if m := c.takePending(serial); m != nil {
		return c.decodeReply(ctx, m, response)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := c.readMsg()
		if err != nil {
			return err
		}
		switch m.Type {
		case msgTypeReturn, msgTypeError:
			if m.ReplySerial == serial {
				return c.decodeReply(ctx, m, response)
			}
			// A reply to some other, already-abandoned or
			// still-pending call. Buffer it and keep reading.
			c.pending.Add(m)
		case msgTypeSignal:
			if !c.dispatchSignal(ctx, m) {
				c.pending.Add(m)
			}
		default:
			// An incoming MethodCall (or anything else) received while
			// a reply is outstanding is not serviced inline -- it is
			// buffered for a later WaitMessage to return.
			c.pending.Add(m)
		}
	}
}

func (c *Conn) decodeReply(ctx context.Context, m *msg, response any) error {
	if m.Type == msgTypeError {
		return decodeCallError(m)
	}
	if response != nil {
		if err := checkBodySignature(m.Signature, response); err != nil {
			return err
		}
		if err := m.decoder().Value(ctx, response); err != nil {
			return err
		}
	}
	return nil
}

// checkBodySignature reports an [ErrSignatureMismatch] if wire, the
// signature actually present on a message body, doesn't match the
// signature of the type response points to.
func checkBodySignature(wire Signature, response any) error {
	v := reflect.ValueOf(response)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil
	}
	want, err := signatureFor(v.Elem().Type(), nil)
	if err != nil {
		return err
	}
	if !want.IsZero() {
		want = want.asMsgBody()
	}
	if wire.String() != want.String() {
		return fmt.Errorf("%w: body has signature %q, want %q for %s", ErrSignatureMismatch, wire.String(), want.String(), v.Elem().Type())
	}
	return nil
}

func decodeCallError(m *msg) error {
	errStr := func() string {
		if m.Signature.IsZero() {
			return ""
		}
		if s := m.Signature.String(); s != "s" && !strings.HasPrefix(s, "(s") {
			return ""
		}
		s, err := m.decoder().String()
		if err != nil {
			return fmt.Sprintf("got error while decoding error detail: %v", err)
		}
		return s
	}()
	return RemoteError{
		Name:   m.ErrName,
		Detail: errStr,
	}
}

// dispatchIncoming services one message read off the wire that was
// not a reply being waited for: an incoming method call or an
// incoming signal. A signal matched by no registered handler is
// buffered instead of being dropped, so it remains observable via
// [Conn.WaitMessage].
func (c *Conn) dispatchIncoming(ctx context.Context, m *msg) {
	switch m.Type {
	case msgTypeCall:
		c.dispatchCall(ctx, m)
	case msgTypeSignal:
		if !c.dispatchSignal(ctx, m) {
			c.pending.Add(m)
		}
	}
}

// dispatchCall routes an incoming MethodCall to its handler: first to
// a registered object at the call's exact path (and, for that
// object's path, the automatic Introspectable/Properties handling in
// [Conn.dispatchObjectCall]), then to a path-independent handler
// registered with [Conn.Handle].
func (c *Conn) dispatchCall(ctx context.Context, m *msg) {
	ctx = withContextSender(ctx, c.Peer(m.Sender).Object(m.Path).Interface(m.Interface))

	c.lastSerial++
	respHdr := &header{
		Type:        msgTypeReturn,
		Version:     1,
		Serial:      c.lastSerial,
		Destination: m.Sender,
		ReplySerial: m.Serial,
	}

	resp, handled, err := c.dispatchObjectCall(ctx, m)
	if !handled {
		handler := c.handlers[interfaceMember{m.Interface, m.Member}]
		if handler == nil {
			respHdr.Type = msgTypeError
			respHdr.ErrName = "org.freedesktop.DBus.Error.UnknownMethod"
			c.writeMsg(ctx, respHdr, fmt.Sprintf("no method %s on interface %s", m.Member, m.Interface))
			return
		}
		resp, err = handler(ctx, m.Path, m.decoder())
	}

	if err != nil {
		respHdr.Type = msgTypeError
		respHdr.ErrName = errNameFor(err)
		c.writeMsg(ctx, respHdr, err.Error())
		return
	}
	if m.WantReply() {
		c.writeMsg(ctx, respHdr, resp)
	}
}

// dispatchSignal delivers m to every registered signal handler that
// matches it, and reports whether at least one handler matched.
func (c *Conn) dispatchSignal(ctx context.Context, m *msg) bool {
	if m.Interface == ifaceProps && m.Member == "PropertiesChanged" {
		return c.dispatchPropChange(ctx, m)
	}

	signalType := signalTypeFor(m.Interface, m.Member)
	if signalType == nil {
		signalType = m.Signature.asStruct().Type()
	}
	if signalType == nil {
		signalType = reflect.TypeFor[struct{}]()
	}

	body := reflect.New(signalType)
	if err := m.decoder().Value(ctx, body.Interface()); err != nil {
		return false
	}

	matched := false
	for _, h := range c.signalHandlers {
		if h.match.matchesSignal(&m.header, body) {
			h.fn(ctx, &m.header, body)
			matched = true
		}
	}
	return matched
}

func (c *Conn) dispatchPropChange(ctx context.Context, m *msg) bool {
	body := m.decoder()

	iface, err := body.String()
	if err != nil {
		return false
	}

	changed := map[string]Variant{}
	_, err = body.Array(true, func(i int) error {
		return body.Struct(func() error {
			propName, err := body.String()
			if err != nil {
				return err
			}
			var v Variant
			if err := body.Value(ctx, &v); err != nil {
				return err
			}
			changed[propName] = v
			return nil
		})
	})
	if err != nil {
		return false
	}
	var invalidated []string
	body.Value(ctx, &invalidated)

	matched := false
	prop := interfaceMember{iface, ""}
	for name, v := range changed {
		prop.Member = name
		for _, h := range c.signalHandlers {
			if h.match.matchesProperty(&m.header, prop, reflect.ValueOf(v.Value)) {
				h.fn(ctx, &m.header, reflect.ValueOf(v.Value))
				matched = true
			}
		}
	}
	for _, name := range invalidated {
		prop.Member = name
		for _, h := range c.signalHandlers {
			if h.match.matchesProperty(&m.header, prop, reflect.Value{}) {
				matched = true
			}
		}
	}
	return matched
}

// registerSignalHandler arranges for fn to be called, synchronously,
// whenever an incoming message matches m. Dispatch only happens while
// the connection is blocked reading -- inside a [Conn.call], inside
// [Conn.WaitMessage], or inside [Conn.RunOnce] / [Conn.Run].
func (c *Conn) registerSignalHandler(m *Match, fn func(ctx context.Context, hdr *header, body reflect.Value)) {
	c.signalHandlers = append(c.signalHandlers, signalHandler{m, fn})
}

// HandleSignal asks the bus to route messages matching m to this
// connection, and arranges for fn to be called with each one.
//
// fn is invoked synchronously and only while the connection is
// blocked reading a message -- inside [Conn.call] (if fn's delivery
// happens to be interleaved with an outstanding reply), inside
// [Conn.WaitMessage], or inside [Conn.RunOnce] / [Conn.Run].
func (c *Conn) HandleSignal(ctx context.Context, m *Match, fn func(ctx context.Context, sender Peer, path ObjectPath, body any)) error {
	if err := c.busIface().Call(ctx, "AddMatch", m.filterString(), nil); err != nil {
		return err
	}
	c.registerSignalHandler(m, func(ctx context.Context, hdr *header, body reflect.Value) {
		fn(ctx, c.Peer(hdr.Sender), hdr.Path, body.Interface())
	})
	return nil
}

// RunOnce reads exactly one message from the connection and services
// it: an incoming method call is dispatched to its handler, and a
// signal is delivered to the registered handlers. A method reply or
// error read this way is buffered for whichever call is waiting on
// it. RunOnce always reads from the connection; messages already
// buffered by an earlier [Conn.call] are not serviced by it.
//
// RunOnce is how a Conn that is not currently inside a method call
// services incoming traffic -- for example, a server that only exports
// objects and never calls out.
func (c *Conn) RunOnce(ctx context.Context) error {
	m, err := c.readMsg()
	if err != nil {
		return err
	}
	switch m.Type {
	case msgTypeReturn, msgTypeError:
		c.pending.Add(m)
	default:
		c.dispatchIncoming(ctx, m)
	}
	return nil
}

// WaitMessage returns the next message that was not consumed as a
// registered signal: a method call, a buffered reply left over from
// an earlier exchange, or a signal matched by no registered handler.
//
// WaitMessage dispatches and discards any signal that does match a
// registered handler, and keeps reading until it finds a message to
// return. It does not dispatch method calls; callers that want calls
// serviced automatically should use [Conn.RunOnce] or [Conn.Run]
// instead.
func (c *Conn) WaitMessage(ctx context.Context) (Message, error) {
	for {
		if n := c.pending.Len(); n > 0 {
			for range n {
				m, ok := c.pending.Pop()
				if !ok {
					break
				}
				if m.Type == msgTypeSignal && c.dispatchSignal(ctx, m) {
					continue
				}
				return newMessage(c, m), nil
			}
		}

		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		m, err := c.readMsg()
		if err != nil {
			return Message{}, err
		}
		if m.Type == msgTypeSignal {
			if !c.dispatchSignal(ctx, m) {
				return newMessage(c, m), nil
			}
			continue
		}
		return newMessage(c, m), nil
	}
}

// Message is an incoming DBus message returned by [Conn.WaitMessage]
// that wasn't consumed as a matched signal: an incoming method call,
// a signal matched by no registered handler, or a stale reply left
// buffered from an earlier, already-abandoned [Conn.call].
type Message struct {
	Sender    Peer
	Path      ObjectPath
	Interface string
	Member    string
	Signature Signature

	m *msg
}

func newMessage(c *Conn, m *msg) Message {
	return Message{
		Sender:    c.Peer(m.Sender),
		Path:      m.Path,
		Interface: m.Interface,
		Member:    m.Member,
		Signature: m.Signature,
		m:         m,
	}
}

// Body decodes the message body into v. It returns
// [ErrSignatureMismatch] if the message's wire signature doesn't
// match the signature of the type v points to.
func (msg Message) Body(ctx context.Context, v any) error {
	if err := checkBodySignature(msg.Signature, v); err != nil {
		return err
	}
	return msg.m.decoder().Value(ctx, v)
}

// Run services incoming messages until ctx is done or the connection
// is closed.
func (c *Conn) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.RunOnce(ctx); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// EmitSignal broadcasts signal from obj.
//
// The signal's type must be registered in advance with
// [RegisterSignalType].
func (c *Conn) EmitSignal(ctx context.Context, obj ObjectPath, signal any) error {
	t := reflect.TypeOf(signal)
	k, ok := signalNameFor(t)
	if !ok {
		return fmt.Errorf("unknown signal type %s", t)
	}
	c.lastSerial++
	hdr := header{
		Type:      msgTypeSignal,
		Version:   1,
		Serial:    c.lastSerial,
		Path:      obj,
		Interface: k.Interface,
		Member:    k.Member,
	}
	return c.writeMsg(ctx, &hdr, signal)
}

// Handle calls fn to handle incoming method calls to methodName on
// interfaceName.
//
// fn must have one of the following type signatures, where ReqType
// and RetType determine the method's [Signature].
//
//	func(context.Context, dbus.ObjectPath) error
//	func(context.Context, dbus.ObjectPath) (RetType, error)
//	func(context.Context, dbus.ObjectPath, ReqType) error
//	func(context.Context, dbus.ObjectPath, ReqType) (RetType, error)
//
// Handle panics if fn is not one of the above type signatures.
func (c *Conn) Handle(interfaceName, methodName string, fn any) {
	handler := handlerForFunc(fn)
	c.handlers[interfaceMember{interfaceName, methodName}] = handler
}

type handlerFunc func(ctx context.Context, object ObjectPath, req *fragments.Decoder) (any, error)

func handlerForFunc(fn any) handlerFunc {
	v := reflect.ValueOf(fn)
	if !v.IsValid() {
		panic(errors.New("nil handler function given to Handle"))
	}
	t := v.Type()
	if t.Kind() != reflect.Func {
		panic(fmt.Errorf("Handle called with non-function handler type %s", t))
	}
	ni, no := t.NumIn(), t.NumOut()

	const msgInvalidHandlerSignature = "invalid signature %s for handler func, valid signatures are:\n  func(context.Context, dbus.ObjectPath, ReqT) (RespT, error)\n  func(context.Context, dbus.ObjectPath) (RespT, error)\n  func(context.Context, dbus.ObjectPath, ReqT) error\n  func(context.Context, dbus.ObjectPath) error"

	if ni < 2 || ni > 3 || no < 1 || no > 2 {
		panic(fmt.Errorf(msgInvalidHandlerSignature, t))
	}
	if !t.In(0).Implements(reflect.TypeFor[context.Context]()) {
		panic(fmt.Errorf(msgInvalidHandlerSignature, t))
	}
	if t.In(1) != reflect.TypeFor[ObjectPath]() {
		panic(fmt.Errorf(msgInvalidHandlerSignature, t))
	}
	if !t.Out(no - 1).Implements(reflect.TypeFor[error]()) {
		panic(fmt.Errorf(msgInvalidHandlerSignature, t))
	}
	var (
		reqDec fragments.DecoderFunc
		err    error
	)
	if ni == 3 {
		reqDec, err = decoderFor(t.In(2))
		if err != nil {
			panic(fmt.Errorf("request type %s is not a valid DBus type: %w", t.In(2), err))
		}
	}
	if no == 2 {
		if _, err = encoderFor(t.Out(0)); err != nil {
			panic(fmt.Errorf("response type %s is not a valid DBus type: %w", t.Out(0), err))
		}
	}

	type s struct{ numIn, numOut int }
	switch (s{ni, no}) {
	case s{2, 1}:
		handler := fn.(func(context.Context, ObjectPath) error)
		return func(ctx context.Context, obj ObjectPath, req *fragments.Decoder) (any, error) {
			return nil, handler(ctx, obj)
		}
	case s{2, 2}:
		return func(ctx context.Context, obj ObjectPath, req *fragments.Decoder) (any, error) {
			rets := v.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(obj)})
			if err, ok := rets[1].Interface().(error); ok && err != nil {
				return nil, err
			}
			return rets[0].Interface(), nil
		}
	case s{3, 1}:
		return func(ctx context.Context, obj ObjectPath, req *fragments.Decoder) (any, error) {
			body := reflect.New(t.In(2))
			if err := reqDec(ctx, req, body.Elem()); err != nil {
				return nil, err
			}
			rets := v.Call([]reflect.Value{
				reflect.ValueOf(ctx),
				reflect.ValueOf(obj),
				body.Elem(),
			})
			if err, ok := rets[0].Interface().(error); ok && err != nil {
				return nil, err
			}
			return nil, nil
		}
	case s{3, 2}:
		return func(ctx context.Context, obj ObjectPath, req *fragments.Decoder) (any, error) {
			body := reflect.New(t.In(2))
			if err := reqDec(ctx, req, body.Elem()); err != nil {
				return nil, err
			}
			rets := v.Call([]reflect.Value{
				reflect.ValueOf(ctx),
				reflect.ValueOf(obj),
				body.Elem(),
			})
			if err, ok := rets[1].Interface().(error); ok && err != nil {
				return nil, err
			}
			return rets[0].Interface(), nil
		}
	default:
		panic("unreachable")
	}
}
