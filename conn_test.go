package dbus

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/creachadair/mds/queue"
	"github.com/google/go-cmp/cmp"
	"github.com/havenfold/dbus/fragments"
)

// fakeServer is the bus-side endpoint of an in-process Conn pair. It
// speaks the same wire format conn.go does, by hand, so a test can
// script exactly what "the bus" sends back without a real
// dbus-daemon.
type fakeServer struct {
	c      *Conn
	serial uint32
}

func newFakeServer(raw net.Conn) *fakeServer {
	return &fakeServer{
		c: &Conn{
			t: raw,
			enc: fragments.Encoder{
				Order:  fragments.NativeEndian,
				Mapper: mapEncoderFunc,
			},
			pending: queue.New[*msg](),
		},
	}
}

func (s *fakeServer) recv() (*msg, error) {
	return s.c.readMsg()
}

func (s *fakeServer) reply(to *msg, body any) error {
	s.serial++
	hdr := &header{
		Type:        msgTypeReturn,
		Version:     1,
		Serial:      s.serial,
		ReplySerial: to.Serial,
		Destination: to.Sender,
	}
	return s.c.writeMsg(context.Background(), hdr, body)
}

func (s *fakeServer) replyError(to *msg, name, detail string) error {
	s.serial++
	hdr := &header{
		Type:        msgTypeError,
		Version:     1,
		Serial:      s.serial,
		ReplySerial: to.Serial,
		Destination: to.Sender,
		ErrName:     name,
	}
	return s.c.writeMsg(context.Background(), hdr, detail)
}

func (s *fakeServer) signal(path ObjectPath, iface, member string, body any) error {
	s.serial++
	hdr := &header{
		Type:      msgTypeSignal,
		Version:   1,
		Serial:    s.serial,
		Path:      path,
		Interface: iface,
		Member:    member,
	}
	return s.c.writeMsg(context.Background(), hdr, body)
}

func (s *fakeServer) call(path ObjectPath, iface, method string, body any) (*msg, error) {
	s.serial++
	hdr := &header{
		Type:        msgTypeCall,
		Version:     1,
		Serial:      s.serial,
		Path:        path,
		Interface:   iface,
		Member:      method,
		Destination: "client",
	}
	if err := s.c.writeMsg(context.Background(), hdr, body); err != nil {
		return nil, err
	}
	return s.recv()
}

// newConnPair dials an in-process Conn against a fakeServer, handling
// the Hello handshake that newConnFromTransport always performs
// first.
func newConnPair(t *testing.T) (*Conn, *fakeServer) {
	t.Helper()
	clientRaw, serverRaw := net.Pipe()
	srv := newFakeServer(serverRaw)

	helloErr := make(chan error, 1)
	go func() {
		hello, err := srv.recv()
		if err != nil {
			helloErr <- err
			return
		}
		if hello.Interface != ifaceBus || hello.Member != "Hello" {
			helloErr <- nil // unexpected, but don't hang the dial
			return
		}
		helloErr <- srv.reply(hello, ":1.1")
	}()

	client, err := newConnFromTransport(context.Background(), clientRaw)
	if err != nil {
		t.Fatalf("newConnFromTransport: %v", err)
	}
	if err := <-helloErr; err != nil {
		t.Fatalf("fake server Hello handling: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		srv.c.Close()
	})
	return client, srv
}

func TestCallReplyRoundTrip(t *testing.T) {
	client, srv := newConnPair(t)
	ctx := context.Background()

	replyCh := make(chan error, 1)
	go func() {
		m, err := srv.recv()
		if err != nil {
			replyCh <- err
			return
		}
		if m.Interface != "com.example.Test" || m.Member != "Echo" {
			replyCh <- errors.New("unexpected call")
			return
		}
		var req string
		if err := m.decoder().Value(ctx, &req); err != nil {
			replyCh <- err
			return
		}
		replyCh <- srv.reply(m, req)
	}()

	obj := client.Peer("com.example.Test").Object("/com/example/Test")
	var resp string
	if err := obj.Interface("com.example.Test").Call(ctx, "Echo", "hello", &resp); err != nil {
		t.Fatalf("Echo call failed: %v", err)
	}
	if err := <-replyCh; err != nil {
		t.Fatalf("fake server Echo handling: %v", err)
	}
	if resp != "hello" {
		t.Errorf("Echo response = %q, want %q", resp, "hello")
	}
}

func TestCallRemoteError(t *testing.T) {
	client, srv := newConnPair(t)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		m, err := srv.recv()
		if err != nil {
			done <- err
			return
		}
		done <- srv.replyError(m, "org.freedesktop.DBus.Error.UnknownMethod", "no such method")
	}()

	obj := client.Peer("com.example.Test").Object("/com/example/Test")
	err := obj.Interface("com.example.Test").Call(ctx, "Nope", nil, nil)
	if err := <-done; err != nil {
		t.Fatalf("fake server error handling: %v", err)
	}
	var remote RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Call error = %v (%T), want a RemoteError", err, err)
	}
	if remote.Name != "org.freedesktop.DBus.Error.UnknownMethod" {
		t.Errorf("RemoteError.Name = %q, want %q", remote.Name, "org.freedesktop.DBus.Error.UnknownMethod")
	}
	if remote.Detail != "no such method" {
		t.Errorf("RemoteError.Detail = %q, want %q", remote.Detail, "no such method")
	}
}

func TestHandleSignalDispatch(t *testing.T) {
	client, srv := newConnPair(t)
	ctx := context.Background()

	addMatchDone := make(chan error, 1)
	go func() {
		m, err := srv.recv()
		if err != nil {
			addMatchDone <- err
			return
		}
		if m.Interface != ifaceBus || m.Member != "AddMatch" {
			addMatchDone <- errors.New("unexpected call, want AddMatch")
			return
		}
		addMatchDone <- srv.reply(m, nil)
	}()

	type received struct {
		sender Peer
		path   ObjectPath
		body   any
	}
	got := make(chan received, 1)
	err := client.HandleSignal(ctx, MatchAllSignals(), func(ctx context.Context, sender Peer, path ObjectPath, body any) {
		got <- received{sender, path, body}
	})
	if err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if err := <-addMatchDone; err != nil {
		t.Fatalf("fake server AddMatch handling: %v", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- client.RunOnce(ctx) }()

	if err := srv.signal("/org/freedesktop/DBus", ifaceBus, "NameAcquired", NameAcquired{Name: "com.example.Test"}); err != nil {
		t.Fatalf("emitting signal: %v", err)
	}

	select {
	case r := <-got:
		na, ok := r.body.(*NameAcquired)
		if !ok {
			t.Fatalf("signal body = %#v, want *NameAcquired", r.body)
		}
		if na.Name != "com.example.Test" {
			t.Errorf("NameAcquired.Name = %q, want %q", na.Name, "com.example.Test")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatched signal")
	}
	if err := <-runDone; err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
}

func TestIncomingCallDispatch(t *testing.T) {
	client, srv := newConnPair(t)
	ctx := context.Background()

	client.Handle("com.example.Test", "Echo", func(ctx context.Context, path ObjectPath, req string) (string, error) {
		return req, nil
	})

	replyCh := make(chan *msg, 1)
	errCh := make(chan error, 1)
	go func() {
		m, err := srv.call("/com/example/Test", "com.example.Test", "Echo", "ping")
		if err != nil {
			errCh <- err
			return
		}
		replyCh <- m
	}()

	if err := client.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("fake server call: %v", err)
	case m := <-replyCh:
		if m.Type != msgTypeReturn {
			t.Fatalf("reply type = %v, want msgTypeReturn", m.Type)
		}
		var resp string
		if err := m.decoder().Value(ctx, &resp); err != nil {
			t.Fatalf("decoding reply: %v", err)
		}
		if resp != "ping" {
			t.Errorf("Echo reply = %q, want %q", resp, "ping")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatched call reply")
	}
}

func TestIncomingCallUnknownMethod(t *testing.T) {
	client, srv := newConnPair(t)

	replyCh := make(chan *msg, 1)
	errCh := make(chan error, 1)
	go func() {
		m, err := srv.call("/com/example/Test", "com.example.Test", "Nope", nil)
		if err != nil {
			errCh <- err
			return
		}
		replyCh <- m
	}()

	if err := client.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("fake server call: %v", err)
	case m := <-replyCh:
		if m.Type != msgTypeError {
			t.Fatalf("reply type = %v, want msgTypeError", m.Type)
		}
		if diff := cmp.Diff(m.ErrName, "org.freedesktop.DBus.Error.UnknownMethod"); diff != "" {
			t.Errorf("ErrName mismatch (-got +want):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatched call reply")
	}
}
