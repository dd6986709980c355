package dbus

import (
	"context"
	"strings"
	"testing"
	"time"
)

// echoObject is a minimal [Exportable] used to exercise
// [Conn.RegisterObject]'s method, property and introspection
// handling end to end.
type echoObject struct {
	Greeting string `dbus:"property"`
	Version  string `dbus:"property,readonly"`
}

func (*echoObject) DBusInterface() string { return "com.example.Echo" }

func (e *echoObject) Ping(ctx context.Context, req string) (string, error) {
	return req, nil
}

func TestRegisterObjectIntrospect(t *testing.T) {
	client, srv := newConnPair(t)
	ctx := context.Background()

	obj := &echoObject{Greeting: "hello", Version: "1.0"}
	if err := client.RegisterObject(ctx, "", "/com/example/Echo", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	replyCh := make(chan *msg, 1)
	errCh := make(chan error, 1)
	go func() {
		m, err := srv.call("/com/example/Echo", ifaceIntrospectable, "Introspect", nil)
		if err != nil {
			errCh <- err
			return
		}
		replyCh <- m
	}()

	if err := client.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	var xml string
	select {
	case err := <-errCh:
		t.Fatalf("fake server call: %v", err)
	case m := <-replyCh:
		if m.Type != msgTypeReturn {
			t.Fatalf("reply type = %v, want msgTypeReturn", m.Type)
		}
		if err := m.decoder().Value(ctx, &xml); err != nil {
			t.Fatalf("decoding Introspect reply: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Introspect reply")
	}

	for _, want := range []string{
		`<interface name="com.example.Echo">`,
		`<method name="Ping">`,
		`<property name="Greeting" type="s" access="readwrite">`,
		`<property name="Version" type="s" access="read">`,
		`<interface name="org.freedesktop.DBus.Introspectable">`,
		`<method name="Introspect">`,
		`<interface name="org.freedesktop.DBus.Properties">`,
		`<method name="Get">`,
		`<method name="GetAll">`,
		`<method name="Set">`,
		`<signal name="PropertiesChanged">`,
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("Introspect XML missing %q, got:\n%s", want, xml)
		}
	}
}

func TestRegisterObjectMethodCall(t *testing.T) {
	client, srv := newConnPair(t)
	ctx := context.Background()

	obj := &echoObject{Greeting: "hello", Version: "1.0"}
	if err := client.RegisterObject(ctx, "", "/com/example/Echo", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	replyCh := make(chan *msg, 1)
	errCh := make(chan error, 1)
	go func() {
		m, err := srv.call("/com/example/Echo", "com.example.Echo", "Ping", "ping")
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
			t.Fatalf("decoding Ping reply: %v", err)
		}
		if resp != "ping" {
			t.Errorf("Ping reply = %q, want %q", resp, "ping")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Ping reply")
	}
}

func TestRegisterObjectPropertiesRoundTrip(t *testing.T) {
	client, srv := newConnPair(t)
	ctx := context.Background()

	obj := &echoObject{Greeting: "hello", Version: "1.0"}
	if err := client.RegisterObject(ctx, "", "/com/example/Echo", obj); err != nil {
		t.Fatalf("RegisterObject: %v", err)
	}

	// Properties.Get.
	getReplyCh := make(chan *msg, 1)
	errCh := make(chan error, 1)
	go func() {
		req := struct{ InterfaceName, PropertyName string }{"com.example.Echo", "Greeting"}
		m, err := srv.call("/com/example/Echo", ifaceProps, "Get", req)
		if err != nil {
			errCh <- err
			return
		}
		getReplyCh <- m
	}()
	if err := client.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce (Get): %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("fake server Get call: %v", err)
	case m := <-getReplyCh:
		if m.Type != msgTypeReturn {
			t.Fatalf("Get reply type = %v, want msgTypeReturn", m.Type)
		}
		var v Variant
		if err := m.decoder().Value(ctx, &v); err != nil {
			t.Fatalf("decoding Get reply: %v", err)
		}
		if v.Value != "hello" {
			t.Errorf("Get reply value = %#v, want %q", v.Value, "hello")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Get reply")
	}

	// Properties.Set, which must emit PropertiesChanged before its
	// (empty) method reply. The call is written directly (rather than
	// through srv.call, which also waits for the first reply) because
	// two messages come back: the signal, then the method reply.
	writeErrCh := make(chan error, 1)
	go func() {
		req := struct {
			InterfaceName string
			PropertyName  string
			Value         Variant
		}{"com.example.Echo", "Greeting", Variant{Value: "goodbye"}}
		srv.serial++
		hdr := &header{
			Type:        msgTypeCall,
			Version:     1,
			Serial:      srv.serial,
			Path:        "/com/example/Echo",
			Interface:   ifaceProps,
			Member:      "Set",
			Destination: "client",
		}
		writeErrCh <- srv.c.writeMsg(ctx, hdr, req)
	}()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- client.RunOnce(ctx) }()
	if err := <-writeErrCh; err != nil {
		t.Fatalf("fake server writing Set call: %v", err)
	}

	signalMsg, err := srv.recv()
	if err != nil {
		t.Fatalf("receiving PropertiesChanged signal: %v", err)
	}
	if signalMsg.Type != msgTypeSignal || signalMsg.Member != "PropertiesChanged" {
		t.Fatalf("got message type=%v member=%q, want PropertiesChanged signal", signalMsg.Type, signalMsg.Member)
	}
	var changed PropertiesChanged
	if err := signalMsg.decoder().Value(ctx, &changed); err != nil {
		t.Fatalf("decoding PropertiesChanged: %v", err)
	}
	if changed.Interface != "com.example.Echo" {
		t.Errorf("PropertiesChanged.Interface = %q, want %q", changed.Interface, "com.example.Echo")
	}
	if got := changed.ChangedProperties["Greeting"]; got.Value != "goodbye" {
		t.Errorf("PropertiesChanged.ChangedProperties[Greeting] = %#v, want %q", got.Value, "goodbye")
	}

	setReply, err := srv.recv()
	if err != nil {
		t.Fatalf("receiving Set reply: %v", err)
	}
	if setReply.Type != msgTypeReturn {
		t.Fatalf("Set reply type = %v, want msgTypeReturn", setReply.Type)
	}
	if err := <-runErrCh; err != nil {
		t.Fatalf("RunOnce (Set): %v", err)
	}

	if obj.Greeting != "goodbye" {
		t.Errorf("obj.Greeting = %q, want %q after Set", obj.Greeting, "goodbye")
	}

	// Properties.GetAll reflects the updated value.
	getAllReplyCh := make(chan *msg, 1)
	go func() {
		m, err := srv.call("/com/example/Echo", ifaceProps, "GetAll", "com.example.Echo")
		if err != nil {
			errCh <- err
			return
		}
		getAllReplyCh <- m
	}()
	if err := client.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce (GetAll): %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("fake server GetAll call: %v", err)
	case m := <-getAllReplyCh:
		if m.Type != msgTypeReturn {
			t.Fatalf("GetAll reply type = %v, want msgTypeReturn", m.Type)
		}
		var all map[string]Variant
		if err := m.decoder().Value(ctx, &all); err != nil {
			t.Fatalf("decoding GetAll reply: %v", err)
		}
		if got := all["Greeting"]; got.Value != "goodbye" {
			t.Errorf("GetAll()[Greeting] = %#v, want %q", got.Value, "goodbye")
		}
		if got := all["Version"]; got.Value != "1.0" {
			t.Errorf("GetAll()[Version] = %#v, want %q", got.Value, "1.0")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for GetAll reply")
	}
}
