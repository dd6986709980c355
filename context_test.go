package dbus

import (
	"context"
	"reflect"
	"testing"
)

func TestContextSender(t *testing.T) {
	var conn *Conn
	want := conn.Peer("foo").Object("/bar").Interface("qux")
	ctx := withContextSender(context.Background(), want)

	got, ok := ContextSender(ctx)
	if !ok {
		t.Fatal("sender not found in context")
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("wrong sender, got %#v want %#v", got, want)
	}

	got, ok = ContextSender(context.Background())
	if ok {
		t.Fatalf("got sender %#v from context with no sender", got)
	}
}
