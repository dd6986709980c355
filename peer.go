package dbus

import (
	"context"
	"strings"
)

// Peer is a handle to a named participant on the bus.
//
// The returned value is a purely local handle. It does not indicate
// that the requested peer exists, or that it is currently reachable.
type Peer struct {
	c    *Conn
	name string
}

func (p Peer) Conn() *Conn  { return p.c }
func (p Peer) Name() string { return p.name }

func (p Peer) String() string {
	if p.c == nil {
		return "<no peer>"
	}
	return p.name
}

// IsUniqueName reports whether p identifies a single connection
// (e.g. ":1.42"), as opposed to a well-known bus name.
func (p Peer) IsUniqueName() bool {
	return strings.HasPrefix(p.name, ":")
}

// Owner returns the peer that currently owns this well-known name.
func (p Peer) Owner(ctx context.Context) (Peer, error) {
	owner, err := p.c.GetNameOwner(ctx, p.name)
	if err != nil {
		return Peer{}, err
	}
	return p.c.Peer(owner), nil
}

// Identity returns the bus's view of the peer's OS-level credentials.
func (p Peer) Identity(ctx context.Context) (*PeerCredentials, error) {
	return p.c.GetPeerCredentials(ctx, p.name)
}

// Ping checks that the peer is alive and responding to messages.
func (p Peer) Ping(ctx context.Context, opts ...CallOption) error {
	return p.Object("/").Interface(ifacePeer).Call(ctx, "Ping", nil, nil, opts...)
}

// Object returns a handle to an object exported by the peer at path.
func (p Peer) Object(path ObjectPath) Object {
	return Object{
		p:    p,
		path: path,
	}
}
