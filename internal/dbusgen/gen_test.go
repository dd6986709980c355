package dbusgen_test

import (
	"strings"
	"testing"

	"github.com/havenfold/dbus"
	"github.com/havenfold/dbus/internal/dbusgen"
)

func sigFor[T any](t *testing.T) dbus.Signature {
	t.Helper()
	sig, err := dbus.SignatureFor[T]()
	if err != nil {
		t.Fatalf("SignatureFor: %v", err)
	}
	return sig
}

func TestGenInterface(t *testing.T) {
	iface := &dbus.InterfaceDescription{
		Name: "com.example.Greeter",
		Methods: []*dbus.MethodDescription{
			{
				Name: "Greet",
				In:   []dbus.ArgumentDescription{{Name: "name", Type: sigFor[string](t)}},
				Out:  []dbus.ArgumentDescription{{Name: "greeting", Type: sigFor[string](t)}},
			},
		},
		Properties: []*dbus.PropertyDescription{
			{
				Name:        "Loudness",
				Type:        sigFor[uint32](t),
				Readable:    true,
				Writable:    true,
				EmitsSignal: true,
			},
		},
		Signals: []*dbus.SignalDescription{
			{
				Name: "Greeted",
				Args: []dbus.ArgumentDescription{{Name: "name", Type: sigFor[string](t)}},
			},
		},
	}

	got, err := dbusgen.Interface(iface)
	if err != nil {
		t.Fatalf("Interface: %v", err)
	}

	for _, want := range []string{
		"type Greeter struct",
		`iface: obj.Interface("com.example.Greeter")`,
		"func (iface Greeter) Greet(",
		"func (iface Greeter) Loudness(ctx context.Context) (uint32, error)",
		"func (iface Greeter) SetLoudness(ctx context.Context, val uint32) error",
		"type Greeted struct",
		`dbus.RegisterSignalType[Greeted]("com.example.Greeter", "Greeted")`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("generated code missing %q, got:\n%s", want, got)
		}
	}
}

func TestGenInterfaceNilInput(t *testing.T) {
	if _, err := dbusgen.Interface(nil); err == nil {
		t.Error("Interface(nil) succeeded, want error")
	}
}
