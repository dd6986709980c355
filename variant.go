package dbus

import (
	"context"
	"fmt"
	"reflect"

	"github.com/havenfold/dbus/fragments"
)

// Variant holds a DBus value whose static type is "any". The wire
// encoding carries the value's signature ahead of the value itself,
// so a Variant can hold any single complete type.
type Variant struct {
	Value any
}

var variantType = reflect.TypeFor[Variant]()

func (v Variant) MarshalDBus(ctx context.Context, e *fragments.Encoder) error {
	sig, err := SignatureOf(v.Value)
	if err != nil {
		return err
	}
	if err := e.Value(ctx, sig); err != nil {
		return err
	}
	if err := e.Value(ctx, v.Value); err != nil {
		return err
	}
	return nil
}

func (v *Variant) UnmarshalDBus(ctx context.Context, d *fragments.Decoder) error {
	var sig Signature
	if err := d.Value(ctx, &sig); err != nil {
		return fmt.Errorf("reading Variant signature: %w", err)
	}
	innerValue := reflect.New(sig.Type())
	if err := d.Value(ctx, innerValue.Interface()); err != nil {
		return fmt.Errorf("reading Variant value (signature %q): %w", sig, err)
	}
	v.Value = innerValue.Elem().Interface()
	return nil
}

func (v Variant) IsDBusStruct() bool       { return false }
func (v Variant) SignatureDBus() Signature { return mustParseSignature("v") }
