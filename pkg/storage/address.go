package storage

import (
	"reflect"

	"github.com/pkg/errors"
)

func checkAddress(addr any, mode Ownership) error {
	v := reflect.ValueOf(addr)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.Wrapf(ErrBadAddress, "%T is not a non-nil pointer", addr)
	}
	switch mode {
	case OwnedByReader:
		return nil
	case OwnedByEngine:
		if v.Elem().Kind() != reflect.Pointer {
			return errors.Wrapf(ErrBadAddress, "engine-owned column needs a pointer to a pointer, got %T", addr)
		}
		return nil
	default:
		return errors.Wrapf(ErrBadAddress, "unknown ownership %d", mode)
	}
}

// decode runs fn on a fresh zero value of the column type and stores the
// result at addr only when fn succeeds, so a failed fetch leaves the bound
// value as it was. Engine-owned slots are allocated on the first store and
// reused afterwards.
func decode(addr any, mode Ownership, fn func(dst reflect.Value) error) error {
	v := reflect.ValueOf(addr).Elem()
	typ := v.Type()
	if mode == OwnedByEngine {
		typ = typ.Elem()
	}
	tmp := reflect.New(typ).Elem()
	if err := fn(tmp); err != nil {
		return err
	}
	if mode == OwnedByEngine {
		if v.IsNil() {
			v.Set(reflect.New(typ))
		}
		v = v.Elem()
	}
	v.Set(tmp)
	return nil
}

// dropSlot points an engine-owned slot back at nil so the memory the
// engine allocated can be collected.
func dropSlot(addr any, mode Ownership) {
	if mode != OwnedByEngine || addr == nil {
		return
	}
	v := reflect.ValueOf(addr)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().SetZero()
	}
}
