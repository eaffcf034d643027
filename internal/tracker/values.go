package tracker

import (
	"bytes"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

var timeType = reflect.TypeOf(time.Time{})

// get returns the column value of the entity struct v. Nil pointers read as
// nil and non-nil pointers are dereferenced.
func (c *column) get(v reflect.Value) any {
	f := v.FieldByIndex(c.index)
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil
		}
		f = f.Elem()
	}
	val := f.Interface()
	if b, ok := val.([]byte); ok {
		return bytes.Clone(b)
	}
	return val
}

func (c *column) isZero(v reflect.Value) bool {
	return v.FieldByIndex(c.index).IsZero()
}

func (c *column) set(v reflect.Value, raw any) error {
	if err := assign(v.FieldByIndex(c.index), raw); err != nil {
		return fmt.Errorf("column %s: %w", c.name, err)
	}
	return nil
}

// values reads every column of the entity struct v.
func (et *entityType) values(v reflect.Value) types.Values {
	vals := make(types.Values, len(et.columns))
	for _, c := range et.columns {
		vals[c.name] = c.get(v)
	}
	return vals
}

func (et *entityType) keyValues(v reflect.Value) []any {
	keys := make([]any, len(et.key))
	for i, c := range et.key {
		keys[i] = c.get(v)
	}
	return keys
}

func (et *entityType) keyIsZero(v reflect.Value) bool {
	for _, c := range et.key {
		if !c.isZero(v) {
			return false
		}
	}
	return true
}

// assign stores a value into a struct field. Values of the field's own type
// are set as they are; driver values go through sql.Scanner or a conversion.
func assign(field reflect.Value, raw any) error {
	if raw == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := assign(elem.Elem(), raw); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}
	if sc, ok := field.Addr().Interface().(sql.Scanner); ok {
		return sc.Scan(raw)
	}
	if field.Type() == timeType {
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		field.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, field.Type())
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return err
		}
		if field.OverflowUint(n) {
			return fmt.Errorf("value %d overflows %s", n, field.Type())
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		if !rv.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("cannot assign %T to %s", raw, field.Type())
		}
		field.Set(rv.Convert(field.Type()))
	}
	return nil
}

// valuesEqual compares two column values. Types with an Equal method of
// their own type, such as time.Time and decimal.Decimal, compare with it.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if m, ok := ta.MethodByName("Equal"); ok {
		mt := m.Type
		if mt.NumIn() == 2 && mt.In(1) == ta && mt.NumOut() == 1 && mt.Out(0).Kind() == reflect.Bool {
			return m.Func.Call([]reflect.Value{reflect.ValueOf(a), reflect.ValueOf(b)})[0].Bool()
		}
	}
	if ba, ok := a.([]byte); ok {
		return bytes.Equal(ba, b.([]byte))
	}
	return reflect.DeepEqual(a, b)
}

func keysEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// isNilEntity reports whether x is nil or a typed nil pointer.
func isNilEntity(x any) bool {
	if x == nil {
		return true
	}
	v := reflect.ValueOf(x)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// isEntityPointer reports whether x is a non-nil pointer, the only values
// the working set can hold.
func isEntityPointer(x any) bool {
	v := reflect.ValueOf(x)
	return v.Kind() == reflect.Pointer && !v.IsNil()
}
