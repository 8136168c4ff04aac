package amf0

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Options controls the structured adapter's treatment of optional fields.
type Options struct {
	// ExplicitNulls, when true, serializes a nil/zero optional field as an
	// AMF0 Null. When false (the default), such fields are omitted from the
	// encoded Object entirely.
	ExplicitNulls bool
	// IgnoreUnknownKeys, when true (the default), silently drops Object
	// properties that have no matching destination field on Unmarshal.
	IgnoreUnknownKeys bool
}

// DefaultOptions matches the spec's default behavior: omit nulls, ignore
// unknown keys.
var DefaultOptions = Options{ExplicitNulls: false, IgnoreUnknownKeys: true}

type fieldSpec struct {
	name      string
	index     int
	omitempty bool
}

// tagFields returns the amf0 field specs for a struct type, in declaration
// order — spec.md requires fields to serialize in declaration order.
func tagFields(t reflect.Type) []fieldSpec {
	var specs []fieldSpec
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		tag := f.Tag.Get("amf0")
		if tag == "-" {
			continue
		}
		name := f.Name
		omitempty := false
		if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, p := range parts[1:] {
				if p == "omitempty" {
					omitempty = true
				}
			}
		}
		specs = append(specs, fieldSpec{name: name, index: i, omitempty: omitempty})
	}
	return specs
}

// Marshal converts a Go struct (or *struct) into an AMF0 Object, walking
// its exported fields in declaration order. Supported field kinds: string,
// bool, all int/uint/float widths, time.Time (-> Date), slices and arrays
// (-> StrictArray, converted element by element, so []string gives Strings
// and []byte gives Numbers), maps and nested structs/pointers (-> Object),
// and *Value (passed through unchanged).
func Marshal(v interface{}, opts Options) (*Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return Null(), nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("amf0: Marshal requires a struct, got %s", rv.Kind())
	}

	obj := Object()
	for _, spec := range tagFields(rv.Type()) {
		fv := rv.Field(spec.index)
		if spec.omitempty && fv.IsZero() {
			if opts.ExplicitNulls {
				obj.Set(spec.name, Null())
			}
			continue
		}
		val, err := marshalValue(fv)
		if err != nil {
			return nil, fmt.Errorf("amf0: field %q: %w", spec.name, err)
		}
		obj.Set(spec.name, val)
	}
	return obj, nil
}

func marshalValue(fv reflect.Value) (*Value, error) {
	if fv.Kind() == reflect.Ptr {
		if pv, ok := fv.Interface().(*Value); ok {
			if pv == nil {
				return Null(), nil
			}
			return pv, nil
		}
		if fv.IsNil() {
			return Null(), nil
		}
		return marshalValue(fv.Elem())
	}

	if t, ok := fv.Interface().(time.Time); ok {
		return Date(float64(t.UnixMilli())), nil
	}

	switch fv.Kind() {
	case reflect.String:
		return String(fv.String()), nil
	case reflect.Bool:
		return Boolean(fv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(fv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(float64(fv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(fv.Float()), nil
	case reflect.Slice, reflect.Array:
		sa := StrictArray()
		for i := 0; i < fv.Len(); i++ {
			e, err := marshalValue(fv.Index(i))
			if err != nil {
				return nil, err
			}
			sa.Append(e)
		}
		return sa, nil
	case reflect.Struct:
		return Marshal(fv.Addr().Interface(), DefaultOptions)
	case reflect.Map:
		obj := Object()
		iter := fv.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			val, err := marshalValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj.Set(key, val)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", fv.Kind())
	}
}

// Unmarshal copies an AMF0 Object's properties onto the exported fields of
// dst (a pointer to struct), matching by amf0 tag name (or field name).
func Unmarshal(v *Value, dst interface{}, opts Options) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("amf0: Unmarshal requires a non-nil pointer")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("amf0: Unmarshal requires a pointer to struct")
	}
	if v == nil || (v.typ != TypeObject && v.typ != TypeEcmaArray) {
		return fmt.Errorf("amf0: Unmarshal source is not an Object/EcmaArray")
	}

	specs := tagFields(rv.Type())
	byName := make(map[string]fieldSpec, len(specs))
	for _, s := range specs {
		byName[s.name] = s
	}

	for _, key := range v.Keys() {
		spec, ok := byName[key]
		if !ok {
			if opts.IgnoreUnknownKeys {
				continue
			}
			return fmt.Errorf("amf0: unknown key %q", key)
		}
		if err := unmarshalValue(v.Get(key), rv.Field(spec.index)); err != nil {
			return fmt.Errorf("amf0: field %q: %w", key, err)
		}
	}
	return nil
}

func unmarshalValue(src *Value, dst reflect.Value) error {
	if pv, ok := dst.Addr().Interface().(**Value); ok {
		*pv = src
		return nil
	}
	if src.IsNull() {
		return nil
	}
	if dst.Type() == reflect.TypeOf(time.Time{}) {
		dst.Set(reflect.ValueOf(time.UnixMilli(int64(src.Float64())).UTC()))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(src.Str())
	case reflect.Bool:
		dst.SetBool(src.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(src.Int64())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst.SetUint(uint64(src.Int64()))
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(src.Float64())
	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return unmarshalValue(src, dst.Elem())
	case reflect.Struct:
		return Unmarshal(src, dst.Addr().Interface(), DefaultOptions)
	case reflect.Slice:
		elems := src.Elements()
		out := reflect.MakeSlice(dst.Type(), len(elems), len(elems))
		for i, e := range elems {
			if err := unmarshalValue(e, out.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
	default:
		return fmt.Errorf("unsupported kind %s", dst.Kind())
	}
	return nil
}
