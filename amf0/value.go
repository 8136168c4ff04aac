// Package amf0 implements Action Message Format v0, the binary value
// encoding RTMP command/data messages and FLV script tags carry on the
// wire.
package amf0

import "fmt"

// Type is the AMF0 marker byte identifying a Value's wire representation.
type Type byte

const (
	TypeNumber     Type = 0x00
	TypeBoolean    Type = 0x01
	TypeString     Type = 0x02
	TypeObject     Type = 0x03
	TypeNull       Type = 0x05
	TypeUndefined  Type = 0x06
	TypeEcmaArray  Type = 0x08
	TypeObjectEnd  Type = 0x09
	TypeStrictArr  Type = 0x0A
	TypeDate       Type = 0x0B
	TypeLongString Type = 0x0C
)

// Value is a tagged variant over the AMF0 value space: Number, Boolean,
// String/LongString, Null, Undefined, Object, EcmaArray, StrictArray and
// Date. Object and EcmaArray preserve insertion order, since AMF0 command
// objects are read back by key rather than position but callers may still
// want deterministic re-encoding.
type Value struct {
	typ Type

	num  float64
	b    bool
	str  string
	date float64 // milliseconds since epoch

	// Object / EcmaArray: ordered key/value pairs.
	keys []string
	vals map[string]*Value

	// StrictArray
	arr []*Value

	long bool // true if a string value must be written as TypeLongString
}

// Number constructs a Number value.
func Number(v float64) *Value { return &Value{typ: TypeNumber, num: v} }

// Boolean constructs a Boolean value.
func Boolean(v bool) *Value { return &Value{typ: TypeBoolean, b: v} }

// String constructs a String value, encoded as LongString automatically
// when its UTF-8 byte length exceeds the 16-bit String limit.
func String(v string) *Value {
	return &Value{typ: TypeString, str: v, long: len(v) >= 1<<16}
}

// Null constructs a Null value.
func Null() *Value { return &Value{typ: TypeNull} }

// Undefined constructs an Undefined value.
func Undefined() *Value { return &Value{typ: TypeUndefined} }

// Date constructs a Date value. The wire timezone field is always written
// as 0, per spec: AMF0 dates carry no timezone semantics.
func Date(millisSinceEpoch float64) *Value { return &Value{typ: TypeDate, date: millisSinceEpoch} }

// Object constructs an empty, ordered Object value.
func Object() *Value {
	return &Value{typ: TypeObject, vals: make(map[string]*Value)}
}

// EcmaArray constructs an empty, ordered EcmaArray value.
func EcmaArray() *Value {
	return &Value{typ: TypeEcmaArray, vals: make(map[string]*Value)}
}

// StrictArray constructs a StrictArray value from the given elements.
func StrictArray(elems ...*Value) *Value {
	return &Value{typ: TypeStrictArr, arr: elems}
}

// Type returns the value's AMF0 marker.
func (v *Value) Type() Type { return v.typ }

// IsNull reports whether v is Null or Undefined.
func (v *Value) IsNull() bool {
	return v == nil || v.typ == TypeNull || v.typ == TypeUndefined
}

// Float64 returns the numeric payload of a Number or Date value.
func (v *Value) Float64() float64 {
	if v == nil {
		return 0
	}
	switch v.typ {
	case TypeNumber:
		return v.num
	case TypeDate:
		return v.date
	default:
		return 0
	}
}

// Int64 truncates Float64 toward zero.
func (v *Value) Int64() int64 { return int64(v.Float64()) }

// Bool returns the boolean payload, treating a nonzero Number as true.
func (v *Value) Bool() bool {
	if v == nil {
		return false
	}
	switch v.typ {
	case TypeBoolean:
		return v.b
	case TypeNumber:
		return v.num != 0
	default:
		return false
	}
}

// Str returns the string payload of a String or LongString value, and ""
// for any other type.
func (v *Value) Str() string {
	if v == nil {
		return ""
	}
	return v.str
}

// Set stores val under key in an Object or EcmaArray, preserving insertion
// order on first write. Set is a no-op on any other value type.
func (v *Value) Set(key string, val *Value) *Value {
	if v.vals == nil || (v.typ != TypeObject && v.typ != TypeEcmaArray) {
		return v
	}
	if _, exists := v.vals[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.vals[key] = val
	return v
}

// Get fetches a property of an Object/EcmaArray value, returning Undefined
// if absent so caller chains like v.Get("cmdObj").Get("app").Str() never
// need a nil check.
func (v *Value) Get(key string) *Value {
	if v == nil || v.vals == nil {
		return Undefined()
	}
	if p, ok := v.vals[key]; ok && p != nil {
		return p
	}
	return Undefined()
}

// Keys returns the ordered property names of an Object/EcmaArray value.
func (v *Value) Keys() []string {
	if v == nil {
		return nil
	}
	return v.keys
}

// Elements returns the ordered elements of a StrictArray value.
func (v *Value) Elements() []*Value {
	if v == nil {
		return nil
	}
	return v.arr
}

// Append appends an element to a StrictArray value.
func (v *Value) Append(val *Value) *Value {
	if v.typ == TypeStrictArr {
		v.arr = append(v.arr, val)
	}
	return v
}

func (v *Value) String() string {
	if v == nil {
		return "null"
	}
	switch v.typ {
	case TypeNumber:
		return fmt.Sprintf("%v", v.num)
	case TypeBoolean:
		return fmt.Sprintf("%v", v.b)
	case TypeString, TypeLongString:
		return fmt.Sprintf("%q", v.str)
	case TypeNull:
		return "null"
	case TypeUndefined:
		return "undefined"
	case TypeDate:
		return fmt.Sprintf("Date(%v)", v.date)
	case TypeObject, TypeEcmaArray:
		s := "{"
		for i, k := range v.keys {
			if i > 0 {
				s += ", "
			}
			s += fmt.Sprintf("%s: %s", k, v.vals[k].String())
		}
		return s + "}"
	case TypeStrictArr:
		s := "["
		for i, e := range v.arr {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + "]"
	default:
		return "?"
	}
}
