package amf0

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a single AMF0 value, marker byte included.
func Encode(v *Value) []byte {
	if v == nil {
		v = Null()
	}
	typ := v.typ
	if typ == TypeString && v.long {
		typ = TypeLongString
	}
	out := []byte{byte(typ)}
	switch v.typ {
	case TypeNumber:
		out = append(out, encodeNumber(v.num)...)
	case TypeBoolean:
		if v.b {
			out = append(out, 0x01)
		} else {
			out = append(out, 0x00)
		}
	case TypeString:
		if v.long {
			out = append(out, encodeLongString(v.str)...)
		} else {
			out = append(out, encodeString(v.str)...)
		}
	case TypeLongString:
		out = append(out, encodeLongString(v.str)...)
	case TypeNull, TypeUndefined:
		// No payload.
	case TypeDate:
		out = append(out, encodeNumber(v.date)...)
		out = append(out, 0x00, 0x00) // time zone, always 0
	case TypeObject:
		out = append(out, encodeProperties(v)...)
		out = append(out, encodeString("")...)
		out = append(out, byte(TypeObjectEnd))
	case TypeEcmaArray:
		count := make([]byte, 4)
		binary.BigEndian.PutUint32(count, uint32(len(v.keys)))
		out = append(out, count...)
		out = append(out, encodeProperties(v)...)
		out = append(out, encodeString("")...)
		out = append(out, byte(TypeObjectEnd))
	case TypeStrictArr:
		count := make([]byte, 4)
		binary.BigEndian.PutUint32(count, uint32(len(v.arr)))
		out = append(out, count...)
		for _, e := range v.arr {
			out = append(out, Encode(e)...)
		}
	}
	return out
}

func encodeProperties(v *Value) []byte {
	var out []byte
	for _, k := range v.keys {
		out = append(out, encodeString(k)...)
		out = append(out, Encode(v.vals[k])...)
	}
	return out
}

func encodeNumber(f float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(f))
	return b
}

func encodeString(s string) []byte {
	b := []byte(s)
	l := make([]byte, 2)
	binary.BigEndian.PutUint16(l, uint16(len(b)))
	return append(l, b...)
}

func encodeLongString(s string) []byte {
	b := []byte(s)
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, uint32(len(b)))
	return append(l, b...)
}

// Reader decodes a sequence of AMF0 values from a fully buffered byte
// slice. RTMP command/data messages always arrive fully reassembled by the
// chunk layer before decoding starts, so a buffer-oriented reader (rather
// than one streaming over io.Reader) matches how this decoder is actually
// driven.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential AMF0 value decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

func (r *Reader) read(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidFormat, n, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) peek(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidFormat, n, len(r.buf)-r.pos)
	}
	return r.buf[r.pos : r.pos+n], nil
}

// ReadValue decodes exactly one AMF0 value, including its marker byte.
func (r *Reader) ReadValue() (*Value, error) {
	b, err := r.read(1)
	if err != nil {
		return nil, err
	}
	typ := Type(b[0])

	switch typ {
	case TypeNumber:
		n, err := r.readFloat64()
		if err != nil {
			return nil, err
		}
		return Number(n), nil
	case TypeBoolean:
		b, err := r.read(1)
		if err != nil {
			return nil, err
		}
		return Boolean(b[0] != 0), nil
	case TypeString:
		s, err := r.readShortString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case TypeLongString:
		s, err := r.readLongString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case TypeNull:
		return Null(), nil
	case TypeUndefined:
		return Undefined(), nil
	case TypeDate:
		n, err := r.readFloat64()
		if err != nil {
			return nil, err
		}
		if _, err := r.read(2); err != nil { // time zone, always 0
			return nil, err
		}
		return Date(n), nil
	case TypeObject:
		obj := Object()
		if err := r.readProperties(obj); err != nil {
			return nil, err
		}
		return obj, nil
	case TypeEcmaArray:
		if _, err := r.read(4); err != nil { // informative count, ignored on read
			return nil, err
		}
		arr := EcmaArray()
		if err := r.readProperties(arr); err != nil {
			return nil, err
		}
		return arr, nil
	case TypeStrictArr:
		lenb, err := r.read(4)
		if err != nil {
			return nil, err
		}
		n := int32(binary.BigEndian.Uint32(lenb))
		if n < 0 {
			return nil, fmt.Errorf("%w: negative strict-array length", ErrInvalidFormat)
		}
		sa := StrictArray()
		for i := int32(0); i < n; i++ {
			e, err := r.ReadValue()
			if err != nil {
				return nil, err
			}
			sa.Append(e)
		}
		return sa, nil
	default:
		return nil, fmt.Errorf("%w: unknown AMF0 type marker 0x%02x", ErrInvalidFormat, byte(typ))
	}
}

func (r *Reader) readFloat64() (float64, error) {
	b, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) readShortString() (string, error) {
	lb, err := r.read(2)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(lb))
	b, err := r.read(n)
	if err != nil {
		return "", fmt.Errorf("%w: truncated string", ErrInvalidFormat)
	}
	return string(b), nil
}

func (r *Reader) readLongString() (string, error) {
	lb, err := r.read(4)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint32(lb))
	b, err := r.read(n)
	if err != nil {
		return "", fmt.Errorf("%w: truncated long string", ErrInvalidFormat)
	}
	return string(b), nil
}

// readProperties reads key/value pairs until the object-end marker
// (00 00 09), per spec tolerating any declared EcmaArray count mismatch.
func (r *Reader) readProperties(into *Value) error {
	for {
		peeked, err := r.peek(3)
		if err == nil && peeked[0] == 0 && peeked[1] == 0 && peeked[2] == byte(TypeObjectEnd) {
			_, _ = r.read(3)
			return nil
		}

		key, err := r.readShortString()
		if err != nil {
			return fmt.Errorf("%w: missing object terminator", ErrInvalidFormat)
		}
		val, err := r.ReadValue()
		if err != nil {
			return err
		}
		into.Set(key, val)
	}
}
