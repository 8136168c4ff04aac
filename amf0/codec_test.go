package amf0

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScenarioBooleanTrue(t *testing.T) {
	encoded := Encode(Boolean(true))
	require.Equal(t, []byte{0x01, 0x01}, encoded)

	v, err := NewReader(encoded).ReadValue()
	require.NoError(t, err)
	require.True(t, v.Bool())
}

func TestScenarioNumber42(t *testing.T) {
	encoded := Encode(Number(42.0))
	require.Equal(t, []byte{0x00, 0x40, 0x45, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, encoded)

	v, err := NewReader(encoded).ReadValue()
	require.NoError(t, err)
	require.Equal(t, 42.0, v.Float64())
}

func TestScenarioStringToWrite(t *testing.T) {
	encoded := Encode(String("stringToWrite"))
	expected := []byte{0x02, 0x00, 0x0D, 0x73, 0x74, 0x72, 0x69, 0x6E, 0x67, 0x54, 0x6F, 0x57, 0x72, 0x69, 0x74, 0x65}
	require.Equal(t, expected, encoded)

	v, err := NewReader(encoded).ReadValue()
	require.NoError(t, err)
	require.Equal(t, "stringToWrite", v.Str())
}

func TestRoundTripPrimitives(t *testing.T) {
	cases := []*Value{
		Number(3.14159),
		Number(-2048),
		Number(0),
		Boolean(true),
		Boolean(false),
		String(""),
		String("hello rtmp"),
		Null(),
		Undefined(),
		Date(1700000000000),
	}

	for _, v := range cases {
		encoded := Encode(v)
		decoded, err := NewReader(encoded).ReadValue()
		require.NoError(t, err)
		require.Equal(t, v.typ, decoded.typ)
		switch v.typ {
		case TypeNumber:
			require.Equal(t, v.num, decoded.num)
		case TypeBoolean:
			require.Equal(t, v.b, decoded.b)
		case TypeString:
			require.Equal(t, v.str, decoded.str)
		case TypeDate:
			require.Equal(t, v.date, decoded.date)
		}
	}
}

func TestLongStringThreshold(t *testing.T) {
	short := String("x")
	require.Equal(t, TypeString, short.typ)

	long := String(string(make([]byte, 70000)))
	require.Equal(t, TypeString, long.typ) // marker is still TypeString; long flag drives Encode
	require.True(t, long.long)

	encoded := Encode(long)
	require.Equal(t, byte(TypeLongString), encoded[0])

	decoded, err := NewReader(encoded).ReadValue()
	require.NoError(t, err)
	require.Equal(t, 70000, len(decoded.Str()))
}

func TestObjectRoundTrip(t *testing.T) {
	obj := Object()
	obj.Set("app", String("live"))
	obj.Set("capabilities", Number(239))
	obj.Set("ok", Boolean(true))

	encoded := Encode(obj)
	decoded, err := NewReader(encoded).ReadValue()
	require.NoError(t, err)

	require.Equal(t, []string{"app", "capabilities", "ok"}, decoded.Keys())
	require.Equal(t, "live", decoded.Get("app").Str())
	require.Equal(t, 239.0, decoded.Get("capabilities").Float64())
	require.True(t, decoded.Get("ok").Bool())
}

func TestEcmaArrayCountIsInformative(t *testing.T) {
	arr := EcmaArray()
	arr.Set("a", Number(1))
	arr.Set("b", Number(2))
	encoded := Encode(arr)

	// Corrupt the declared count; decode must still succeed and find both
	// members via the terminator, not the count.
	encoded[2] = 0xFF

	decoded, err := NewReader(encoded).ReadValue()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, decoded.Keys())
}

func TestStrictArrayOrderPreserved(t *testing.T) {
	sa := StrictArray(Number(1), String("two"), Boolean(true))
	encoded := Encode(sa)

	decoded, err := NewReader(encoded).ReadValue()
	require.NoError(t, err)
	require.Len(t, decoded.Elements(), 3)
	require.Equal(t, 1.0, decoded.Elements()[0].Float64())
	require.Equal(t, "two", decoded.Elements()[1].Str())
	require.True(t, decoded.Elements()[2].Bool())
}

func TestMissingObjectTerminatorIsInvalidFormat(t *testing.T) {
	obj := Object()
	obj.Set("a", Number(1))
	encoded := Encode(obj)
	truncated := encoded[:len(encoded)-3] // drop the terminator

	_, err := NewReader(truncated).ReadValue()
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestUnknownMarkerIsInvalidFormat(t *testing.T) {
	_, err := NewReader([]byte{0x99}).ReadValue()
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestNegativeStrictArrayLength(t *testing.T) {
	buf := []byte{byte(TypeStrictArr), 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := NewReader(buf).ReadValue()
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestTruncatedString(t *testing.T) {
	buf := []byte{byte(TypeString), 0x00, 0x05, 'h', 'i'}
	_, err := NewReader(buf).ReadValue()
	require.ErrorIs(t, err, ErrInvalidFormat)
}
