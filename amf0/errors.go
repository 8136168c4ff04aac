package amf0

import "errors"

// ErrInvalidFormat is returned for malformed AMF0 bytes: an unknown type
// marker, a truncated string, a missing object terminator, or a negative
// strict-array length.
var ErrInvalidFormat = errors.New("amf0: invalid format")
